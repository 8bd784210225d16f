// Package spatial provides the geometric query collaborator used by
// connection reconciliation.
//
// It maintains a world-transform cache over a batch of bricks and answers
// two questions: which feature pairs are close enough to be connection
// candidates, and how a candidate pair classifies geometrically. Syncing
// the cache is an expensive whole-batch operation and must happen once per
// reconciliation batch, not per pair.
package spatial

import (
	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/geom"
)

// DefaultRadius is the candidate search radius in module units. Slightly
// above one knob pitch so diagonal neighbors stay out of range.
const DefaultRadius = 1.2

// entry is one cached feature with its resolved world transform.
type entry struct {
	ref   assets.FeatureRef
	kind  assets.FeatureKind
	world geom.Transform
}

// Query implements the spatial collaborator over an explicit transform
// cache. The zero value is unsynced; every field query rejects until Sync
// has run.
type Query struct {
	// Radius is the candidate search radius. Zero means DefaultRadius.
	Radius float64

	features map[assets.FeatureRef]*entry
	byField  map[assets.FieldRef][]*entry
	all      []*entry
}

// NewQuery creates an unsynced query with the default radius.
func NewQuery() *Query {
	return &Query{Radius: DefaultRadius}
}

// Sync rebuilds the world-transform cache for the batch. World transforms
// compose brick, part, and feature-local frames.
func (q *Query) Sync(bricks []*assets.Brick) {
	q.features = make(map[assets.FeatureRef]*entry)
	q.byField = make(map[assets.FieldRef][]*entry)
	q.all = q.all[:0]

	for _, brick := range bricks {
		for _, part := range brick.Parts {
			if part.Connectivity == nil {
				continue
			}
			partWorld := brick.Transform.Mul(part.Transform)

			for fi, field := range part.Connectivity.Fields {
				fieldRef := assets.FieldRef{Part: part.ID, Field: fi}
				q.byField[fieldRef] = nil

				for i, feature := range field.Features {
					e := &entry{
						ref:   assets.FeatureRef{Part: part.ID, Field: fi, Index: i},
						kind:  feature.Kind,
						world: partWorld.Mul(feature.Local),
					}
					q.features[e.ref] = e
					q.byField[fieldRef] = append(q.byField[fieldRef], e)
					q.all = append(q.all, e)
				}
			}
		}
	}
}

// FieldPairs returns candidate feature pairs for one field, pairing each of
// the field's features with same-kind features on other parts within the
// search radius. The second return value is the field-level reject flag:
// true when the field is unknown to the cache or empty.
func (q *Query) FieldPairs(ref assets.FieldRef) ([]assets.Candidate, bool) {
	own, ok := q.byField[ref]
	if !ok || len(own) == 0 {
		return nil, true
	}

	radius := q.Radius
	if radius == 0 {
		radius = DefaultRadius
	}

	var pairs []assets.Candidate
	for _, a := range own {
		for _, b := range q.all {
			if b.ref.Part == a.ref.Part || b.kind != a.kind {
				continue
			}
			if a.world.Pos.Dist(b.world.Pos) > radius {
				continue
			}
			pairs = append(pairs, assets.Candidate{A: a.ref, B: b.ref})
		}
	}
	return pairs, false
}

// Classify validates the relative transform of a candidate pair using the
// cached world transforms. Unknown refs reject: a stale cache means the
// geometry cannot be trusted.
func (q *Query) Classify(a, b assets.FeatureRef) geom.Match {
	ea, ok := q.features[a]
	if !ok {
		return geom.MatchReject
	}
	eb, ok := q.features[b]
	if !ok {
		return geom.MatchReject
	}
	if ea.kind != eb.kind {
		return geom.MatchReject
	}

	switch ea.kind {
	case assets.FeaturePlanar:
		return geom.ClassifyPlanar(ea.world, eb.world)
	case assets.FeatureAxle:
		return geom.ClassifyAxle(ea.world, eb.world)
	default:
		return geom.MatchReject
	}
}
