package migration

import (
	"log/slog"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/geom"
)

// SpatialQuery is the geometric collaborator reconciliation depends on.
// Sync is an expensive whole-batch operation and is called once per batch,
// never per pair.
type SpatialQuery interface {
	// Sync rebuilds the world-transform cache for the batch.
	Sync(bricks []*assets.Brick)

	// FieldPairs returns candidate feature pairs for one field plus a
	// field-level reject flag.
	FieldPairs(ref assets.FieldRef) ([]assets.Candidate, bool)

	// Classify validates the relative transform of a candidate pair.
	Classify(a, b assets.FeatureRef) geom.Match
}

// Reconciler re-derives physical connections among a batch of bricks after
// their derived geometry has been regenerated.
type Reconciler struct {
	query SpatialQuery
	log   *slog.Logger
}

// NewReconciler creates a reconciler. A nil logger defaults to
// slog.Default().
func NewReconciler(query SpatialQuery, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{query: query, log: log}
}

// Reconcile walks every connectivity field in the batch and connects the
// candidate pairs that pass geometric validation. Rejected fields are
// logged and skipped, never fatal to the batch.
func (r *Reconciler) Reconcile(bricks []*assets.Brick) {
	r.query.Sync(bricks)
	lookup := assets.NewLookup(bricks)

	for _, brick := range bricks {
		for _, part := range brick.Parts {
			if part.Connectivity == nil {
				continue
			}
			for fi := range part.Connectivity.Fields {
				ref := assets.FieldRef{Part: part.ID, Field: fi}
				pairs, reject := r.query.FieldPairs(ref)
				if reject {
					r.log.Debug("field rejected by spatial query",
						"part", part.ID, "field", fi)
					continue
				}
				for _, candidate := range pairs {
					r.match(lookup, candidate)
				}
			}
		}
	}
}

// match applies the per-variant matching rules to one candidate pair.
func (r *Reconciler) match(lookup *assets.Lookup, c assets.Candidate) {
	fa := lookup.Feature(c.A)
	fb := lookup.Feature(c.B)
	if fa == nil || fb == nil || fa.Kind != fb.Kind {
		return
	}

	switch fa.Kind {
	case assets.FeaturePlanar:
		// Planar connections are exclusive: at most one active connection
		// per feature.
		if fa.Connected() || fb.Connected() {
			return
		}
		if r.query.Classify(c.A, c.B) != geom.MatchConnect {
			return
		}
		lookup.Connect(c.A, c.B)

	case assets.FeatureAxle:
		// Axle features accept any number of simultaneous connections;
		// only a validated mate links them.
		if r.query.Classify(c.A, c.B) != geom.MatchConnect {
			return
		}
		lookup.Connect(c.A, c.B)
	}
}
