package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/geom"
)

// flippedX is a 180 degree rotation about X: local +Y maps to world -Y.
var flippedX = geom.Transform{
	Basis: [3]geom.Vec3{{X: 1}, {Y: -1}, {Z: -1}},
}

// featurePart builds a one-field part holding a single feature at the
// given local transform.
func featurePart(id string, kind assets.FeatureKind, local geom.Transform) *assets.Part {
	return &assets.Part{
		ID:        id,
		DesignID:  "3001",
		Transform: geom.Identity(),
		Connectivity: &assets.Connectivity{
			Version: assets.CurrentSchemaVersion,
			Part:    id,
			Fields: []*assets.Field{{
				Kind:     kind,
				Features: []*assets.Feature{{Kind: kind, Local: local}},
			}},
		},
	}
}

func brickWith(parts ...*assets.Part) *assets.Brick {
	return &assets.Brick{
		Name:      "b",
		Transform: geom.Identity(),
		Parts:     parts,
	}
}

func TestQuerySync(t *testing.T) {
	t.Parallel()

	// Feature placed through brick, part, and local frames.
	part := featurePart("p1", assets.FeaturePlanar, geom.Transform{
		Pos: geom.Vec3{X: 1}, Basis: geom.Identity().Basis,
	})
	part.Transform.Pos = geom.Vec3{Y: 2}
	brick := brickWith(part)
	brick.Transform.Pos = geom.Vec3{Z: 3}

	other := featurePart("p2", assets.FeaturePlanar, flippedX)
	other.Transform.Pos = geom.Vec3{X: 1, Y: 2, Z: 3}

	q := NewQuery()
	q.Sync([]*assets.Brick{brick, brickWith(other)})

	// p2's feature composes to the same world position as p1's, so the
	// pair is a candidate.
	pairs, reject := q.FieldPairs(assets.FieldRef{Part: "p1", Field: 0})
	require.False(t, reject)
	require.Len(t, pairs, 1)
	assert.Equal(t, "p2", pairs[0].B.Part)
}

func TestQueryFieldPairs(t *testing.T) {
	t.Parallel()

	a := featurePart("a", assets.FeaturePlanar, geom.Identity())
	near := featurePart("near", assets.FeaturePlanar, flippedX)
	far := featurePart("far", assets.FeaturePlanar, flippedX)
	far.Transform.Pos = geom.Vec3{X: 50}
	axle := featurePart("axle", assets.FeatureAxle, geom.Identity())

	q := NewQuery()
	q.Sync([]*assets.Brick{brickWith(a), brickWith(near), brickWith(far), brickWith(axle)})

	t.Run("PairsWithinRadiusSameKindOtherPart", func(t *testing.T) {
		pairs, reject := q.FieldPairs(assets.FieldRef{Part: "a", Field: 0})
		require.False(t, reject)
		require.Len(t, pairs, 1)
		assert.Equal(t, "a", pairs[0].A.Part)
		assert.Equal(t, "near", pairs[0].B.Part)
	})

	t.Run("UnknownFieldRejects", func(t *testing.T) {
		pairs, reject := q.FieldPairs(assets.FieldRef{Part: "a", Field: 7})
		assert.True(t, reject)
		assert.Nil(t, pairs)
	})

	t.Run("UnsyncedQueryRejects", func(t *testing.T) {
		fresh := NewQuery()
		_, reject := fresh.FieldPairs(assets.FieldRef{Part: "a", Field: 0})
		assert.True(t, reject)
	})

	t.Run("EmptyFieldRejects", func(t *testing.T) {
		empty := featurePart("empty", assets.FeaturePlanar, geom.Identity())
		empty.Connectivity.Fields[0].Features = nil

		q2 := NewQuery()
		q2.Sync([]*assets.Brick{brickWith(empty)})
		_, reject := q2.FieldPairs(assets.FieldRef{Part: "empty", Field: 0})
		assert.True(t, reject)
	})
}

func TestQueryClassify(t *testing.T) {
	t.Parallel()

	a := featurePart("a", assets.FeaturePlanar, geom.Identity())
	b := featurePart("b", assets.FeaturePlanar, flippedX)
	c := featurePart("c", assets.FeatureAxle, geom.Identity())

	q := NewQuery()
	q.Sync([]*assets.Brick{brickWith(a), brickWith(b), brickWith(c)})

	refA := assets.FeatureRef{Part: "a", Field: 0, Index: 0}
	refB := assets.FeatureRef{Part: "b", Field: 0, Index: 0}
	refC := assets.FeatureRef{Part: "c", Field: 0, Index: 0}

	t.Run("FacingPlanarConnects", func(t *testing.T) {
		assert.Equal(t, geom.MatchConnect, q.Classify(refA, refB))
	})

	t.Run("MismatchedKindsReject", func(t *testing.T) {
		assert.Equal(t, geom.MatchReject, q.Classify(refA, refC))
	})

	t.Run("UnknownRefRejects", func(t *testing.T) {
		missing := assets.FeatureRef{Part: "ghost", Field: 0, Index: 0}
		assert.Equal(t, geom.MatchReject, q.Classify(refA, missing))
		assert.Equal(t, geom.MatchReject, q.Classify(missing, refA))
	})
}
