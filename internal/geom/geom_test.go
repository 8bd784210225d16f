package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// flippedX is a 180 degree rotation about X: local +Y maps to world -Y.
var flippedX = Transform{
	Basis: [3]Vec3{{X: 1}, {Y: -1}, {Z: -1}},
}

// quarterX is a 90 degree rotation about X: local +Y maps to world +Z.
var quarterX = Transform{
	Basis: [3]Vec3{{X: 1}, {Z: 1}, {Y: -1}},
}

func at(t Transform, pos Vec3) Transform {
	t.Pos = pos
	return t
}

func TestTransform(t *testing.T) {
	t.Parallel()

	t.Run("IdentityApply", func(t *testing.T) {
		p := Vec3{X: 1, Y: 2, Z: 3}
		assert.Equal(t, p, Identity().Apply(p))
	})

	t.Run("ApplyTranslates", func(t *testing.T) {
		tr := at(Identity(), Vec3{X: 5})
		assert.Equal(t, Vec3{X: 6, Y: 2}, tr.Apply(Vec3{X: 1, Y: 2}))
	})

	t.Run("ApplyDirIgnoresTranslation", func(t *testing.T) {
		tr := at(Identity(), Vec3{X: 5})
		assert.Equal(t, Vec3{Y: 1}, tr.ApplyDir(Up))
	})

	t.Run("MulComposes", func(t *testing.T) {
		parent := at(quarterX, Vec3{X: 1})
		child := at(Identity(), Vec3{Y: 2})

		composed := parent.Mul(child)
		direct := parent.Apply(child.Apply(Vec3{Z: 3}))
		assert.InDelta(t, direct.X, composed.Apply(Vec3{Z: 3}).X, 1e-9)
		assert.InDelta(t, direct.Y, composed.Apply(Vec3{Z: 3}).Y, 1e-9)
		assert.InDelta(t, direct.Z, composed.Apply(Vec3{Z: 3}).Z, 1e-9)
	})
}

func TestBounds(t *testing.T) {
	t.Parallel()

	t.Run("Union", func(t *testing.T) {
		a := Bounds{Min: Vec3{X: -1}, Max: Vec3{X: 1, Y: 1}}
		b := Bounds{Min: Vec3{Y: -2}, Max: Vec3{X: 3}}

		u := a.Union(b)
		assert.Equal(t, Vec3{X: -1, Y: -2}, u.Min)
		assert.Equal(t, Vec3{X: 3, Y: 1}, u.Max)
	})

	t.Run("Encapsulate", func(t *testing.T) {
		b := BoundsAt(Vec3{})
		b = b.Encapsulate(Vec3{X: 2, Y: -1})
		assert.Equal(t, Vec3{Y: -1}, b.Min)
		assert.Equal(t, Vec3{X: 2}, b.Max)
	})

	t.Run("TransformedTranslation", func(t *testing.T) {
		b := Bounds{Min: Vec3{X: -1, Y: -1, Z: -1}, Max: Vec3{X: 1, Y: 1, Z: 1}}
		tr := at(Identity(), Vec3{X: 10})

		out := b.Transformed(tr)
		assert.Equal(t, Vec3{X: 9, Y: -1, Z: -1}, out.Min)
		assert.Equal(t, Vec3{X: 11, Y: 1, Z: 1}, out.Max)
	})

	t.Run("TransformedRotationStaysAxisAligned", func(t *testing.T) {
		b := Bounds{Min: Vec3{Y: 0}, Max: Vec3{Y: 2}}

		out := b.Transformed(quarterX)
		assert.InDelta(t, 0, out.Min.Z, 1e-9)
		assert.InDelta(t, 2, out.Max.Z, 1e-9)
	})
}

func TestClassifyPlanar(t *testing.T) {
	t.Parallel()

	a := Identity()

	t.Run("FacingSurfacesConnect", func(t *testing.T) {
		b := at(flippedX, Vec3{X: 0.1})
		assert.Equal(t, MatchConnect, ClassifyPlanar(a, b))
	})

	t.Run("ParallelNormalsIgnore", func(t *testing.T) {
		// Both surfaces face the same way; they cannot mate.
		b := at(Identity(), Vec3{})
		assert.Equal(t, MatchIgnore, ClassifyPlanar(a, b))
	})

	t.Run("GapAlongNormalIgnore", func(t *testing.T) {
		b := at(flippedX, Vec3{Y: 0.5})
		assert.Equal(t, MatchIgnore, ClassifyPlanar(a, b))
	})

	t.Run("LateralOffsetTooFarIgnore", func(t *testing.T) {
		b := at(flippedX, Vec3{X: 0.6})
		assert.Equal(t, MatchIgnore, ClassifyPlanar(a, b))
	})

	t.Run("WithinSlideTolerance", func(t *testing.T) {
		b := at(flippedX, Vec3{X: 0.4, Z: 0.2})
		assert.Equal(t, MatchConnect, ClassifyPlanar(a, b))
	})
}

func TestClassifyAxle(t *testing.T) {
	t.Parallel()

	a := Identity()

	t.Run("CollinearConnect", func(t *testing.T) {
		b := at(Identity(), Vec3{Y: 1.5})
		assert.Equal(t, MatchConnect, ClassifyAxle(a, b))
	})

	t.Run("AntiParallelCollinearConnect", func(t *testing.T) {
		b := at(flippedX, Vec3{Y: -1})
		assert.Equal(t, MatchConnect, ClassifyAxle(a, b))
	})

	t.Run("ParallelOffsetIgnore", func(t *testing.T) {
		b := at(Identity(), Vec3{X: 0.5})
		assert.Equal(t, MatchIgnore, ClassifyAxle(a, b))
	})

	t.Run("CrossingAxesReject", func(t *testing.T) {
		// Perpendicular axes passing through the same point would collide.
		b := at(quarterX, Vec3{})
		assert.Equal(t, MatchReject, ClassifyAxle(a, b))
	})

	t.Run("SkewAxesFarApartIgnore", func(t *testing.T) {
		b := at(quarterX, Vec3{X: 1})
		assert.Equal(t, MatchIgnore, ClassifyAxle(a, b))
	})
}
