// Package geom provides the rigid-body math used by the spatial matching
// layer: vectors, orthonormal transforms, axis-aligned bounds, and the
// connect/reject/ignore classification rules for mating surfaces.
package geom

import "math"

// Tolerances are expressed in module units, where one knob pitch is 1.0.
const (
	// cosTolerance bounds how far two directions may deviate from exact
	// (anti-)parallel alignment and still be considered aligned.
	cosTolerance = 1e-3

	// planarGap is the maximum separation along the mating normal for two
	// planar surfaces to count as touching.
	planarGap = 0.02

	// planarSlide is the maximum lateral offset between two planar surface
	// origins for a mate to snap.
	planarSlide = 0.5

	// axleGap is the maximum distance between two axle axes for them to
	// count as collinear, and the clearance below which crossing axles
	// would intersect solid geometry.
	axleGap = 0.05
)

// Vec3 is a 3-component vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Up is the local mating direction convention: planar surfaces mate along
// their local +Y, and axle features rotate about their local +Y.
var Up = Vec3{Y: 1}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product of v and o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Len returns the Euclidean length of v.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Dist returns the distance between v and o.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// Transform is a rigid transform: a rotation expressed as an orthonormal
// basis plus a translation. Basis holds the world directions of the local
// X, Y, and Z axes.
type Transform struct {
	Pos   Vec3    `json:"pos"`
	Basis [3]Vec3 `json:"basis"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		Basis: [3]Vec3{{X: 1}, {Y: 1}, {Z: 1}},
	}
}

// ApplyDir rotates a direction into the parent frame without translating.
func (t Transform) ApplyDir(d Vec3) Vec3 {
	return t.Basis[0].Scale(d.X).Add(t.Basis[1].Scale(d.Y)).Add(t.Basis[2].Scale(d.Z))
}

// Apply maps a point from the local frame into the parent frame.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.ApplyDir(p).Add(t.Pos)
}

// Mul composes t with a child transform, returning the child expressed in
// t's parent frame.
func (t Transform) Mul(child Transform) Transform {
	return Transform{
		Pos: t.Apply(child.Pos),
		Basis: [3]Vec3{
			t.ApplyDir(child.Basis[0]),
			t.ApplyDir(child.Basis[1]),
			t.ApplyDir(child.Basis[2]),
		},
	}
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// BoundsAt returns a degenerate bounds containing only p.
func BoundsAt(p Vec3) Bounds { return Bounds{Min: p, Max: p} }

// Union returns the smallest bounds containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		Min: Vec3{math.Min(b.Min.X, o.Min.X), math.Min(b.Min.Y, o.Min.Y), math.Min(b.Min.Z, o.Min.Z)},
		Max: Vec3{math.Max(b.Max.X, o.Max.X), math.Max(b.Max.Y, o.Max.Y), math.Max(b.Max.Z, o.Max.Z)},
	}
}

// Encapsulate grows b to contain p.
func (b Bounds) Encapsulate(p Vec3) Bounds {
	return b.Union(BoundsAt(p))
}

// Transformed returns the axis-aligned bounds of b after applying t,
// computed over the eight transformed corners.
func (b Bounds) Transformed(t Transform) Bounds {
	corners := [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}

	out := BoundsAt(t.Apply(corners[0]))
	for _, c := range corners[1:] {
		out = out.Encapsulate(t.Apply(c))
	}
	return out
}

// Match classifies a candidate pairing of two features.
type Match int

const (
	// MatchConnect means the pair is a valid mate.
	MatchConnect Match = iota

	// MatchReject means the pair must not connect and blocks the mate.
	MatchReject

	// MatchIgnore means the pair is geometrically irrelevant and is skipped.
	MatchIgnore
)

// String returns the match name.
func (m Match) String() string {
	switch m {
	case MatchConnect:
		return "connect"
	case MatchReject:
		return "reject"
	case MatchIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ClassifyPlanar validates the relative transform of two planar mating
// surfaces given in the same (world) frame. Planar mating is binary: the
// surfaces either touch face-to-face within tolerance, or the pair is
// ignored.
func ClassifyPlanar(a, b Transform) Match {
	na := a.ApplyDir(Up)
	nb := b.ApplyDir(Up)

	// Mating surfaces face each other: normals anti-parallel.
	if na.Dot(nb) > -1+cosTolerance {
		return MatchIgnore
	}

	sep := b.Pos.Sub(a.Pos)
	gap := sep.Dot(na)
	if math.Abs(gap) > planarGap {
		return MatchIgnore
	}

	lateral := sep.Sub(na.Scale(gap))
	if lateral.Len() > planarSlide {
		return MatchIgnore
	}

	return MatchConnect
}

// ClassifyAxle validates the relative transform of two axle features given
// in the same (world) frame. Collinear axles connect, crossing axles that
// would intersect solid geometry reject, and everything else is ignored.
func ClassifyAxle(a, b Transform) Match {
	da := a.ApplyDir(Up)
	db := b.ApplyDir(Up)

	if math.Abs(da.Dot(db)) > 1-cosTolerance {
		// Parallel axes: connect only when collinear.
		offset := b.Pos.Sub(a.Pos)
		perp := offset.Sub(da.Scale(offset.Dot(da)))
		if perp.Len() <= axleGap {
			return MatchConnect
		}
		return MatchIgnore
	}

	// Skew axes: reject when they pass close enough to collide.
	n := da.Cross(db)
	dist := math.Abs(b.Pos.Sub(a.Pos).Dot(n)) / n.Len()
	if dist < axleGap {
		return MatchReject
	}
	return MatchIgnore
}
