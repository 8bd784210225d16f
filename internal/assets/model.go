// Package assets provides the brick asset data model for Bricklift.
//
// It defines the entities the migration engine operates on: composite
// assets and scenes, the bricks they contain, the parts inside each brick,
// and the derived connectivity and collider sub-resources stamped with a
// schema version. Ownership is strictly tree-shaped (asset owns bricks,
// brick owns parts, part owns its sub-resources and anchors); every
// cross-link is a stable identifier or index, never an owning pointer.
package assets

import (
	"strings"

	"github.com/bricklift/bricklift/internal/geom"
)

// CurrentSchemaVersion is the schema version stamped on regenerated
// connectivity and collider sub-resources. Versions 0 and 1 are legacy
// layouts from before colliders were a versioned sub-resource.
const CurrentSchemaVersion = 2

// Asset file extensions. Composite assets are reusable prefab-like
// containers; scenes are flat top-level arrangements.
const (
	ExtComposite = ".brick"
	ExtScene     = ".scene"
)

// UnsetIndex is the sentinel for a cleared index back-reference.
const UnsetIndex = -1

// Asset is an editable working copy of a composite asset or scene,
// identified by its corpus path.
type Asset struct {
	// Path is the opaque identifier of the asset within the corpus.
	Path string `json:"path"`

	// Bricks are the rigid composite units the asset contains.
	Bricks []*Brick `json:"bricks,omitempty"`
}

// IsScene reports whether the asset is a scene rather than a composite.
func (a *Asset) IsScene() bool {
	return strings.HasSuffix(a.Path, ExtScene)
}

// Roots returns the bricks that are not instances of another composite
// asset. Instances are migrated transitively through their source asset.
func (a *Asset) Roots() []*Brick {
	var roots []*Brick
	for _, b := range a.Bricks {
		if b.SourceAsset == "" {
			roots = append(roots, b)
		}
	}
	return roots
}

// Brick is a rigid group of one or more parts, treated as one migration unit.
type Brick struct {
	// Name identifies the brick within its asset.
	Name string `json:"name"`

	// SourceAsset is the path of the composite asset this brick is an
	// instance of, or empty for an independently editable brick.
	SourceAsset string `json:"source_asset,omitempty"`

	// Transform places the brick in its asset's frame.
	Transform geom.Transform `json:"transform"`

	// Bounds is the brick's bounding volume in its asset's frame. Grown to
	// encapsulate regenerated connectivity regions.
	Bounds geom.Bounds `json:"bounds"`

	// Parts are the entities carrying derived geometry and anchors.
	Parts []*Part `json:"parts,omitempty"`
}

// Part is the smallest entity carrying connectivity/collider sub-resources
// and physical anchors.
type Part struct {
	// ID uniquely identifies the part within a migration batch. Connection
	// endpoints reference parts by this ID.
	ID string `json:"id"`

	// DesignID selects the shared template the derived geometry is
	// regenerated from.
	DesignID string `json:"design_id"`

	// InstanceOnly marks a part that belongs to a composite instance. Such
	// parts inherit regenerated geometry from their source asset and are
	// skipped by the migrator.
	InstanceOnly bool `json:"instance_only,omitempty"`

	// Transform places the part in its brick's frame.
	Transform geom.Transform `json:"transform"`

	// Connectivity is the derived connection geometry. Nil is a valid
	// legacy/unsupported state.
	Connectivity *Connectivity `json:"connectivity,omitempty"`

	// Colliders is the derived collision geometry. Nil on legacy parts.
	Colliders *Colliders `json:"colliders,omitempty"`

	// LegacyColliders is the conventionally named collider container used
	// by version 0/1 exports, present only when Colliders is nil.
	LegacyColliders *ColliderContainer `json:"legacy_colliders,omitempty"`

	// Knobs and Tubes are the part's physical anchors. They pre-exist any
	// regeneration and must survive it.
	Knobs []*Knob `json:"knobs,omitempty"`
	Tubes []*Tube `json:"tubes,omitempty"`
}

// Connectivity is the derived geometry describing how a part can connect
// to others. Regenerated wholesale when stale, never patched in place.
type Connectivity struct {
	// Version is the stamped schema version.
	Version int `json:"version"`

	// Part is the weak back-link to the owning part's ID.
	Part string `json:"part,omitempty"`

	// Extent is the region's bounding volume in the part's frame.
	Extent geom.Bounds `json:"extent"`

	// Fields group connection features of one kind.
	Fields []*Field `json:"fields,omitempty"`
}

// Colliders is the derived collision geometry for a part.
type Colliders struct {
	// Version is the stamped schema version.
	Version int `json:"version"`

	// Part is the weak back-link to the owning part's ID.
	Part string `json:"part,omitempty"`

	// Boxes are the collision volumes in the part's frame.
	Boxes []geom.Bounds `json:"boxes,omitempty"`
}

// ColliderContainer is the pre-versioning collider layout: a conventionally
// named child object holding raw collision boxes.
type ColliderContainer struct {
	Name  string        `json:"name"`
	Boxes []geom.Bounds `json:"boxes,omitempty"`
}

// LegacyColliderName is the conventional container name used by version
// 0/1 exports.
const LegacyColliderName = "Colliders"

// FeatureKind is the closed set of connection feature variants.
type FeatureKind uint8

const (
	// FeaturePlanar is a flat mating surface with binary connect semantics
	// and at most one active connection.
	FeaturePlanar FeatureKind = iota

	// FeatureAxle is a rotational mating feature with connect/reject/ignore
	// semantics and any number of simultaneous connections.
	FeatureAxle
)

// String returns the feature kind name.
func (k FeatureKind) String() string {
	switch k {
	case FeaturePlanar:
		return "planar"
	case FeatureAxle:
		return "axle"
	default:
		return "unknown"
	}
}

// Field groups features of one kind inside a connectivity region.
type Field struct {
	// Kind is the variant of every feature in the field.
	Kind FeatureKind `json:"kind"`

	// Features are the connection surfaces the field owns.
	Features []*Feature `json:"features,omitempty"`

	// Dirty marks pending unsaved changes made by reconciliation.
	Dirty bool `json:"-"`
}

// Feature is a typed connection surface owned by a field.
type Feature struct {
	// Kind mirrors the owning field's kind.
	Kind FeatureKind `json:"kind"`

	// Local places the feature in its part's frame. Local +Y is the mating
	// normal for planar features and the rotation axis for axles.
	Local geom.Transform `json:"local"`

	// Slots bind a planar feature's connection entries to the part's
	// pre-existing knob and tube anchors.
	Slots []AnchorSlot `json:"slots,omitempty"`

	// Connections are the feature's active connections. Planar features
	// hold at most one entry.
	Connections []FeatureRef `json:"connections,omitempty"`
}

// Connected reports whether the feature has any active connection.
func (f *Feature) Connected() bool { return len(f.Connections) > 0 }

// AnchorKind selects the anchor collection an AnchorSlot binds into.
type AnchorKind uint8

const (
	AnchorKnob AnchorKind = iota
	AnchorTube
)

// String returns the anchor kind name.
func (k AnchorKind) String() string {
	switch k {
	case AnchorKnob:
		return "knob"
	case AnchorTube:
		return "tube"
	default:
		return "unknown"
	}
}

// AnchorSlot is a template connection entry naming the anchor it attaches to.
type AnchorSlot struct {
	Kind  AnchorKind `json:"kind"`
	Index int        `json:"index"`
}

// FeatureRef addresses a feature by part ID and owning indices. Connection
// endpoints use refs rather than pointers so the model stays cycle-free.
type FeatureRef struct {
	Part  string `json:"part"`
	Field int    `json:"field"`
	Index int    `json:"index"`
}

// FieldRef addresses a field by part ID and index.
type FieldRef struct {
	Part  string `json:"part"`
	Field int    `json:"field"`
}

// Candidate is a potential pairing of two features produced by a spatial
// query. Candidates are transient; only realized connections persist.
type Candidate struct {
	A FeatureRef `json:"a"`
	B FeatureRef `json:"b"`
}

// Knob is a stud-style anchor. It survives connectivity regeneration; only
// its back-references are cleared and reassigned.
type Knob struct {
	// Index is the knob's stable position in the part's knob collection.
	Index int `json:"index"`

	// Field is the index of the owning connectivity field, or UnsetIndex.
	Field int `json:"field"`

	// ConnectionIndex is the knob's slot in its field's connection table,
	// or UnsetIndex when unbound.
	ConnectionIndex int `json:"connection_index"`

	// Active reports whether the anchor participates in matching.
	Active bool `json:"active"`

	// Local places the anchor in its part's frame.
	Local geom.Transform `json:"local"`
}

// Tube is a socket-style anchor. It survives connectivity regeneration;
// only its connection list and back-reference are cleared and reassigned.
type Tube struct {
	// Index is the tube's stable position in the part's tube collection.
	Index int `json:"index"`

	// Field is the index of the owning connectivity field, or UnsetIndex.
	Field int `json:"field"`

	// Connections are indices into the owning field's connection table.
	Connections []int `json:"connections,omitempty"`

	// Active reports whether the anchor participates in matching.
	Active bool `json:"active"`

	// Local places the anchor in its part's frame.
	Local geom.Transform `json:"local"`
}
