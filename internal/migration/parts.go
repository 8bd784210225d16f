package migration

import (
	"fmt"
	"log/slog"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/templates"
)

// AnchorMatcher re-associates a regenerated planar feature's connection
// entry with the part's pre-existing knob or tube anchor.
type AnchorMatcher interface {
	// Bind attaches the anchor named by slot to the connectivity field at
	// the given index.
	Bind(part *assets.Part, field int, slot assets.AnchorSlot) error
}

// IndexMatcher binds anchor slots by kind and stable collection index.
type IndexMatcher struct{}

// Bind implements AnchorMatcher.
func (IndexMatcher) Bind(part *assets.Part, field int, slot assets.AnchorSlot) error {
	switch slot.Kind {
	case assets.AnchorKnob:
		if slot.Index < 0 || slot.Index >= len(part.Knobs) {
			return fmt.Errorf("part %s: knob slot %d out of range", part.ID, slot.Index)
		}
		knob := part.Knobs[slot.Index]
		knob.Field = field
		knob.ConnectionIndex = slot.Index
		return nil
	case assets.AnchorTube:
		if slot.Index < 0 || slot.Index >= len(part.Tubes) {
			return fmt.Errorf("part %s: tube slot %d out of range", part.ID, slot.Index)
		}
		part.Tubes[slot.Index].Field = field
		return nil
	default:
		return fmt.Errorf("part %s: unknown anchor kind %d", part.ID, slot.Kind)
	}
}

// PartMigrator brings a part's derived sub-resources up to the current
// schema version, preserving its physical anchors.
type PartMigrator struct {
	factory templates.Factory
	matcher AnchorMatcher
	log     *slog.Logger
}

// NewPartMigrator creates a migrator. A nil matcher defaults to index
// matching; a nil logger defaults to slog.Default().
func NewPartMigrator(factory templates.Factory, matcher AnchorMatcher, log *slog.Logger) *PartMigrator {
	if matcher == nil {
		matcher = IndexMatcher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &PartMigrator{factory: factory, matcher: matcher, log: log}
}

// MigrateBricks migrates every part of every brick, reporting whether any
// work happened. Per-part failures are logged and never abort the batch.
func (m *PartMigrator) MigrateBricks(bricks []*assets.Brick) bool {
	updated := false
	for _, brick := range bricks {
		for _, part := range brick.Parts {
			if m.migratePart(brick, part) {
				updated = true
			}
		}
	}
	return updated
}

// migratePart regenerates one part's stale sub-resources. Instance-only
// parts inherit from their source asset and are skipped entirely.
func (m *PartMigrator) migratePart(brick *assets.Brick, part *assets.Part) bool {
	if part.InstanceOnly {
		return false
	}

	m.ensureUnpacked(part.DesignID)

	updated := false
	if part.Connectivity != nil && part.Connectivity.Version != assets.CurrentSchemaVersion {
		updated = true
		m.regenerateConnectivity(brick, part)
	}
	if part.Colliders == nil || part.Colliders.Version != assets.CurrentSchemaVersion {
		updated = true
		m.regenerateColliders(part)
	}
	return updated
}

// ensureUnpacked makes the part's shared templates locally available.
// Idempotent; unpack failures surface later as missing templates.
func (m *PartMigrator) ensureUnpacked(designID string) {
	for _, kind := range []templates.Kind{templates.KindConnectivity, templates.KindColliders} {
		if m.factory.Unpacked(designID, kind) {
			continue
		}
		if err := m.factory.Unpack(designID, kind); err != nil {
			m.log.Error("unpacking template failed",
				"design", designID, "kind", kind.String(), "err", err)
		}
	}
}

// regenerateConnectivity destroys and recreates the part's connectivity
// region. Anchors survive: only their back-references are cleared and,
// when the fresh region loads, reassigned.
func (m *PartMigrator) regenerateConnectivity(brick *assets.Brick, part *assets.Part) {
	part.Connectivity = nil

	for _, tube := range part.Tubes {
		tube.Connections = nil
		tube.Field = assets.UnsetIndex
		tube.Active = true
	}
	for _, knob := range part.Knobs {
		knob.Field = assets.UnsetIndex
		knob.ConnectionIndex = assets.UnsetIndex
		knob.Active = true
	}

	conn, err := m.factory.Connectivity(part.DesignID)
	if err != nil {
		// Non-fatal: the part is left without connectivity and the run
		// continues with the next part.
		m.log.Error("loading connectivity template failed",
			"part", part.ID, "design", part.DesignID, "err", err)
		return
	}

	conn.Part = part.ID
	part.Connectivity = conn
	brick.Bounds = brick.Bounds.Union(conn.Extent.Transformed(part.Transform))

	for fi, field := range conn.Fields {
		if field.Kind != assets.FeaturePlanar {
			continue
		}
		for _, feature := range field.Features {
			for _, slot := range feature.Slots {
				if err := m.matcher.Bind(part, fi, slot); err != nil {
					m.log.Error("binding anchor failed",
						"part", part.ID, "design", part.DesignID, "err", err)
				}
			}
		}
	}
}

// regenerateColliders destroys and recreates the part's collision geometry.
// Parts exported before colliders were versioned carry a conventionally
// named container instead of a Colliders sub-resource; it is destroyed the
// same way.
func (m *PartMigrator) regenerateColliders(part *assets.Part) {
	if part.Colliders != nil {
		part.Colliders = nil
	} else if part.LegacyColliders != nil {
		part.LegacyColliders = nil
	}

	col, err := m.factory.Colliders(part.DesignID)
	if err != nil {
		m.log.Error("loading colliders template failed",
			"part", part.ID, "design", part.DesignID, "err", err)
		return
	}

	col.Part = part.ID
	part.Colliders = col
}
