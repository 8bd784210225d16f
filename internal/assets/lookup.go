package assets

import "slices"

// Lookup resolves part IDs and feature refs against one migration batch.
// Build it after the batch's bricks are final; it holds no ownership.
type Lookup struct {
	parts map[string]*Part
}

// NewLookup indexes the parts of the given bricks by ID.
func NewLookup(bricks []*Brick) *Lookup {
	l := &Lookup{parts: make(map[string]*Part)}
	for _, brick := range bricks {
		for _, part := range brick.Parts {
			l.parts[part.ID] = part
		}
	}
	return l
}

// Part returns the part with the given ID, or nil.
func (l *Lookup) Part(id string) *Part {
	return l.parts[id]
}

// Field resolves a field ref, or nil if any link in the chain is missing.
func (l *Lookup) Field(ref FieldRef) *Field {
	part := l.parts[ref.Part]
	if part == nil || part.Connectivity == nil {
		return nil
	}
	if ref.Field < 0 || ref.Field >= len(part.Connectivity.Fields) {
		return nil
	}
	return part.Connectivity.Fields[ref.Field]
}

// Feature resolves a feature ref, or nil if any link in the chain is missing.
func (l *Lookup) Feature(ref FeatureRef) *Feature {
	field := l.Field(FieldRef{Part: ref.Part, Field: ref.Field})
	if field == nil {
		return nil
	}
	if ref.Index < 0 || ref.Index >= len(field.Features) {
		return nil
	}
	return field.Features[ref.Index]
}

// Connect records an active connection between two features and marks both
// owning fields as having pending unsaved changes. Re-connecting an already
// linked pair is a no-op, so mirrored candidates from both fields' queries
// do not double-link.
func (l *Lookup) Connect(a, b FeatureRef) bool {
	fa := l.Feature(a)
	fb := l.Feature(b)
	if fa == nil || fb == nil {
		return false
	}
	if slices.Contains(fa.Connections, b) {
		return false
	}

	fa.Connections = append(fa.Connections, b)
	fb.Connections = append(fb.Connections, a)
	l.Field(FieldRef{Part: a.Part, Field: a.Field}).Dirty = true
	l.Field(FieldRef{Part: b.Part, Field: b.Field}).Dirty = true
	return true
}

// AnyDirty reports whether any field in the batch has pending unsaved
// changes from reconciliation.
func AnyDirty(bricks []*Brick) bool {
	for _, brick := range bricks {
		for _, part := range brick.Parts {
			if part.Connectivity == nil {
				continue
			}
			for _, field := range part.Connectivity.Fields {
				if field.Dirty {
					return true
				}
			}
		}
	}
	return false
}

// ClearDirty resets the pending-change marks after a batch is persisted.
func ClearDirty(bricks []*Brick) {
	for _, brick := range bricks {
		for _, part := range brick.Parts {
			if part.Connectivity == nil {
				continue
			}
			for _, field := range part.Connectivity.Fields {
				field.Dirty = false
			}
		}
	}
}
