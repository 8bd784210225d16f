package templates

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/bricklift/bricklift/internal/assets"
)

// MemoryFactory is an in-memory Library implementation for testing.
// Prototypes round-trip through JSON on load so every instantiation is a
// deep copy, matching LibraryFactory semantics.
type MemoryFactory struct {
	mu           sync.RWMutex
	connectivity map[string]*assets.Connectivity
	colliders    map[string]*assets.Colliders
	unpacked     map[Ref]bool
	stale        map[Ref]bool
}

// NewMemoryFactory creates an empty in-memory template factory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{
		connectivity: make(map[string]*assets.Connectivity),
		colliders:    make(map[string]*assets.Colliders),
		unpacked:     make(map[Ref]bool),
		stale:        make(map[Ref]bool),
	}
}

// PutConnectivity registers a connectivity prototype for a design.
func (m *MemoryFactory) PutConnectivity(designID string, conn *assets.Connectivity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity[designID] = conn
}

// PutColliders registers a colliders prototype for a design.
func (m *MemoryFactory) PutColliders(designID string, col *assets.Colliders) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colliders[designID] = col
}

// MarkStale flags an unpacked template as needing a restamp.
func (m *MemoryFactory) MarkStale(ref Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale[ref] = true
	m.unpacked[ref] = true
}

// Unpacked implements Factory.
func (m *MemoryFactory) Unpacked(designID string, kind Kind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unpacked[Ref{DesignID: designID, Kind: kind}]
}

// Unpack implements Factory.
func (m *MemoryFactory) Unpack(designID string, kind Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := Ref{DesignID: designID, Kind: kind}
	if m.unpacked[ref] {
		return nil
	}
	if !m.hasPrototype(ref) {
		return fmt.Errorf("%w: %s %s", ErrMissingTemplate, kind, designID)
	}
	m.unpacked[ref] = true
	return nil
}

// Connectivity implements Factory.
func (m *MemoryFactory) Connectivity(designID string) (*assets.Connectivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proto, ok := m.connectivity[designID]
	if !ok {
		return nil, fmt.Errorf("%w: connectivity %s", ErrMissingTemplate, designID)
	}

	conn := &assets.Connectivity{}
	if err := deepCopy(proto, conn); err != nil {
		return nil, err
	}
	conn.Version = assets.CurrentSchemaVersion
	return conn, nil
}

// Colliders implements Factory.
func (m *MemoryFactory) Colliders(designID string) (*assets.Colliders, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proto, ok := m.colliders[designID]
	if !ok {
		return nil, fmt.Errorf("%w: colliders %s", ErrMissingTemplate, designID)
	}

	col := &assets.Colliders{}
	if err := deepCopy(proto, col); err != nil {
		return nil, err
	}
	col.Version = assets.CurrentSchemaVersion
	return col, nil
}

// EnsureLibraries implements Library.
func (m *MemoryFactory) EnsureLibraries() error { return nil }

// StaleTemplates implements Library.
func (m *MemoryFactory) StaleTemplates() ([]Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]Ref, 0, len(m.stale))
	for ref := range m.stale {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].DesignID < refs[j].DesignID
	})
	return refs, nil
}

// Restamp implements Library.
func (m *MemoryFactory) Restamp(ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasPrototype(ref) {
		return fmt.Errorf("%w: %s %s", ErrMissingTemplate, ref.Kind, ref.DesignID)
	}
	delete(m.stale, ref)
	return nil
}

func (m *MemoryFactory) hasPrototype(ref Ref) bool {
	switch ref.Kind {
	case KindConnectivity:
		_, ok := m.connectivity[ref.DesignID]
		return ok
	case KindColliders:
		_, ok := m.colliders[ref.DesignID]
		return ok
	default:
		return false
	}
}

func deepCopy(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("copying template: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("copying template: %w", err)
	}
	return nil
}
