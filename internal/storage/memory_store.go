package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bricklift/bricklift/internal/assets"
)

// MemoryStore is an in-memory implementation of AssetStore for testing.
// Assets round-trip through JSON so working copies are isolated from the
// stored state, matching the load/unload semantics of the Badger store.
type MemoryStore struct {
	mu          sync.RWMutex
	assets      map[string][]byte
	schema      int
	activeScene string
	skipConfirm map[int]bool
}

// NewMemoryStore creates a new in-memory asset store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets:      make(map[string][]byte),
		skipConfirm: make(map[int]bool),
	}
}

// Initialize implements AssetStore.
func (m *MemoryStore) Initialize(path string, readOnly bool) error {
	return nil
}

// Close implements AssetStore.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = nil
	return nil
}

// List implements AssetStore.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string
	for path := range m.assets {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Load implements AssetStore.
func (m *MemoryStore) Load(ctx context.Context, path string) (*assets.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.assets[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var a assets.Asset
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("loading asset %s: %w", path, err)
	}
	return &a, nil
}

// Save implements AssetStore.
func (m *MemoryStore) Save(ctx context.Context, a *assets.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling asset: %w", err)
	}
	m.assets[a.Path] = data
	return nil
}

// Delete implements AssetStore.
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assets, path)
	return nil
}

// AssetCount implements AssetStore.
func (m *MemoryStore) AssetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

// SchemaVersion implements AssetStore.
func (m *MemoryStore) SchemaVersion(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema, nil
}

// SetSchemaVersion implements AssetStore.
func (m *MemoryStore) SetSchemaVersion(ctx context.Context, v int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = v
	return nil
}

// ActiveScene implements AssetStore.
func (m *MemoryStore) ActiveScene(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeScene, nil
}

// SetActiveScene implements AssetStore.
func (m *MemoryStore) SetActiveScene(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeScene = path
	return nil
}

// SkipConfirm implements AssetStore.
func (m *MemoryStore) SkipConfirm(ctx context.Context, version int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.skipConfirm[version], nil
}

// SetSkipConfirm implements AssetStore.
func (m *MemoryStore) SetSkipConfirm(ctx context.Context, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipConfirm[version] = true
	return nil
}
