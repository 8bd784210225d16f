package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/bricklift/bricklift/internal/assets"
)

// Key prefixes for different data types
const (
	prefixAsset       = "a:"        // asset data
	keySchemaVersion  = "m:schema"  // corpus schema version marker
	keyActiveScene    = "m:active"  // active scene marker
	prefixSkipConfirm = "m:noask:"  // "don't ask again" per target version
)

// BadgerStore is a BadgerDB-backed asset store.
type BadgerStore struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
	assetCount  int
}

// NewBadgerStore creates a new BadgerDB store.
func NewBadgerStore() *BadgerStore {
	return &BadgerStore{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerStore) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	b.countAssets()

	return nil
}

// countAssets recounts stored assets after opening.
func (b *BadgerStore) countAssets() {
	b.assetCount = 0

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixAsset)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		b.assetCount++
	}
}

// Close releases all resources held by the store.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// List returns the identifiers of all assets under the given prefix, sorted.
func (b *BadgerStore) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var paths []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixAsset + prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			paths = append(paths, key[len(prefixAsset):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Load returns a working copy of the asset, or ErrNotFound.
func (b *BadgerStore) Load(ctx context.Context, path string) (*assets.Asset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var a assets.Asset
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixAsset + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading asset %s: %w", path, err)
	}

	return &a, nil
}

// Save persists a working copy back to its identifier.
func (b *BadgerStore) Save(ctx context.Context, a *assets.Asset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling asset: %w", err)
	}

	key := []byte(prefixAsset + a.Path)
	err = b.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(key); getErr == badger.ErrKeyNotFound {
			b.assetCount++
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("saving asset %s: %w", a.Path, err)
	}
	return nil
}

// Delete removes an asset. Deleting a missing asset is a no-op.
func (b *BadgerStore) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := []byte(prefixAsset + path)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(key); getErr == badger.ErrKeyNotFound {
			return nil
		}
		b.assetCount--
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("deleting asset %s: %w", path, err)
	}
	return nil
}

// AssetCount returns the number of stored assets.
func (b *BadgerStore) AssetCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.assetCount
}

// SchemaVersion returns the stored corpus schema version, or 0 when the
// marker has never been written.
func (b *BadgerStore) SchemaVersion(ctx context.Context) (int, error) {
	s, err := b.getMarker(keySchemaVersion)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version marker: %w", err)
	}
	return v, nil
}

// SetSchemaVersion persists the corpus schema version marker.
func (b *BadgerStore) SetSchemaVersion(ctx context.Context, v int) error {
	return b.setMarker(keySchemaVersion, strconv.Itoa(v))
}

// ActiveScene returns the path of the active scene, or "".
func (b *BadgerStore) ActiveScene(ctx context.Context) (string, error) {
	return b.getMarker(keyActiveScene)
}

// SetActiveScene persists the active scene marker.
func (b *BadgerStore) SetActiveScene(ctx context.Context, path string) error {
	return b.setMarker(keyActiveScene, path)
}

// SkipConfirm reports whether "don't ask again" was chosen for the version.
func (b *BadgerStore) SkipConfirm(ctx context.Context, version int) (bool, error) {
	s, err := b.getMarker(prefixSkipConfirm + strconv.Itoa(version))
	if err != nil {
		return false, err
	}
	return s == "1", nil
}

// SetSkipConfirm persists the "don't ask again" preference for the version.
func (b *BadgerStore) SetSkipConfirm(ctx context.Context, version int) error {
	return b.setMarker(prefixSkipConfirm+strconv.Itoa(version), "1")
}

func (b *BadgerStore) getMarker(key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var value string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("reading marker %s: %w", key, err)
	}
	return value, nil
}

func (b *BadgerStore) setMarker(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("writing marker %s: %w", key, err)
	}
	return nil
}
