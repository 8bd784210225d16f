// Package storage provides the asset store for Bricklift.
//
// It defines the AssetStore protocol the migration coordinator depends on,
// along with the persisted markers the store owns: the integer schema
// version of the corpus and the path of the scene that was active before a
// migration run.
package storage

import (
	"context"
	"errors"

	"github.com/bricklift/bricklift/internal/assets"
)

// ErrNotFound is returned when a requested asset does not exist.
var ErrNotFound = errors.New("storage: asset not found")

// AssetStore defines the interface for asset store implementations.
//
// Load returns a fresh working copy exclusively owned by the caller;
// releasing it is simply dropping the reference. List returns identifiers
// in sorted order so corpus enumeration is deterministic.
type AssetStore interface {
	// Lifecycle methods

	// Initialize opens or creates the store at the given path.
	// If readOnly is true, the store is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the store.
	Close() error

	// Asset operations

	// List returns the identifiers of all assets under the given prefix,
	// sorted. An empty prefix enumerates the whole corpus.
	List(ctx context.Context, prefix string) ([]string, error)

	// Load returns a working copy of the asset, or ErrNotFound.
	Load(ctx context.Context, path string) (*assets.Asset, error)

	// Save persists a working copy back to its identifier.
	Save(ctx context.Context, a *assets.Asset) error

	// Delete removes an asset. Deleting a missing asset is a no-op.
	Delete(ctx context.Context, path string) error

	// AssetCount returns the number of stored assets.
	AssetCount() int

	// Markers

	// SchemaVersion returns the stored corpus schema version, or 0 when the
	// marker has never been written (legacy corpus).
	SchemaVersion(ctx context.Context) (int, error)

	// SetSchemaVersion persists the corpus schema version marker.
	SetSchemaVersion(ctx context.Context, v int) error

	// ActiveScene returns the path of the active scene, or "".
	ActiveScene(ctx context.Context) (string, error)

	// SetActiveScene persists the active scene marker.
	SetActiveScene(ctx context.Context, path string) error

	// Preferences

	// SkipConfirm reports whether the user chose "don't ask again" for
	// migrations to the given schema version.
	SkipConfirm(ctx context.Context, version int) (bool, error)

	// SetSkipConfirm persists the "don't ask again" preference for the
	// given schema version.
	SetSkipConfirm(ctx context.Context, version int) error
}
