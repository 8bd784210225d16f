// Package templates provides the shared template factory for Bricklift.
//
// Derived connectivity and collider geometry is not authored per part; it
// is instantiated from shared, version-scoped templates keyed by design ID.
// Templates ship in a packaged archive directory and are unpacked into two
// fixed library locations on demand. Loading a template always yields a
// fresh deep copy stamped with the current schema version.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bricklift/bricklift/internal/assets"
)

// ErrMissingTemplate is returned when no template exists for a design ID.
// Recoverable: migration logs it and continues with the next part.
var ErrMissingTemplate = errors.New("templates: missing template")

// Kind selects between the two template flavors.
type Kind int

const (
	KindConnectivity Kind = iota
	KindColliders
)

// String returns the kind name, which doubles as its library directory.
func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindColliders:
		return "colliders"
	default:
		return "unknown"
	}
}

// Ref names one template in the library.
type Ref struct {
	DesignID string
	Kind     Kind
}

// Factory is the template collaborator the part migrator depends on.
type Factory interface {
	// Unpacked reports whether a local unpacked copy exists.
	Unpacked(designID string, kind Kind) bool

	// Unpack places a local copy of the packaged template into the library.
	// Idempotent: a no-op when already unpacked.
	Unpack(designID string, kind Kind) error

	// Connectivity loads the current connectivity template for the design
	// as a fresh instance, or ErrMissingTemplate.
	Connectivity(designID string) (*assets.Connectivity, error)

	// Colliders loads the current colliders template for the design as a
	// fresh instance, or ErrMissingTemplate.
	Colliders(designID string) (*assets.Colliders, error)
}

// Library extends Factory with the maintenance operations the migration
// coordinator performs on the shared library before any part is touched.
type Library interface {
	Factory

	// EnsureLibraries creates the two library locations if absent.
	EnsureLibraries() error

	// StaleTemplates lists unpacked templates whose stamped version differs
	// from the current schema version, in deterministic order.
	StaleTemplates() ([]Ref, error)

	// Restamp regenerates one stale library template from its packaged
	// source, stamped with the current schema version.
	Restamp(ref Ref) error
}

// LibraryFactory is the on-disk Library implementation.
//
// Layout under the root directory:
//
//	packaged/<designID>.<kind>.json   read-only shipped prototypes
//	connectivity/<designID>.json      unpacked connectivity templates
//	colliders/<designID>.json         unpacked collider templates
type LibraryFactory struct {
	root string
}

// NewLibraryFactory creates a factory rooted at the given directory.
func NewLibraryFactory(root string) *LibraryFactory {
	return &LibraryFactory{root: root}
}

// PackagedDir returns the packaged archive location.
func (f *LibraryFactory) PackagedDir() string {
	return filepath.Join(f.root, "packaged")
}

// LibraryDir returns the unpacked library location for a kind.
func (f *LibraryFactory) LibraryDir(kind Kind) string {
	return filepath.Join(f.root, kind.String())
}

func (f *LibraryFactory) packagedPath(designID string, kind Kind) string {
	return filepath.Join(f.PackagedDir(), designID+"."+kind.String()+".json")
}

func (f *LibraryFactory) libraryPath(designID string, kind Kind) string {
	return filepath.Join(f.LibraryDir(kind), designID+".json")
}

// EnsureLibraries creates the two library locations if absent.
func (f *LibraryFactory) EnsureLibraries() error {
	for _, kind := range []Kind{KindConnectivity, KindColliders} {
		if err := os.MkdirAll(f.LibraryDir(kind), 0o755); err != nil {
			return fmt.Errorf("creating %s library: %w", kind, err)
		}
	}
	return nil
}

// Unpacked reports whether a local unpacked copy exists.
func (f *LibraryFactory) Unpacked(designID string, kind Kind) bool {
	_, err := os.Stat(f.libraryPath(designID, kind))
	return err == nil
}

// Unpack places a local copy of the packaged template into the library,
// stamped with the current schema version. A no-op when already unpacked.
func (f *LibraryFactory) Unpack(designID string, kind Kind) error {
	if f.Unpacked(designID, kind) {
		return nil
	}
	return f.unpack(designID, kind)
}

func (f *LibraryFactory) unpack(designID string, kind Kind) error {
	data, err := os.ReadFile(f.packagedPath(designID, kind))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s %s", ErrMissingTemplate, kind, designID)
	}
	if err != nil {
		return fmt.Errorf("reading packaged %s %s: %w", kind, designID, err)
	}

	stamped, err := stampVersion(data, kind)
	if err != nil {
		return fmt.Errorf("unpacking %s %s: %w", kind, designID, err)
	}

	if err := os.MkdirAll(f.LibraryDir(kind), 0o755); err != nil {
		return fmt.Errorf("creating %s library: %w", kind, err)
	}
	if err := os.WriteFile(f.libraryPath(designID, kind), stamped, 0o644); err != nil {
		return fmt.Errorf("writing %s template %s: %w", kind, designID, err)
	}
	return nil
}

// Connectivity loads the current connectivity template for the design as a
// fresh instance, unpacking it first if needed.
func (f *LibraryFactory) Connectivity(designID string) (*assets.Connectivity, error) {
	data, err := f.load(designID, KindConnectivity)
	if err != nil {
		return nil, err
	}

	var conn assets.Connectivity
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("decoding connectivity template %s: %w", designID, err)
	}
	conn.Version = assets.CurrentSchemaVersion
	return &conn, nil
}

// Colliders loads the current colliders template for the design as a fresh
// instance, unpacking it first if needed.
func (f *LibraryFactory) Colliders(designID string) (*assets.Colliders, error) {
	data, err := f.load(designID, KindColliders)
	if err != nil {
		return nil, err
	}

	var col assets.Colliders
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("decoding colliders template %s: %w", designID, err)
	}
	col.Version = assets.CurrentSchemaVersion
	return &col, nil
}

func (f *LibraryFactory) load(designID string, kind Kind) ([]byte, error) {
	if err := f.Unpack(designID, kind); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.libraryPath(designID, kind))
	if err != nil {
		return nil, fmt.Errorf("reading %s template %s: %w", kind, designID, err)
	}
	return data, nil
}

// StaleTemplates lists unpacked templates whose stamped version differs
// from the current schema version, sorted by kind then design ID.
func (f *LibraryFactory) StaleTemplates() ([]Ref, error) {
	var stale []Ref

	for _, kind := range []Kind{KindConnectivity, KindColliders} {
		entries, err := os.ReadDir(f.LibraryDir(kind))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s library: %w", kind, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			designID := strings.TrimSuffix(entry.Name(), ".json")

			data, err := os.ReadFile(f.libraryPath(designID, kind))
			if err != nil {
				return nil, fmt.Errorf("reading %s template %s: %w", kind, designID, err)
			}

			var header struct {
				Version int `json:"version"`
			}
			if err := json.Unmarshal(data, &header); err != nil {
				return nil, fmt.Errorf("decoding %s template %s: %w", kind, designID, err)
			}
			if header.Version != assets.CurrentSchemaVersion {
				stale = append(stale, Ref{DesignID: designID, Kind: kind})
			}
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		if stale[i].Kind != stale[j].Kind {
			return stale[i].Kind < stale[j].Kind
		}
		return stale[i].DesignID < stale[j].DesignID
	})
	return stale, nil
}

// Restamp regenerates one stale library template from its packaged source.
func (f *LibraryFactory) Restamp(ref Ref) error {
	return f.unpack(ref.DesignID, ref.Kind)
}

// stampVersion rewrites the version field of a serialized template.
func stampVersion(data []byte, kind Kind) ([]byte, error) {
	switch kind {
	case KindConnectivity:
		var conn assets.Connectivity
		if err := json.Unmarshal(data, &conn); err != nil {
			return nil, err
		}
		conn.Version = assets.CurrentSchemaVersion
		return json.Marshal(&conn)
	case KindColliders:
		var col assets.Colliders
		if err := json.Unmarshal(data, &col); err != nil {
			return nil, err
		}
		col.Version = assets.CurrentSchemaVersion
		return json.Marshal(&col)
	default:
		return nil, fmt.Errorf("unknown template kind %d", kind)
	}
}
