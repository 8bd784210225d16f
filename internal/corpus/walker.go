// Package corpus provides on-disk corpus enumeration for Bricklift.
//
// An asset tree on disk holds composite assets and scenes as JSON files.
// The walker turns such a tree into store identifiers and decoded assets,
// honoring gitignore patterns and keeping the reserved library locations
// out of the migratable corpus.
package corpus

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/bricklift/bricklift/internal/assets"
)

// AssetEntry represents one asset file to be processed.
type AssetEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the corpus root, slash-separated.
	// It doubles as the asset's store identifier.
	RelPath string

	// Asset is the decoded asset payload.
	Asset *assets.Asset
}

// ReservedPrefixes are the library/packaged locations excluded from the
// migratable corpus. Shared templates live here, not assets.
var ReservedPrefixes = []string{
	"library/connectivity/",
	"library/colliders/",
	"library/packaged/",
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	".bricklift/",
	".DS_Store",
	"Thumbs.db",
}

var reservedMatcher = func() gitignore.Matcher {
	patterns := make([]gitignore.Pattern, 0, len(ReservedPrefixes))
	for _, p := range ReservedPrefixes {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(patterns)
}()

// IsReserved reports whether a corpus identifier falls under one of the
// reserved library/packaged locations.
func IsReserved(relPath string) bool {
	return reservedMatcher.Match(splitPath(relPath), false)
}

// WalkAssets walks the corpus tree and returns all asset files, decoded.
func WalkAssets(root string, patterns []gitignore.Pattern) ([]AssetEntry, error) {
	var entries []AssetEntry

	// Combine default patterns with loaded patterns
	allPatterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(ReservedPrefixes)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	for _, p := range ReservedPrefixes {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	allPatterns = append(allPatterns, patterns...)

	matcher := gitignore.NewMatcher(allPatterns)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if shouldSkipDir(d.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isAssetFile(d.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var a assets.Asset
		if err := json.Unmarshal(content, &a); err != nil {
			return fmt.Errorf("decoding asset %s: %w", relPath, err)
		}
		a.Path = relPath

		entries = append(entries, AssetEntry{
			Path:    path,
			RelPath: relPath,
			Asset:   &a,
		})

		return nil
	})

	return entries, err
}

// LoadIgnoreFile loads .gitignore patterns from the corpus root.
func LoadIgnoreFile(root string) ([]gitignore.Pattern, error) {
	ignorePath := filepath.Join(root, ".gitignore")

	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(ignorePath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	var patterns []gitignore.Pattern

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return patterns, nil
}

// isAssetFile checks if a file has a supported asset extension.
func isAssetFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case assets.ExtComposite, assets.ExtScene:
		return true
	default:
		return false
	}
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if name == ".git" {
		return true
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return matcher.Match(splitPath(filepath.ToSlash(relPath)), true)
}

// splitPath splits a slash-separated path into its components.
func splitPath(path string) []string {
	return strings.Split(path, "/")
}
