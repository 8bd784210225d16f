package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
}

func TestWalkAssets(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"car.brick":                       `{"bricks":[{"name":"chassis"}]}`,
		"town/square.scene":               `{"bricks":[]}`,
		"town/house.brick":                `{"bricks":[{"name":"wall"}]}`,
		"notes.txt":                       "not an asset",
		"library/packaged/3001.brick":     `{}`,
		"library/connectivity/3001.brick": `{}`,
		".bricklift/cache.brick":          `{}`,
		".gitignore":                      "drafts/\n",
		"drafts/wip.brick":                `{}`,
	})

	patterns, err := LoadIgnoreFile(tmpDir)
	require.NoError(t, err)

	entries, err := WalkAssets(tmpDir, patterns)
	require.NoError(t, err)

	found := make(map[string]AssetEntry)
	for _, e := range entries {
		found[e.RelPath] = e
	}

	t.Run("FindsAssetFiles", func(t *testing.T) {
		require.Len(t, entries, 3)
		assert.Contains(t, found, "car.brick")
		assert.Contains(t, found, "town/square.scene")
		assert.Contains(t, found, "town/house.brick")
	})

	t.Run("DecodesAndStampsIdentifier", func(t *testing.T) {
		car := found["car.brick"]
		require.NotNil(t, car.Asset)
		assert.Equal(t, "car.brick", car.Asset.Path)
		require.Len(t, car.Asset.Bricks, 1)
		assert.Equal(t, "chassis", car.Asset.Bricks[0].Name)
	})

	t.Run("SkipsReservedLibraryLocations", func(t *testing.T) {
		assert.NotContains(t, found, "library/packaged/3001.brick")
		assert.NotContains(t, found, "library/connectivity/3001.brick")
	})

	t.Run("HonorsGitignoreAndDefaults", func(t *testing.T) {
		assert.NotContains(t, found, "drafts/wip.brick")
		assert.NotContains(t, found, ".bricklift/cache.brick")
	})
}

func TestWalkAssetsMalformedJSON(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"broken.brick": `{"bricks":`,
	})

	_, err := WalkAssets(tmpDir, nil)
	assert.Error(t, err)
}

func TestIsReserved(t *testing.T) {
	t.Parallel()

	assert.True(t, IsReserved("library/connectivity/3001.json"))
	assert.True(t, IsReserved("library/colliders/3001.json"))
	assert.True(t, IsReserved("library/packaged/3001.connectivity.json"))
	assert.False(t, IsReserved("library/sets/castle.brick"))
	assert.False(t, IsReserved("car.brick"))
}

func TestLoadIgnoreFile(t *testing.T) {
	t.Parallel()

	t.Run("MissingFileIsNil", func(t *testing.T) {
		patterns, err := LoadIgnoreFile(t.TempDir())
		assert.NoError(t, err)
		assert.Nil(t, patterns)
	})

	t.Run("SkipsCommentsAndBlanks", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeTree(t, tmpDir, map[string]string{
			".gitignore": "# comment\n\nbuild/\n*.tmp\n",
		})

		patterns, err := LoadIgnoreFile(tmpDir)
		require.NoError(t, err)
		assert.Len(t, patterns, 2)
	})
}
