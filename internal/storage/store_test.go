package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricklift/bricklift/internal/assets"
)

// storeUnderTest runs the AssetStore contract against every implementation.
func storeUnderTest(t *testing.T, name string, open func(t *testing.T) AssetStore, test func(t *testing.T, store AssetStore)) {
	t.Run(name, func(t *testing.T) {
		t.Parallel()
		store := open(t)
		t.Cleanup(func() { _ = store.Close() })
		test(t, store)
	})
}

func forEachStore(t *testing.T, test func(t *testing.T, store AssetStore)) {
	storeUnderTest(t, "Memory", func(t *testing.T) AssetStore {
		return NewMemoryStore()
	}, test)

	storeUnderTest(t, "Badger", func(t *testing.T) AssetStore {
		store := NewBadgerStore()
		require.NoError(t, store.Initialize(filepath.Join(t.TempDir(), "badger"), false))
		return store
	}, test)
}

func sampleAsset(path string) *assets.Asset {
	return &assets.Asset{
		Path: path,
		Bricks: []*assets.Brick{{
			Name: "base",
			Parts: []*assets.Part{{
				ID:       path + "/p0",
				DesignID: "3001",
			}},
		}},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store AssetStore) {
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, sampleAsset("models/car.brick")))
		assert.Equal(t, 1, store.AssetCount())

		loaded, err := store.Load(ctx, "models/car.brick")
		require.NoError(t, err)
		assert.Equal(t, "models/car.brick", loaded.Path)
		require.Len(t, loaded.Bricks, 1)
		assert.Equal(t, "base", loaded.Bricks[0].Name)
	})
}

func TestStoreWorkingCopyIsolation(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store AssetStore) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, sampleAsset("a.brick")))

		first, err := store.Load(ctx, "a.brick")
		require.NoError(t, err)
		first.Bricks[0].Name = "mutated"

		second, err := store.Load(ctx, "a.brick")
		require.NoError(t, err)
		assert.Equal(t, "base", second.Bricks[0].Name)
	})
}

func TestStoreLoadMissing(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store AssetStore) {
		_, err := store.Load(context.Background(), "nope.brick")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreList(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store AssetStore) {
		ctx := context.Background()
		for _, path := range []string{"b/two.brick", "a/one.brick", "a/three.scene"} {
			require.NoError(t, store.Save(ctx, sampleAsset(path)))
		}

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/one.brick", "a/three.scene", "b/two.brick"}, all)

		scoped, err := store.List(ctx, "a/")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/one.brick", "a/three.scene"}, scoped)
	})
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store AssetStore) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, sampleAsset("gone.brick")))
		require.NoError(t, store.Delete(ctx, "gone.brick"))

		_, err := store.Load(ctx, "gone.brick")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing asset is a no-op.
		assert.NoError(t, store.Delete(ctx, "never-there.brick"))
	})
}

func TestStoreMarkers(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store AssetStore) {
		ctx := context.Background()

		t.Run("SchemaVersionDefaultsToZero", func(t *testing.T) {
			v, err := store.SchemaVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, v)
		})

		t.Run("SchemaVersionPersists", func(t *testing.T) {
			require.NoError(t, store.SetSchemaVersion(ctx, assets.CurrentSchemaVersion))
			v, err := store.SchemaVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, assets.CurrentSchemaVersion, v)
		})

		t.Run("ActiveScene", func(t *testing.T) {
			scene, err := store.ActiveScene(ctx)
			require.NoError(t, err)
			assert.Empty(t, scene)

			require.NoError(t, store.SetActiveScene(ctx, "town/square.scene"))
			scene, err = store.ActiveScene(ctx)
			require.NoError(t, err)
			assert.Equal(t, "town/square.scene", scene)
		})

		t.Run("SkipConfirmPerVersion", func(t *testing.T) {
			skip, err := store.SkipConfirm(ctx, 2)
			require.NoError(t, err)
			assert.False(t, skip)

			require.NoError(t, store.SetSkipConfirm(ctx, 2))

			skip, err = store.SkipConfirm(ctx, 2)
			require.NoError(t, err)
			assert.True(t, skip)

			skip, err = store.SkipConfirm(ctx, 3)
			require.NoError(t, err)
			assert.False(t, skip)
		})
	})
}

func TestBadgerStoreReopen(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "badger")
	ctx := context.Background()

	store := NewBadgerStore()
	require.NoError(t, store.Initialize(dir, false))
	require.NoError(t, store.Save(ctx, sampleAsset("keep.brick")))
	require.NoError(t, store.SetSchemaVersion(ctx, 2))
	require.NoError(t, store.Close())

	reopened := NewBadgerStore()
	require.NoError(t, reopened.Initialize(dir, false))
	t.Cleanup(func() { _ = reopened.Close() })

	assert.Equal(t, 1, reopened.AssetCount())
	v, err := reopened.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
