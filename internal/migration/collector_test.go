package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/graph"
)

// composite builds an asset with one independent brick plus one instance
// brick per source path.
func composite(path string, sources ...string) *assets.Asset {
	a := &assets.Asset{
		Path:   path,
		Bricks: []*assets.Brick{{Name: "root"}},
	}
	for _, src := range sources {
		a.Bricks = append(a.Bricks, &assets.Brick{Name: "instance", SourceAsset: src})
	}
	return a
}

func TestCollectorOrder(t *testing.T) {
	t.Parallel()

	t.Run("NestedBeforeEmbedding", func(t *testing.T) {
		c := NewCollector()
		c.Collect(composite("castle.brick", "tower.brick", "gate.brick"))
		c.Collect(composite("tower.brick", "window.brick"))
		c.Collect(composite("gate.brick"))
		c.Collect(composite("window.brick"))

		order, err := c.Order()
		require.NoError(t, err)
		require.Len(t, order, 4)

		pos := make(map[string]int)
		for i, path := range order {
			pos[path] = i
		}
		assert.Less(t, pos["window.brick"], pos["tower.brick"])
		assert.Less(t, pos["tower.brick"], pos["castle.brick"])
		assert.Less(t, pos["gate.brick"], pos["castle.brick"])
	})

	t.Run("Deterministic", func(t *testing.T) {
		build := func() *Collector {
			c := NewCollector()
			c.Collect(composite("a.brick"))
			c.Collect(composite("b.brick"))
			c.Collect(composite("c.brick", "a.brick", "b.brick"))
			return c
		}

		first, err := build().Order()
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := build().Order()
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("CycleAborts", func(t *testing.T) {
		c := NewCollector()
		c.Collect(composite("a.brick", "b.brick"))
		c.Collect(composite("b.brick", "a.brick"))

		order, err := c.Order()
		assert.ErrorIs(t, err, graph.ErrCyclicDependency)
		assert.Nil(t, order)
	})
}

func TestCollectorCollect(t *testing.T) {
	t.Parallel()

	t.Run("ZeroBrickAssetExcluded", func(t *testing.T) {
		c := NewCollector()
		c.Collect(&assets.Asset{Path: "empty.brick"})
		assert.Equal(t, 0, c.Len())
	})

	t.Run("SelfReferenceIgnored", func(t *testing.T) {
		c := NewCollector()
		c.Collect(composite("loop.brick", "loop.brick"))

		order, err := c.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"loop.brick"}, order)
	})

	t.Run("DuplicateInstancesOfSameSource", func(t *testing.T) {
		c := NewCollector()
		c.Collect(composite("pair.brick", "wheel.brick", "wheel.brick"))
		c.Collect(composite("wheel.brick"))

		order, err := c.Order()
		require.NoError(t, err)
		require.Len(t, order, 2)
		assert.Equal(t, "wheel.brick", order[0])
		assert.Equal(t, "pair.brick", order[1])
	})

	t.Run("ReferencedSourceWithoutOwnAssetStillOrdered", func(t *testing.T) {
		c := NewCollector()
		c.Collect(composite("car.brick", "missing.brick"))

		order, err := c.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"missing.brick", "car.brick"}, order)
	})
}
