package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/storage"
)

func seededServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	require.NoError(t, store.Save(ctx, &assets.Asset{
		Path:   "wheel.brick",
		Bricks: []*assets.Brick{{Name: "root", Parts: []*assets.Part{{ID: "w1", DesignID: "3001"}}}},
	}))
	require.NoError(t, store.Save(ctx, &assets.Asset{
		Path: "car.brick",
		Bricks: []*assets.Brick{
			{Name: "root", Parts: []*assets.Part{{
				ID:       "c1",
				DesignID: "3001",
				Connectivity: &assets.Connectivity{
					Version: assets.CurrentSchemaVersion,
					Fields:  []*assets.Field{{Kind: assets.FeaturePlanar}},
				},
			}}},
			{Name: "wheel", SourceAsset: "wheel.brick"},
		},
	}))
	require.NoError(t, store.Save(ctx, &assets.Asset{
		Path:   "town.scene",
		Bricks: []*assets.Brick{{Name: "root"}},
	}))
	require.NoError(t, store.Save(ctx, &assets.Asset{
		Path: "library/packaged/3001.brick",
	}))

	return NewServer(store)
}

func TestListTools(t *testing.T) {
	t.Parallel()

	s := seededServer(t)
	tools := s.ListTools()
	require.Len(t, tools, 4)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.InputSchema)
	}
	assert.Equal(t, []string{
		"bricklift_status",
		"bricklift_assets",
		"bricklift_order",
		"bricklift_inspect",
	}, names)
}

func TestCallTool(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := seededServer(t)

	t.Run("Status", func(t *testing.T) {
		out, err := s.CallTool(ctx, "bricklift_status", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "Migration needed:** yes")
		assert.Contains(t, out, "Composite assets:** 2")
		assert.Contains(t, out, "Scenes:** 1")
	})

	t.Run("AssetsExcludeReservedPaths", func(t *testing.T) {
		out, err := s.CallTool(ctx, "bricklift_assets", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "car.brick")
		assert.Contains(t, out, "town.scene")
		assert.NotContains(t, out, "library/packaged")
	})

	t.Run("AssetsKindFilter", func(t *testing.T) {
		out, err := s.CallTool(ctx, "bricklift_assets", map[string]any{"kind": "scene"})
		require.NoError(t, err)
		assert.Contains(t, out, "town.scene")
		assert.NotContains(t, out, "car.brick")
	})

	t.Run("OrderPutsNestedFirst", func(t *testing.T) {
		out, err := s.CallTool(ctx, "bricklift_order", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "1. wheel.brick")
		assert.Contains(t, out, "2. car.brick")
	})

	t.Run("Inspect", func(t *testing.T) {
		out, err := s.CallTool(ctx, "bricklift_inspect", map[string]any{"path": "car.brick"})
		require.NoError(t, err)
		assert.Contains(t, out, "composite asset")
		assert.Contains(t, out, "Part c1")
		assert.Contains(t, out, "Source asset: wheel.brick")
	})

	t.Run("InspectMissingAsset", func(t *testing.T) {
		out, err := s.CallTool(ctx, "bricklift_inspect", map[string]any{"path": "nope.brick"})
		require.NoError(t, err)
		assert.Contains(t, out, "not found")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		_, err := s.CallTool(ctx, "bricklift_nonsense", nil)
		assert.Error(t, err)
	})
}

func TestHandleRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := seededServer(t)

	t.Run("Initialize", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{"method": "initialize", "id": 1})
		result, ok := resp["result"].(map[string]any)
		require.True(t, ok)
		info, ok := result["serverInfo"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "bricklift", info["name"])
	})

	t.Run("ToolsList", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{"method": "tools/list", "id": 2})
		result, ok := resp["result"].(map[string]any)
		require.True(t, ok)
		tools, ok := result["tools"].([]map[string]any)
		require.True(t, ok)
		assert.Len(t, tools, 4)
	})

	t.Run("ToolsCall", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{
			"method": "tools/call",
			"id":     3,
			"params": map[string]any{"name": "bricklift_status"},
		})
		assert.Contains(t, resp, "result")
		assert.NotContains(t, resp, "error")
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{"method": "bogus", "id": 4})
		assert.Contains(t, resp, "error")
	})
}
