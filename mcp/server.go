// Package mcp provides the MCP (Model Context Protocol) server for Bricklift.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/corpus"
	"github.com/bricklift/bricklift/internal/migration"
)

// Store defines the read-only store surface the server exposes.
type Store interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Load(ctx context.Context, path string) (*assets.Asset, error)
	SchemaVersion(ctx context.Context) (int, error)
	ActiveScene(ctx context.Context) (string, error)
	AssetCount() int
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// Server represents the MCP server.
type Server struct {
	store  Store
	server *mcp.Server
}

// NewServer creates a new MCP server over a read-only store.
func NewServer(store Store) *Server {
	s := &Server{
		store: store,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "bricklift",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "bricklift_status",
			Description: "Report the corpus schema version, whether migration is needed, and asset counts.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "bricklift_assets",
			Description: "List stored composite assets and scenes, excluding reserved library locations.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"kind": {Type: "string", Description: "Filter: 'composite' or 'scene'"},
				},
			},
		},
		{
			Name:        "bricklift_order",
			Description: "Compute the dependency-ordered migration plan for the composite assets. Reports cycles.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "bricklift_inspect",
			Description: "Show brick, part, and connection detail for one stored asset.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path": {Type: "string", Description: "Asset identifier (store path)"},
				},
				Required: []string{"path"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "bricklift://overview",
			Name:        "Corpus Overview",
			Description: "High-level statistics about the stored corpus",
			MimeType:    "text/plain",
		},
		{
			URI:         "bricklift://plan",
			Name:        "Migration Plan",
			Description: "Dependency-ordered list of composite assets",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "bricklift_status":
		return s.handleStatus(ctx)
	case "bricklift_assets":
		kind, _ := args["kind"].(string)
		return s.handleAssets(ctx, kind)
	case "bricklift_order":
		return s.handleOrder(ctx)
	case "bricklift_inspect":
		path, _ := args["path"].(string)
		return s.handleInspect(ctx, path)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "bricklift://overview":
		return s.handleStatus(ctx)
	case "bricklift://plan":
		return s.handleOrder(ctx)
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Parse JSON-RPC request
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "bricklift",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) handleStatus(ctx context.Context) (string, error) {
	version, err := s.store.SchemaVersion(ctx)
	if err != nil {
		return "", err
	}

	composites, scenes, err := s.classify(ctx)
	if err != nil {
		return "", err
	}

	active, err := s.store.ActiveScene(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Corpus Status\n\n")
	sb.WriteString(fmt.Sprintf("**Schema version:** %d (current: %d)\n", version, assets.CurrentSchemaVersion))
	if version == assets.CurrentSchemaVersion {
		sb.WriteString("**Migration needed:** no\n")
	} else {
		sb.WriteString("**Migration needed:** yes\n")
	}
	sb.WriteString(fmt.Sprintf("**Composite assets:** %d\n", len(composites)))
	sb.WriteString(fmt.Sprintf("**Scenes:** %d\n", len(scenes)))
	if active != "" {
		sb.WriteString(fmt.Sprintf("**Active scene:** %s\n", active))
	}

	return sb.String(), nil
}

func (s *Server) handleAssets(ctx context.Context, kind string) (string, error) {
	composites, scenes, err := s.classify(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	if kind == "" || kind == "composite" {
		sb.WriteString(fmt.Sprintf("## Composite Assets (%d)\n\n", len(composites)))
		for _, path := range composites {
			sb.WriteString(fmt.Sprintf("- %s\n", path))
		}
		sb.WriteString("\n")
	}

	if kind == "" || kind == "scene" {
		sb.WriteString(fmt.Sprintf("## Scenes (%d)\n\n", len(scenes)))
		for _, path := range scenes {
			sb.WriteString(fmt.Sprintf("- %s\n", path))
		}
	}

	return sb.String(), nil
}

func (s *Server) handleOrder(ctx context.Context) (string, error) {
	composites, _, err := s.classify(ctx)
	if err != nil {
		return "", err
	}

	collector := migration.NewCollector()
	for _, path := range composites {
		a, err := s.store.Load(ctx, path)
		if err != nil {
			continue
		}
		collector.Collect(a)
	}

	order, err := collector.Order()
	if err != nil {
		return fmt.Sprintf("Cannot compute a migration plan: %v\n\nThe corpus contains a cyclic asset dependency and must be repaired before migration.", err), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Migration Plan (%d assets)\n\n", len(order)))
	sb.WriteString("Nested assets are migrated before the assets that embed them:\n\n")
	for i, path := range order {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, path))
	}

	return sb.String(), nil
}

func (s *Server) handleInspect(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "No asset path provided", nil
	}

	a, err := s.store.Load(ctx, path)
	if err != nil {
		return fmt.Sprintf("Asset '%s' not found in store", path), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", a.Path))
	if a.IsScene() {
		sb.WriteString("**Type:** scene\n")
	} else {
		sb.WriteString("**Type:** composite asset\n")
	}
	sb.WriteString(fmt.Sprintf("**Bricks:** %d\n\n", len(a.Bricks)))

	for _, brick := range a.Bricks {
		sb.WriteString(fmt.Sprintf("## Brick: %s\n", brick.Name))
		if brick.SourceAsset != "" {
			sb.WriteString(fmt.Sprintf("- Source asset: %s\n", brick.SourceAsset))
		}
		sb.WriteString(fmt.Sprintf("- Parts: %d\n", len(brick.Parts)))

		for _, part := range brick.Parts {
			sb.WriteString(fmt.Sprintf("\n### Part %s (design %s)\n", part.ID, part.DesignID))
			if part.InstanceOnly {
				sb.WriteString("- Instance only\n")
			}
			if part.Connectivity != nil {
				connections := 0
				for _, field := range part.Connectivity.Fields {
					for _, feature := range field.Features {
						connections += len(feature.Connections)
					}
				}
				sb.WriteString(fmt.Sprintf("- Connectivity: version %d, %d fields, %d connections\n",
					part.Connectivity.Version, len(part.Connectivity.Fields), connections))
			} else {
				sb.WriteString("- Connectivity: none\n")
			}
			if part.Colliders != nil {
				sb.WriteString(fmt.Sprintf("- Colliders: version %d, %d boxes\n",
					part.Colliders.Version, len(part.Colliders.Boxes)))
			} else if part.LegacyColliders != nil {
				sb.WriteString("- Colliders: legacy container\n")
			} else {
				sb.WriteString("- Colliders: none\n")
			}
			sb.WriteString(fmt.Sprintf("- Knobs: %d, Tubes: %d\n", len(part.Knobs), len(part.Tubes)))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// classify enumerates the store and splits identifiers into composites and
// scenes, skipping the reserved library locations.
func (s *Server) classify(ctx context.Context) (composites, scenes []string, err error) {
	paths, err := s.store.List(ctx, "")
	if err != nil {
		return nil, nil, err
	}

	for _, path := range paths {
		if corpus.IsReserved(path) {
			continue
		}
		switch {
		case strings.HasSuffix(path, assets.ExtComposite):
			composites = append(composites, path)
		case strings.HasSuffix(path, assets.ExtScene):
			scenes = append(scenes, path)
		}
	}
	return composites, scenes, nil
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
