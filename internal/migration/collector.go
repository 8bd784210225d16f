// Package migration provides the schema migration engine for Bricklift.
//
// It builds a dependency graph over composite assets, regenerates stale
// connectivity and collider sub-resources per part, re-derives physical
// connections between parts, and orchestrates the whole pipeline through
// a single-flight coordinator.
package migration

import (
	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/graph"
)

// Collector builds the composite-asset dependency graph. An edge (B -> A)
// means A nests an instance of B, so B must be migrated first.
type Collector struct {
	graph *graph.Directed[string]
	nodes map[string]*graph.Node[string]
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		graph: graph.New[string](),
		nodes: make(map[string]*graph.Node[string]),
	}
}

// node returns the registered node for a path, creating it on first use.
func (c *Collector) node(path string) *graph.Node[string] {
	if n, ok := c.nodes[path]; ok {
		return n
	}
	n := graph.NewNode(path)
	c.nodes[path] = n
	c.graph.AddNode(n)
	return n
}

// Collect adds one composite asset and its nesting edges to the graph.
// Assets containing zero bricks generate no migration work and are
// excluded entirely. Collect never mutates the asset.
func (c *Collector) Collect(a *assets.Asset) {
	if len(a.Bricks) == 0 {
		return
	}

	n := c.node(a.Path)
	for _, brick := range a.Bricks {
		if brick.SourceAsset == "" || brick.SourceAsset == a.Path {
			continue
		}
		// Ignore the only possible AddEdge failure, self-reference,
		// which the guard above already excludes.
		_ = c.graph.AddEdge(c.node(brick.SourceAsset), n)
	}
}

// Len returns the number of assets in the graph.
func (c *Collector) Len() int { return c.graph.Len() }

// Order returns the asset paths in migration order: nested assets before
// the assets that embed them. Returns graph.ErrCyclicDependency for a
// corrupt corpus.
func (c *Collector) Order() ([]string, error) {
	nodes, err := c.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	order := make([]string, len(nodes))
	for i, n := range nodes {
		order[i] = n.Data
	}
	return order, nil
}
