// Package graph provides a generic directed graph with a deterministic
// topological sort.
//
// The migration coordinator uses it to order composite assets so that
// nested assets are processed before the assets that embed them. Nodes
// remember their insertion order and the sort breaks ties by it, so the
// same graph built the same way always yields the same sequence.
package graph

import "errors"

// ErrCyclicDependency is returned by TopologicalSort when the graph is not
// a DAG. Callers are never handed a partial order.
var ErrCyclicDependency = errors.New("graph: cyclic dependency")

// ErrUnknownNode is returned by AddEdge when an endpoint has not been
// registered with AddNode.
var ErrUnknownNode = errors.New("graph: unknown node")

// ErrSelfEdge is returned by AddEdge for a self-referential edge.
var ErrSelfEdge = errors.New("graph: self-referential edge")

// Node wraps one data payload plus its outgoing adjacency. Outgoing edges
// point at nodes that depend on this one.
type Node[T any] struct {
	// Data is the node payload.
	Data T

	out []*Node[T]
}

// NewNode creates an unregistered node carrying data.
func NewNode[T any](data T) *Node[T] {
	return &Node[T]{Data: data}
}

// Directed is a directed graph over nodes of type T. Deduplication of
// payloads is the caller's responsibility; callers keep an external
// identifier-to-node map and register each node once.
type Directed[T any] struct {
	nodes []*Node[T]
	index map[*Node[T]]int
}

// New creates an empty directed graph.
func New[T any]() *Directed[T] {
	return &Directed[T]{index: make(map[*Node[T]]int)}
}

// Len returns the number of registered nodes.
func (g *Directed[T]) Len() int { return len(g.nodes) }

// Nodes returns the registered nodes in insertion order.
func (g *Directed[T]) Nodes() []*Node[T] { return g.nodes }

// AddNode registers a node. Registering the same node twice is a no-op.
func (g *Directed[T]) AddNode(n *Node[T]) {
	if _, ok := g.index[n]; ok {
		return
	}
	g.index[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// AddEdge records a directed edge from one registered node to another.
func (g *Directed[T]) AddEdge(from, to *Node[T]) error {
	if from == to {
		return ErrSelfEdge
	}
	if _, ok := g.index[from]; !ok {
		return ErrUnknownNode
	}
	if _, ok := g.index[to]; !ok {
		return ErrUnknownNode
	}
	from.out = append(from.out, to)
	return nil
}

// TopologicalSort returns all nodes ordered so that every edge points
// forward in the sequence. Kahn's algorithm; nodes with equal eligibility
// are emitted in insertion order. Returns ErrCyclicDependency when the
// graph contains a cycle.
func (g *Directed[T]) TopologicalSort() ([]*Node[T], error) {
	indegree := make(map[*Node[T]]int, len(g.nodes))
	for _, n := range g.nodes {
		for _, succ := range n.out {
			indegree[succ]++
		}
	}

	ready := make([]*Node[T], 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]*Node[T], 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, succ := range n.out {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrCyclicDependency
	}
	return order, nil
}
