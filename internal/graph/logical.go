// Package graph holds the door-to-door logical graph produced by the runner-times computation.
package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrSelfLoop is returned when an edge would connect a door to itself
	ErrSelfLoop = errors.New("self-loop")

	// ErrInvalidWeight is returned for negative or non-finite runner times
	ErrInvalidWeight = errors.New("invalid edge weight")

	// ErrDuplicateEdge is returned by AddEdge when the doors are already connected
	ErrDuplicateEdge = errors.New("duplicate edge")
)

// Edge is an undirected connection between two doors
type Edge struct {
	A, B string

	// Runner time in seconds
	Weight float64

	// Assets needed to use the connection, e.g. a lift
	RequiredAssets []string
}

type pairKey struct{ a, b string }

func key(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// LogicalGraph is an undirected weighted graph over door names.
// It has no self-loops and at most one edge per pair of doors.
type LogicalGraph struct {
	nodes map[string]struct{}
	edges map[pairKey]Edge
}

// New creates an empty graph
func New() *LogicalGraph {
	return &LogicalGraph{
		nodes: make(map[string]struct{}),
		edges: make(map[pairKey]Edge),
	}
}

// AddNode adds a door to the graph
func (g *LogicalGraph) AddNode(name string) {
	g.nodes[name] = struct{}{}
}

// HasNode reports whether name is a node of the graph
func (g *LogicalGraph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// AddEdge connects a and b, failing if they are already connected
func (g *LogicalGraph) AddEdge(a, b string, weight float64, requiredAssets []string) error {
	if g.HasEdge(a, b) {
		return fmt.Errorf("%w: %q and %q", ErrDuplicateEdge, a, b)
	}
	return g.SetEdge(a, b, weight, requiredAssets)
}

// SetEdge adds or replaces the edge between a and b, adding missing nodes
func (g *LogicalGraph) SetEdge(a, b string, weight float64, requiredAssets []string) error {
	if a == b {
		return fmt.Errorf("%w: %q", ErrSelfLoop, a)
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: %g between %q and %q", ErrInvalidWeight, weight, a, b)
	}

	g.AddNode(a)
	g.AddNode(b)

	var assets []string
	if requiredAssets != nil {
		assets = append([]string{}, requiredAssets...)
	}
	k := key(a, b)
	g.edges[k] = Edge{A: k.a, B: k.b, Weight: weight, RequiredAssets: assets}
	return nil
}

// Edge returns the edge between a and b
func (g *LogicalGraph) Edge(a, b string) (Edge, bool) {
	e, ok := g.edges[key(a, b)]
	return e, ok
}

// HasEdge reports whether a and b are connected
func (g *LogicalGraph) HasEdge(a, b string) bool {
	_, ok := g.edges[key(a, b)]
	return ok
}

// Weight returns the runner time between a and b
func (g *LogicalGraph) Weight(a, b string) (float64, bool) {
	e, ok := g.edges[key(a, b)]
	return e.Weight, ok
}

// Nodes returns the door names in sorted order
func (g *LogicalGraph) Nodes() []string {
	nodes := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// Edges returns all edges sorted by endpoints
func (g *LogicalGraph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// NodeCount returns the number of nodes
func (g *LogicalGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges
func (g *LogicalGraph) EdgeCount() int { return len(g.edges) }

// Merge copies the nodes and edges of other into g. Edges of other replace
// existing edges between the same doors.
func (g *LogicalGraph) Merge(other *LogicalGraph) {
	for n := range other.nodes {
		g.nodes[n] = struct{}{}
	}
	for k, e := range other.edges {
		g.edges[k] = e
	}
}
