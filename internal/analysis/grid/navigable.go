package grid

import (
	"github.com/golang/geo/r2"
)

// NavigableGraph is the subgraph of passable cells for one door-pair query.
// Nodes are flat cell indices; edges are implicit in Neighbors.
type NavigableGraph struct {
	Grid     *Grid
	passable []bool
	ortho    float64
	diag     float64
}

var (
	orthogonal = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonal   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// Has reports whether cell (i, j) is a node of the graph
func (n *NavigableGraph) Has(i, j int) bool {
	return n.Grid.InBounds(i, j) && n.passable[n.Grid.Index(i, j)]
}

// Len returns the number of nodes
func (n *NavigableGraph) Len() int {
	count := 0
	for _, p := range n.passable {
		if p {
			count++
		}
	}
	return count
}

// Neighbors calls fn for every edge leaving node idx.
// Orthogonal edges weigh Size; diagonal edges weigh Size*sqrt(2) and exist
// only when both flanking orthogonal cells are nodes.
func (n *NavigableGraph) Neighbors(idx int, fn func(to int, weight float64)) {
	i, j := n.Grid.Coord(idx)

	for _, d := range orthogonal {
		if n.Has(i+d[0], j+d[1]) {
			fn(n.Grid.Index(i+d[0], j+d[1]), n.ortho)
		}
	}

	for _, d := range diagonal {
		di, dj := i+d[0], j+d[1]
		if !n.Has(di, dj) {
			continue
		}
		if n.Has(i+d[0], j) && n.Has(i, j+d[1]) {
			fn(n.Grid.Index(di, dj), n.diag)
		}
	}
}

// OrthogonalWeight is the weight of a horizontal or vertical step
func (n *NavigableGraph) OrthogonalWeight() float64 { return n.ortho }

// DiagonalWeight is the weight of a diagonal step
func (n *NavigableGraph) DiagonalWeight() float64 { return n.diag }

// Locate returns the node whose cell contains p. ok is false when p is
// outside the grid or the containing cell is not passable.
func (n *NavigableGraph) Locate(p r2.Point) (idx int, ok bool) {
	i, j, found := n.Grid.Locate(p)
	if !found || !n.Has(i, j) {
		return 0, false
	}
	return n.Grid.Index(i, j), true
}

// Position returns the centroid of node idx
func (n *NavigableGraph) Position(idx int) r2.Point {
	i, j := n.Grid.Coord(idx)
	return n.Grid.CellCentroid(i, j)
}
