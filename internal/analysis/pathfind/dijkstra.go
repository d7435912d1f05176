// Package pathfind runs shortest-path searches between doors over a navigable grid.
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/yinchi/digital-hospitals/internal/analysis/grid"
	"github.com/yinchi/digital-hospitals/internal/spatial"
)

var (
	// ErrAmbiguousDoorLocation is returned when a door centroid lies in no passable grid cell
	ErrAmbiguousDoorLocation = errors.New("ambiguous door location")

	// ErrNoPathFound is the error form of an unreachable outcome
	ErrNoPathFound = errors.New("no path found")
)

// Outcome is the result of a single door-pair search.
// Found is false when the destination is unreachable.
type Outcome struct {
	Found  bool
	Length float64    // meters, sum of edge weights
	Path   []r2.Point // centroids of traversed cells, in order
	Cells  [][2]int   // (i, j) of traversed cells, in order
}

// Err returns ErrNoPathFound for an unreachable outcome
func (o Outcome) Err() error {
	if !o.Found {
		return ErrNoPathFound
	}
	return nil
}

// ShortestPath finds the shortest path between two doors.
// Each door is mapped to the cell containing its centroid.
func ShortestPath(g *grid.NavigableGraph, from, to spatial.Rect) (Outcome, error) {
	src, ok := g.Locate(from.Centroid())
	if !ok {
		return Outcome{}, fmt.Errorf("%w: source door %v", ErrAmbiguousDoorLocation, from)
	}
	dst, ok := g.Locate(to.Centroid())
	if !ok {
		return Outcome{}, fmt.Errorf("%w: destination door %v", ErrAmbiguousDoorLocation, to)
	}

	return search(g, src, dst), nil
}

func search(g *grid.NavigableGraph, src, dst int) Outcome {
	n := g.Grid.Len()
	dist := make([]float64, n)
	parent := make([]int, n)
	visited := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		parent[i] = -1
	}
	dist[src] = 0

	pq := &nodePQ{}
	heap.Init(pq)
	heap.Push(pq, queued{node: src, dist: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queued)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		if cur.node == dst {
			return reconstruct(g, parent, src, dst)
		}

		g.Neighbors(cur.node, func(to int, w float64) {
			if visited[to] {
				return
			}
			nd := cur.dist + w
			if nd < dist[to] {
				dist[to] = nd
				parent[to] = cur.node
				heap.Push(pq, queued{node: to, dist: nd})
			}
		})
	}

	return Outcome{Found: false}
}

// reconstruct traces back from the destination to the source. The length is
// recomputed from the step counts so that (a, b) and (b, a) agree exactly.
func reconstruct(g *grid.NavigableGraph, parent []int, src, dst int) Outcome {
	var nodes []int
	for cur := dst; cur != -1; cur = parent[cur] {
		nodes = append(nodes, cur)
		if cur == src {
			break
		}
	}
	// Reverse.
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}

	out := Outcome{
		Found: true,
		Path:  make([]r2.Point, len(nodes)),
		Cells: make([][2]int, len(nodes)),
	}
	var ortho, diag int
	for k, idx := range nodes {
		out.Path[k] = g.Position(idx)
		i, j := g.Grid.Coord(idx)
		out.Cells[k] = [2]int{i, j}
		if k > 0 {
			prev := out.Cells[k-1]
			if prev[0] != i && prev[1] != j {
				diag++
			} else {
				ortho++
			}
		}
	}
	out.Length = float64(ortho)*g.OrthogonalWeight() + float64(diag)*g.DiagonalWeight()
	return out
}

type queued struct {
	node int
	dist float64
}

// nodePQ is a min-heap on tentative distance; ties break on node index so
// runs are deterministic.
type nodePQ []queued

func (pq nodePQ) Len() int { return len(pq) }

func (pq nodePQ) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}

func (pq nodePQ) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *nodePQ) Push(x interface{}) {
	*pq = append(*pq, x.(queued))
}

func (pq *nodePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
