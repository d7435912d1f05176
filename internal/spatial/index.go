package spatial

import (
	"github.com/dhconnelly/rtreego"
)

// indexEpsilon inflates query boxes. rtreego treats boxes that only touch as
// disjoint, while Intersects counts touching edges.
const indexEpsilon = 1e-9

// WallIndex is an R-tree over wall rectangles
type WallIndex struct {
	tree  *rtreego.Rtree
	count int
}

// indexedRect implements the rtreego.Spatial interface
type indexedRect struct {
	rect   Rect
	bounds rtreego.Rect
}

func (r *indexedRect) Bounds() rtreego.Rect {
	return r.bounds
}

// NewWallIndex builds an R-tree over the given walls.
// Walls are assumed valid (constructed through NewRect).
func NewWallIndex(walls []Rect) *WallIndex {
	objs := make([]rtreego.Spatial, 0, len(walls))
	for _, w := range walls {
		bounds, err := toRtree(w, 0)
		if err != nil {
			continue
		}
		objs = append(objs, &indexedRect{rect: w, bounds: bounds})
	}

	return &WallIndex{
		tree:  rtreego.NewTree(2, 4, 16, objs...),
		count: len(objs),
	}
}

// Len returns the number of indexed walls
func (idx *WallIndex) Len() int {
	return idx.count
}

// Intersecting reports whether r intersects any indexed wall
func (idx *WallIndex) Intersecting(r Rect) bool {
	return len(idx.Query(r)) > 0
}

// Query returns every indexed wall intersecting r
func (idx *WallIndex) Query(r Rect) []Rect {
	if idx.count == 0 {
		return nil
	}

	bb, err := toRtree(r, indexEpsilon)
	if err != nil {
		return nil
	}

	var hits []Rect
	for _, s := range idx.tree.SearchIntersect(bb) {
		wall := s.(*indexedRect).rect
		if Intersects(r, wall) {
			hits = append(hits, wall)
		}
	}

	return hits
}

func toRtree(r Rect, pad float64) (rtreego.Rect, error) {
	return rtreego.NewRectFromPoints(
		rtreego.Point{r.X0() - pad, r.Y0() - pad},
		rtreego.Point{r.X1() + pad, r.Y1() + pad},
	)
}
