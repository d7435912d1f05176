package spatial

import "github.com/golang/geo/r2"

// PathLength calculates the total planar length of a polyline in meters
func PathLength(points []r2.Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i].Sub(points[i-1]).Norm()
	}
	return total
}

// Tortuosity is the path length over the straight-line distance between its
// ends. A straight path scores 1.
func Tortuosity(points []r2.Point) float64 {
	if len(points) < 2 {
		return 1.0
	}

	straight := points[len(points)-1].Sub(points[0]).Norm()
	if straight == 0 {
		return 1.0
	}
	return PathLength(points) / straight
}
