package graph

import (
	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/yinchi/digital-hospitals/internal/spatial"
)

// PathInput describes one computed door-to-door route in floor coordinates
type PathInput struct {
	Floor       string
	From, To    string
	Points      []r2.Point
	Length      float64 // meters
	RunnerTime  float64 // seconds
	Found       bool
	SimplifyTol float64 // Douglas-Peucker threshold in meters, 0 keeps every cell
}

// LineString converts grid centroids to an orb line string
func LineString(points []r2.Point) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

// PathFeature builds a GeoJSON feature for a route. Unreachable routes have
// no geometry.
func PathFeature(in PathInput) *geojson.Feature {
	var f *geojson.Feature
	if in.Found && len(in.Points) > 0 {
		ls := LineString(in.Points)
		if in.SimplifyTol > 0 && len(ls) > 2 {
			ls = simplify.DouglasPeucker(in.SimplifyTol).LineString(ls)
		}
		if len(ls) == 1 {
			f = geojson.NewFeature(ls[0])
		} else {
			f = geojson.NewFeature(ls)
		}
	} else {
		f = &geojson.Feature{Type: "Feature", Properties: geojson.Properties{}}
	}

	f.Properties["floor"] = in.Floor
	f.Properties["from"] = in.From
	f.Properties["to"] = in.To
	f.Properties["found"] = in.Found
	if in.Found {
		f.Properties["length_m"] = in.Length
		f.Properties["runner_time_s"] = in.RunnerTime
		f.Properties["tortuosity"] = spatial.Tortuosity(in.Points)
	}
	return f
}

// PathCollection wraps route features in a FeatureCollection
func PathCollection(paths ...PathInput) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range paths {
		fc.Append(PathFeature(p))
	}
	return fc
}
