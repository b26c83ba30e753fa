// Package geojson provides GeoJSON geometry types and the footprint utilities
// used for burst rings: closing, bounding boxes, centroids and overlap.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Point is a [lon, lat] position.
type Point [2]float64

// Lon returns the longitude.
func (p Point) Lon() float64 { return p[0] }

// Lat returns the latitude.
func (p Point) Lat() float64 { return p[1] }

// Ring is a sequence of positions describing a polygon boundary.
type Ring []Point

// BBox is a [west, south, east, north] bounding box.
type BBox [4]float64

// NewPoint creates a Point geometry.
func NewPoint(p Point) *Geometry {
	coords, _ := json.Marshal([]float64{p[0], p[1]})
	return &Geometry{Type: "Point", Coordinates: coords}
}

// NewPolygon creates a Polygon geometry from a single exterior ring.
// The ring is closed if it is not already.
func NewPolygon(ring Ring) (*Geometry, error) {
	closed := ring.Closed()
	if len(closed) < 4 {
		return nil, fmt.Errorf("polygon ring needs at least 4 positions, got %d", len(closed))
	}

	coords := make([][]float64, len(closed))
	for i, p := range closed {
		coords[i] = []float64{p[0], p[1]}
	}
	raw, err := json.Marshal([][][]float64{coords})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}
	return &Geometry{Type: "Polygon", Coordinates: raw}, nil
}

// NewPolygonFromBBox creates a polygon geometry from a bounding box.
func NewPolygonFromBBox(b BBox) *Geometry {
	g, _ := NewPolygon(Ring{
		{b[0], b[1]},
		{b[2], b[1]},
		{b[2], b[3]},
		{b[0], b[3]},
	})
	return g
}

// Point returns the coordinates of a Point geometry.
// Returns error if geometry is not a Point.
func (g *Geometry) Point() (Point, error) {
	if g.Type != "Point" {
		return Point{}, fmt.Errorf("geometry is not a Point, got %s", g.Type)
	}
	var coords []float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return Point{}, fmt.Errorf("failed to unmarshal Point coordinates: %w", err)
	}
	if len(coords) < 2 {
		return Point{}, fmt.Errorf("invalid Point coordinates: expected at least 2 values, got %d", len(coords))
	}
	return Point{coords[0], coords[1]}, nil
}

// Polygon returns the rings of a Polygon geometry.
// Returns error if geometry is not a Polygon.
func (g *Geometry) Polygon() ([]Ring, error) {
	if g.Type != "Polygon" {
		return nil, fmt.Errorf("geometry is not a Polygon, got %s", g.Type)
	}
	var coords [][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
	}

	rings := make([]Ring, 0, len(coords))
	for _, c := range coords {
		ring := make(Ring, 0, len(c))
		for _, pos := range c {
			if len(pos) < 2 {
				return nil, fmt.Errorf("invalid Polygon position: expected at least 2 values, got %d", len(pos))
			}
			ring = append(ring, Point{pos[0], pos[1]})
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

// BBox computes the bounding box of a Point or Polygon geometry.
func (g *Geometry) BBox() (BBox, error) {
	if g == nil {
		return BBox{}, fmt.Errorf("geometry is nil")
	}

	switch g.Type {
	case "Point":
		p, err := g.Point()
		if err != nil {
			return BBox{}, err
		}
		return BBox{p[0], p[1], p[0], p[1]}, nil

	case "Polygon":
		rings, err := g.Polygon()
		if err != nil {
			return BBox{}, err
		}
		var all Ring
		for _, r := range rings {
			all = append(all, r...)
		}
		if len(all) == 0 {
			return BBox{}, fmt.Errorf("polygon has no positions")
		}
		return all.BBox(), nil

	default:
		return BBox{}, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

// Closed returns the ring with its first position repeated at the end.
// A ring that is already closed is returned unchanged.
func (r Ring) Closed() Ring {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	closed := make(Ring, len(r), len(r)+1)
	copy(closed, r)
	return append(closed, r[0])
}

// BBox returns the bounding box of the ring.
func (r Ring) BBox() BBox {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, p := range r {
		minLon = math.Min(minLon, p[0])
		maxLon = math.Max(maxLon, p[0])
		minLat = math.Min(minLat, p[1])
		maxLat = math.Max(maxLat, p[1])
	}
	return BBox{minLon, minLat, maxLon, maxLat}
}

// Centroid returns the area-weighted centroid of the ring. Degenerate rings
// with zero area fall back to the mean of their distinct vertices.
func (r Ring) Centroid() Point {
	ring := r.Closed()
	if len(ring) == 0 {
		return Point{}
	}

	var area, cx, cy float64
	for i := 0; i < len(ring)-1; i++ {
		x0, y0 := ring[i][0], ring[i][1]
		x1, y1 := ring[i+1][0], ring[i+1][1]
		cross := x0*y1 - x1*y0
		area += cross
		cx += (x0 + x1) * cross
		cy += (y0 + y1) * cross
	}

	if math.Abs(area) < 1e-18 {
		n := len(ring) - 1
		if n == 0 {
			return ring[0]
		}
		var sx, sy float64
		for _, p := range ring[:n] {
			sx += p[0]
			sy += p[1]
		}
		return Point{sx / float64(n), sy / float64(n)}
	}

	area *= 0.5
	return Point{cx / (6 * area), cy / (6 * area)}
}

// Area returns the planar area of the box in squared degrees.
func (b BBox) Area() float64 {
	w := b[2] - b[0]
	h := b[3] - b[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Intersection returns the overlap of two boxes and whether they overlap.
func (b BBox) Intersection(o BBox) (BBox, bool) {
	out := BBox{
		math.Max(b[0], o[0]),
		math.Max(b[1], o[1]),
		math.Min(b[2], o[2]),
		math.Min(b[3], o[3]),
	}
	if out[0] >= out[2] || out[1] >= out[3] {
		return BBox{}, false
	}
	return out, true
}

// IoU returns the intersection-over-union ratio of two boxes in [0, 1].
func (b BBox) IoU(o BBox) float64 {
	inter, ok := b.Intersection(o)
	if !ok {
		return 0
	}
	union := b.Area() + o.Area() - inter.Area()
	if union <= 0 {
		return 0
	}
	return inter.Area() / union
}

// ToWKT converts a GeoJSON geometry to WKT format.
// Supports Point and Polygon.
func ToWKT(g *Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("geometry is nil")
	}

	switch g.Type {
	case "Point":
		p, err := g.Point()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("POINT(%s %s)", formatFloat(p[0]), formatFloat(p[1])), nil

	case "Polygon":
		rings, err := g.Polygon()
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(rings))
		for _, ring := range rings {
			coords := make([]string, 0, len(ring))
			for _, p := range ring {
				coords = append(coords, formatFloat(p[0])+" "+formatFloat(p[1]))
			}
			parts = append(parts, "("+strings.Join(coords, ",")+")")
		}
		return "POLYGON(" + strings.Join(parts, ",") + ")", nil

	default:
		return "", fmt.Errorf("unsupported geometry type for WKT: %s", g.Type)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
