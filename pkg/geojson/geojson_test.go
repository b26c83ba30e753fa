package geojson

import (
	"encoding/json"
	"math"
	"testing"
)

func TestPoint(t *testing.T) {
	g := NewPoint(Point{-122.4, 37.8})

	result, err := g.Point()
	if err != nil {
		t.Fatalf("Point() error: %v", err)
	}

	if result.Lon() != -122.4 || result.Lat() != 37.8 {
		t.Errorf("Point() = %v, want [-122.4, 37.8]", result)
	}
}

func TestPoint_WrongType(t *testing.T) {
	g := NewPolygonFromBBox(BBox{0, 0, 1, 1})

	if _, err := g.Point(); err == nil {
		t.Error("Point() should return error for non-Point geometry")
	}
}

func TestNewPolygon_ClosesRing(t *testing.T) {
	g, err := NewPolygon(Ring{{0, 0}, {2, 0}, {2, 1}, {0, 1}})
	if err != nil {
		t.Fatalf("NewPolygon() error: %v", err)
	}

	rings, err := g.Polygon()
	if err != nil {
		t.Fatalf("Polygon() error: %v", err)
	}
	if len(rings) != 1 || len(rings[0]) != 5 {
		t.Fatalf("Polygon() = %v, want one closed ring of 5 positions", rings)
	}
	if rings[0][0] != rings[0][4] {
		t.Errorf("ring not closed: first %v last %v", rings[0][0], rings[0][4])
	}
}

func TestNewPolygon_TooFewPoints(t *testing.T) {
	if _, err := NewPolygon(Ring{{0, 0}, {1, 1}}); err == nil {
		t.Error("NewPolygon() should reject a ring with fewer than 4 positions")
	}
}

func TestBBox(t *testing.T) {
	tests := []struct {
		name string
		geom *Geometry
		want BBox
	}{
		{
			name: "point",
			geom: NewPoint(Point{10, 20}),
			want: BBox{10, 20, 10, 20},
		},
		{
			name: "polygon",
			geom: NewPolygonFromBBox(BBox{-122.5, 37.8, -122.4, 37.9}),
			want: BBox{-122.5, 37.8, -122.4, 37.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.geom.BBox()
			if err != nil {
				t.Fatalf("BBox() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("BBox() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBBox_UnsupportedType(t *testing.T) {
	g := &Geometry{Type: "LineString", Coordinates: json.RawMessage(`[[0,0],[1,1]]`)}
	if _, err := g.BBox(); err == nil {
		t.Error("BBox() should fail for LineString")
	}
}

func TestRingCentroid(t *testing.T) {
	tests := []struct {
		name string
		ring Ring
		want Point
	}{
		{
			name: "unit square",
			ring: Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			want: Point{0.5, 0.5},
		},
		{
			name: "clockwise rectangle",
			ring: Ring{{0, 0}, {0, 2}, {4, 2}, {4, 0}, {0, 0}},
			want: Point{2, 1},
		},
		{
			name: "degenerate line",
			ring: Ring{{0, 0}, {2, 2}, {4, 4}},
			want: Point{2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ring.Centroid()
			if math.Abs(got[0]-tt.want[0]) > 1e-12 || math.Abs(got[1]-tt.want[1]) > 1e-12 {
				t.Errorf("Centroid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBBoxIoU(t *testing.T) {
	a := BBox{0, 0, 2, 2}

	tests := []struct {
		name string
		b    BBox
		want float64
	}{
		{"identical", BBox{0, 0, 2, 2}, 1},
		{"half overlap", BBox{1, 0, 3, 2}, 2.0 / 6.0},
		{"disjoint", BBox{3, 3, 4, 4}, 0},
		{"touching edge", BBox{2, 0, 3, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.IoU(tt.b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("IoU() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToWKT_UnsupportedType(t *testing.T) {
	g := &Geometry{Type: "MultiPoint", Coordinates: json.RawMessage(`[]`)}
	if _, err := ToWKT(g); err == nil {
		t.Error("ToWKT() should fail for MultiPoint")
	}
	if _, err := ToWKT(nil); err == nil {
		t.Error("ToWKT() should fail for nil geometry")
	}
}
