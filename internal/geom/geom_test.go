// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package geom

import (
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

type areaTestCase struct {
	Name string
	Poly Polygon
	Area float64
}

func TestPolygonArea(t *testing.T) {
	epsilon := 1e-12
	tcs := []areaTestCase{
		{"unit square", Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 1},
		{"unit square cw", Polygon{{0, 0}, {0, 1}, {1, 1}, {1, 0}}, 1},
		{"triangle", Polygon{{0, 0}, {4, 0}, {0, 3}}, 6},
		{"hexagon", Polygon{{1, 0}, {0.5, math.Sqrt(3) / 2}, {-0.5, math.Sqrt(3) / 2}, {-1, 0},
			{-0.5, -math.Sqrt(3) / 2}, {0.5, -math.Sqrt(3) / 2}}, 3 * math.Sqrt(3) / 2},
		{"segment", Polygon{{0, 0}, {1, 1}}, 0},
		{"point", Polygon{{2, 3}}, 0},
		{"empty", Polygon{}, 0},
	}
	for _, tc := range tcs {
		if a := tc.Poly.Area(); math.Abs(a-tc.Area) > epsilon {
			t.Errorf("%s: area=%g; want %g", tc.Name, a, tc.Area)
		}
	}
}

func TestOrientation(t *testing.T) {
	ccw := Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	cw := Polygon{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	if o := ccw.Orientation(); o != CounterClockwise {
		t.Errorf("ccw orientation=%d; want %d", o, CounterClockwise)
	}
	if o := cw.Orientation(); o != Clockwise {
		t.Errorf("cw orientation=%d; want %d", o, Clockwise)
	}
}

func TestBoundsAndCentroid(t *testing.T) {
	p := Polygon{{1, 2}, {3, 1}, {4, 5}, {0, 4}}
	b := p.Bounds()
	if b.A != (Point2D{0, 1}) || b.B != (Point2D{4, 5}) {
		t.Errorf("bounds=%v; want ((0,1), (4,5))", b)
	}
	if c := p.Centroid(); c != (Point2D{2, 3}) {
		t.Errorf("centroid=%v; want (2,3)", c)
	}
	if !p.IsFinite() {
		t.Errorf("polygon %v reported as non-finite", p)
	}
	p[2].X = math.NaN()
	if p.IsFinite() {
		t.Errorf("polygon with NaN reported as finite")
	}
}

func TestIntersectLines(t *testing.T) {
	p, ok := IntersectLines(Point2D{0, 0}, Point2D{2, 2}, Point2D{0, 2}, Point2D{2, 0}, DefaultParallelTolerance)
	if !ok || math.Abs(p.X-1) > 1e-15 || math.Abs(p.Y-1) > 1e-15 {
		t.Errorf("intersection=%v,%v; want (1,1),true", p, ok)
	}
	if _, ok := IntersectLines(Point2D{0, 0}, Point2D{1, 0}, Point2D{0, 1}, Point2D{1, 1}, DefaultParallelTolerance); ok {
		t.Errorf("parallel lines reported as intersecting")
	}
	// nearly parallel lines only intersect with a tolerance below their determinant
	a1, a2, b1, b2 := Point2D{0, 0}, Point2D{1, 0}, Point2D{0, 1}, Point2D{1, 1 + 1e-9}
	if _, ok := IntersectLines(a1, a2, b1, b2, DefaultParallelTolerance); !ok {
		t.Errorf("nearly parallel lines not intersecting with default tolerance")
	}
	if _, ok := IntersectLines(a1, a2, b1, b2, 1e-6); ok {
		t.Errorf("nearly parallel lines intersecting with tolerance 1e-6")
	}
}

type clipTestCase struct {
	Name     string
	Clip     Polygon
	Area     float64
	Overlaps bool
}

func TestClipAgainstPixel(t *testing.T) {
	epsilon := 1e-12
	s := 0.5 * math.Sqrt2
	tcs := []clipTestCase{
		{"self", Polygon{{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5}}, 1, true},
		{"self cw", Polygon{{-0.5, -0.5}, {-0.5, 0.5}, {0.5, 0.5}, {0.5, -0.5}}, 1, true},
		{"half shift", Polygon{{0, -0.5}, {1, -0.5}, {1, 0.5}, {0, 0.5}}, 0.5, true},
		{"quarter corner", Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 0.25, true},
		{"inner diamond", Polygon{{0.5, 0}, {0, 0.5}, {-0.5, 0}, {0, -0.5}}, 0.5, true},
		{"outer diamond", Polygon{{s, 0}, {0, s}, {-s, 0}, {0, -s}}, 1 - 4*0.5*(1-s)*(1-s), true},
		{"enclosing", Polygon{{-3, -3}, {3, -3}, {3, 3}, {-3, 3}}, 1, true},
		{"contained", Polygon{{-0.25, -0.25}, {0.25, -0.25}, {0.25, 0.25}, {-0.25, 0.25}}, 0.25, true},
		{"disjoint", Polygon{{2, 2}, {3, 2}, {3, 3}, {2, 3}}, 0, false},
		{"edge neighbor", Polygon{{0.5, -0.5}, {1.5, -0.5}, {1.5, 0.5}, {0.5, 0.5}}, 0, false},
		{"corner neighbor", Polygon{{0.5, 0.5}, {1.5, 0.5}, {1.5, 1.5}, {0.5, 1.5}}, 0, false},
	}

	c := NewClipper(0)
	subject := PixelFootprint(0, 0, nil)
	for _, tc := range tcs {
		res := c.Clip(subject, tc.Clip)
		if tc.Overlaps != (len(res) >= 3) {
			t.Errorf("%s: clip returned %d vertices %v; want overlap=%v", tc.Name, len(res), res, tc.Overlaps)
			continue
		}
		if len(res) > 8 {
			t.Errorf("%s: clip returned %d vertices; want at most 8", tc.Name, len(res))
		}
		if a := res.Area(); math.Abs(a-tc.Area) > epsilon {
			t.Errorf("%s: overlap area=%g; want %g", tc.Name, a, tc.Area)
		}
	}
}

// The overlaps of a cell with all pixels of a sufficiently large neighborhood must add up to the cell area
func TestClipPartitionsCell(t *testing.T) {
	rng := fastrand.RNG{}
	c := NewClipper(0)
	var footprint Polygon
	for i := 0; i < 200; i++ {
		angle := float64(rng.Uint32n(3600)) / 10 * math.Pi / 180
		scale := 0.3 + float64(rng.Uint32n(2000))/1000
		offset := Point2D{float64(rng.Uint32n(1000)) / 1000, float64(rng.Uint32n(1000)) / 1000}
		trans := Scale2D(scale, scale).Then(Rotation2D(angle, Point2D{})).Then(Translation2D(offset.X, offset.Y))
		cell := Polygon{{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5}}
		for j := range cell {
			cell[j] = trans.Apply(cell[j])
		}
		if rng.Uint32n(2) == 0 { // also exercise clockwise cells
			cell[1], cell[3] = cell[3], cell[1]
		}

		sum := 0.0
		for y := -4; y <= 4; y++ {
			for x := -4; x <= 4; x++ {
				footprint = PixelFootprint(x, y, footprint)
				if res := c.Clip(footprint, cell); len(res) >= 3 {
					sum += res.Area()
				}
			}
		}
		if want := cell.Area(); math.Abs(sum-want) > 1e-9 {
			t.Errorf("angle=%g scale=%g offset=%v: sum of overlaps=%.12f; want %.12f", angle, scale, offset, sum, want)
		}
	}
}

func TestTransformInvert(t *testing.T) {
	rng := fastrand.RNG{}
	for i := 0; i < 100; i++ {
		angle := float64(rng.Uint32n(360)) * math.Pi / 180
		scale := 0.1 + float64(rng.Uint32n(100))/10
		trans := Scale2D(scale, scale).Then(Rotation2D(angle, Point2D{3, -2})).Then(Translation2D(10, 20))
		inv, err := trans.Invert()
		if err != nil {
			t.Fatalf("invert %v: %s", trans, err.Error())
		}
		p := Point2D{float64(rng.Uint32n(1000)), float64(rng.Uint32n(1000))}
		tp := trans.Apply(p)
		q := inv.Apply(tp)
		if Dist2DSquared(p, q) > 1e-16 {
			t.Errorf("%v: inverse of %v is %v; want %v", trans, tp, q, p)
		}
	}
	singular := Transform2D{1, 2, 0, 2, 4, 0}
	if _, err := singular.Invert(); err == nil {
		t.Errorf("singular transform %v inverted without error", singular)
	}
}
