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
)

// A polygon, given as an ordered sequence of vertices. The winding order is not fixed,
// use Orientation() to find it.
type Polygon []Point2D

// Winding orders as returned by Orientation()
const (
	Clockwise        = -1
	CounterClockwise = 1
)

// Returns the orientation of the polygon from its first three vertices: CounterClockwise if the
// cross product of the first two edges is positive, Clockwise otherwise. Needs at least 3 vertices.
func (p Polygon) Orientation() int {
	if Cross2D(Sub2D(p[1], p[0]), Sub2D(p[2], p[1])) > 0 {
		return CounterClockwise
	}
	return Clockwise
}

// Calculates the area of the polygon by fan triangulation around the first vertex, summing
// the absolute triangle areas. Exact for convex polygons. Returns 0 for less than 3 vertices.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	area := 0.0
	for i := 2; i < len(p); i++ {
		area += math.Abs(Cross2D(Sub2D(p[i-1], p[0]), Sub2D(p[i], p[0])))
	}
	return 0.5 * area
}

// Returns the mean of the vertex coordinates
func (p Polygon) Centroid() Point2D {
	sx, sy := 0.0, 0.0
	for _, v := range p {
		sx += v.X
		sy += v.Y
	}
	n := float64(len(p))
	return Point2D{sx / n, sy / n}
}

// Returns the axis-aligned bounding box of the polygon
func (p Polygon) Bounds() (r Rect2D) {
	r.A = Point2D{math.Inf(1), math.Inf(1)}
	r.B = Point2D{math.Inf(-1), math.Inf(-1)}
	for _, v := range p {
		r.A.X, r.B.X = math.Min(r.A.X, v.X), math.Max(r.B.X, v.X)
		r.A.Y, r.B.Y = math.Min(r.A.Y, v.Y), math.Max(r.B.Y, v.Y)
	}
	return r
}

// Returns true if all vertices have finite coordinates
func (p Polygon) IsFinite() bool {
	for _, v := range p {
		if !v.IsFinite() {
			return false
		}
	}
	return true
}

// Fills the given 4-vertex buffer with the unit square centered on integer pixel (x,y),
// counter-clockwise with y pointing up
func PixelFootprint(x, y int, buf Polygon) Polygon {
	fx, fy := float64(x), float64(y)
	buf = append(buf[:0],
		Point2D{fx - 0.5, fy - 0.5},
		Point2D{fx + 0.5, fy - 0.5},
		Point2D{fx + 0.5, fy + 0.5},
		Point2D{fx - 0.5, fy + 0.5})
	return buf
}
