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

// Machine epsilon for float64
const Epsilon = 0x1p-52

// Default threshold on the magnitude of the line intersection determinant,
// below which two lines are considered parallel.
const DefaultParallelTolerance = 5 * Epsilon

// Finds the intersection of the line through a1 and a2 with the line through b1 and b2.
// Returns false if the lines are parallel, i.e. the determinant is smaller than tolerance in magnitude.
func IntersectLines(a1, a2, b1, b2 Point2D, tolerance float64) (p Point2D, ok bool) {
	s1, s2 := Sub2D(a2, a1), Sub2D(b2, b1)
	det := Cross2D(s1, s2)
	if math.Abs(det) < tolerance {
		return Point2D{}, false
	}
	t := Cross2D(s2, Sub2D(a1, b1)) / det
	return Point2D{a1.X + t*s1.X, a1.Y + t*s1.Y}, true
}

// A Sutherland-Hodgman polygon clipper for convex clip polygons of either winding order.
// Keeps its vertex buffers between calls, so it must not be shared between goroutines.
type Clipper struct {
	Tolerance float64 // Parallel line threshold for intersections, see DefaultParallelTolerance

	cur    Polygon
	next   Polygon
	inside []bool
}

// Creates a clipper with the given parallel tolerance. Zero or negative selects DefaultParallelTolerance.
func NewClipper(tolerance float64) *Clipper {
	if tolerance <= 0 {
		tolerance = DefaultParallelTolerance
	}
	return &Clipper{
		Tolerance: tolerance,
		cur:       make(Polygon, 0, 16),
		next:      make(Polygon, 0, 16),
		inside:    make([]bool, 0, 16),
	}
}

// Clips the subject polygon against the convex clip polygon, which needs at least 3 vertices.
// Returns the intersection polygon, which has less than 3 vertices if there is no overlap.
// The result is only valid until the next call to Clip.
func (c *Clipper) Clip(subject, clip Polygon) Polygon {
	c.cur = append(c.cur[:0], subject...)
	orient := float64(clip.Orientation())

	prev := clip[len(clip)-1]
	for _, cur := range clip {
		if len(c.cur) == 0 {
			break
		}

		// classify vertices against the half plane left (ccw) or right (cw) of the edge prev->cur
		edge := Sub2D(cur, prev)
		c.inside = c.inside[:0]
		for _, v := range c.cur {
			c.inside = append(c.inside, Cross2D(edge, Sub2D(v, prev))*orient > 0)
		}

		c.next = c.next[:0]
		j := len(c.cur) - 1
		for i, v := range c.cur {
			if c.inside[i] != c.inside[j] {
				// subject edge j->i crosses the clip edge
				if p, ok := IntersectLines(prev, cur, c.cur[j], v, c.Tolerance); ok {
					c.next = append(c.next, p)
				}
			}
			if c.inside[i] {
				c.next = append(c.next, v)
			}
			j = i
		}

		c.cur, c.next = c.next, c.cur
		prev = cur
	}
	return c.cur
}
