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
	"errors"
	"fmt"
	"math"
)

// A 2-dimensional point with floating point coordinates.
type Point2D struct {
	X float64
	Y float64
}

// An axis-aligned rectangle, with A the lower and B the upper corner
type Rect2D struct {
	A Point2D
	B Point2D
}

// A 2D affine coordinate transformation x'=a*x+b*y+c, y'=d*x+e*y+f.
type Transform2D struct {
	A float64
	B float64
	C float64
	D float64
	E float64
	F float64
}

func (p Point2D) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", p.X, p.Y)
}

func (r Rect2D) String() string {
	return fmt.Sprintf("(%v, %v)", r.A, r.B)
}

func (t Transform2D) String() string {
	return fmt.Sprintf("x'=%.5gx %+.5gy %+.5g, y'=%.5gx %+.5gy %+.5g",
		t.A, t.B, t.C, t.D, t.E, t.F)
}

func Add2D(a, b Point2D) Point2D {
	return Point2D{a.X + b.X, a.Y + b.Y}
}

func Sub2D(a, b Point2D) Point2D {
	return Point2D{a.X - b.X, a.Y - b.Y}
}

// Returns the z component of the cross product of the vectors a and b
func Cross2D(a, b Point2D) float64 {
	return a.X*b.Y - a.Y*b.X
}

// Returns the squared euclidian distance between the two given points
func Dist2DSquared(a, b Point2D) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// Returns true if both coordinates are neither NaN nor infinite
func (p Point2D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Returns true if the rectangle contains no points
func (r Rect2D) IsEmpty() bool {
	return r.B.X < r.A.X || r.B.Y < r.A.Y
}

func IdentityTransform2D() Transform2D {
	return Transform2D{1, 0, 0, 0, 1, 0}
}

// Transformation shifting by the given offsets
func Translation2D(dx, dy float64) Transform2D {
	return Transform2D{1, 0, dx, 0, 1, dy}
}

// Transformation scaling both axes by the given factors
func Scale2D(sx, sy float64) Transform2D {
	return Transform2D{sx, 0, 0, 0, sy, 0}
}

// Counter-clockwise rotation by the given angle in radians around the given center
func Rotation2D(angle float64, center Point2D) Transform2D {
	s, c := math.Sincos(angle)
	return Transform2D{
		A: c, B: -s, C: center.X - c*center.X + s*center.Y,
		D: s, E: c, F: center.Y - s*center.X - c*center.Y,
	}
}

// Returns the transformation applying t first, then u
func (t Transform2D) Then(u Transform2D) Transform2D {
	return Transform2D{
		A: u.A*t.A + u.B*t.D, B: u.A*t.B + u.B*t.E, C: u.A*t.C + u.B*t.F + u.C,
		D: u.D*t.A + u.E*t.D, E: u.D*t.B + u.E*t.E, F: u.D*t.C + u.E*t.F + u.F,
	}
}

// Apply given 2D transformation to the given coordinates
func (t *Transform2D) Apply(p Point2D) (pP Point2D) {
	xP := t.A*p.X + t.B*p.Y + t.C
	yP := t.D*p.X + t.E*p.Y + t.F
	return Point2D{xP, yP}
}

// Determinant of the linear part of the transformation
func (t *Transform2D) Det() float64 {
	return t.A*t.E - t.B*t.D
}

// Invert a given 2D transformation. Returns error if the linear part is singular
func (t *Transform2D) Invert() (inv Transform2D, err error) {
	det := t.Det()
	if det < 1e-12 && -det < 1e-12 {
		return Transform2D{}, errors.New(fmt.Sprintf("Matrix has no inverse, det=%g", det))
	}
	/*	x = ( e*x' - b*y' + b*f - c*e) / det
		y = (-d*x' + a*y' + c*d - a*f) / det */
	return Transform2D{
		A: t.E / det,
		B: -t.B / det,
		C: (t.B*t.F - t.C*t.E) / det,
		D: -t.D / det,
		E: t.A / det,
		F: (t.C*t.D - t.A*t.F) / det,
	}, nil
}
