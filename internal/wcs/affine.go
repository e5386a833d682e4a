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

package wcs

import (
	"fmt"

	"github.com/mlnoga/regrid/internal/geom"
)

// An affine mapping, treating the sky as a plane. Suitable for small fields of view,
// for images already aligned to a reference frame, and for testing.
type Affine struct {
	width   int
	height  int
	toSky   geom.Transform2D
	toPixel geom.Transform2D
	err     error
}

// Creates an affine mapping for an image of given dimensions from the given pixel to sky transformation.
// The mapping is invalid if the transformation cannot be inverted.
func NewAffine(width, height int, pixelToSky geom.Transform2D) *Affine {
	a := &Affine{width: width, height: height, toSky: pixelToSky}
	if width <= 0 || height <= 0 {
		a.err = fmt.Errorf("affine mapping with dimensions %dx%d: %w", width, height, ErrInvalidAstrometry)
		return a
	}
	inv, err := pixelToSky.Invert()
	if err != nil {
		a.err = fmt.Errorf("affine mapping %v: %s: %w", pixelToSky, err.Error(), ErrInvalidAstrometry)
		return a
	}
	a.toPixel = inv
	return a
}

func (a *Affine) Dims() (width, height int) { return a.width, a.height }

func (a *Affine) Valid() error { return a.err }

func (a *Affine) PixelToSky(xs, ys []float64) (ras, decs []float64, err error) {
	return a.apply(&a.toSky, xs, ys)
}

func (a *Affine) SkyToPixel(ras, decs []float64) (xs, ys []float64, err error) {
	return a.apply(&a.toPixel, ras, decs)
}

func (a *Affine) apply(t *geom.Transform2D, xs, ys []float64) (xps, yps []float64, err error) {
	if a.err != nil {
		return nil, nil, a.err
	}
	if err := checkLengths(xs, ys); err != nil {
		return nil, nil, err
	}
	xps, yps = make([]float64, len(xs)), make([]float64, len(ys))
	for i := range xs {
		p := t.Apply(geom.Point2D{X: xs[i], Y: ys[i]})
		xps[i], yps[i] = p.X, p.Y
	}
	return xps, yps, nil
}
