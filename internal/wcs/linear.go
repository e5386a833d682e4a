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
	"math"
	"strings"

	"github.com/mlnoga/regrid/internal/fits"
	"gonum.org/v1/gonum/mat"
)

// A linear FITS world coordinate system: world = CRVAL + CD * (pixel - CRPIX).
// Celestial projection types given in CTYPE are not evaluated, so this is only accurate
// for small fields of view away from the poles.
type Linear struct {
	width  int
	height int
	crpix  [2]float64
	crval  [2]float64
	cd     *mat.Dense // linear part, pixel to world
	inv    *mat.Dense // linear part, world to pixel
	CTypes [2]string  // Axis types from the header, informational only
	err    error
}

// Creates a linear mapping for an image of given dimensions. cd is given in row-major
// order CD1_1, CD1_2, CD2_1, CD2_2. The mapping is invalid if cd is singular.
func NewLinear(width, height int, crpix, crval [2]float64, cd [4]float64) *Linear {
	l := &Linear{width: width, height: height, crpix: crpix, crval: crval}
	if width <= 0 || height <= 0 {
		l.err = fmt.Errorf("linear mapping with dimensions %dx%d: %w", width, height, ErrInvalidAstrometry)
		return l
	}
	for _, v := range append(append(crpix[:], crval[:]...), cd[:]...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			l.err = fmt.Errorf("linear mapping with non-finite parameter: %w", ErrInvalidAstrometry)
			return l
		}
	}
	l.cd = mat.NewDense(2, 2, []float64{cd[0], cd[1], cd[2], cd[3]})
	if det := mat.Det(l.cd); det == 0 {
		l.err = fmt.Errorf("linear mapping with singular CD matrix %v: %w", cd, ErrInvalidAstrometry)
		return l
	}
	var inv mat.Dense
	if err := inv.Inverse(l.cd); err != nil {
		l.err = fmt.Errorf("linear mapping CD matrix %v: %s: %w", cd, err.Error(), ErrInvalidAstrometry)
		return l
	}
	l.inv = &inv
	return l
}

// Creates a linear mapping from the FITS header keywords CRPIXi, CRVALi and either CDi_j,
// or CDELTi with optional PCi_j or CROTA2. Returns an invalid mapping if keywords are missing.
func NewLinearFromHeader(naxisn []int32, h *fits.Header) *Linear {
	if len(naxisn) < 2 {
		return &Linear{err: fmt.Errorf("linear mapping needs 2 axes, have %d: %w", len(naxisn), ErrInvalidAstrometry)}
	}
	width, height := int(naxisn[0]), int(naxisn[1])

	var crpix, crval [2]float64
	for i := 0; i < 2; i++ {
		var ok bool
		if crpix[i], ok = h.Float(fmt.Sprintf("CRPIX%d", i+1)); !ok {
			return &Linear{width: width, height: height, err: fmt.Errorf("missing CRPIX%d: %w", i+1, ErrInvalidAstrometry)}
		}
		if crval[i], ok = h.Float(fmt.Sprintf("CRVAL%d", i+1)); !ok {
			return &Linear{width: width, height: height, err: fmt.Errorf("missing CRVAL%d: %w", i+1, ErrInvalidAstrometry)}
		}
	}

	cd, err := cdFromHeader(h)
	if err != nil {
		return &Linear{width: width, height: height, err: err}
	}
	l := NewLinear(width, height, crpix, crval, cd)
	l.CTypes[0], l.CTypes[1] = strings.TrimSpace(h.Strings["CTYPE1"]), strings.TrimSpace(h.Strings["CTYPE2"])
	return l
}

// Assembles the CD matrix from CDi_j, or from CDELTi combined with PCi_j or CROTA2
func cdFromHeader(h *fits.Header) (cd [4]float64, err error) {
	keys := [4]string{"1_1", "1_2", "2_1", "2_2"}
	haveCD := false
	for i, k := range keys {
		if v, ok := h.Float("CD" + k); ok {
			cd[i], haveCD = v, true
		}
	}
	if haveCD {
		return cd, nil
	}

	cdelt1, ok1 := h.Float("CDELT1")
	cdelt2, ok2 := h.Float("CDELT2")
	if !ok1 || !ok2 {
		return cd, fmt.Errorf("missing CDi_j and CDELTi keywords: %w", ErrInvalidAstrometry)
	}

	pc, havePC := [4]float64{1, 0, 0, 1}, false
	for i, k := range keys {
		if v, ok := h.Float("PC" + k); ok {
			pc[i], havePC = v, true
		}
	}
	if !havePC {
		crota, _ := h.Float("CROTA2")
		s, c := math.Sincos(crota * math.Pi / 180)
		// CROTA2 convention: CD1_1=CDELT1*cos, CD1_2=-CDELT2*sin, CD2_1=CDELT1*sin, CD2_2=CDELT2*cos
		return [4]float64{cdelt1 * c, -cdelt2 * s, cdelt1 * s, cdelt2 * c}, nil
	}
	return [4]float64{cdelt1 * pc[0], cdelt1 * pc[1], cdelt2 * pc[2], cdelt2 * pc[3]}, nil
}

func (l *Linear) Dims() (width, height int) { return l.width, l.height }

func (l *Linear) Valid() error { return l.err }

func (l *Linear) PixelToSky(xs, ys []float64) (ras, decs []float64, err error) {
	return l.apply(l.cd, l.crpix, l.crval, xs, ys)
}

// Converts sky to pixel coordinates. For celestial longitude axes, the offset from CRVAL1
// is taken modulo 360 degrees, so fields straddling longitude 0 map consistently
func (l *Linear) SkyToPixel(ras, decs []float64) (xs, ys []float64, err error) {
	if l.err == nil && l.isCelestial() {
		wrapped := make([]float64, len(ras))
		for i, ra := range ras {
			wrapped[i] = l.crval[0] + wrapLongitude(ra-l.crval[0])
		}
		ras = wrapped
	}
	return l.apply(l.inv, l.crval, l.crpix, ras, decs)
}

// True if the first axis is a celestial longitude in degrees
func (l *Linear) isCelestial() bool {
	for _, p := range []string{"RA--", "GLON", "ELON"} {
		if strings.HasPrefix(l.CTypes[0], p) {
			return true
		}
	}
	return false
}

// Reduces a longitude difference in degrees to [-180,180)
func wrapLongitude(d float64) float64 {
	return d - 360*math.Floor((d+180)/360)
}

// Computes out = m * (in - from) + to for all coordinate pairs with a single matrix product
func (l *Linear) apply(m *mat.Dense, from, to [2]float64, as, bs []float64) (outAs, outBs []float64, err error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	if err := checkLengths(as, bs); err != nil {
		return nil, nil, err
	}
	n := len(as)
	outAs, outBs = make([]float64, n), make([]float64, n)
	if n == 0 {
		return outAs, outBs, nil
	}

	d := mat.NewDense(2, n, nil)
	for i := 0; i < n; i++ {
		d.Set(0, i, as[i]-from[0])
		d.Set(1, i, bs[i]-from[1])
	}
	var r mat.Dense
	r.Mul(m, d)
	for i := 0; i < n; i++ {
		outAs[i] = r.At(0, i) + to[0]
		outBs[i] = r.At(1, i) + to[1]
	}
	return outAs, outBs, nil
}
