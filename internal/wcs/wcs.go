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

// Package wcs provides astrometric mappings between pixel and sky coordinates.
// Pixel coordinates are 1-based at this boundary, following the FITS convention.
package wcs

import (
	"errors"
	"fmt"
)

// Returned, possibly wrapped, when a mapping could not be established or a transformation failed
var ErrInvalidAstrometry = errors.New("invalid astrometry")

// A bidirectional transformation between the pixel coordinates of one image and sky coordinates.
// Implementations are read-only after construction and safe for concurrent use.
type Mapping interface {
	// Image dimensions the mapping describes, i.e. NAXIS1 and NAXIS2
	Dims() (width, height int)

	// Returns nil if the mapping was established successfully, else an error wrapping ErrInvalidAstrometry
	Valid() error

	// Converts 1-based pixel coordinates to sky coordinates. Slices must have equal length
	PixelToSky(xs, ys []float64) (ras, decs []float64, err error)

	// Converts sky coordinates to 1-based pixel coordinates. Slices must have equal length
	SkyToPixel(ras, decs []float64) (xs, ys []float64, err error)
}

// Checks that all given mappings are non-nil and valid
func Validate(ms ...Mapping) error {
	for i, m := range ms {
		if m == nil {
			return fmt.Errorf("mapping %d is nil: %w", i, ErrInvalidAstrometry)
		}
		if err := m.Valid(); err != nil {
			return err
		}
	}
	return nil
}

func checkLengths(as, bs []float64) error {
	if len(as) != len(bs) {
		return fmt.Errorf("coordinate slices of different length %d and %d: %w", len(as), len(bs), ErrInvalidAstrometry)
	}
	return nil
}
