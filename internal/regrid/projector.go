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

package regrid

import (
	"errors"
	"fmt"

	"github.com/mlnoga/regrid/internal/geom"
	"github.com/mlnoga/regrid/internal/wcs"
)

// Projects the pixel grid of a destination image into source pixel space, one row of cells at a time.
// Row y of the destination is bounded by grid line y below and grid line y+1 above. A grid line has
// width+1 corner points, each transformed exactly once: the upper edge of row y becomes the lower
// edge of row y+1.
type GridProjector struct {
	src, dst      wcs.Mapping
	width, height int

	lower []geom.Point2D // Lower edge of the current row, 0-based source pixel coordinates
	upper []geom.Point2D // Upper edge of the current row

	xs, ys []float64 // 1-based destination corner coordinates for one grid line
}

// Creates a projector from the destination grid of dst into the pixel space of src.
// Fails with an error wrapping wcs.ErrInvalidAstrometry if either mapping is invalid.
func NewGridProjector(src, dst wcs.Mapping) (*GridProjector, error) {
	if err := wcs.Validate(src, dst); err != nil {
		return nil, err
	}
	width, height := dst.Dims()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("destination grid %dx%d: %w", width, height, wcs.ErrInvalidAstrometry)
	}
	p := &GridProjector{
		src:    src,
		dst:    dst,
		width:  width,
		height: height,
		lower:  make([]geom.Point2D, width+1),
		upper:  make([]geom.Point2D, width+1),
		xs:     make([]float64, width+1),
		ys:     make([]float64, width+1),
	}
	for i := range p.xs {
		p.xs[i] = float64(i) + 0.5
	}
	return p, nil
}

// Dimensions of the destination grid
func (p *GridProjector) Dims() (width, height int) { return p.width, p.height }

// Computes the lower edge of row 0. Must be called before the first ProjectUpper
func (p *GridProjector) Start() error {
	return p.projectLine(0, p.lower)
}

// Computes the upper edge of row y
func (p *GridProjector) ProjectUpper(y int) error {
	return p.projectLine(y+1, p.upper)
}

// Moves the upper edge of the current row into the lower edge slot for the next row
func (p *GridProjector) Swap() {
	p.lower, p.upper = p.upper, p.lower
}

// Lower and upper edge of the current row
func (p *GridProjector) Edges() (lower, upper []geom.Point2D) {
	return p.lower, p.upper
}

// Returns the projected cell of column x of the current row in buf
func (p *GridProjector) Cell(x int, buf geom.Polygon) geom.Polygon {
	return cellAt(p.lower, p.upper, x, buf)
}

// Projects all height+1 grid lines at once, so rows can be processed independently
func (p *GridProjector) Grid() ([][]geom.Point2D, error) {
	grid := make([][]geom.Point2D, p.height+1)
	for line := range grid {
		grid[line] = make([]geom.Point2D, p.width+1)
		if err := p.projectLine(line, grid[line]); err != nil {
			return nil, err
		}
	}
	return grid, nil
}

// Builds the cell of column x between the given edges, in the order
// lower[x], lower[x+1], upper[x+1], upper[x]
func cellAt(lower, upper []geom.Point2D, x int, buf geom.Polygon) geom.Polygon {
	return append(buf[:0], lower[x], lower[x+1], upper[x+1], upper[x])
}

// Transforms the destination grid line with the given index to 0-based source pixel space.
// Grid line i runs through 0-based destination y=i-0.5, which is 1-based y=i+0.5.
func (p *GridProjector) projectLine(line int, out []geom.Point2D) error {
	fy := float64(line) + 0.5
	for i := range p.ys {
		p.ys[i] = fy
	}
	ras, decs, err := p.dst.PixelToSky(p.xs, p.ys)
	if err != nil {
		return astrometryError(line, err)
	}
	sxs, sys, err := p.src.SkyToPixel(ras, decs)
	if err != nil {
		return astrometryError(line, err)
	}
	if len(sxs) != len(out) || len(sys) != len(out) {
		return astrometryError(line, fmt.Errorf("mapping returned %d points, want %d", len(sxs), len(out)))
	}
	for i := range out {
		out[i] = geom.Point2D{X: sxs[i] - 1, Y: sys[i] - 1}
	}
	return nil
}

func astrometryError(line int, err error) error {
	if errors.Is(err, wcs.ErrInvalidAstrometry) {
		return fmt.Errorf("grid line %d: %w", line, err)
	}
	return fmt.Errorf("grid line %d: %s: %w", line, err.Error(), wcs.ErrInvalidAstrometry)
}
