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
	"math"

	"github.com/mlnoga/regrid/internal/geom"
)

// Resamples the source image over one projected cell. Returns false if the cell is not covered
// by the source. Implementations keep scratch buffers and must not be shared between goroutines.
type Strategy interface {
	Resample(cell geom.Polygon) (value float32, covered bool)
}

// Creates a new strategy for the given source and options
func NewStrategy(src Image, opts *Options) Strategy {
	w, h := src.Width(), src.Height()
	switch opts.Method {
	case NearestNeighbor:
		return &nearest{src: src, width: w, height: h, conserveFlux: opts.ConserveFlux}
	default:
		return &drizzle{src: src, width: w, height: h,
			clipper:   geom.NewClipper(opts.ParallelTolerance),
			footprint: make(geom.Polygon, 0, 4),
		}
	}
}

// Returns the range of source pixel indices which may overlap the cell, clamped to the source
// image. Returns false if the range is empty or the cell has non-finite coordinates.
func sourceBounds(cell geom.Polygon, width, height int) (x0, y0, x1, y1 int, ok bool) {
	if !cell.IsFinite() {
		return 0, 0, 0, 0, false
	}
	r := cell.Bounds()
	fx0 := math.Max(math.Floor(r.A.X-0.5), 0)
	fy0 := math.Max(math.Floor(r.A.Y-0.5), 0)
	fx1 := math.Min(math.Ceil(r.B.X+0.5), float64(width-1))
	fy1 := math.Min(math.Ceil(r.B.Y+0.5), float64(height-1))
	if fx0 > fx1 || fy0 > fy1 {
		return 0, 0, 0, 0, false
	}
	return int(fx0), int(fy0), int(fx1), int(fy1), true
}

// Exact overlap: sum of source values weighted by the area of their overlap with the cell
type drizzle struct {
	src           Image
	width, height int
	clipper       *geom.Clipper
	footprint     geom.Polygon
}

func (d *drizzle) Resample(cell geom.Polygon) (float32, bool) {
	x0, y0, x1, y1, ok := sourceBounds(cell, d.width, d.height)
	if !ok {
		return 0, false
	}
	flux, covered := 0.0, false
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d.footprint = geom.PixelFootprint(x, y, d.footprint)
			overlap := d.clipper.Clip(d.footprint, cell)
			if len(overlap) < 3 {
				continue
			}
			covered = true
			flux += float64(d.src.Value(y, x)) * overlap.Area()
		}
	}
	return float32(flux), covered
}

// Nearest neighbour: source value at the rounded cell centroid, optionally scaled by the cell area
type nearest struct {
	src           Image
	width, height int
	conserveFlux  bool
}

func (n *nearest) Resample(cell geom.Polygon) (float32, bool) {
	if _, _, _, _, ok := sourceBounds(cell, n.width, n.height); !ok {
		return 0, false
	}
	c := cell.Centroid()
	mx, my := math.Round(c.X), math.Round(c.Y)
	if mx < 0 || mx >= float64(n.width) || my < 0 || my >= float64(n.height) {
		return 0, false
	}
	v := n.src.Value(int(my), int(mx))
	if n.conserveFlux {
		// the full cell area overstates flux where the cell extends beyond the source
		v *= float32(cell.Area())
	}
	return v, true
}
