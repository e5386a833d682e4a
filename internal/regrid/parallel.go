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
	"sync/atomic"

	"github.com/mlnoga/regrid/internal/fits"
	"github.com/mlnoga/regrid/internal/geom"
)

// Number of row bands per worker, for load balancing
const bandsPerThread = 4

// Regrids with opts.Threads goroutines. Precomputes the full grid of projected corners, then
// processes bands of rows independently. Bands write disjoint rows of the output.
func regridParallel(src Image, proj *GridProjector, out *fits.Image, opts *Options, prog *progress) error {
	width, height := proj.Dims()
	grid, err := proj.Grid()
	if err != nil {
		return err
	}

	bandHeight := (height + opts.Threads*bandsPerThread - 1) / (opts.Threads * bandsPerThread)
	var aborted atomic.Bool
	limiter := make(chan bool, opts.Threads)
	for y0 := 0; y0 < height; y0 += bandHeight {
		y1 := y0 + bandHeight
		if y1 > height {
			y1 = height
		}
		limiter <- true
		go func(y0, y1 int) {
			defer func() { <-limiter }()
			strategy := NewStrategy(src, opts)
			cell := make(geom.Polygon, 0, 4)
			for y := y0; y < y1 && !aborted.Load(); y++ {
				row := out.Data[y*width : (y+1)*width]
				for x := range row {
					cell = cellAt(grid[y], grid[y+1], x, cell)
					if v, ok := strategy.Resample(cell); ok {
						row[x] = v
					}
				}
				if !prog.rowDone() {
					aborted.Store(true)
				}
			}
		}(y0, y1)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	if aborted.Load() {
		return ErrAborted
	}
	return nil
}
