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
	"sync"

	"github.com/mlnoga/regrid/internal/fits"
	"github.com/mlnoga/regrid/internal/geom"
	"github.com/mlnoga/regrid/internal/wcs"
)

// A read-only rectangular image, indexed by 0-based row and column
type Image interface {
	Width() int
	Height() int
	Value(row, col int) float32
}

// Resamples src, whose pixel grid is described by srcMap, onto the pixel grid described by dstMap.
// Destination pixels not covered by the source keep opts.Sentinel. Fails with an error wrapping
// wcs.ErrInvalidAstrometry before producing output if either mapping is invalid, and with
// ErrAborted if the progress callback asks to stop. src must not be a nil pointer of any other
// image type.
func Regrid(src Image, srcMap, dstMap wcs.Mapping, opts Options) (*fits.Image, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if f, ok := src.(*fits.Image); src == nil || (ok && f == nil) || src.Width() <= 0 || src.Height() <= 0 {
		return nil, errors.New("regrid: empty source image")
	}
	proj, err := NewGridProjector(srcMap, dstMap)
	if err != nil {
		return nil, err
	}
	if w, h := srcMap.Dims(); w != src.Width() || h != src.Height() {
		return nil, fmt.Errorf("source mapping describes %dx%d grid, image is %dx%d", w, h, src.Width(), src.Height())
	}

	width, height := proj.Dims()
	out := fits.NewImageFromNaxisn([]int32{int32(width), int32(height)}, nil)
	out.Fill(opts.Sentinel)
	prog := newProgress(&opts, height)

	if opts.Threads > 1 && height > 1 {
		err = regridParallel(src, proj, out, &opts, prog)
	} else {
		err = regridRows(src, proj, out, &opts, prog)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Scans the destination row by row, reusing each row's upper edge as the next row's lower edge
func regridRows(src Image, proj *GridProjector, out *fits.Image, opts *Options, prog *progress) error {
	width, height := proj.Dims()
	strategy := NewStrategy(src, opts)
	cell := make(geom.Polygon, 0, 4)

	if err := proj.Start(); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		if err := proj.ProjectUpper(y); err != nil {
			return err
		}
		row := out.Data[y*width : (y+1)*width]
		for x := range row {
			cell = proj.Cell(x, cell)
			if v, ok := strategy.Resample(cell); ok {
				row[x] = v
			}
		}
		proj.Swap()
		if !prog.rowDone() {
			return ErrAborted
		}
	}
	return nil
}

// Reports progress after each row, to the callback or as percentages to the log
type progress struct {
	opts     *Options
	total    int
	done     int
	lastStep int // last percentage printed, in tens
	mutex    sync.Mutex
}

func newProgress(opts *Options, total int) *progress {
	return &progress{opts: opts, total: total}
}

// Records a completed row. Returns false if the regrid should be aborted
func (p *progress) rowDone() bool {
	if !p.opts.ReportProgress {
		return true
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.done++
	if p.opts.Progress != nil {
		return p.opts.Progress(p.done, p.total)
	}
	if p.opts.Log != nil {
		pct := p.done * 100 / p.total
		if step := pct / 10; step > p.lastStep {
			fmt.Fprintf(p.opts.Log, "Regridding: %d%%\n", pct)
			p.lastStep = step
		}
	}
	return true
}
