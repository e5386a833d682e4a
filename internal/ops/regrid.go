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

package ops

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mlnoga/regrid/internal/fits"
	"github.com/mlnoga/regrid/internal/regrid"
	"github.com/mlnoga/regrid/internal/wcs"
)

// Regrids each input onto the pixel grid of a reference FITS file, using the linear world
// coordinate systems in the headers. Takes n inputs, produces n outputs
type OpRegrid struct {
	OpUnaryBase
	Reference    string        `json:"reference"`    // FITS file whose header defines the destination grid
	Method       regrid.Method `json:"method"`       // drizzle or nearest
	ConserveFlux bool          `json:"conserveFlux"` // nearest neighbour only: scale by cell area
	Progress     bool          `json:"progress"`     // log progress in steps of 10%
	Threads      int           `json:"threads"`      // threads per image. 0 or 1 for sequential

	once   sync.Once
	ref    *fits.Image
	refMap wcs.Mapping
	refErr error
}

func init() { SetOperatorFactory(func() Operator { return NewOpRegridDefault() }) } // register the operator for JSON decoding

func NewOpRegridDefault() *OpRegrid { return NewOpRegrid("", regrid.ExactOverlap) }

func NewOpRegrid(reference string, method regrid.Method) *OpRegrid {
	op := &OpRegrid{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "regrid", Active: reference != ""}},
		Reference:   reference,
		Method:      method,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Loads the reference header and its coordinate system once
func (op *OpRegrid) reference(c *Context) (*fits.Image, wcs.Mapping, error) {
	op.once.Do(func() {
		if !IsPathAllowed(op.Reference) {
			op.refErr = fmt.Errorf("reference %s outside current directory tree", op.Reference)
			return
		}
		op.ref, op.refErr = fits.NewImageHeaderFromFile(op.Reference, -1, c.Log)
		if op.refErr != nil {
			return
		}
		m := wcs.NewLinearFromHeader(op.ref.Naxisn, &op.ref.Header)
		if op.refErr = m.Valid(); op.refErr != nil {
			op.refErr = fmt.Errorf("reference %s: %w", op.Reference, op.refErr)
			return
		}
		op.refMap = m
		fmt.Fprintf(c.Log, "%d: Using %s pixel grid of %s as destination\n", op.ref.ID, op.ref.DimensionsToString(), op.Reference)
	})
	return op.ref, op.refMap, op.refErr
}

// Number of threads to use for a destination grid of given size. Falls back to sequential
// processing if the precomputed grid would use more than a quarter of memory
func (op *OpRegrid) threads(c *Context, width, height int) int {
	t := op.Threads
	if t > c.MaxThreads {
		t = c.MaxThreads
	}
	if t <= 1 {
		return 1
	}
	gridMB := (width + 1) * (height + 1) * 16 / 1024 / 1024
	if c.MemoryMB > 0 && gridMB > c.MemoryMB/4 {
		fmt.Fprintf(c.Log, "Grid of %d MB exceeds memory budget, regridding sequentially\n", gridMB)
		return 1
	}
	return t
}

func (op *OpRegrid) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	ref, dstMap, err := op.reference(c)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	srcMap := wcs.NewLinearFromHeader(f.Naxisn, &f.Header)

	opts := regrid.DefaultOptions()
	opts.Method = op.Method
	opts.ConserveFlux = op.ConserveFlux
	opts.ReportProgress = op.Progress
	opts.Threads = op.threads(c, ref.Width(), ref.Height())
	if op.Progress {
		lastStep := 0
		opts.Progress = func(done, total int) bool {
			if step := done * 10 / total; step > lastStep {
				fmt.Fprintf(c.Log, "%d: Regridded %d%%\n", f.ID, step*10)
				lastStep = step
			}
			return true
		}
	}

	out, err := regrid.Regrid(f, srcMap, dstMap, opts)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	out.ID, out.FileName, out.Exposure = f.ID, f.FileName, f.Exposure
	out.Header = f.Header.Clone()
	out.Header.CopyWCS(&ref.Header)
	out.Header.History = append(out.Header.History, fmt.Sprintf("Regridded with %v onto %s", op.Method, filepath.Base(op.Reference)))
	out.CalcStats()

	fmt.Fprintf(c.Log, "%d: Regridded to %s pixels with %v: %v\n", out.ID, out.DimensionsToString(), op.Method, out.Stats)
	return out, nil
}
