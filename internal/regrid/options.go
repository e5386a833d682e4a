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

// Package regrid resamples an image from one astrometric pixel grid onto another, either by exact
// polygon overlap ("drizzle") or by nearest neighbour sampling.
package regrid

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mlnoga/regrid/internal/geom"
)

// Returned when a progress callback requests to abort. No output is produced.
var ErrAborted = errors.New("regrid aborted")

// Resampling method
type Method int

const (
	ExactOverlap    Method = iota // Area-weighted sum over all overlapping source pixels, aka drizzle
	NearestNeighbor               // Source value at the rounded cell centroid
)

var methodNames = []string{"drizzle", "nearest"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Parses a method name. Accepts drizzle/exact and nearest/nn, case insensitive
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drizzle", "exact", "exactoverlap":
		return ExactOverlap, nil
	case "nearest", "nn", "nearestneighbor":
		return NearestNeighbor, nil
	}
	return ExactOverlap, fmt.Errorf("unknown regrid method '%s'", s)
}

func (m Method) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(methodNames) {
		return nil, fmt.Errorf("unknown regrid method %d", int(m))
	}
	return []byte(methodNames[m]), nil
}

func (m *Method) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMethod(string(text))
	return err
}

// Called after each completed destination row with the number of rows done and the total.
// Returning false aborts the regrid.
type ProgressFunc func(done, total int) bool

// Regrid options
type Options struct {
	Method            Method       // Resampling method
	ConserveFlux      bool         // Nearest neighbour only: scale values by the projected cell area
	ReportProgress    bool         // Call Progress after every row, or print percentages to Log if it is nil
	Progress          ProgressFunc // Optional progress callback
	Log               io.Writer    // Destination for progress lines, may be nil
	Sentinel          float32      // Output value for destination pixels not covered by the source
	ParallelTolerance float64      // Determinant threshold for parallel lines when clipping. 0 selects geom.DefaultParallelTolerance
	Threads           int          // Number of worker goroutines. 1 selects the sequential row scan
}

// Returns options for single-threaded drizzle with a NaN sentinel
func DefaultOptions() Options {
	return Options{
		Method:            ExactOverlap,
		Sentinel:          float32(math.NaN()),
		ParallelTolerance: geom.DefaultParallelTolerance,
		Threads:           1,
	}
}

func (o *Options) validate() error {
	if o.Method != ExactOverlap && o.Method != NearestNeighbor {
		return fmt.Errorf("unknown regrid method %d", int(o.Method))
	}
	if o.ParallelTolerance < 0 || math.IsNaN(o.ParallelTolerance) {
		return fmt.Errorf("invalid parallel tolerance %g", o.ParallelTolerance)
	}
	return nil
}
