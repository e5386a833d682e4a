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

package stats

import (
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestCalcStatsSkipsNaN(t *testing.T) {
	nan := float32(math.NaN())
	data := []float32{nan, 1, 2, nan, 3, 4, nan, 5}
	s := CalcStats(data)
	if s.Pixels != 8 || s.Covered != 5 {
		t.Errorf("pixels=%d covered=%d; want 8 and 5", s.Pixels, s.Covered)
	}
	if s.Min != 1 || s.Max != 5 || s.Sum != 15 || s.Mean != 3 || s.Median != 3 {
		t.Errorf("stats %v; want min 1 max 5 sum 15 mean 3 median 3", s)
	}
	if want := math.Sqrt(2.5); math.Abs(s.StdDev-want) > 1e-12 {
		t.Errorf("stddev=%g; want %g", s.StdDev, want)
	}
	if c := s.Coverage(); c != 5.0/8.0 {
		t.Errorf("coverage=%g; want %g", c, 5.0/8.0)
	}
}

func TestCalcStatsAllNaN(t *testing.T) {
	nan := float32(math.NaN())
	s := CalcStats([]float32{nan, nan})
	if s.Covered != 0 || !math.IsNaN(s.Mean) || s.Sum != 0 {
		t.Errorf("stats %v; want no coverage, NaN mean and zero sum", s)
	}
}

func TestCalcStatsSampled(t *testing.T) {
	rng := fastrand.RNG{}
	data := make([]float32, 4*NumSamples)
	for i := range data {
		if rng.Uint32n(4) == 0 {
			data[i] = float32(math.NaN())
		} else {
			data[i] = 100
		}
	}
	s := CalcStats(data)
	if s.Covered <= NumSamples {
		t.Fatalf("covered=%d; want more than %d to exercise sampling", s.Covered, NumSamples)
	}
	if s.Mean != 100 || s.Median != 100 || s.StdDev != 0 {
		t.Errorf("stats %v; want mean and median 100, stddev 0", s)
	}
	if s.Sum != 100*float64(s.Covered) {
		t.Errorf("sum=%g; want %g", s.Sum, 100*float64(s.Covered))
	}
}
