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
	"fmt"
	"math"
	"sort"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"
)

// Number of samples for approximate statistics on large images
const NumSamples = 128 * 1024

// Basic statistics on an image whose uncovered pixels are NaN
type Stats struct {
	Pixels  int     // Total number of pixels
	Covered int     // Number of pixels which are not NaN
	Min     float64 // Minimum of covered pixels
	Max     float64 // Maximum of covered pixels
	Sum     float64 // Sum of covered pixels, i.e. total flux
	Mean    float64 // Mean of covered pixels
	StdDev  float64 // Standard deviation of covered pixels. Sampled for large images
	Median  float64 // Median of covered pixels. Sampled for large images
}

// Pretty print basic stats to string
func (s *Stats) String() string {
	return fmt.Sprintf("Covered %d/%d (%.1f%%) Min %.6g Max %.6g Sum %.6g Mean %.6g StdDev %.6g Median %.6g",
		s.Covered, s.Pixels, 100*s.Coverage(), s.Min, s.Max, s.Sum, s.Mean, s.StdDev, s.Median)
}

// Pretty print basic stats to CSV header
func (s *Stats) ToCSVHeader() string {
	return "Pixels,Covered,Min,Max,Sum,Mean,StdDev,Median"
}

// Pretty print basic stats to CSV line item
func (s *Stats) ToCSVLine() string {
	return fmt.Sprintf("%d,%d,%.6g,%.6g,%.6g,%.6g,%.6g,%.6g",
		s.Pixels, s.Covered, s.Min, s.Max, s.Sum, s.Mean, s.StdDev, s.Median)
}

// Fraction of covered pixels in [0,1]
func (s *Stats) Coverage() float64 {
	if s.Pixels == 0 {
		return 0
	}
	return float64(s.Covered) / float64(s.Pixels)
}

// Calculates statistics for a data array, skipping NaNs.
// Min, max and sum are exact. Standard deviation and median are exact for images with up to
// NumSamples covered pixels, and estimated from NumSamples random covered pixels otherwise.
func CalcStats(data []float32) (s *Stats) {
	s = &Stats{Pixels: len(data), Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), StdDev: math.NaN(), Median: math.NaN()}
	min, max, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, v := range data {
		if math.IsNaN(float64(v)) {
			continue
		}
		fv := float64(v)
		if fv < min {
			min = fv
		}
		if fv > max {
			max = fv
		}
		sum += fv
		s.Covered++
	}
	if s.Covered == 0 {
		return s
	}
	s.Min, s.Max, s.Sum = min, max, sum
	s.Mean = sum / float64(s.Covered)

	samples := coveredSamples(data, s.Covered, NumSamples)
	s.StdDev = stat.StdDev(samples, nil)
	if len(samples) < 2 {
		s.StdDev = 0
	}
	sort.Float64s(samples)
	s.Median = stat.Quantile(0.5, stat.Empirical, samples, nil)
	return s
}

// Returns all covered values if there are at most numSamples, else numSamples random covered values
func coveredSamples(data []float32, covered, numSamples int) []float64 {
	if covered <= numSamples {
		samples := make([]float64, 0, covered)
		for _, v := range data {
			if !math.IsNaN(float64(v)) {
				samples = append(samples, float64(v))
			}
		}
		return samples
	}

	samples := make([]float64, numSamples)
	max := uint32(len(data))
	rng := fastrand.RNG{}
	for i := range samples {
		var d float32
		for {
			d = data[rng.Uint32n(max)]
			if !math.IsNaN(float64(d)) {
				break
			}
		}
		samples[i] = float64(d)
	}
	return samples
}
