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

package fits

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/mlnoga/regrid/internal/stats"
)

// A FITS image.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	ID       int    // Sequential ID number, for log output. Counted upwards from 0 for input frames. By convention, the reference is -1
	FileName string // Original file name, if any, for log output.

	Header Header  // The header with all keys, values, comments, history entries etc.
	Bitpix int32   // Bits per pixel value from the header. Positive values are integral, negative floating.
	Bzero  float32 // Zero offset. True pixel value is Bzero + Bscale * Data[i].
	Bscale float32 // Value scaler. True pixel value is Bzero + Bscale * Data[i].
	// Helps implement unsigned values with signed data types.
	Naxisn []int32 // Axis dimensions. Most quickly varying dimension first (i.e. X,Y)
	Pixels int32   // Number of pixels in the image. Product of Naxisn[]

	Data []float32 // The image data, row-major. NaN marks pixels without data

	Exposure float32 // Image exposure in seconds

	Stats *stats.Stats // Basic image statistics, nil until calculated
}

// Creates a FITS image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
		Bscale: 1,
	}
}

// Creates a FITS image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := int32(1)
	for _, naxis := range naxisn {
		numPixels *= naxis
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	return &Image{
		Header: NewHeader(),
		Bitpix: -32,
		Bscale: 1,
		Naxisn: append([]int32(nil), naxisn...), // clone slice
		Pixels: numPixels,
		Data:   data,
	}
}

// Width of the first plane, i.e. NAXIS1
func (f *Image) Width() int { return int(f.Naxisn[0]) }

// Height of the first plane, i.e. NAXIS2. 1 for one-dimensional images
func (f *Image) Height() int {
	if len(f.Naxisn) < 2 {
		return 1
	}
	return int(f.Naxisn[1])
}

// Returns the pixel value at the given 0-based row and column of the first plane
func (f *Image) Value(row, col int) float32 {
	return f.Data[col+row*int(f.Naxisn[0])]
}

// Sets all pixels to the given value
func (f *Image) Fill(v float32) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// True if the image has a single 2D plane, possibly with further axes of size 1
func (f *Image) IsSinglePlane() bool {
	if len(f.Naxisn) < 2 {
		return false
	}
	for _, n := range f.Naxisn[2:] {
		if n != 1 {
			return false
		}
	}
	return true
}

// Calculates image statistics and stores them in f.Stats
func (f *Image) CalcStats() *stats.Stats {
	f.Stats = stats.CalcStats(f.Data)
	return f.Stats
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// FITS header data
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float64
	Strings  map[string]string
	Dates    map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:    make(map[string]bool),
		Ints:     make(map[string]int32),
		Floats:   make(map[string]float64),
		Strings:  make(map[string]string),
		Dates:    make(map[string]string),
		Comments: make([]string, 0),
		History:  make([]string, 0),
		End:      false,
	}
}

const fitsBlockSize int = 2880 // Block size of FITS header and data units
const HeaderLineSize int = 80  // Line size of a FITS header

// Returns a numeric header value, which may have been written as integer or float
func (h *Header) Float(key string) (float64, bool) {
	if v, ok := h.Floats[key]; ok {
		return v, true
	}
	if v, ok := h.Ints[key]; ok {
		return float64(v), true
	}
	return 0, false
}

// Returns a deep copy of the header
func (h *Header) Clone() Header {
	c := NewHeader()
	for k, v := range h.Bools {
		c.Bools[k] = v
	}
	for k, v := range h.Ints {
		c.Ints[k] = v
	}
	for k, v := range h.Floats {
		c.Floats[k] = v
	}
	for k, v := range h.Strings {
		c.Strings[k] = v
	}
	for k, v := range h.Dates {
		c.Dates[k] = v
	}
	c.Comments = append(c.Comments, h.Comments...)
	c.History = append(c.History, h.History...)
	c.End, c.Length = h.End, h.Length
	return c
}

// Prefixes of header keys describing the world coordinate system
var wcsKeyPrefixes = []string{"CRPIX", "CRVAL", "CDELT", "CROTA", "CTYPE", "CUNIT", "CD1_", "CD2_", "PC1_", "PC2_",
	"EQUINOX", "EPOCH", "RADESYS", "LONPOLE", "LATPOLE"}

func isWCSKey(key string) bool {
	for _, p := range wcsKeyPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Replaces all world coordinate system keys of h with those of from
func (h *Header) CopyWCS(from *Header) {
	for k := range h.Ints {
		if isWCSKey(k) {
			delete(h.Ints, k)
		}
	}
	for k := range h.Floats {
		if isWCSKey(k) {
			delete(h.Floats, k)
		}
	}
	for k := range h.Strings {
		if isWCSKey(k) {
			delete(h.Strings, k)
		}
	}
	for k, v := range from.Ints {
		if isWCSKey(k) {
			h.Ints[k] = v
		}
	}
	for k, v := range from.Floats {
		if isWCSKey(k) {
			h.Floats[k] = v
		}
	}
	for k, v := range from.Strings {
		if isWCSKey(k) {
			h.Strings[k] = v
		}
	}
}

func (h *Header) Print(w io.Writer) {
	fmt.Fprintf(w, "Bools   : %v\n", h.Bools)
	fmt.Fprintf(w, "Ints    : %v\n", h.Ints)
	fmt.Fprintf(w, "Floats  : %v\n", h.Floats)
	fmt.Fprintf(w, "Strings : %v\n", h.Strings)
	fmt.Fprintf(w, "Dates   : %v\n", h.Dates)
	fmt.Fprintf(w, "History : %v\n", h.History)
	fmt.Fprintf(w, "Comments: %v\n", h.Comments)
	fmt.Fprintf(w, "End     : %v\n", h.End)
}

// Returns the keys of a header map in sorted order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Returns true if the value is NaN
func isNaN32(v float32) bool {
	return math.IsNaN(float64(v))
}
