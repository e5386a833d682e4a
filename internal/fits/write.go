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
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Header keys written from image fields, which are skipped when writing the header maps
var reservedKeys = map[string]bool{"SIMPLE": true, "BITPIX": true, "NAXIS": true, "BZERO": true, "BSCALE": true, "END": true}

// Writes an in-memory FITS image to a file with given filename.
// Creates/overwrites the file if necessary. Compresses with gzip if the name ends in .gz or .gzip
func (fits *Image) WriteFile(fileName string) error {
	lower := strings.ToLower(fileName)
	if strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".gzip") {
		return createAndWrite(fileName, func(w io.Writer) error {
			gz := gzip.NewWriter(w)
			if err := fits.Write(gz); err != nil {
				return err
			}
			return gz.Close()
		})
	}
	return createAndWrite(fileName, fits.Write)
}

// Creates/overwrites the named file and writes it through a buffer with the given function.
func createAndWrite(fileName string, write func(io.Writer) error) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	return writeBuffered(f, write)
}

// Writes to w through a buffer, then flushes and closes w. Returns the first error.
func writeBuffered(w io.WriteCloser, write func(io.Writer) error) error {
	writer := bufio.NewWriter(w)
	err := write(writer)
	if err == nil {
		err = writer.Flush()
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

// Writes an in-memory FITS image to an io.Writer as 32-bit floating point data.
// NaNs are kept, as they mark pixels without data.
func (fits *Image) Write(f io.Writer) error {
	// Build header in string buffer
	sb := strings.Builder{}
	writeBool(&sb, "SIMPLE", true, "FITS standard 4.0")
	writeInt(&sb, "BITPIX", -32, "32-bit floating point")
	writeInt(&sb, "NAXIS", len(fits.Naxisn), "[1] Number of axis")
	for i := 0; i < len(fits.Naxisn); i++ {
		writeInt(&sb, fmt.Sprintf("NAXIS%d", i+1), int(fits.Naxisn[i]), "[1] Axis size")
	}
	writeFloat(&sb, "BZERO", float64(fits.Bzero), "[1] Zero offset")
	if fits.Exposure != 0 {
		if _, ok := fits.Header.Float("EXPOSURE"); !ok {
			writeFloat(&sb, "EXPOSURE", float64(fits.Exposure), "[s] Exposure time")
		}
	}

	h := &fits.Header
	for _, k := range sortedKeys(h.Bools) {
		if !reservedKeys[k] {
			writeBool(&sb, k, h.Bools[k], "")
		}
	}
	for _, k := range sortedKeys(h.Ints) {
		if !reservedKeys[k] && !strings.HasPrefix(k, "NAXIS") {
			writeInt(&sb, k, int(h.Ints[k]), "")
		}
	}
	for _, k := range sortedKeys(h.Floats) {
		if !reservedKeys[k] {
			writeFloat(&sb, k, h.Floats[k], "")
		}
	}
	for _, k := range sortedKeys(h.Strings) {
		if !reservedKeys[k] {
			writeString(&sb, k, h.Strings[k], "")
		}
	}
	for _, k := range sortedKeys(h.Dates) {
		writeString(&sb, k, h.Dates[k], "")
	}
	for _, hist := range h.History {
		writeText(&sb, "HISTORY", hist)
	}
	writeEnd(&sb)

	// Pad current header block with spaces if necessary
	if bytesInHeaderBlock := sb.Len() % fitsBlockSize; bytesInHeaderBlock > 0 {
		sb.WriteString(strings.Repeat(" ", fitsBlockSize-bytesInHeaderBlock))
	}

	// Write header block(s)
	if _, err := io.WriteString(f, sb.String()); err != nil {
		return err
	}

	// Write payload data, and pad the last data block with zeros
	if err := writeFloat32Array(f, fits.Data, false); err != nil {
		return err
	}
	if bytesInDataBlock := (len(fits.Data) * 4) % fitsBlockSize; bytesInDataBlock > 0 {
		_, err := f.Write(make([]byte, fitsBlockSize-bytesInDataBlock))
		return err
	}
	return nil
}

func truncate(key, comment string) (string, string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	if len(comment) > 47 {
		comment = comment[0:47]
	}
	return key, comment
}

// Writes a FITS header boolean value
func writeBool(w io.Writer, key string, value bool, comment string) {
	key, comment = truncate(key, comment)
	v := "F"
	if value {
		v = "T"
	}
	fmt.Fprintf(w, "%-8s= %20s / %-47s", key, v, comment)
}

// Writes a FITS header integer value
func writeInt(w io.Writer, key string, value int, comment string) {
	key, comment = truncate(key, comment)
	fmt.Fprintf(w, "%-8s= %20d / %-47s", key, value, comment)
}

// Writes a FITS header floating point value. Always uses a decimal point and exponent,
// with 13 significant digits to fit the fixed format value field
func writeFloat(w io.Writer, key string, value float64, comment string) {
	key, comment = truncate(key, comment)
	fmt.Fprintf(w, "%-8s= %20s / %-47s", key, strconv.FormatFloat(value, 'E', 12, 64), comment)
}

// Writes a FITS header string value, with escaping and continuations if necessary.
func writeString(w io.Writer, key, value, comment string) {
	key, comment = truncate(key, comment)

	// escape ' characters
	value = strings.Join(strings.Split(value, "'"), "''")

	if len(value) <= 18 {
		fmt.Fprintf(w, "%-8s= '%s'%s / %-47s", key, value, strings.Repeat(" ", 18-len(value)), comment)
	} else {
		fmt.Fprintf(w, "%-8s= '%s&' / %-47s", key, value[0:17], comment)
		value = value[17:]
		for len(value) > 66 {
			fmt.Fprintf(w, "CONTINUE  '%s&' ", value[0:66])
			value = value[66:]
		}
		fmt.Fprintf(w, "CONTINUE  '%s'%s", value, strings.Repeat(" ", 50+(18-len(value))))
	}
}

// Writes a FITS HISTORY or COMMENT line
func writeText(w io.Writer, key, text string) {
	if len(text) > 72 {
		text = text[:72]
	}
	fmt.Fprintf(w, "%-8s%-72s", key, text)
}

// Writes a FITS header end record
func writeEnd(w io.Writer) {
	fmt.Fprintf(w, "END%s", strings.Repeat(" ", 80-3))
}

// Writes FITS binary body data in network byte order.
// Optionally replaces NaNs with zeros for compatibility with other software
func writeFloat32Array(w io.Writer, data []float32, replaceNaNs bool) error {
	buf := make([]byte, bufLen)

	for block := 0; block < len(data); block += (bufLen >> 2) {
		size := len(data) - block
		if size > (bufLen >> 2) {
			size = (bufLen >> 2)
		}

		for offset := 0; offset < size; offset++ {
			d := data[block+offset]
			if replaceNaNs && isNaN32(d) {
				d = 0
			}
			val := math.Float32bits(d)
			buf[(offset<<2)+0] = byte(val >> 24)
			buf[(offset<<2)+1] = byte(val >> 16)
			buf[(offset<<2)+2] = byte(val >> 8)
			buf[(offset<<2)+3] = byte(val)
		}
		if _, err := w.Write(buf[:(size << 2)]); err != nil {
			return err
		}
	}
	return nil
}
