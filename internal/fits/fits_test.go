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
	"bytes"
	"errors"
	"image/jpeg"
	"io"
	"math"
	"os"
	"testing"

	"golang.org/x/image/tiff"
)

func newTestImage() *Image {
	f := NewImageFromNaxisn([]int32{5, 3}, nil)
	for i := range f.Data {
		f.Data[i] = float32(i) - 4.5
	}
	f.Data[7] = float32(math.NaN())
	f.Header.Floats["CRPIX1"] = 2.5
	f.Header.Floats["CRVAL1"] = 187.123456789012
	f.Header.Floats["CD1_1"] = -2.7777777777e-4
	f.Header.Floats["CD2_2"] = 2.7777777777e-4
	f.Header.Ints["CRPIX2"] = 2
	f.Header.Floats["CRVAL2"] = -12.5
	f.Header.Strings["CTYPE1"] = "RA---TAN"
	f.Header.Strings["OBJECT"] = "M 87"
	f.Header.History = append(f.Header.History, "regridded")
	return f
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := newTestImage()
	buf := bytes.Buffer{}
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %s", err.Error())
	}
	if buf.Len()%fitsBlockSize != 0 {
		t.Errorf("file length %d is not a multiple of %d", buf.Len(), fitsBlockSize)
	}

	g := NewImage()
	if err := g.Read(&buf, true, io.Discard); err != nil {
		t.Fatalf("read: %s", err.Error())
	}
	if g.Width() != 5 || g.Height() != 3 || g.Bitpix != -32 {
		t.Errorf("dimensions %s bitpix %d; want 5x3 and -32", g.DimensionsToString(), g.Bitpix)
	}
	for i, v := range f.Data {
		w := g.Data[i]
		if math.IsNaN(float64(v)) != math.IsNaN(float64(w)) || (!math.IsNaN(float64(v)) && v != w) {
			t.Errorf("data[%d]=%g; want %g", i, w, v)
		}
	}
	for _, k := range []string{"CRPIX1", "CRVAL1", "CD1_1", "CD2_2", "CRPIX2", "CRVAL2"} {
		want, _ := f.Header.Float(k)
		got, ok := g.Header.Float(k)
		if !ok || math.Abs(got-want) > 1e-12*math.Max(1, math.Abs(want)) {
			t.Errorf("%s=%v,%v; want %v", k, got, ok, want)
		}
	}
	if s := g.Header.Strings["CTYPE1"]; s != "RA---TAN" {
		t.Errorf("CTYPE1='%s'; want 'RA---TAN'", s)
	}
	if s := g.Header.Strings["OBJECT"]; s != "M 87" {
		t.Errorf("OBJECT='%s'; want 'M 87'", s)
	}
	if len(g.Header.History) != 1 {
		t.Errorf("history %v; want one entry", g.Header.History)
	}
	if g.Stats == nil || g.Stats.Covered != 14 {
		t.Errorf("stats %v; want 14 covered pixels", g.Stats)
	}
}

type readBitpixTestCase struct {
	Bitpix int32
	Bytes  []byte
	Want   []float32
}

func TestReadIntegerData(t *testing.T) {
	tcs := []readBitpixTestCase{
		{8, []byte{0, 7, 255}, []float32{0, 7, 255}},
		{16, []byte{0, 1, 0xff, 0xfe, 0x7f, 0xff}, []float32{1, -2, 32767}},
		{32, []byte{0, 0, 1, 0, 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}, []float32{256, -1, 0}},
	}
	for _, tc := range tcs {
		f := NewImage()
		f.Bitpix, f.Bscale, f.Bzero = tc.Bitpix, 1, 0
		f.Naxisn, f.Pixels = []int32{3, 1}, 3
		if err := f.readData(bytes.NewReader(tc.Bytes), io.Discard); err != nil {
			t.Fatalf("bitpix %d: %s", tc.Bitpix, err.Error())
		}
		for i, w := range tc.Want {
			if f.Data[i] != w {
				t.Errorf("bitpix %d: data[%d]=%g; want %g", tc.Bitpix, i, f.Data[i], w)
			}
		}
	}
}

func TestReadTruncatedData(t *testing.T) {
	f := NewImage()
	f.Bitpix, f.Naxisn, f.Pixels = 16, []int32{4, 1}, 4
	if err := f.readData(bytes.NewReader([]byte{0, 1, 0}), io.Discard); err == nil {
		t.Errorf("truncated data read without error")
	}
}

func TestCopyWCS(t *testing.T) {
	from := newTestImage().Header
	to := NewHeader()
	to.Floats["CRVAL1"] = 1
	to.Floats["CDELT1"] = 1
	to.Strings["OBJECT"] = "other"
	to.CopyWCS(&from)
	if _, ok := to.Floats["CDELT1"]; ok {
		t.Errorf("stale CDELT1 kept after copying WCS")
	}
	if v := to.Floats["CRVAL1"]; v != 187.123456789012 {
		t.Errorf("CRVAL1=%v; want 187.123456789012", v)
	}
	if v := to.Ints["CRPIX2"]; v != 2 {
		t.Errorf("CRPIX2=%v; want 2", v)
	}
	if s := to.Strings["OBJECT"]; s != "other" {
		t.Errorf("OBJECT='%s'; want 'other'", s)
	}
}

func TestPreviews(t *testing.T) {
	f := newTestImage()
	buf := bytes.Buffer{}
	if err := f.WriteMonoJPG(&buf, -4.5, 9.5, 1, 95); err != nil {
		t.Fatalf("jpeg: %s", err.Error())
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("jpeg decode: %s", err.Error())
	}
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 3 {
		t.Errorf("jpeg bounds %v; want 5x3", b)
	}

	buf.Reset()
	if err := f.WriteMonoTIFF16(&buf, -4.5, 9.5, 1); err != nil {
		t.Fatalf("tiff: %s", err.Error())
	}
	img, err = tiff.Decode(&buf)
	if err != nil {
		t.Fatalf("tiff decode: %s", err.Error())
	}
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 3 {
		t.Errorf("tiff bounds %v; want 5x3", b)
	}
	if r, _, _, _ := img.At(4, 2).RGBA(); r != 65535 {
		t.Errorf("tiff white point=%d; want 65535", r)
	}
}

var errTestSink = errors.New("sink failed")

// A writer which optionally fails on Write or Close
type failingSink struct {
	failWrite, failClose bool
	closed               bool
}

func (s *failingSink) Write(p []byte) (int, error) {
	if s.failWrite {
		return 0, errTestSink
	}
	return len(p), nil
}

func (s *failingSink) Close() error {
	s.closed = true
	if s.failClose {
		return errTestSink
	}
	return nil
}

func TestWriteBufferedReportsFlushAndClose(t *testing.T) {
	f := newTestImage()
	for _, tc := range []struct {
		name string
		sink failingSink
		want error
	}{
		{"ok", failingSink{}, nil},
		{"flush", failingSink{failWrite: true}, errTestSink},
		{"close", failingSink{failClose: true}, errTestSink},
	} {
		sink := tc.sink
		if err := writeBuffered(&sink, f.Write); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v; want %v", tc.name, err, tc.want)
		}
		if !sink.closed {
			t.Errorf("%s: sink not closed", tc.name)
		}
	}
}

func TestWriteFileFullDevice(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}
	f := newTestImage()
	if err := f.WriteFile("/dev/full"); err == nil {
		t.Errorf("FITS write to full device succeeded")
	}
	if err := f.WriteMonoTIFF16ToFile("/dev/full", -5, 10, 1); err == nil {
		t.Errorf("TIFF write to full device succeeded")
	}
	if err := f.WriteMonoJPGToFile("/dev/full", -5, 10, 1, 90); err == nil {
		t.Errorf("JPG write to full device succeeded")
	}
}
