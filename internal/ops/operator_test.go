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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/mlnoga/regrid/internal/fits"
	"github.com/mlnoga/regrid/internal/regrid"
)

// Switches to a fresh temporary directory for the duration of the test, as operators only accept relative paths
func inTempDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %s", err.Error())
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %s", err.Error())
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func writeTestImage(t *testing.T, fileName string, width, height int, value float32, crpix1 float64) {
	f := fits.NewImageFromNaxisn([]int32{int32(width), int32(height)}, nil)
	f.Fill(value)
	h := &f.Header
	h.Floats["CRPIX1"], h.Floats["CRPIX2"] = crpix1, 1
	h.Floats["CRVAL1"], h.Floats["CRVAL2"] = 10, 20
	h.Floats["CD1_1"], h.Floats["CD2_2"] = 0.5, 0.5
	h.Strings["CTYPE1"], h.Strings["CTYPE2"] = "RA---TAN", "DEC--TAN"
	h.Strings["OBJECT"] = "test"
	if err := f.WriteFile(fileName); err != nil {
		t.Fatalf("write %s: %s", fileName, err.Error())
	}
}

func TestRegridSequence(t *testing.T) {
	inTempDir(t)
	writeTestImage(t, "src0.fits", 10, 8, 2, 1)
	writeTestImage(t, "ref.fits", 12, 6, 0, 2)

	log := bytes.Buffer{}
	c := NewContext(&log)
	opRegrid := NewOpRegrid("ref.fits", regrid.ExactOverlap)
	opRegrid.Threads = 2
	seq := NewOpSequence(NewOpLoadMany([]string{"src*.fits"}), opRegrid, NewOpStats(), NewOpSave("out%d.fits"))
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		t.Fatalf("make promises: %s", err.Error())
	}
	if _, err := MaterializeAll(promises, c.MaxThreads, true); err != nil {
		t.Fatalf("materialize: %s\n%s", err.Error(), log.String())
	}

	out, err := fits.NewImageFromFile("out0.fits", 0, io.Discard)
	if err != nil {
		t.Fatalf("read output: %s", err.Error())
	}
	if out.Width() != 12 || out.Height() != 6 {
		t.Fatalf("output %s; want 12x6", out.DimensionsToString())
	}
	if v, _ := out.Header.Float("CRPIX1"); v != 2 {
		t.Errorf("CRPIX1=%v; want 2 from reference", v)
	}
	if s := out.Header.Strings["OBJECT"]; s != "test" {
		t.Errorf("OBJECT='%s'; want 'test' from source", s)
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 12; x++ {
			v := out.Value(y, x)
			if x == 0 || x == 11 {
				if !math.IsNaN(float64(v)) {
					t.Errorf("(%d,%d)=%g; want NaN", x, y, v)
				}
			} else if math.Abs(float64(v)-2) > 1e-5 {
				t.Errorf("(%d,%d)=%g; want 2", x, y, v)
			}
		}
	}
	if !strings.Contains(log.String(), "0: Regridded to 12x6 pixels with drizzle") {
		t.Errorf("log lacks regrid line:\n%s", log.String())
	}
}

func TestRegridMissingReference(t *testing.T) {
	inTempDir(t)
	writeTestImage(t, "src0.fits", 4, 4, 1, 1)
	c := NewContext(io.Discard)
	seq := NewOpSequence(NewOpLoad(0, "src0.fits"), NewOpRegrid("missing.fits", regrid.NearestNeighbor))
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		t.Fatalf("make promises: %s", err.Error())
	}
	if _, err := MaterializeAll(promises, 1, false); err == nil {
		t.Errorf("regrid onto missing reference succeeded")
	}
}

func TestSavePreviews(t *testing.T) {
	inTempDir(t)
	c := NewContext(io.Discard)
	f := fits.NewImageFromNaxisn([]int32{4, 3}, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, float32(math.NaN())})
	f.ID = 5
	for _, name := range []string{"p%d.jpg", "p%d.tiff", "p%d.fits.gz"} {
		if _, err := NewOpSave(name).Apply(f, c); err != nil {
			t.Errorf("save %s: %s", name, err.Error())
			continue
		}
		if _, err := os.Stat(strings.Replace(name, "%d", "5", 1)); err != nil {
			t.Errorf("save %s: %s", name, err.Error())
		}
	}
	if _, err := NewOpSave("p.png").Apply(f, c); err == nil {
		t.Errorf("saved with unknown suffix")
	}
	if _, err := NewOpSave("/tmp/p.fits").Apply(f, c); err == nil {
		t.Errorf("saved to absolute path")
	}
}

func TestIsPathAllowed(t *testing.T) {
	for p, want := range map[string]bool{"a.fits": true, "dir/a.fits": true, "/etc/passwd": false, "../a.fits": false, "a/../../b": false} {
		if got := IsPathAllowed(p); got != want {
			t.Errorf("IsPathAllowed(%s)=%v; want %v", p, got, want)
		}
	}
}

func TestMaterializeAllErrors(t *testing.T) {
	ok := func() (*fits.Image, error) { return fits.NewImageFromNaxisn([]int32{1, 1}, nil), nil }
	bad := func() (*fits.Image, error) { return nil, errors.New("bad") }
	outs, err := MaterializeAll([]Promise{ok, bad, ok, bad}, 2, false)
	if err == nil || err.Error() != "bad; bad" {
		t.Errorf("error %v; want 'bad; bad'", err)
	}
	if len(outs) != 2 {
		t.Errorf("%d outputs; want 2", len(outs))
	}
}

func TestSequenceJSON(t *testing.T) {
	opRegrid := NewOpRegrid("ref.fits", regrid.NearestNeighbor)
	opRegrid.ConserveFlux, opRegrid.Threads = true, 4
	seq := NewOpSequence(NewOpLoadMany([]string{"*.fits"}), opRegrid, NewOpStats(), NewOpSave("r%d.fits"))
	b, err := json.Marshal(seq)
	if err != nil {
		t.Fatalf("marshal: %s", err.Error())
	}
	if !strings.Contains(string(b), `"method":"nearest"`) {
		t.Errorf("method not marshaled as text: %s", string(b))
	}

	var seq2 OpSequence
	if err := json.Unmarshal(b, &seq2); err != nil {
		t.Fatalf("unmarshal: %s", err.Error())
	}
	if len(seq2.Steps) != 4 {
		t.Fatalf("%d steps; want 4", len(seq2.Steps))
	}
	r, ok := seq2.Steps[1].(*OpRegrid)
	if !ok {
		t.Fatalf("step 1 is %T; want *OpRegrid", seq2.Steps[1])
	}
	if r.Reference != "ref.fits" || r.Method != regrid.NearestNeighbor || !r.ConserveFlux || r.Threads != 4 || !r.Active {
		t.Errorf("decoded %+v", r)
	}
	b2, err := json.Marshal(&seq2)
	if err != nil {
		t.Fatalf("marshal again: %s", err.Error())
	}
	if string(b) != string(b2) {
		t.Errorf("round trip changed JSON:\n%s\n%s", string(b), string(b2))
	}

	if _, err := UnmarshalOperator([]byte(`{"type":"blur"}`)); err == nil {
		t.Errorf("decoded unknown operator type")
	}
}
