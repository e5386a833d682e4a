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

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAlsoToFile(t *testing.T) {
	out := bytes.Buffer{}
	stdout = &out
	defer func() { stdout = os.Stdout }()

	fileName := filepath.Join(t.TempDir(), "regrid.log")
	if err := AlsoToFile(fileName); err != nil {
		t.Fatalf("open log: %s", err.Error())
	}
	Printf("%d: Loaded %s\n", 3, "a.fits")
	Println("done")
	if err := Sync(); err != nil {
		t.Fatalf("sync: %s", err.Error())
	}
	if err := Close(); err != nil {
		t.Fatalf("close: %s", err.Error())
	}
	Print("stdout only\n")

	want := "3: Loaded a.fits\ndone\n"
	got, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("read log: %s", err.Error())
	}
	if string(got) != want {
		t.Errorf("log file %q; want %q", string(got), want)
	}
	if out.String() != want+"stdout only\n" {
		t.Errorf("stdout %q; want %q", out.String(), want+"stdout only\n")
	}
}
