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
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Process-wide log writer. Writes to stdout, and optionally to a file.
// Does not add prefixes, or force newlines.

var (
	mutex     sync.Mutex
	stdout    io.Writer = os.Stdout
	logFile   *bufio.Writer // The optional additional file to log into
	logFileOS *os.File
)

// Enables logging to the given file, closing any previous log file
func AlsoToFile(fileName string) error {
	mutex.Lock()
	defer mutex.Unlock()
	if err := closeFile(); err != nil {
		return err
	}
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	logFileOS, logFile = f, bufio.NewWriter(f)
	return nil
}

func closeFile() error {
	if logFile == nil {
		return nil
	}
	if err := logFile.Flush(); err != nil {
		return err
	}
	err := logFileOS.Close()
	logFile, logFileOS = nil, nil
	return err
}

type teeWriter struct{}

func (teeWriter) Write(p []byte) (n int, err error) {
	mutex.Lock()
	defer mutex.Unlock()
	n, err = stdout.Write(p)
	if err != nil || logFile == nil {
		return n, err
	}
	return logFile.Write(p)
}

// Returns a writer to stdout and the log file, if any. Safe for concurrent use
func Writer() io.Writer { return teeWriter{} }

func Print(args ...interface{}) (n int, err error) {
	return fmt.Fprint(Writer(), args...)
}

func Println(args ...interface{}) (n int, err error) {
	return fmt.Fprintln(Writer(), args...)
}

func Printf(format string, args ...interface{}) (n int, err error) {
	return fmt.Fprintf(Writer(), format, args...)
}

// Logs the message, closes the log file and exits with status 1
func Fatalf(format string, args ...interface{}) {
	Printf(format, args...)
	Close()
	os.Exit(1)
}

// Flushes the log file to disk
func Sync() error {
	mutex.Lock()
	defer mutex.Unlock()
	if logFile == nil {
		return nil
	}
	if err := logFile.Flush(); err != nil {
		return err
	}
	return logFileOS.Sync()
}

// Flushes and closes the log file, if any. Further output goes to stdout only
func Close() error {
	mutex.Lock()
	defer mutex.Unlock()
	return closeFile()
}
