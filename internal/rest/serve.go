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

package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/regrid/internal/ops"
)

// Creates the HTTP API router. Requests run with the limits of the given context, and stream
// their log output back to the client
func NewRouter(c *ops.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/regrid", func(g *gin.Context) { postRegrid(g, c) })
		}
	}
	return r
}

// Serves the HTTP API on the given address until the server fails
func Serve(addr string, c *ops.Context) error {
	fmt.Fprintf(c.Log, "Serving HTTP API on %s\n", addr)
	return NewRouter(c).Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type postRegridArgs struct {
	FilePatterns []string      `json:"filePatterns"`
	Reference    string        `json:"reference"`
	Regrid       *ops.OpRegrid `json:"regrid"`
	Save         string        `json:"save"`
}

// Builds the load, regrid and save sequence for the request
func (args *postRegridArgs) sequence() (*ops.OpSequence, error) {
	if len(args.FilePatterns) == 0 {
		return nil, errors.New("no file patterns given")
	}
	if args.Regrid == nil {
		args.Regrid = ops.NewOpRegridDefault()
	}
	if args.Regrid.Reference == "" {
		args.Regrid.Reference = args.Reference
	}
	if args.Regrid.Reference == "" {
		return nil, errors.New("no reference given")
	}
	if !ops.IsPathAllowed(args.Regrid.Reference) || (args.Save != "" && !ops.IsPathAllowed(args.Save)) {
		return nil, errors.New("path outside current directory tree")
	}
	args.Regrid.Active = true
	return ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns), args.Regrid, ops.NewOpSave(args.Save)), nil
}

func postRegrid(g *gin.Context, c *ops.Context) {
	args := postRegridArgs{Regrid: ops.NewOpRegridDefault()}
	if err := g.ShouldBindJSON(&args); err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seq, err := args.sequence()
	if err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := g.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)
	defer logWriter.Flush()

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	rc := *c
	rc.Log = &syncWriter{w: logWriter}
	promises, err := seq.MakePromises(nil, &rc)
	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		return
	}
	if _, err := ops.MaterializeAll(promises, rc.MaxThreads, true); err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		return
	}
	fmt.Fprintf(logWriter, "Done.\n")
}

// Serializes writes from concurrently materializing promises
type syncWriter struct {
	mutex sync.Mutex
	w     io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.w.Write(p)
}
