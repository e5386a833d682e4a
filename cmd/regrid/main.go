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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/mlnoga/regrid/internal/logging"
	"github.com/mlnoga/regrid/internal/ops"
	"github.com/mlnoga/regrid/internal/regrid"
	"github.com/mlnoga/regrid/internal/rest"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

const banner = `Regrid Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Run "regrid legal" for details.
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Fatalf("Error: %s\n", err.Error())
	}
	logging.Close()
}

func newRootCmd() *cobra.Command {
	var (
		logFile    string
		cpuProfile string
		start      time.Time
		profile    *os.File
	)

	rootCmd := &cobra.Command{
		Use:   "regrid",
		Short: "Regrid resamples astronomical images onto the pixel grid of a reference",
		Long: `Regrid projects each destination pixel into the pixel space of the source image using
the world coordinate systems from the FITS headers, and combines the overlapping source
pixels by exact area weighting (drizzle) or nearest neighbour sampling.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			start = time.Now()
			if logFile != "" {
				if err := logging.AlsoToFile(logFile); err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
			}
			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return fmt.Errorf("creating CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(f); err != nil {
					f.Close()
					return fmt.Errorf("starting CPU profile: %w", err)
				}
				profile = f
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if profile != nil {
				pprof.StopCPUProfile()
				profile.Close()
			}
			if cmd.Name() == "run" || cmd.Name() == "job" {
				logging.Printf("Done after %v\n", time.Since(start))
			}
		},
	}
	rootCmd.SetOut(logging.Writer())
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "also save log output to `file`")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write cpu profile to `file`")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newJobCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLegalCmd())
	return rootCmd
}

func newContext() *ops.Context {
	c := ops.NewContext(logging.Writer())
	c.LogSummary()
	return c
}

// Materializes all promises of the sequence, one image per thread
func runSequence(seq *ops.OpSequence, c *ops.Context) error {
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

func newRunCmd() *cobra.Command {
	var (
		ref          string
		method       string
		conserveFlux bool
		progress     bool
		threads      int
		out          string
		jpg          string
		tiff         string
		dump         bool
	)

	cmd := &cobra.Command{
		Use:   "run --ref <reference.fits> <source patterns>...",
		Short: "Regrid source images onto the pixel grid of a reference image",
		Long: `Regrid all source images matching the given patterns onto the pixel grid described by
the world coordinate system of the reference image. Output file patterns may contain %d,
which is replaced by the sequence number of the source image.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := regrid.ParseMethod(method)
			if err != nil {
				return err
			}
			opRegrid := ops.NewOpRegrid(ref, m)
			opRegrid.ConserveFlux = conserveFlux
			opRegrid.Progress = progress
			opRegrid.Threads = threads
			seq := ops.NewOpSequence(ops.NewOpLoadMany(args), opRegrid,
				ops.NewOpSave(out), ops.NewOpSave(jpg), ops.NewOpSave(tiff))
			if dump {
				b, err := json.MarshalIndent(seq, "", "  ")
				if err != nil {
					return err
				}
				logging.Printf("%s\n", string(b))
				return nil
			}

			c := newContext()
			promises, err := seq.MakePromises(nil, c)
			if err != nil {
				return err
			}
			if threads == 0 { // parallelize within the image if there is only one
				opRegrid.Threads = 1
				if len(promises) == 1 {
					opRegrid.Threads = c.MaxThreads
				}
			}
			_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
			return err
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "reference FITS `file` defining the destination pixel grid")
	cmd.Flags().StringVar(&method, "method", "drizzle", "resampling method, drizzle or nearest")
	cmd.Flags().BoolVar(&conserveFlux, "conserve-flux", false, "nearest neighbour: scale values by the projected pixel area")
	cmd.Flags().BoolVar(&progress, "progress", false, "log progress for each image")
	cmd.Flags().IntVar(&threads, "threads", 0, "threads per image, 0=all threads for a single image, else 1")
	cmd.Flags().StringVar(&out, "out", "regrid%d.fits", "save regridded images as FITS with given filename `pattern`")
	cmd.Flags().StringVar(&jpg, "jpg", "", "save 8-bit JPEG previews with given filename `pattern`")
	cmd.Flags().StringVar(&tiff, "tiff", "", "save 16-bit TIFF previews with given filename `pattern`")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the job as JSON instead of running it")
	cmd.MarkFlagRequired("ref")
	return cmd
}

func newJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <job.json>",
		Short: "Run an operator sequence from a JSON file, as printed by run --dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var seq ops.OpSequence
			if err := json.Unmarshal(b, &seq); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			return runSequence(&seq, newContext())
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <patterns>...",
		Short: "Show statistics for the given FITS images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequence(ops.NewOpSequence(ops.NewOpLoadMany(args), ops.NewOpStats()), newContext())
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		addr   string
		chroot string
		setuid int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rest.MakeSandbox(logging.Writer(), chroot, setuid); err != nil {
				return err
			}
			return rest.Serve(addr, newContext())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen on `address`")
	cmd.Flags().StringVar(&chroot, "chroot", "", "change filesystem root to `dir` before serving (requires root)")
	cmd.Flags().IntVar(&setuid, "setuid", -1, "change user id before serving, -1=keep")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logging.Printf("Regrid %s\n%s", version, banner)
		},
	}
}

func newLegalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "legal",
		Short: "Show license and attribution information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logging.Print(legal)
		},
	}
}
