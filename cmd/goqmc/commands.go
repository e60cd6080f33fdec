/*
 * commands.go, part of goQMC.
 *
 * Copyright 2024 Raul Mera <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rmera/goqmc/archive"
	"github.com/rmera/goqmc/config"
	"github.com/rmera/goqmc/driver"
	"github.com/rmera/goqmc/metrics"
	"github.com/rmera/goqmc/models"
)

var (
	configFile  string
	ranks       int
	metricsAddr string
	plotBlocks  bool
	verbose     bool

	rootCmd = &cobra.Command{
		Use:          "goqmc",
		Short:        "Quantum Monte Carlo walker populations",
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a VMC or DMC calculation on the harmonic oscillator model",
		Args:  cobra.NoArgs,
		RunE:  runQMC,
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect [file.qta...]",
		Short: "Print the header, groups and dataset shapes of qta archives",
		Args:  cobra.MinimumNArgs(1),
		RunE:  inspect,
	}
)

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML input file; defaults are used if empty")
	runCmd.Flags().IntVarP(&ranks, "ranks", "n", 0, "number of ranks, overrides the input file")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics at this address during the run")
	runCmd.Flags().BoolVar(&plotBlocks, "plot", false, "plot the block energies at the end of the run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(runCmd, inspectCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runQMC(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	in := config.Default()
	if configFile != "" {
		var err error
		in, err = config.Load(configFile)
		if err != nil {
			return err
		}
	}
	if ranks > 0 {
		in.Ranks = ranks
	}
	if plotBlocks {
		in.Plot = true
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	M := metrics.New()
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(M.Registry, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}
	runID := uuid.NewString()
	logger.Info("starting run", "run_id", runID, "method", in.Method, "ranks", in.Ranks, "project", in.Project)
	drivers, err := driver.RunWorld(ctx, in, models.NewGaussianTrial(in.Alpha), models.NewHarmonicOscillator(), driver.Options{Logger: logger, Metrics: M, RunID: runID})
	if err != nil {
		return err
	}
	s := drivers[0].Stats()
	fmt.Printf("E = %.8f +/- %.8f  (%d blocks, correlation time %.2f)\n", s.Mean, s.Error, s.N, s.CorrTime)
	return nil
}

func inspect(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		R, err := archive.Open(name)
		if err != nil {
			return err
		}
		fmt.Println(name)
		for k, v := range R.Header() {
			fmt.Printf("  %s: %s\n", k, v)
		}
		printGroup(R, "/", 1)
	}
	return nil
}

func printGroup(R *archive.Reader, path string, depth int) {
	pad := strings.Repeat("  ", depth)
	for _, c := range R.Children(path) {
		p := strings.TrimSuffix(path, "/") + "/" + c
		switch {
		case R.HasGroup(p):
			fmt.Printf("%s%s/\n", pad, c)
			printGroup(R, p, depth+1)
		default:
			if d, err := R.Dataset(p); err == nil {
				kind := "int64"
				if d.IsFloat() {
					kind = "float64"
				}
				fmt.Printf("%s%s [%d x %d] %s\n", pad, c, d.Rows, d.Cols, kind)
				continue
			}
			if a, err := R.Attr(p); err == nil && depth > 1 {
				switch {
				case a.Ints != nil:
					fmt.Printf("%s%s = %v\n", pad, c, a.Ints)
				case a.Floats != nil:
					fmt.Printf("%s%s = %v\n", pad, c, a.Floats)
				default:
					fmt.Printf("%s%s = %q\n", pad, c, a.Str)
				}
			}
		}
	}
}
