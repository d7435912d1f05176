package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/yinchi/digital-hospitals/internal/analysis"
	"github.com/yinchi/digital-hospitals/internal/analysis/grid"
	"github.com/yinchi/digital-hospitals/internal/analysis/runner"
	"github.com/yinchi/digital-hospitals/internal/config"
	"github.com/yinchi/digital-hospitals/internal/graph"
	"github.com/yinchi/digital-hospitals/internal/ingest"
	"github.com/yinchi/digital-hospitals/internal/middleware"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "runnertimes",
		Short:        "Door-to-door runner times for hospital floor plans",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(computeCmd())
	rootCmd.AddCommand(pathCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

// geometryFlags are shared by the commands that run searches
type geometryFlags struct {
	gridSize       float64
	runnerSpeed    float64
	workers        int
	maxCells       int
	elevationScale float64
}

func (f *geometryFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.gridSize, "grid-size", 0, "grid cell size in meters (default from request or 0.5)")
	cmd.Flags().Float64Var(&f.runnerSpeed, "runner-speed", 0, "runner speed in m/s (default from request or 1.2)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "concurrent searches per floor (default NumCPU)")
	cmd.Flags().IntVar(&f.maxCells, "max-cells", grid.DefaultMaxCells, "cell limit of one floor grid")
	cmd.Flags().Float64Var(&f.elevationScale, "elevation-scale", 1, "factor converting elevations to meters")
}

func (f *geometryFlags) options() runner.Options {
	opts := runner.DefaultOptions()
	if f.gridSize != 0 {
		opts.GridSize = f.gridSize
	}
	if f.runnerSpeed != 0 {
		opts.RunnerSpeed = f.runnerSpeed
	}
	opts.Workers = f.workers
	opts.MaxCells = f.maxCells
	return opts
}

func computeCmd() *cobra.Command {
	var (
		geo      geometryFlags
		out      string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "compute [building-file] [request-file]",
		Short: "Compute the logical graph of runner times and print it as node-link JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(cmd, args[0], args[1], &geo, out, progress)
		},
	}

	geo.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&progress, "progress", false, "report progress on stderr")
	return cmd
}

func runCompute(cmd *cobra.Command, buildingPath, requestPath string, geo *geometryFlags, out string, progress bool) error {
	building, err := ingest.Load(buildingPath, ingest.Options{ElevationScale: geo.elevationScale})
	if err != nil {
		return err
	}
	req, err := ingest.LoadRequest(requestPath)
	if err != nil {
		return err
	}

	// command line flags take precedence over the request file
	if geo.gridSize != 0 {
		req.GridSize = 0
	}
	if geo.runnerSpeed != 0 {
		req.RunnerSpeed = 0
	}
	opts := geo.options()
	if progress {
		opts.Progress = func(p analysis.Progress) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%5.1f%% %d/%d pairs, %d unreachable\n", p.Percent, p.Processed, p.Total, p.Unreachable)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := runner.Compute(ctx, building, *req, opts)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}

	return writeJSON(cmd.OutOrStdout(), out, res.Graph)
}

func pathCmd() *cobra.Command {
	var (
		geo      geometryFlags
		floor    string
		from, to string
		simplify float64
		out      string
	)

	cmd := &cobra.Command{
		Use:   "path [building-file]",
		Short: "Compute the route between two doors and print it as GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			building, err := ingest.Load(args[0], ingest.Options{ElevationScale: geo.elevationScale})
			if err != nil {
				return err
			}
			res, err := runner.Path(cmd.Context(), building, floor, from, to, geo.options())
			if err != nil {
				return err
			}
			if !res.Outcome.Found {
				fmt.Fprintf(cmd.ErrOrStderr(), "no path from %s to %s on floor %s\n", from, to, floor)
			}
			return writeJSON(cmd.OutOrStdout(), out, graph.PathCollection(graph.PathInput{
				Floor:       res.Floor,
				From:        res.From,
				To:          res.To,
				Points:      res.Outcome.Path,
				Length:      res.Outcome.Length,
				RunnerTime:  res.RunnerTime,
				Found:       res.Outcome.Found,
				SimplifyTol: simplify,
			}))
		},
	}

	geo.register(cmd)
	cmd.Flags().StringVar(&floor, "floor", "", "floor ID")
	cmd.Flags().StringVar(&from, "from", "", "source door")
	cmd.Flags().StringVar(&to, "to", "", "target door")
	cmd.Flags().Float64Var(&simplify, "simplify", 0, "Douglas-Peucker tolerance in meters, 0 keeps every cell")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	for _, name := range []string{"floor", "from", "to"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken(cfg.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, recorded as the submitter of tasks")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// writeJSON writes v to the file at path, or to w when path is empty
func writeJSON(w io.Writer, path string, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
