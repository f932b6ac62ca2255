package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/go-drift/danmaku/pkg/engine"
	"github.com/go-drift/danmaku/pkg/raster"
)

func addPlay(topLevel *cobra.Command) {
	var (
		start time.Duration
		rate  float64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a file in real time until it ends or is interrupted.",
		Long: `Play drives the engine at the configured frame rate against the wall
clock, rendering into an off-screen image. With --debug-port the engine's
frame trace and live state are served over HTTP.`,
		Example: `
danmaku play comments.yaml
danmaku play --debug-port 9222 --start 5m danmaku.xml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			width, height, err := viewportFlags(cmd)
			if err != nil {
				return err
			}
			ds, err := loadDataset(args[0])
			if err != nil {
				return err
			}

			surface, err := raster.NewSurface(width, height, raster.Options{
				BaseTextSize: res.BaseTextSize,
				TextScale:    res.TextScale,
			})
			if err != nil {
				return err
			}
			defer surface.Close()

			ctrl := newController(surface, res)
			ctrl.SetData(ds.Items)

			opts := res.EngineOptions()
			opts.ExitWhenIdle = true
			opts.Logger = slog.Default()
			e := engine.New(ctrl, opts)
			e.Playback().SetRate(rate)
			if start > 0 {
				e.Seek(start.Milliseconds())
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			if err := e.Run(ctx); err != nil {
				return err
			}

			if out != "" {
				if err := writePNG(surface, out); err != nil {
					return err
				}
			}
			printPlaySummary(cmd, e)
			return nil
		},
	}

	addLayoutFlags(cmd)
	cmd.Flags().Int("debug-port", 0, "Serve the debug endpoints on this port (-1 for any free port).")
	cmd.Flags().DurationVar(&start, "start", 0, "Media position to start from.")
	cmd.Flags().Float64Var(&rate, "rate", 1, "Playback speed multiplier.")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the last frame to this PNG file.")
	topLevel.AddCommand(cmd)
}

func writePNG(surface *raster.Surface, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := surface.EncodePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printPlaySummary(cmd *cobra.Command, e *engine.Engine) {
	out := cmd.OutOrStdout()
	stats := e.Controller().Stats()
	timeline := e.Trace().Snapshot()

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("position", formatMs(e.Playback().Position()))
	tbl.AddRow("frames", stats.Ticks)
	tbl.AddRow("retrieved", stats.Retrieved)
	tbl.AddRow("placed", stats.Placed)
	tbl.AddRow("discarded", stats.Discarded)
	tbl.AddRow("over budget", fmt.Sprintf("%d (> %.1fms)", timeline.OverBudgetFrames, timeline.ThresholdMs))
	tbl.RightAlign(1)

	_, _ = color.New(color.Bold, color.Underline).Fprintln(out, "playback summary")
	_, _ = fmt.Fprintln(out, tbl)
}
