package cmd

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/go-drift/danmaku/pkg/config"
	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/overlay"
	dtesting "github.com/go-drift/danmaku/pkg/testing"
)

// secondStats aggregates the frames of one second of media time.
type secondStats struct {
	Second     int64
	Retrieved  int
	Placed     int
	Discarded  int
	PeakActive int
}

// simulation is the result of a headless run.
type simulation struct {
	Seconds []secondStats
	Frames  int
	EndMs   int64
	Totals  overlay.Stats
}

// simulate ticks a controller over a recording surface at res.FrameRate
// until untilMs, or until every comment has left the screen when untilMs
// is zero. Glyphs are approximated as squares of the font size.
func simulate(ds *item.Dataset, res *config.Resolved, width, height int, untilMs int64) simulation {
	surface := dtesting.NewRecordingSurface(graphics.Size{Width: float64(width), Height: float64(height)})
	px := res.BaseTextSize * res.TextScale
	surface.CharWidth = px
	surface.LineHeight = px * 1.2

	ctrl := newController(surface, res)
	ctrl.SetData(ds.Items)

	limit := untilMs
	if limit <= 0 {
		var last int64
		for _, it := range ds.Items {
			last = max(last, it.TimeMs)
		}
		// Guard against a comment that never leaves.
		limit = last + 2*max(res.ScrollDuration, res.FixedDuration).Milliseconds()
	}

	var sim simulation
	for frame := int64(0); ; frame++ {
		now := frame * 1000 / int64(res.FrameRate)
		if now > limit {
			break
		}
		fs := ctrl.Tick(now)
		sim.Frames++
		sim.EndMs = now

		sec := now / 1000
		if len(sim.Seconds) == 0 || sim.Seconds[len(sim.Seconds)-1].Second != sec {
			sim.Seconds = append(sim.Seconds, secondStats{Second: sec})
		}
		s := &sim.Seconds[len(sim.Seconds)-1]
		s.Retrieved += fs.Retrieved
		s.Placed += fs.Placed
		s.Discarded += fs.Discarded
		s.PeakActive = max(s.PeakActive, fs.Active)

		if untilMs <= 0 && now > 0 && ctrl.Resolver().Remaining() == 0 && ctrl.ActiveCount() == 0 {
			break
		}
	}
	sim.Totals = ctrl.Stats()
	return sim
}

func addSimulate(topLevel *cobra.Command) {
	var (
		until   time.Duration
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Run a file headlessly and report placement statistics.",
		Example: `
danmaku simulate comments.yaml
danmaku simulate --width 1920 --height 1080 --until 2m danmaku.xml
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

			sim := simulate(ds, res, width, height, until.Milliseconds())
			printSimulation(cmd.OutOrStdout(), sim, verbose)
			return nil
		},
	}

	addLayoutFlags(cmd)
	cmd.Flags().DurationVar(&until, "until", 0, "Stop at this media time (default: when the screen empties).")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include seconds without activity.")
	topLevel.AddCommand(cmd)
}

func printSimulation(out io.Writer, sim simulation, verbose bool) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgHiYellow)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("SECOND"), bold.Sprint("RETRIEVED"), bold.Sprint("PLACED"), bold.Sprint("DISCARDED"), bold.Sprint("PEAK"))
	for _, s := range sim.Seconds {
		if !verbose && s.Retrieved == 0 && s.Placed == 0 && s.Discarded == 0 {
			continue
		}
		discarded := fmt.Sprint(s.Discarded)
		if s.Discarded > 0 {
			discarded = warn.Sprint(s.Discarded)
		}
		tbl.AddRow(s.Second, s.Retrieved, s.Placed, discarded, s.PeakActive)
	}
	for col := range 5 {
		tbl.RightAlign(col)
	}
	_, _ = fmt.Fprintln(out, tbl)

	peak := 0
	if len(sim.Seconds) > 0 {
		peak = slices.MaxFunc(sim.Seconds, func(a, b secondStats) int { return a.PeakActive - b.PeakActive }).PeakActive
	}
	_, _ = bold.Fprintf(out, "%d frames to %s: %d retrieved, %d placed, %d discarded, peak %d on screen\n",
		sim.Frames, formatMs(sim.EndMs), sim.Totals.Retrieved, sim.Totals.Placed, sim.Totals.Discarded, peak)
}
