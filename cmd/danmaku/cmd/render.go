package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/go-drift/danmaku/pkg/config"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/raster"
)

// renderFrame returns a surface painted as the overlay looks at atMs.
//
// Playback starts from a seek shortly before atMs, far enough back that
// every comment visible at atMs has been laid out as during normal play.
func renderFrame(ds *item.Dataset, res *config.Resolved, width, height int, atMs int64, opts raster.Options) (*raster.Surface, error) {
	opts.BaseTextSize = res.BaseTextSize
	opts.TextScale = res.TextScale
	surface, err := raster.NewSurface(width, height, opts)
	if err != nil {
		return nil, err
	}

	ctrl := newController(surface, res)
	ctrl.SetData(ds.Items)

	lookback := max(res.ScrollDuration, res.FixedDuration).Milliseconds() + 1000
	from := atMs - lookback
	if from > 0 {
		ctrl.Seek(from)
	} else {
		from = 0
	}
	step := int64(1000 / res.FrameRate)
	for now := from; now < atMs; now += step {
		ctrl.Tick(now)
	}
	fs := ctrl.Tick(atMs)
	slog.Debug("frame rendered", "at", atMs, "active", fs.Active, "visible", fs.Visible)
	return surface, nil
}

func addRender(topLevel *cobra.Command) {
	var (
		at       time.Duration
		out      string
		fontPath string
	)
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render the overlay at one media position to a PNG file.",
		Example: `
danmaku render --at 1m30s --out frame.png comments.yaml
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

			var opts raster.Options
			if fontPath != "" {
				if opts.FontData, err = os.ReadFile(fontPath); err != nil {
					return fmt.Errorf("reading font: %w", err)
				}
			}
			surface, err := renderFrame(ds, res, width, height, at.Milliseconds(), opts)
			if err != nil {
				return err
			}
			defer surface.Close()

			if err := writePNG(surface, out); err != nil {
				return err
			}

			visible := 0
			for _, child := range surface.Children() {
				if child.Visible() {
					visible++
				}
			}
			_, _ = color.New(color.Bold).Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %d comments at %s)\n",
				out, width, height, visible, formatMs(at.Milliseconds()))
			return nil
		},
	}

	addLayoutFlags(cmd)
	cmd.Flags().DurationVar(&at, "at", 0, "Media position to render.")
	cmd.Flags().StringVarP(&out, "out", "o", "frame.png", "Output PNG file.")
	cmd.Flags().StringVar(&fontPath, "font", "", "TrueType or OpenType font (default Go Regular).")
	topLevel.AddCommand(cmd)
}
