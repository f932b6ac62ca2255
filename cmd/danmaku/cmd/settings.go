package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-drift/danmaku/pkg/config"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/locator"
	"github.com/go-drift/danmaku/pkg/overlay"
)

// newViper layers DANMAKU_* environment variables over cmd's flags.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("DANMAKU")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

// loadSettings finds the config file, applies environment and flag
// overrides and resolves the result.
func loadSettings(cmd *cobra.Command) (*config.Resolved, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}

	if path := v.GetString("config"); path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
	} else {
		v.SetConfigName("danmaku")
		v.SetConfigType("yaml")
		if override := os.Getenv("DANMAKU_CONFIG_PATH"); override != "" {
			v.AddConfigPath(override)
		}
		v.AddConfigPath("./")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "danmaku"))
		}
	}

	cfg := config.Default()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		// viper only locates the file; config.Load rejects unknown keys.
		if cfg, err = config.Load(v.ConfigFileUsed()); err != nil {
			return nil, err
		}
		slog.Debug("config loaded", "file", v.ConfigFileUsed())
	}

	applyOverrides(cfg, v)
	return cfg.Resolve()
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if v.IsSet("fps") {
		cfg.Engine.FrameRate = v.GetInt("fps")
	}
	if v.IsSet("debug-port") {
		cfg.Engine.DebugServerPort = v.GetInt("debug-port")
	}
	if v.IsSet("text-scale") {
		cfg.Overlay.TextScale = v.GetFloat64("text-scale")
	}
	if v.IsSet("max-lanes") {
		cfg.Overlay.MaxLanes = v.GetInt("max-lanes")
	}
	if v.IsSet("scroll-duration") {
		cfg.Overlay.ScrollDuration = config.Duration(v.GetDuration("scroll-duration"))
	}
}

func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().Int("width", 1280, "Viewport width in pixels.")
	cmd.Flags().Int("height", 720, "Viewport height in pixels.")
	cmd.Flags().Int("fps", 0, "Frames per second (default from config, 60).")
	cmd.Flags().Float64("text-scale", 0, "User text scale applied to every comment.")
	cmd.Flags().Int("max-lanes", 0, "Cap on scroll lanes (0 for no cap).")
	cmd.Flags().Duration("scroll-duration", 0, "Time a scrolling comment takes to cross the screen.")
}

func viewportFlags(cmd *cobra.Command) (width, height int, err error) {
	width, _ = cmd.Flags().GetInt("width")
	height, _ = cmd.Flags().GetInt("height")
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport %dx%d", width, height)
	}
	return width, height, nil
}

// loadDataset loads a comment file. Avatar failures are logged, not fatal.
func loadDataset(path string) (*item.Dataset, error) {
	ds, err := item.LoadFile(path)
	if ds == nil {
		return nil, err
	}
	if err != nil {
		slog.Warn("some avatars could not be loaded", "file", path, "err", err)
	}
	if ds.Skipped > 0 {
		slog.Warn("skipped malformed comments", "file", path, "count", ds.Skipped)
	}
	slog.Info("dataset loaded", "file", path, "items", len(ds.Items), "version", ds.Version)
	return ds, nil
}

func newController(surface overlay.Surface, res *config.Resolved) *overlay.Controller {
	return overlay.New(surface, overlay.Options{
		Locator:        locator.New(res.Locator),
		ScrollDuration: res.ScrollDuration,
		FixedDuration:  res.FixedDuration,
		Logger:         slog.Default(),
	})
}
