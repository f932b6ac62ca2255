// Package config loads the optional danmaku.yaml file and resolves it into
// engine, locator and renderer settings.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/danmaku/pkg/engine"
	"github.com/go-drift/danmaku/pkg/errors"
	"github.com/go-drift/danmaku/pkg/locator"
	"github.com/go-drift/danmaku/pkg/overlay"
)

const (
	// FileName is the config file LoadOptional looks for.
	FileName = "danmaku.yaml"
	// CurrentVersion is the config schema version written by this release.
	CurrentVersion = "v1.0.0"

	// DefaultBaseTextSize is the font size in pixels for TextScale 1.
	DefaultBaseTextSize = 25.0
	maxFrameRate        = 240
)

// Config represents danmaku.yaml.
type Config struct {
	Version string        `yaml:"version,omitempty"`
	Overlay OverlayConfig `yaml:"overlay"`
	Engine  EngineConfig  `yaml:"engine"`
}

// OverlayConfig contains layout and timing settings.
type OverlayConfig struct {
	ScrollDuration Duration `yaml:"scrollDuration,omitempty"`
	FixedDuration  Duration `yaml:"fixedDuration,omitempty"`
	LaneHeight     float64  `yaml:"laneHeight,omitempty"`
	MaxLanes       int      `yaml:"maxLanes,omitempty"`
	SafetyGap      *float64 `yaml:"safetyGap,omitempty"`
	ScrollArea     float64  `yaml:"scrollArea,omitempty"`
	FixedArea      float64  `yaml:"fixedArea,omitempty"`
	BaseTextSize   float64  `yaml:"baseTextSize,omitempty"`
	TextScale      float64  `yaml:"textScale,omitempty"`
}

// EngineConfig contains frame driver settings.
type EngineConfig struct {
	FrameRate         int `yaml:"frameRate,omitempty"`
	DebugServerPort   int `yaml:"debugServerPort,omitempty"`
	FrameTraceSamples int `yaml:"frameTraceSamples,omitempty"`
}

// Duration is a time.Duration that decodes from "5s" style strings or from
// a bare number of milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		var ms int64
		if err := node.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Resolved contains validated configuration with defaults applied.
type Resolved struct {
	Version         string
	ScrollDuration  time.Duration
	FixedDuration   time.Duration
	Locator         locator.Options
	BaseTextSize    float64
	TextScale       float64
	FrameRate       int
	DebugServerPort int
	TraceSamples    int
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{Version: CurrentVersion}
}

// LoadOptional reads danmaku.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		var derr *errors.DanmakuError
		if stderrors.As(err, &derr) && derr.Kind == errors.KindIO && stderrors.Is(derr.Err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.DanmakuError{Op: "config.Load", Kind: errors.KindIO, Source: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		var derr *errors.DanmakuError
		if stderrors.As(err, &derr) {
			derr.Source = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a config document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, &errors.DanmakuError{Op: "config.Parse", Kind: errors.KindConfig, Err: err}
	}
	return cfg, nil
}

// Resolve validates the config and fills defaults.
func (c *Config) Resolve() (*Resolved, error) {
	if err := c.validate(); err != nil {
		return nil, &errors.DanmakuError{Op: "config.Resolve", Kind: errors.KindConfig, Err: err}
	}

	version := strings.TrimSpace(c.Version)
	if version == "" {
		version = CurrentVersion
	} else if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}

	lo := locator.DefaultOptions()
	if c.Overlay.LaneHeight > 0 {
		lo.LaneHeight = c.Overlay.LaneHeight
	}
	lo.MaxLanes = c.Overlay.MaxLanes
	if c.Overlay.SafetyGap != nil {
		lo.SafetyGap = *c.Overlay.SafetyGap
	}
	if c.Overlay.ScrollArea > 0 {
		lo.ScrollArea = c.Overlay.ScrollArea
	}
	if c.Overlay.FixedArea > 0 {
		lo.FixedArea = c.Overlay.FixedArea
	}

	r := &Resolved{
		Version:         version,
		ScrollDuration:  orDuration(c.Overlay.ScrollDuration, overlay.DefaultScrollDuration),
		FixedDuration:   orDuration(c.Overlay.FixedDuration, overlay.DefaultFixedDuration),
		Locator:         lo,
		BaseTextSize:    orFloat(c.Overlay.BaseTextSize, DefaultBaseTextSize),
		TextScale:       orFloat(c.Overlay.TextScale, 1),
		FrameRate:       c.Engine.FrameRate,
		DebugServerPort: c.Engine.DebugServerPort,
		TraceSamples:    c.Engine.FrameTraceSamples,
	}
	if r.FrameRate == 0 {
		r.FrameRate = engine.DefaultFrameRate
	}
	return r, nil
}

func (c *Config) validate() error {
	var errs []error
	if v := strings.TrimSpace(c.Version); v != "" {
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		switch {
		case !semver.IsValid(v):
			errs = append(errs, fmt.Errorf("invalid version %q", c.Version))
		case semver.Major(v) != semver.Major(CurrentVersion):
			errs = append(errs, fmt.Errorf("unsupported version %s (want %s.x.y)", v, semver.Major(CurrentVersion)))
		}
	}

	o := c.Overlay
	if o.ScrollDuration < 0 || o.FixedDuration < 0 {
		errs = append(errs, fmt.Errorf("overlay durations must not be negative"))
	}
	if o.LaneHeight < 0 {
		errs = append(errs, fmt.Errorf("overlay.laneHeight must not be negative (got %v)", o.LaneHeight))
	}
	if o.MaxLanes < 0 {
		errs = append(errs, fmt.Errorf("overlay.maxLanes must not be negative (got %d)", o.MaxLanes))
	}
	if o.SafetyGap != nil && *o.SafetyGap < 0 {
		errs = append(errs, fmt.Errorf("overlay.safetyGap must not be negative (got %v)", *o.SafetyGap))
	}
	if o.ScrollArea < 0 || o.ScrollArea > 1 {
		errs = append(errs, fmt.Errorf("overlay.scrollArea must be within (0, 1] (got %v)", o.ScrollArea))
	}
	if o.FixedArea < 0 || o.FixedArea > 1 {
		errs = append(errs, fmt.Errorf("overlay.fixedArea must be within (0, 1] (got %v)", o.FixedArea))
	}
	if o.BaseTextSize < 0 || o.TextScale < 0 {
		errs = append(errs, fmt.Errorf("overlay text sizes must not be negative"))
	}

	e := c.Engine
	if e.FrameRate < 0 || e.FrameRate > maxFrameRate {
		errs = append(errs, fmt.Errorf("engine.frameRate must be within [1, %d] (got %d)", maxFrameRate, e.FrameRate))
	}
	if e.DebugServerPort < -1 || e.DebugServerPort > 65535 {
		errs = append(errs, fmt.Errorf("engine.debugServerPort out of range (got %d)", e.DebugServerPort))
	}
	if e.FrameTraceSamples < 0 {
		errs = append(errs, fmt.Errorf("engine.frameTraceSamples must not be negative (got %d)", e.FrameTraceSamples))
	}
	return stderrors.Join(errs...)
}

// EngineOptions returns engine options for the resolved settings.
func (r *Resolved) EngineOptions() engine.Options {
	return engine.Options{
		FrameRate:       r.FrameRate,
		TraceSamples:    r.TraceSamples,
		DebugServerPort: r.DebugServerPort,
	}
}

func orDuration(d Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return time.Duration(d)
}

func orFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
