// Package cmd implements the danmaku CLI commands.
//
// The root command dispatches to inspect, simulate, render, play and
// version. Settings come from danmaku.yaml, DANMAKU_* environment
// variables and flags, in increasing order of precedence.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-drift/danmaku/pkg/errors"
	"github.com/go-drift/danmaku/pkg/logging"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// New returns the root command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "danmaku",
		Short: "Scrolling comment overlay engine.",
		Long: `danmaku schedules time-stamped comments into non-overlapping lanes
over a video-sized viewport.

Use "danmaku <command> --help" for more information about a command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			setupLogging(v.GetString("log-level"))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().String("config", "", `Config file (default "./danmaku.yaml" if present).`)
	cmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error.")

	AddCommands(cmd)
	return cmd
}

// AddCommands registers every subcommand on topLevel.
func AddCommands(topLevel *cobra.Command) {
	addInspect(topLevel)
	addSimulate(topLevel)
	addRender(topLevel)
	addPlay(topLevel)
	addVersion(topLevel)
}

func setupLogging(levelName string) {
	level := logging.ParseLevel(levelName)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	errors.SetHandler(&errors.LogHandler{Logger: logger, Verbose: level <= slog.LevelDebug})
}
