package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// logLevelEnv selects the log level when --verbose is not given.
const logLevelEnv = "LEAFMASK_LOG_LEVEL"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leafmask",
		Short: "Plant segmentation and measurement pipeline",
		Long: `leafmask turns plant photographs into clean object masks and measures them.

Each image goes through a pipeline of stage tools: exposure fix, filtering,
regions of interest, thresholding, mask cleanup, feature extraction and
image generation. The pipeline is described by a YAML document; without one
a built-in pipeline for green plants is used.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Pipeline document (default: .leafmask.yaml, then $XDG_CONFIG_HOME/leafmask/pipeline.yaml)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewToolsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger builds a text logger on stderr. stdout carries reports and the
// JSON-RPC stream.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	} else if v := os.Getenv(logLevelEnv); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.ToUpper(v))); err == nil {
			level = l
		}
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
