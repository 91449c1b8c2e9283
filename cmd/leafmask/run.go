package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/leafmask/internal/batch"
	"github.com/ironsheep/leafmask/internal/config"
	"github.com/ironsheep/leafmask/internal/pipeline"
	"github.com/ironsheep/leafmask/internal/report"
)

// errImagesFailed is returned when at least one image failed, after the
// report was written.
var errImagesFailed = errors.New("some images failed")

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <image-or-directory>...",
		Short: "Run the pipeline over images",
		Long: `Run processes every image through the pipeline and writes a summary report.

Directories are searched recursively for PNG, JPEG and GIF files. Each image
succeeds or fails on its own; failed images are listed with their error but
left out of the feature table.

Examples:
  # Markdown summary of a tray of photographs
  leafmask run photos/tray1

  # JSON report to a file, generated images to a directory
  leafmask run --format json -o report.json --images out/ photos/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRunCmd,
	}

	cmd.Flags().StringP("format", "f", "markdown", "Report format: markdown or json")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().String("images", "", "Write generated images to this directory")
	cmd.Flags().IntP("jobs", "j", 0, fmt.Sprintf("Images processed concurrently (default: CPU count, max %d)", batch.MaxConcurrency))

	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "markdown" && format != "json" {
		return fmt.Errorf("unsupported report format: %s", format)
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	imagesDir, err := cmd.Flags().GetString("images")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	p, err := loadPipeline(cmd, logger)
	if err != nil {
		return err
	}

	paths, err := batch.CollectImages(args)
	if err != nil {
		return fmt.Errorf("failed to collect images: %w", err)
	}
	if len(paths) == 0 {
		return errors.New("no images found")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := batch.New(p, batch.WithLogger(logger), batch.WithConcurrency(jobs)).Run(ctx, paths)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if imagesDir != "" {
		written, err := report.SaveImages(imagesDir, summary.Outcomes)
		if err != nil {
			return err
		}
		logger.Info("images written", "dir", imagesDir, "count", len(written))
	}

	if err := writeReport(cmd.OutOrStdout(), output, format, summary); err != nil {
		return err
	}

	switch {
	case runErr != nil:
		return fmt.Errorf("run interrupted: %w", runErr)
	case summary.Failed > 0:
		return fmt.Errorf("%w: %d of %d", errImagesFailed, summary.Failed, summary.Total)
	}
	return nil
}

// loadPipeline builds the pipeline from the discovered document.
func loadPipeline(cmd *cobra.Command, logger *slog.Logger) (*pipeline.Pipeline, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	doc, path, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if path == "" {
		logger.Info("no pipeline document found, using the built-in pipeline")
	} else {
		logger.Info("pipeline document loaded", "path", path)
	}

	p, err := config.Build(doc, pipeline.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return p, nil
}

// writeReport writes the summary to the output file, or stdout when none
// is given.
func writeReport(stdout io.Writer, output, format string, s *batch.Summary) error {
	w := stdout
	if output != "" {
		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	var rw report.Writer
	switch format {
	case "json":
		rw = report.NewJSONWriter(w, report.WithPrettyPrint())
	default:
		rw = report.NewMarkdownWriter(w)
	}
	if _, err := rw.Write(s); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
