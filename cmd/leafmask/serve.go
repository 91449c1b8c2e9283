package main

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/leafmask/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over MCP on stdin/stdout",
		Long: `Serve starts an MCP (Model Context Protocol) server on stdin and stdout.

The client can inspect and edit the pipeline, run it on images and clean
masks. Tool results are cached between runs, so re-running an image after
an edit only processes the tools affected by it.

Configure it in your MCP client as a command server:
  leafmask serve -c /path/to/pipeline.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := setupLogger(cmd)
			p, err := loadPipeline(cmd, logger)
			if err != nil {
				return err
			}
			logger.Debug("starting server", "version", getVersion(), "commit", getCommit())
			srv := server.New(p, server.WithLogger(logger), server.WithVersion(getVersion()))
			return srv.Serve(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
