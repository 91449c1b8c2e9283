package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/ironsheep/leafmask/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in pipeline as a document to start from",
		Long: `Init writes the built-in green-plant pipeline as a YAML document.

Examples:
  # Create .leafmask.yaml in the current directory
  leafmask init

  # Create the per-user document in the XDG config directory
  leafmask init --user

  # Print the document instead
  leafmask init -o -`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}
	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Output file, or - for stdout")
	cmd.Flags().Bool("user", false, "Write to $XDG_CONFIG_HOME/leafmask/pipeline.yaml")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing document")
	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	user, err := cmd.Flags().GetBool("user")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	doc := config.Default()
	if output == "-" {
		data, err := config.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if user {
		if output, err = xdg.ConfigFile(filepath.Join(config.AppName, config.UserConfigFile)); err != nil {
			return fmt.Errorf("failed to resolve the user config path: %w", err)
		}
	}
	if !force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("pipeline document already exists: %s (use -f to overwrite)", output)
		}
	}
	if err := config.SaveFile(output, doc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created pipeline document: %s\n", output)
	return nil
}
