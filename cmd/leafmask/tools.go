package main

import (
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/ironsheep/leafmask/internal/config"
	"github.com/ironsheep/leafmask/internal/tools"
)

// NewToolsCmd creates the tools command.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List stage tool kinds, or the tools of the current pipeline",
		Long: `Tools lists every stage tool kind a pipeline document can name, in stage order.

With --pipeline the tools of the discovered pipeline document are listed
instead, in execution order.`,
		Args: cobra.NoArgs,
		RunE: runToolsCmd,
	}
	cmd.Flags().BoolP("pipeline", "p", false, "List the tools of the current pipeline")
	return cmd
}

func runToolsCmd(cmd *cobra.Command, _ []string) error {
	showPipeline, err := cmd.Flags().GetBool("pipeline")
	if err != nil {
		return err
	}
	md := markdown.NewMarkdown(cmd.OutOrStdout())

	if !showPipeline {
		kinds := tools.Kinds()
		rows := make([][]string, len(kinds))
		for i, k := range kinds {
			rows[i] = []string{k.Kind, k.Stage, k.Description}
		}
		md.Table(markdown.TableSet{Header: []string{"Kind", "Stage", "Description"}, Rows: rows})
		return md.Build()
	}

	p, err := loadPipeline(cmd, setupLogger(cmd))
	if err != nil {
		return err
	}
	s := config.SettingsFrom(p.Settings())
	md.PlainTextf("merge: %s, boundary: %s", s.Merge, s.BoundaryPosition)
	md.PlainText("")

	infos := p.Tools()
	rows := make([][]string, len(infos))
	for i, t := range infos {
		enabled := "yes"
		if !t.Enabled {
			enabled = "no"
		}
		rows[i] = []string{t.ID, t.Kind, t.StageID, enabled}
	}
	md.Table(markdown.TableSet{Header: []string{"ID", "Kind", "Stage", "Enabled"}, Rows: rows})
	return md.Build()
}
