package cli

import (
	"github.com/spf13/cobra"

	"github.com/leofalp/graphyte/internal/config"
	"github.com/leofalp/graphyte/internal/pipeline"
	"github.com/leofalp/graphyte/internal/visualize"
)

func newVisualizeCommand(app *App, opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visualize",
		Short: "Write the workflow graph as Graphviz and HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			return writeVisualization(cmd, cfg)
		},
	}
}

// writeVisualization needs no credentials and makes no model calls.
func writeVisualization(cmd *cobra.Command, cfg *config.Config) error {
	workflow, err := visualize.Build(pipeline.WorkflowName, pipeline.Stages())
	if err != nil {
		return err
	}
	paths, err := workflow.Write(cfg.OutputDir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		cmd.Printf("Wrote %s\n", p)
	}
	return nil
}
