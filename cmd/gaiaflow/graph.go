package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rendis/gaiaflow/internal/diagram"
	"github.com/rendis/gaiaflow/internal/validation"
)

func newGraphCmd(_ *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <workflow.yaml>",
		Short: "Render a workflow's dependency graph",
		Long: `Render the dependency graph of a workflow. Each level of the graph is a wave
of the execution plan when every step completes.

Formats:
  mermaid  Mermaid flowchart source
  text     one line per wave
  ascii    boxes drawn with box-drawing characters

Invalid workflows are still drawn when the document can be decoded;
unknown dependencies are marked as missing.`,
		Example: `  gaiaflow graph deploy.yaml
  gaiaflow graph deploy.yaml --format text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			render, err := renderer(format)
			if err != nil {
				return err
			}

			data, err := readFile(args[0])
			if err != nil {
				return err
			}
			wf, result := validation.Load(data)
			if wf == nil {
				for _, issue := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", issue.Message)
				}
				return fmt.Errorf("%s: cannot decode workflow", args[0])
			}
			for _, issue := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: workflow is invalid: %s\n", issue.Message)
			}

			_, err = io.WriteString(cmd.OutOrStdout(), render(diagram.Build(wf, nil)))
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "output format: mermaid, text or ascii")
	return cmd
}

func renderer(format string) (func(*diagram.DiagramModel) string, error) {
	switch format {
	case "mermaid":
		return diagram.RenderMermaid, nil
	case "text":
		return diagram.RenderText, nil
	case "ascii":
		return diagram.RenderASCII, nil
	}
	return nil, fmt.Errorf("unknown graph format %q (want mermaid, text or ascii)", format)
}
