package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/internal/report"
	"github.com/rendis/gaiaflow/internal/validation"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// errExecutionFailed is returned after the report of a failed execution has
// been printed, so main can exit non-zero without repeating it.
var errExecutionFailed = errors.New("execution failed")

func newRunCmd(a *app) *cobra.Command {
	var (
		vars   []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Validate and execute a workflow",
		Long: `Validate a workflow document and execute it, printing the execution report.

Variables given with --var overlay the workflow's own variables. Values are
read as YAML scalars, so --var count=3 sets a number and --var dry=true a
boolean.

The command exits with status 2 when the execution fails.`,
		Example: `  # Run a workflow
  gaiaflow run deploy.yaml

  # Override variables and emit JSON
  gaiaflow run deploy.yaml --var env=prod --var replicas=3 --output json

  # Bound the run
  gaiaflow run deploy.yaml --timeout 5m --max-concurrency 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output format %q (want text or json)", output)
			}
			variables, err := parseVars(vars)
			if err != nil {
				return err
			}
			wf, err := loadWorkflow(cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}

			st, err := a.newStack()
			if err != nil {
				return err
			}
			exec, err := st.executor.Execute(cmd.Context(), wf, engine.RunOptions{Variables: variables})
			if err != nil {
				return err
			}

			if output == "json" {
				err = report.WriteJSON(cmd.OutOrStdout(), exec)
			} else {
				err = report.WriteText(cmd.OutOrStdout(), exec)
			}
			if err != nil {
				return err
			}
			if !exec.Succeeded() {
				return errExecutionFailed
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "set a variable as key=value (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

// loadWorkflow reads and validates the document at path. Validation errors
// and warnings are written to w.
func loadWorkflow(w io.Writer, path string) (*schema.Workflow, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	wf, result := validation.Load(data)
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", warn.Path, warn.Message)
	}
	if !result.Valid() {
		for _, issue := range result.Errors {
			fmt.Fprintf(w, "error: %s\n", issue.Message)
		}
		return nil, fmt.Errorf("%s: %d validation error(s)", path, len(result.Errors))
	}
	return wf, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// parseVars turns key=value pairs into variables, decoding each value as a
// YAML scalar.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q (want key=value)", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		if _, isMap := value.(map[string]any); isMap {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}
