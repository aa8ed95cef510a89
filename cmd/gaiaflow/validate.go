package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/gaiaflow/internal/validation"
	"github.com/rendis/gaiaflow/pkg/schema"
)

type fileReport struct {
	File       string                   `json:"file"`
	Valid      bool                     `json:"valid"`
	WorkflowID string                   `json:"workflow_id,omitempty"`
	Steps      int                      `json:"steps"`
	Errors     []schema.ValidationIssue `json:"errors,omitempty"`
	Warnings   []schema.ValidationIssue `json:"warnings,omitempty"`
}

func newValidateCmd(_ *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate <workflow.yaml>...",
		Short: "Check workflow documents without running them",
		Long: `Check one or more workflow documents: document structure, unique step ids,
known dependencies, no dependency cycles and valid trigger configuration.
Every problem is reported, not just the first.`,
		Example: `  gaiaflow validate deploy.yaml
  gaiaflow validate workflows/*.yaml --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output format %q (want text or json)", output)
			}

			reports := make([]fileReport, 0, len(args))
			invalid := 0
			for _, path := range args {
				r := validateFile(path)
				if !r.Valid {
					invalid++
				}
				reports = append(reports, r)
			}

			var err error
			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				err = enc.Encode(reports)
			} else {
				err = writeFileReports(cmd.OutOrStdout(), reports)
			}
			if err != nil {
				return err
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d workflow(s) invalid", invalid, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func validateFile(path string) fileReport {
	r := fileReport{File: path}
	data, err := os.ReadFile(path)
	if err != nil {
		r.Errors = []schema.ValidationIssue{{
			Path:     "/",
			Code:     schema.ErrCodeNotFound,
			Message:  err.Error(),
			Severity: schema.SeverityError,
		}}
		return r
	}

	wf, result := validation.Load(data)
	r.Valid = result.Valid()
	r.Errors = result.Errors
	r.Warnings = result.Warnings
	if wf != nil {
		r.WorkflowID = wf.ID
		r.Steps = len(wf.Steps)
	}
	return r
}

func writeFileReports(w io.Writer, reports []fileReport) error {
	for _, r := range reports {
		if r.Valid {
			if _, err := fmt.Fprintf(w, "ok   %s (workflow %s, %d steps)\n", r.File, r.WorkflowID, r.Steps); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "FAIL %s\n", r.File); err != nil {
				return err
			}
			for _, issue := range r.Errors {
				fmt.Fprintf(w, "  error: %s\n", issue.Message)
			}
		}
		for _, issue := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s: %s\n", issue.Path, issue.Message)
		}
	}
	return nil
}
