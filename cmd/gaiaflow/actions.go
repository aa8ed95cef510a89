package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newActionsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the registered actions",
		Long: `List every registered action name. Names ending in a dot are namespace
prefixes: they serve every action under them that has no exact
registration, such as gaia.* routed to configured collaborators.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.newStack()
			if err != nil {
				return err
			}
			entries := st.registry.List()

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tDESCRIPTION")
			for _, e := range entries {
				kind := "action"
				if e.Prefix {
					kind = "prefix"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, kind, e.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
