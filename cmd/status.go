package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/job-progress-tracker/pkg/client"
)

func newStatusCmd(cli *cliContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status JOB_ID...",
		Short: "Show the current progress of one or more jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cli.client()
			rows := make([]client.Progress, 0, len(args))
			for _, jobID := range args {
				p, err := c.Get(cmd.Context(), jobID)
				if err != nil {
					return fmt.Errorf("status %s: %w", jobID, err)
				}
				rows = append(rows, p)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(rows); err != nil {
					return fmt.Errorf("encode status: %w", err)
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProgressTable(rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
