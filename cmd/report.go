package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/job-progress-tracker/pkg/client"
)

func newReportCmd(cli *cliContext) *cobra.Command {
	var (
		total     int
		completed int
		status    string
		errMsg    string
	)
	cmd := &cobra.Command{
		Use:   "report [JOB_ID]",
		Short: "Report progress for a job, creating it if needed",
		Long: `report sends a partial update. Without a JOB_ID a new time-ordered ID is
generated and printed. --completed is applied after the other fields.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cli.client()
			flags := cmd.Flags()

			var jobID string
			if len(args) == 1 {
				jobID = args[0]
			} else {
				id, err := c.NewJobID()
				if err != nil {
					return err
				}
				jobID = id
			}

			req := client.Report{JobID: jobID}
			if flags.Changed("total") {
				req.Total = &total
			}
			if flags.Changed("status") {
				req.Status = &status
			}
			if flags.Changed("error") {
				req.Error = &errMsg
			}

			var (
				p   client.Progress
				err error
			)
			sendReport := req.Total != nil || req.Status != nil || req.Error != nil || !flags.Changed("completed")
			if sendReport {
				if p, err = c.Report(cmd.Context(), req); err != nil {
					return fmt.Errorf("report %s: %w", jobID, err)
				}
			}
			if flags.Changed("completed") {
				if p, err = c.UpdateCompleted(cmd.Context(), jobID, completed); err != nil {
					return fmt.Errorf("update %s: %w", jobID, err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), progressLine(p))
			return nil
		},
	}
	cmd.Flags().IntVar(&total, "total", 0, "total units of work")
	cmd.Flags().IntVar(&completed, "completed", 0, "units of work completed")
	cmd.Flags().StringVar(&status, "status", "", "processing, completed or error")
	cmd.Flags().StringVar(&errMsg, "error", "", "error message for a failed job")
	return cmd
}
