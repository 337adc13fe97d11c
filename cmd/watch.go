package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/job-progress-tracker/pkg/client"
)

func newWatchCmd(cli *cliContext) *cobra.Command {
	var (
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Poll a job until it completes or fails",
		Long: `watch polls the tracker until the job reaches a terminal status. It exits
non-zero when the job ends in error, disappears, or the timeout elapses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = cli.pollInterval()
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			out := cmd.OutOrStdout()
			p, err := cli.client().Wait(ctx, args[0], interval, func(p client.Progress) {
				fmt.Fprintln(out, progressLine(p))
			})
			if err != nil {
				return fmt.Errorf("watch %s: %w", args[0], err)
			}
			if p.Status == client.StatusError {
				return fmt.Errorf("job %s failed: %s", p.JobID, p.Error)
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "poll interval (default client.poll_interval_seconds)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")
	return cmd
}
