package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/job-progress-tracker/internal/server"
)

// newServeCmd runs the HTTP API, the expiry sweeper and the progress sinks
// until SIGINT or SIGTERM.
func newServeCmd(cli *cliContext) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the progress tracker HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cli.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			app, err := server.Build(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}
			if err := app.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default server.port)")
	return cmd
}
