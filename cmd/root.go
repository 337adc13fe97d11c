// Package cmd defines and implements the CLI commands for the progress tracker
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/job-progress-tracker/internal/config"
	"github.com/JakeFAU/job-progress-tracker/pkg/client"
)

// cliContext carries state shared by every subcommand.
type cliContext struct {
	cfgFile   string
	serverURL string
	apiKey    string
	cfg       config.Config
}

func (c *cliContext) loadConfig() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return nil
}

// client builds a polling client from config, letting flags win.
func (c *cliContext) client() *client.Client {
	baseURL := c.cfg.Client.BaseURL
	if c.serverURL != "" {
		baseURL = c.serverURL
	}
	apiKey := c.cfg.Client.APIKey
	if c.apiKey != "" {
		apiKey = c.apiKey
	}
	return client.New(client.Config{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Timeout:    time.Duration(c.cfg.Client.TimeoutSeconds) * time.Second,
		RetryCount: 2,
	})
}

func (c *cliContext) pollInterval() time.Duration {
	return time.Duration(c.cfg.Client.PollIntervalSeconds) * time.Second
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cli := &cliContext{}
	cmd := &cobra.Command{
		Use:   "progress-tracker",
		Short: "Track and poll the progress of long-running jobs.",
		Long: `progress-tracker serves an HTTP polling API that workers report job
progress to, and ships client commands to report, inspect and watch jobs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return cli.loadConfig()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&cli.cfgFile, "config", "c", "", "config file (env PROGRESS_* overrides)")
	cmd.PersistentFlags().StringVar(&cli.serverURL, "server", "", "tracker base URL (default client.base_url)")
	cmd.PersistentFlags().StringVar(&cli.apiKey, "api-key", "", "API key sent as X-API-Key (default client.api_key)")

	cmd.AddCommand(newServeCmd(cli))
	cmd.AddCommand(newStatusCmd(cli))
	cmd.AddCommand(newWatchCmd(cli))
	cmd.AddCommand(newReportCmd(cli))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
