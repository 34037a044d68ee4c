// Package cli implements the neurochart command line tool: local extraction,
// session management against a running API server, and database migration.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	ServerAddr string
	Timeout    time.Duration
	Verbose    bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "neurochart",
		Short:         "Clinical progress-note extraction toolkit",
		Long:          "Extract structured clinical entities, timelines and causal chains from free-text neurosurgical progress notes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")
	pf.StringVarP(&opts.ServerAddr, "server", "s", "http://localhost:8080", "API server address")
	pf.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "request timeout")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(
		newExtractCmd(opts),
		newSessionsCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "neurochart %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// loadConfig reads the config file when given, otherwise falls back to
// defaults so local commands work without any setup.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(opts.ConfigPath)
}

func newLogger(opts *RootOptions) (logging.Logger, error) {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{Level: level, Format: "console"})
}

func newAPIClient(opts *RootOptions) (*client.Client, error) {
	return client.New(opts.ServerAddr, client.WithTimeout(opts.Timeout))
}
