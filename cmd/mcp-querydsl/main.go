// Package main provides the mcp-querydsl command.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/txn2/mcp-querydsl/internal/server"
	"github.com/txn2/mcp-querydsl/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
	pretty     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mcp-querydsl",
		Short: "Run declarative query definitions against SQL databases",
		Long: `mcp-querydsl interprets query definitions, ordered lists of builder
actions ending in one executor, into parameterized SQL. It runs them against
configured datasources directly or serves them to MCP clients.`,
		Version:       mcpserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd, opts.debug)
		},
	}
	cmd.SetVersionTemplate("mcp-querydsl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (YAML or TOML)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Log rendered SQL and bindings")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Indent JSON output even when not writing to a terminal")

	cmd.AddCommand(
		newExecuteCmd(opts),
		newSQLCmd(opts),
		newResolveCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(opts),
		newAuditCmd(opts),
	)
	return cmd
}

// loadConfig loads the --config file, or the defaults and environment when
// no file is given.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.Parse([]byte("{}"), "yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// setupLogging sends slog output to stderr, at debug level when requested.
func setupLogging(cmd *cobra.Command, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
