package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txn2/mcp-querydsl/pkg/config"
	"github.com/txn2/mcp-querydsl/pkg/database/migrate"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

var errNoAuditDatasource = errors.New("no audit datasource: set audit.datasource or pass --datasource")

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var (
		datasource string
		down       bool
		steps      int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the audit schema migrations",
		Long: `Apply the embedded audit schema migrations to a postgres datasource.
By default every pending migration is applied; --steps moves by n (negative
rolls back) and --down rolls back everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ds, err := openAuditDatasource(cfg, datasource)
			if err != nil {
				return err
			}
			defer func() { _ = ds.DB.Close() }()

			switch {
			case down:
				err = migrate.Down(ds.DB)
			case steps != 0:
				err = migrate.Steps(ds.DB, steps)
			default:
				err = migrate.Run(ds.DB)
			}
			if err != nil {
				return err
			}

			version, dirty, err := migrate.Version(ds.DB)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"datasource": ds.Name,
				"version":    version,
				"dirty":      dirty,
			}, root.pretty)
		},
	}

	cmd.Flags().StringVarP(&datasource, "datasource", "d", "", "Datasource holding the audit table (default audit.datasource)")
	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration")
	cmd.Flags().IntVar(&steps, "steps", 0, "Apply n migrations; negative rolls back")
	cmd.MarkFlagsMutuallyExclusive("down", "steps")
	return cmd
}

// openAuditDatasource opens the named datasource, or the configured audit
// datasource, which must use the postgres driver.
func openAuditDatasource(cfg *config.Config, name string) (*query.Datasource, error) {
	if name == "" {
		name = cfg.Audit.Datasource
	}
	if name == "" {
		return nil, errNoAuditDatasource
	}
	dc, ok := cfg.Datasources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", query.ErrUnknownDatasource, name)
	}
	if dc.Driver != "postgres" {
		return nil, fmt.Errorf("datasource %s: audit storage requires the postgres driver", name)
	}
	return query.Open(name, dc.Driver, dc.DSN, dc.Dialect)
}
