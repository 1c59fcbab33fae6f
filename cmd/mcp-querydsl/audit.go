package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/txn2/mcp-querydsl/pkg/audit"
	auditpostgres "github.com/txn2/mcp-querydsl/pkg/audit/postgres"
)

// auditFlags select the audit store and the reporting window.
type auditFlags struct {
	datasource string
	since      time.Duration
}

func (f *auditFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.datasource, "datasource", "d", "", "Datasource holding the audit table (default audit.datasource)")
	cmd.Flags().DurationVar(&f.since, "since", 0, "Only include events newer than this (default: last 24h for metrics, all for list)")
}

func (f *auditFlags) startTime() *time.Time {
	if f.since <= 0 {
		return nil
	}
	t := time.Now().Add(-f.since)
	return &t
}

// withStore opens the audit store, runs fn, and closes the datasource.
func (f *auditFlags) withStore(root *rootOptions, fn func(*auditpostgres.Store) (any, error)) (any, error) {
	cfg, err := root.loadConfig()
	if err != nil {
		return nil, err
	}
	ds, err := openAuditDatasource(cfg, f.datasource)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ds.DB.Close() }()

	store := auditpostgres.New(ds.DB, auditpostgres.Config{RetentionDays: cfg.Audit.RetentionDays})
	defer func() { _ = store.Close() }()
	return fn(store)
}

func newAuditCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect recorded query audit events",
	}
	cmd.AddCommand(
		newAuditListCmd(root),
		newAuditOverviewCmd(root),
		newAuditBreakdownCmd(root),
		newAuditTimeseriesCmd(root),
	)
	return cmd
}

func newAuditListCmd(root *rootOptions) *cobra.Command {
	var (
		af       auditFlags
		filter   audit.QueryFilter
		failures bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.StartTime = af.startTime()
			if failures {
				success := false
				filter.Success = &success
			}
			events, err := af.withStore(root, func(s *auditpostgres.Store) (any, error) {
				return s.Query(cmd.Context(), filter)
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), events, root.pretty)
		},
	}

	af.register(cmd)
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum events to return")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Events to skip")
	cmd.Flags().StringVar(&filter.Executor, "executor", "", "Only events with this executor")
	cmd.Flags().StringVar(&filter.Datasource, "source", "", "Only events against this datasource")
	cmd.Flags().BoolVar(&failures, "failures", false, "Only failed executions")
	return cmd
}

func newAuditOverviewCmd(root *rootOptions) *cobra.Command {
	var af auditFlags

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Summarize audit events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overview, err := af.withStore(root, func(s *auditpostgres.Store) (any, error) {
				return s.Overview(cmd.Context(), af.startTime(), nil)
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), overview, root.pretty)
		},
	}

	af.register(cmd)
	return cmd
}

func newAuditBreakdownCmd(root *rootOptions) *cobra.Command {
	var (
		af      auditFlags
		groupBy string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Group audit events by executor, datasource, or return format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := af.withStore(root, func(s *auditpostgres.Store) (any, error) {
				return s.Breakdown(cmd.Context(), audit.BreakdownFilter{
					GroupBy:   audit.BreakdownDimension(groupBy),
					Limit:     limit,
					StartTime: af.startTime(),
				})
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries, root.pretty)
		},
	}

	af.register(cmd)
	cmd.Flags().StringVar(&groupBy, "by", string(audit.BreakdownByExecutor), "Dimension: executor, datasource, return_format")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum groups to return")
	return cmd
}

func newAuditTimeseriesCmd(root *rootOptions) *cobra.Command {
	var (
		af         auditFlags
		resolution string
	)

	cmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Bucket audit events over time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			buckets, err := af.withStore(root, func(s *auditpostgres.Store) (any, error) {
				return s.Timeseries(cmd.Context(), audit.TimeseriesFilter{
					Resolution: audit.Resolution(resolution),
					StartTime:  af.startTime(),
				})
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), buckets, root.pretty)
		},
	}

	af.register(cmd)
	cmd.Flags().StringVar(&resolution, "resolution", string(audit.ResolutionHour), "Bucket size: minute, hour, day")
	return cmd
}
