package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/mcp-querydsl/pkg/audit"
)

// defaultMetricsWindow is the default lookback when no time range is specified.
const defaultMetricsWindow = 24 * time.Hour

const (
	defaultBreakdownLimit = 10
	maxBreakdownLimit     = 100
)

const successRateExpr = "CASE WHEN COUNT(*) > 0 THEN CAST(COUNT(*) FILTER (WHERE success = true) AS FLOAT) / COUNT(*) ELSE 0 END AS success_rate"

// Timeseries returns audit event counts bucketed by the given resolution.
func (s *Store) Timeseries(ctx context.Context, filter audit.TimeseriesFilter) ([]audit.TimeseriesBucket, error) {
	if !audit.ValidResolutions[filter.Resolution] {
		return nil, fmt.Errorf("invalid resolution: %q", filter.Resolution)
	}

	start, end := defaultTimeRange(filter.StartTime, filter.EndTime)

	// Resolution is one of ValidResolutions.
	truncExpr := fmt.Sprintf("date_trunc('%s', timestamp) AS bucket", string(filter.Resolution))

	qb := psq.Select(
		truncExpr,
		"COUNT(*) AS count",
		"COUNT(*) FILTER (WHERE success = true) AS success_count",
		"COUNT(*) FILTER (WHERE success = false) AS error_count",
		"COALESCE(AVG(duration_ms), 0) AS avg_duration_ms",
	).From(auditTable).
		Where(sq.GtOrEq{"timestamp": start}).
		Where(sq.LtOrEq{"timestamp": end}).
		GroupBy("bucket").
		OrderBy("bucket ASC")

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building timeseries query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying timeseries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	buckets := []audit.TimeseriesBucket{}
	for rows.Next() {
		var bucket audit.TimeseriesBucket
		if err := rows.Scan(
			&bucket.Bucket,
			&bucket.Count,
			&bucket.SuccessCount,
			&bucket.ErrorCount,
			&bucket.AvgDurationMS,
		); err != nil {
			return nil, fmt.Errorf("scanning timeseries row: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating timeseries rows: %w", err)
	}
	return buckets, nil
}

func clampBreakdownLimit(limit int) int {
	if limit <= 0 {
		return defaultBreakdownLimit
	}
	if limit > maxBreakdownLimit {
		return maxBreakdownLimit
	}
	return limit
}

// Breakdown returns audit event counts grouped by a dimension.
func (s *Store) Breakdown(ctx context.Context, filter audit.BreakdownFilter) ([]audit.BreakdownEntry, error) {
	if !audit.ValidBreakdownDimensions[filter.GroupBy] {
		return nil, fmt.Errorf("invalid breakdown dimension: %q", filter.GroupBy)
	}

	start, end := defaultTimeRange(filter.StartTime, filter.EndTime)
	limit := clampBreakdownLimit(filter.Limit)

	// GroupBy is one of ValidBreakdownDimensions.
	col := string(filter.GroupBy)

	qb := psq.Select(
		fmt.Sprintf("COALESCE(%s, '') AS dimension", col),
		"COUNT(*) AS count",
		successRateExpr,
		"COALESCE(AVG(duration_ms), 0) AS avg_duration_ms",
	).From(auditTable).
		Where(sq.GtOrEq{"timestamp": start}).
		Where(sq.LtOrEq{"timestamp": end}).
		GroupBy(col).
		OrderBy("count DESC").
		Limit(uint64(limit)) // #nosec G115 -- clamped to [1, 100]

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building breakdown query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying breakdown: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []audit.BreakdownEntry{}
	for rows.Next() {
		var entry audit.BreakdownEntry
		if err := rows.Scan(
			&entry.Dimension,
			&entry.Count,
			&entry.SuccessRate,
			&entry.AvgDurationMS,
		); err != nil {
			return nil, fmt.Errorf("scanning breakdown row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating breakdown rows: %w", err)
	}
	return entries, nil
}

// Overview returns aggregate statistics for the given time range.
func (s *Store) Overview(ctx context.Context, startTime, endTime *time.Time) (*audit.Overview, error) {
	start, end := defaultTimeRange(startTime, endTime)

	qb := psq.Select(
		"COUNT(*) AS total_queries",
		successRateExpr,
		"COALESCE(AVG(duration_ms), 0) AS avg_duration_ms",
		"COUNT(DISTINCT datasource) AS unique_datasources",
		"COUNT(DISTINCT executor) AS unique_executors",
		"COALESCE(SUM(row_count), 0) AS total_rows",
		"COUNT(*) FILTER (WHERE success = false) AS error_count",
	).From(auditTable).
		Where(sq.GtOrEq{"timestamp": start}).
		Where(sq.LtOrEq{"timestamp": end})

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building overview query: %w", err)
	}

	var o audit.Overview
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&o.TotalQueries,
		&o.SuccessRate,
		&o.AvgDurationMS,
		&o.UniqueDatasources,
		&o.UniqueExecutors,
		&o.TotalRows,
		&o.ErrorCount,
	)
	if err != nil {
		return nil, fmt.Errorf("querying overview: %w", err)
	}
	return &o, nil
}

// defaultTimeRange returns the start and end times, defaulting to the last 24h.
func defaultTimeRange(start, end *time.Time) (startTime, endTime time.Time) {
	now := time.Now()
	startTime = now.Add(-defaultMetricsWindow)
	endTime = now
	if start != nil {
		startTime = *start
	}
	if end != nil {
		endTime = *end
	}
	return startTime, endTime
}
