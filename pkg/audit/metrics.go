package audit

import "time"

// Resolution defines the time bucketing granularity for timeseries queries.
type Resolution string

const (
	// ResolutionMinute buckets by minute.
	ResolutionMinute Resolution = "minute"

	// ResolutionHour buckets by hour.
	ResolutionHour Resolution = "hour"

	// ResolutionDay buckets by day.
	ResolutionDay Resolution = "day"
)

// ValidResolutions is the set of allowed resolution values.
var ValidResolutions = map[Resolution]bool{
	ResolutionMinute: true,
	ResolutionHour:   true,
	ResolutionDay:    true,
}

// TimeseriesFilter controls timeseries query parameters.
type TimeseriesFilter struct {
	Resolution Resolution
	StartTime  *time.Time
	EndTime    *time.Time
}

// TimeseriesBucket holds counts for a single time bucket.
type TimeseriesBucket struct {
	Bucket        time.Time `json:"bucket"`
	Count         int       `json:"count"`
	SuccessCount  int       `json:"success_count"`
	ErrorCount    int       `json:"error_count"`
	AvgDurationMS float64   `json:"avg_duration_ms"`
}

// BreakdownDimension defines valid group-by dimensions.
type BreakdownDimension string

const (
	// BreakdownByExecutor groups by executor action.
	BreakdownByExecutor BreakdownDimension = "executor"

	// BreakdownByDatasource groups by datasource.
	BreakdownByDatasource BreakdownDimension = "datasource"

	// BreakdownByReturnFormat groups by return format.
	BreakdownByReturnFormat BreakdownDimension = "return_format"
)

// ValidBreakdownDimensions is the set of allowed group-by values.
var ValidBreakdownDimensions = map[BreakdownDimension]bool{
	BreakdownByExecutor:     true,
	BreakdownByDatasource:   true,
	BreakdownByReturnFormat: true,
}

// BreakdownFilter controls breakdown query parameters.
type BreakdownFilter struct {
	GroupBy   BreakdownDimension
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
}

// BreakdownEntry holds aggregated stats for a single dimension value.
type BreakdownEntry struct {
	Dimension     string  `json:"dimension"`
	Count         int     `json:"count"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Overview holds aggregate statistics for the audit log.
type Overview struct {
	TotalQueries      int     `json:"total_queries"`
	SuccessRate       float64 `json:"success_rate"`
	AvgDurationMS     float64 `json:"avg_duration_ms"`
	UniqueDatasources int     `json:"unique_datasources"`
	UniqueExecutors   int     `json:"unique_executors"`
	TotalRows         int64   `json:"total_rows"`
	ErrorCount        int     `json:"error_count"`
}
