// Package audit records query executions.
package audit

import (
	"context"
	"time"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error

	// Query retrieves audit events matching the filter.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// Event is one execution of a query definition.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	DurationMS   int64          `json:"duration_ms"`
	Datasource   string         `json:"datasource"`
	Executor     string         `json:"executor"`
	ReturnFormat string         `json:"return_format,omitempty"`
	SQL          string         `json:"sql,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Grants       []string       `json:"grants,omitempty"`
	Rows         int            `json:"rows"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// QueryFilter defines criteria for querying audit events.
type QueryFilter struct {
	StartTime  *time.Time
	EndTime    *time.Time
	Datasource string
	Executor   string
	Success    *bool
	Limit      int
	Offset     int
}

// Config configures audit logging.
type Config struct {
	Enabled       bool
	RetentionDays int
}
