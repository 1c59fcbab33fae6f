package audit

import (
	"context"
	"log/slog"
)

// SlogLogger writes audit events to a slog.Logger. It keeps nothing, so
// Query always returns an empty slice.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a SlogLogger. A nil logger means slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Log writes the event at Info level, or Warn when it failed.
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "query executed",
		slog.String("audit_id", event.ID),
		slog.String("datasource", event.Datasource),
		slog.String("executor", event.Executor),
		slog.String("return_format", event.ReturnFormat),
		slog.Int64("duration_ms", event.DurationMS),
		slog.Int("rows", event.Rows),
		slog.Bool("success", event.Success),
		slog.String("error", event.ErrorMessage),
		slog.Any("grants", event.Grants),
	)
	return nil
}

// Query returns no events.
func (*SlogLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) {
	return []Event{}, nil
}

// Close is a no-op.
func (*SlogLogger) Close() error {
	return nil
}

// NoopLogger discards every event.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(_ context.Context, _ Event) error { return nil }

// Query returns no events.
func (NoopLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) { return []Event{}, nil }

// Close is a no-op.
func (NoopLogger) Close() error { return nil }

// Verify interface compliance.
var _ Logger = (*SlogLogger)(nil)

var _ Logger = (*NoopLogger)(nil)
