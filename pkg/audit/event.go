package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// redacted replaces sensitive parameter values.
const redacted = "[REDACTED]"

// NewEvent creates a new audit event for an executor.
func NewEvent(executor string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Executor:  executor,
	}
}

// WithDatasource sets the datasource the query ran against.
func (e *Event) WithDatasource(name string) *Event {
	e.Datasource = name
	return e
}

// WithReturnFormat sets the effective return format.
func (e *Event) WithReturnFormat(format string) *Event {
	e.ReturnFormat = format
	return e
}

// WithSQL sets the rendered statement.
func (e *Event) WithSQL(sql string) *Event {
	e.SQL = sql
	return e
}

// WithParameters adds parameters to the event.
func (e *Event) WithParameters(params map[string]any) *Event {
	e.Parameters = params
	return e
}

// WithGrants records the alias and CTE grants made while building.
func (e *Event) WithGrants(grants []string) *Event {
	e.Grants = grants
	return e
}

// WithRows sets the number of rows returned.
func (e *Event) WithRows(n int) *Event {
	e.Rows = n
	return e
}

// WithResult sets the result information.
func (e *Event) WithResult(success bool, errorMsg string, durationMS int64) *Event {
	e.Success = success
	e.ErrorMessage = errorMsg
	e.DurationMS = durationMS
	return e
}

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credentials",
}

// SanitizeParameters removes sensitive values from parameters. A key is
// sensitive when it contains one of the well-known names, case-insensitively.
func SanitizeParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitive(k) {
			sanitized[k] = redacted
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
