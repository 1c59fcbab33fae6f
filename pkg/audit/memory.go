package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryLogger keeps events in memory. It is safe for concurrent use.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryLogger creates an empty MemoryLogger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log appends the event.
func (m *MemoryLogger) Log(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Query returns matching events, newest first.
func (m *MemoryLogger) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	m.mu.Lock()
	matched := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if filter.matches(e) {
			matched = append(matched, e)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []Event{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Events returns a copy of every event in insertion order.
func (m *MemoryLogger) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Close is a no-op.
func (*MemoryLogger) Close() error {
	return nil
}

func (f QueryFilter) matches(e Event) bool {
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	if f.Datasource != "" && e.Datasource != f.Datasource {
		return false
	}
	if f.Executor != "" && e.Executor != f.Executor {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	return true
}

var _ Logger = (*MemoryLogger)(nil)
