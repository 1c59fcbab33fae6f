// Package health provides readiness tracking and HTTP health check handlers
// that ping the configured datasources.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// DefaultPingTimeout bounds each datasource ping.
const DefaultPingTimeout = 2 * time.Second

// Pinger checks a connection. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker tracks the server state and the reachability of its datasources.
// It is safe for concurrent use.
type Checker struct {
	state       atomic.Int32
	targets     map[string]Pinger
	pingTimeout time.Duration
}

// NewChecker creates a Checker in the Starting state. The targets map is
// copied.
func NewChecker(targets map[string]Pinger) *Checker {
	c := &Checker{
		targets:     make(map[string]Pinger, len(targets)),
		pingTimeout: DefaultPingTimeout,
	}
	for name, p := range targets {
		c.targets[name] = p
	}
	return c
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// Ping checks every datasource and returns "ok" or the error text per name,
// plus whether all of them answered.
func (c *Checker) Ping(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(c.targets))
	for name := range c.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, c.pingTimeout)
		err := c.targets[name].PingContext(pingCtx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// response is the JSON body returned by health endpoints.
type response struct {
	Status      string            `json:"status"`
	Datasources map[string]string `json:"datasources,omitempty"`
}

// LivenessHandler always responds 200 OK. Use it for /healthz.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, response{Status: "ok"})
	}
}

// ReadinessHandler responds 200 when the server is ready and every
// datasource answers a ping, else 503. Use it for /readyz.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, response{Status: c.State()})
			return
		}
		results, healthy := c.Ping(r.Context())
		if !healthy {
			writeJSON(w, http.StatusServiceUnavailable, response{Status: "degraded", Datasources: results})
			return
		}
		writeJSON(w, http.StatusOK, response{Status: c.State(), Datasources: results})
	}
}

func writeJSON(w http.ResponseWriter, code int, v response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
