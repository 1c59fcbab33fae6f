// Package engine runs query definitions against configured datasources.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/mcp-querydsl/pkg/action"
	"github.com/txn2/mcp-querydsl/pkg/audit"
	"github.com/txn2/mcp-querydsl/pkg/config"
	"github.com/txn2/mcp-querydsl/pkg/format"
	"github.com/txn2/mcp-querydsl/pkg/interpreter"
	"github.com/txn2/mcp-querydsl/pkg/params"
	"github.com/txn2/mcp-querydsl/pkg/policy"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

// Engine executes query definitions. It holds the configuration by pointer
// and never modifies it, so one Engine serves concurrent calls.
type Engine struct {
	cfg     *config.Config
	sources *query.Datasources
	audit   audit.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDatasources sets the datasource registry.
func WithDatasources(d *query.Datasources) Option {
	return func(e *Engine) {
		e.sources = d
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(l audit.Logger) Option {
	return func(e *Engine) {
		e.audit = l
	}
}

// New creates an Engine. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:     cfg,
		sources: query.NewDatasources(),
		audit:   audit.NoopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration. Callers must not modify it.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Datasources returns the datasource registry.
func (e *Engine) Datasources() *query.Datasources {
	return e.sources
}

// Options are per-call execution options.
type Options struct {
	// Params are referenced by $param objects and $name$ placeholders.
	Params params.Map

	// ReturnFormat overrides the executor's returnFormat and the default.
	ReturnFormat any

	// Datasource selects a configured datasource; empty means the default.
	Datasource string

	// Timeout bounds the database call; zero means the configured default.
	Timeout time.Duration
}

// Statement is the output of a toSQL executor.
type Statement struct {
	SQL      string `json:"sql"`
	Bindings []any  `json:"bindings"`
}

// ParseDefinition parses a JSON query definition.
func ParseDefinition(data []byte) (action.Definition, error) {
	return action.ParseJSON(data)
}

// ResolveParamRefs substitutes parameter references in v.
func ResolveParamRefs(v any, p params.Map) (any, error) {
	return params.Resolve(v, p)
}

// Build interprets def for the default datasource without executing it.
func (e *Engine) Build(def action.Definition, p params.Map) (*interpreter.Built, error) {
	return e.build(def, p, e.dialect(""))
}

// ToSQL renders def for the default datasource.
func (e *Engine) ToSQL(def action.Definition, p params.Map) (string, []any, error) {
	built, err := e.Build(def, p)
	if err != nil {
		return "", nil, err
	}
	return built.ToSQL()
}

// Execute interprets def, runs it, and formats the result. The return
// format is taken from opts, then the executor, then the configured default.
func (e *Engine) Execute(ctx context.Context, def action.Definition, opts Options) (result any, err error) {
	start := time.Now()
	name := e.datasourceName(opts.Datasource)
	event := audit.NewEvent("").
		WithDatasource(name).
		WithParameters(audit.SanitizeParameters(opts.Params))

	defer func() {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		event.WithResult(err == nil, msg, time.Since(start).Milliseconds())
		if logErr := e.audit.Log(ctx, *event); logErr != nil {
			slog.Warn("failed to record audit event", "error", logErr)
		}
	}()

	ds, dsErr := e.sources.Get(name)
	dialect := query.Postgres
	if dsErr == nil {
		dialect = ds.Dialect
	}

	built, err := e.build(def, opts.Params, dialect)
	if err != nil {
		return nil, err
	}
	event.Executor = string(built.Executor)
	event.WithGrants(grantNames(built.Journal))

	executorFormat, _ := built.ReturnFormat()
	spec, err := format.Choose(opts.ReturnFormat, executorFormat, e.cfg.Defaults.ReturnFormat)
	if err != nil {
		return nil, err
	}
	event.WithReturnFormat(string(spec.Type))

	sql, args, err := built.ToSQL()
	if err != nil {
		return nil, err
	}
	event.WithSQL(sql)
	if e.cfg.Debug {
		slog.Debug("querydsl statement", "executor", built.Executor, "sql", sql, "bindings", args)
	}

	if built.Executor == action.ToSQL {
		event.WithRows(0)
		return &Statement{SQL: sql, Bindings: args}, nil
	}
	if built.Executor == "" {
		return nil, interpreter.ErrNoExecutor
	}
	if dsErr != nil {
		return nil, dsErr
	}

	if timeout := e.timeout(opts.Timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := built.Run(ctx, ds.DB)
	if err != nil {
		return nil, err
	}
	event.WithRows(rowCount(out))
	return shape(out, spec)
}

// IsSecurityViolation reports whether err was caused by an access policy.
func IsSecurityViolation(err error) bool {
	return errors.Is(err, policy.ErrSecurityViolation)
}

func (e *Engine) build(def action.Definition, p params.Map, dialect query.Dialect) (*interpreter.Built, error) {
	cfg := &interpreter.Config{
		Policies: e.cfg.Policies(),
		Aliases:  e.cfg.Aliases,
		Dialect:  dialect,
		MaxDepth: e.cfg.MaxDepth,
		MaxRows:  e.cfg.Defaults.MaxRows,
	}
	return interpreter.New(cfg, p).Build(def)
}

func (e *Engine) datasourceName(name string) string {
	if name != "" {
		return name
	}
	return e.cfg.Defaults.Datasource
}

// dialect returns the dialect of a datasource, falling back to Postgres.
func (e *Engine) dialect(name string) query.Dialect {
	if ds, err := e.sources.Get(e.datasourceName(name)); err == nil {
		return ds.Dialect
	}
	return query.Postgres
}

func (e *Engine) timeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return e.cfg.Defaults.Timeout
}

// shape turns an executor outcome into the caller's result.
func shape(out *interpreter.Outcome, spec format.Spec) (any, error) {
	switch out.Executor {
	case action.First, action.Find:
		return format.FormatOne(out.Result, spec)
	case action.Paginate, action.SimplePaginate:
		results, err := format.Format(out.Result, spec)
		if err != nil {
			return nil, err
		}
		p := format.NewSimplePagination(out.Page.Page, out.Page.MaxRows)
		if !out.Page.Simple {
			p = format.NewPagination(out.Page.Page, out.Page.MaxRows, out.Page.Total)
		}
		return format.Paginate(results, p), nil
	case action.Values:
		return out.Values, nil
	case action.Value, action.Count, action.Sum, action.Avg, action.Min, action.Max, action.Exists:
		return out.Scalar, nil
	case action.Get:
		return format.Format(out.Result, spec)
	default:
		return nil, fmt.Errorf("unexpected executor %q", out.Executor)
	}
}

func rowCount(out *interpreter.Outcome) int {
	switch {
	case out.Result != nil:
		return out.Result.Count()
	case out.Values != nil:
		return len(out.Values)
	default:
		return 1
	}
}

func grantNames(grants []policy.Grant) []string {
	if len(grants) == 0 {
		return nil
	}
	names := make([]string, len(grants))
	for i, g := range grants {
		names[i] = g.Name
	}
	return names
}
