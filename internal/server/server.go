// Package server provides a factory for creating the MCP server.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-querydsl/pkg/audit"
	auditpostgres "github.com/txn2/mcp-querydsl/pkg/audit/postgres"
	"github.com/txn2/mcp-querydsl/pkg/config"
	"github.com/txn2/mcp-querydsl/pkg/database/migrate"
	"github.com/txn2/mcp-querydsl/pkg/engine"
	"github.com/txn2/mcp-querydsl/pkg/health"
	"github.com/txn2/mcp-querydsl/pkg/mcptool"
	"github.com/txn2/mcp-querydsl/pkg/middleware"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

// Version is set at build time.
var Version = "dev"

const auditCleanupInterval = 24 * time.Hour

// Platform owns everything built from one configuration.
type Platform struct {
	engine  *engine.Engine
	sources *query.Datasources
	audit   audit.Logger
}

// Engine returns the query engine.
func (p *Platform) Engine() *engine.Engine {
	return p.engine
}

// Config returns the loaded configuration.
func (p *Platform) Config() *config.Config {
	return p.engine.Config()
}

// HealthChecker returns a checker that pings every datasource.
func (p *Platform) HealthChecker() *health.Checker {
	targets := make(map[string]health.Pinger)
	for _, name := range p.sources.Names() {
		if ds, err := p.sources.Get(name); err == nil {
			targets[name] = ds.DB
		}
	}
	return health.NewChecker(targets)
}

// Close stops the audit logger and closes every datasource.
func (p *Platform) Close() error {
	var errs []error
	if p.audit != nil {
		if err := p.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing audit logger: %w", err))
		}
	}
	if p.sources != nil {
		if err := p.sources.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New creates a platform and an MCP server exposing its tools.
func New(cfg *config.Config) (*mcp.Server, *Platform, error) {
	p, err := NewPlatform(cfg)
	if err != nil {
		return nil, nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    p.Config().Server.Name,
		Version: Version,
	}, nil)
	mcpServer.AddReceivingMiddleware(middleware.MCPToolCallLogging(slog.Default()))
	mcptool.New(p.engine).Register(mcpServer)

	return mcpServer, p, nil
}

// NewWithConfig loads the configuration file and creates the server.
func NewWithConfig(path string) (*mcp.Server, *Platform, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return New(cfg)
}

// NewWithDefaults creates a server from the default configuration and the
// environment.
func NewWithDefaults() (*mcp.Server, *Platform, error) {
	cfg, err := config.Parse([]byte("{}"), "yaml")
	if err != nil {
		return nil, nil, err
	}
	return New(cfg)
}

// NewPlatform opens the configured datasources and the audit logger and
// creates the engine. It does not start an MCP server, which is what the
// one-shot CLI commands need.
func NewPlatform(cfg *config.Config) (*Platform, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sources, err := OpenDatasources(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := newAuditLogger(cfg, sources)
	if err != nil {
		_ = sources.Close()
		return nil, err
	}

	return &Platform{
		engine: engine.New(cfg,
			engine.WithDatasources(sources),
			engine.WithAuditLogger(logger),
		),
		sources: sources,
		audit:   logger,
	}, nil
}

// OpenDatasources opens and registers every configured datasource.
func OpenDatasources(cfg *config.Config) (*query.Datasources, error) {
	sources := query.NewDatasources()
	for name, dc := range cfg.Datasources {
		ds, err := query.Open(name, dc.Driver, dc.DSN, dc.Dialect)
		if err != nil {
			_ = sources.Close()
			return nil, err
		}
		if dc.MaxOpenConns > 0 {
			ds.DB.SetMaxOpenConns(dc.MaxOpenConns)
		}
		if err := sources.Register(ds); err != nil {
			_ = ds.DB.Close()
			_ = sources.Close()
			return nil, err
		}
	}
	return sources, nil
}

// newAuditLogger picks the audit backend: the postgres store when an audit
// datasource is configured, slog when audit is only enabled, else a no-op.
func newAuditLogger(cfg *config.Config, sources *query.Datasources) (audit.Logger, error) {
	if !cfg.Audit.Enabled {
		return audit.NoopLogger{}, nil
	}
	if cfg.Audit.Datasource == "" {
		return audit.NewSlogLogger(slog.Default()), nil
	}

	ds, err := sources.Get(cfg.Audit.Datasource)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	if err := migrate.Run(ds.DB); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	store := auditpostgres.New(ds.DB, auditpostgres.Config{
		RetentionDays: cfg.Audit.RetentionDays,
	})
	store.StartCleanupRoutine(auditCleanupInterval)
	slog.Info("audit logging enabled", "datasource", ds.Name, "retention_days", cfg.Audit.RetentionDays)
	return store, nil
}
