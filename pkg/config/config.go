// Package config loads the interpreter configuration from YAML or TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/txn2/mcp-querydsl/pkg/format"
	"github.com/txn2/mcp-querydsl/pkg/policy"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

// Defaults.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRows      = 25
	DefaultMaxDepth     = 32
	DefaultDatasource   = "default"
	DefaultReturnFormat = "array"
	DefaultServerName   = "mcp-querydsl"
	DefaultAddress      = ":8080"

	defaultRetentionDays = 90
)

// Environment variables merged over file values.
const (
	EnvDatasource   = "QUERYDSL_DATASOURCE"
	EnvMaxRows      = "QUERYDSL_MAX_ROWS"
	EnvTimeout      = "QUERYDSL_TIMEOUT"
	EnvReturnFormat = "QUERYDSL_RETURN_FORMAT"
	EnvDebug        = "QUERYDSL_DEBUG"
)

// Config is the complete configuration. It is loaded once and then only read.
type Config struct {
	Server      ServerConfig                `yaml:"server" toml:"server"`
	Tables      policy.Policy               `yaml:"tables" toml:"tables"`
	Actions     policy.Policy               `yaml:"actions" toml:"actions"`
	Executors   policy.Policy               `yaml:"executors" toml:"executors"`
	Aliases     map[string]string           `yaml:"aliases" toml:"aliases"`
	Defaults    DefaultsConfig              `yaml:"defaults" toml:"defaults"`
	MaxDepth    int                         `yaml:"max_depth" toml:"max_depth"`
	Debug       bool                        `yaml:"debug" toml:"debug"`
	Datasources map[string]DatasourceConfig `yaml:"datasources" toml:"datasources"`
	Audit       AuditConfig                 `yaml:"audit" toml:"audit"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name      string `yaml:"name" toml:"name"`
	Transport string `yaml:"transport" toml:"transport"` // "stdio" or "http"
	Address   string `yaml:"address" toml:"address"`
}

// DefaultsConfig holds per-execution defaults.
type DefaultsConfig struct {
	Timeout      time.Duration `yaml:"timeout" toml:"timeout"`
	MaxRows      int           `yaml:"max_rows" toml:"max_rows"`
	Datasource   string        `yaml:"datasource" toml:"datasource"`
	ReturnFormat string        `yaml:"return_format" toml:"return_format"`
}

// DatasourceConfig configures one named database.
type DatasourceConfig struct {
	Driver       string `yaml:"driver" toml:"driver"`
	DSN          string `yaml:"dsn" toml:"dsn"`
	Dialect      string `yaml:"dialect" toml:"dialect"`
	MaxOpenConns int    `yaml:"max_open_conns" toml:"max_open_conns"`
}

// AuditConfig configures audit logging. An empty datasource logs through slog.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	Datasource    string `yaml:"datasource" toml:"datasource"`
	RetentionDays int    `yaml:"retention_days" toml:"retention_days"`
}

// Policies returns the three access policies.
func (c *Config) Policies() policy.Policies {
	return policy.Policies{Tables: c.Tables, Actions: c.Actions, Executors: c.Executors}
}

// Load reads a configuration file. Files ending in .toml are parsed as TOML,
// everything else as YAML. ${VAR} references are expanded before parsing.
// The path is expected to come from command line arguments.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	syntax := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		syntax = "toml"
	}
	return Parse(data, syntax)
}

// Parse decodes configuration data in the given format ("yaml" or "toml"),
// merges environment overrides, and applies defaults.
func Parse(data []byte, syntax string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch syntax {
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case "yaml", "yml", "":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", syntax)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied and no
// datasources.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvDatasource); v != "" {
		cfg.Defaults.Datasource = v
	}
	if v := os.Getenv(EnvReturnFormat); v != "" {
		cfg.Defaults.ReturnFormat = v
	}
	if v := os.Getenv(EnvMaxRows); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRows, err)
		}
		cfg.Defaults.MaxRows = n
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Defaults.Timeout = d
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}
	return nil
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = DefaultServerName
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "stdio"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Defaults.Timeout == 0 {
		cfg.Defaults.Timeout = DefaultTimeout
	}
	if cfg.Defaults.MaxRows == 0 {
		cfg.Defaults.MaxRows = DefaultMaxRows
	}
	if cfg.Defaults.ReturnFormat == "" {
		cfg.Defaults.ReturnFormat = DefaultReturnFormat
	}
	if cfg.Defaults.Datasource == "" {
		cfg.Defaults.Datasource = soleDatasource(cfg.Datasources)
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = defaultRetentionDays
	}
}

// soleDatasource names the only configured datasource, or the default name.
func soleDatasource(sources map[string]DatasourceConfig) string {
	if len(sources) == 1 {
		for name := range sources {
			return name
		}
	}
	return DefaultDatasource
}

// Validate validates the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []string

	for name, p := range map[string]policy.Policy{
		"tables":    c.Tables,
		"actions":   c.Actions,
		"executors": c.Executors,
	} {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}

	switch c.Server.Transport {
	case "", "stdio", "http":
	default:
		errs = append(errs, fmt.Sprintf("server.transport %q must be stdio or http", c.Server.Transport))
	}
	if c.Defaults.Timeout < 0 {
		errs = append(errs, "defaults.timeout must not be negative")
	}
	if c.Defaults.MaxRows < 0 {
		errs = append(errs, "defaults.max_rows must not be negative")
	}
	if c.MaxDepth < 0 {
		errs = append(errs, "max_depth must not be negative")
	}
	if _, err := format.ParseSpec(c.Defaults.ReturnFormat); err != nil {
		errs = append(errs, fmt.Sprintf("defaults.return_format: %v", err))
	}

	names := make([]string, 0, len(c.Datasources))
	for name := range c.Datasources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ds := c.Datasources[name]
		if ds.Driver == "" {
			errs = append(errs, fmt.Sprintf("datasources.%s.driver is required", name))
		}
		if ds.DSN == "" {
			errs = append(errs, fmt.Sprintf("datasources.%s.dsn is required", name))
		}
		if ds.Dialect != "" {
			if _, err := query.LookupDialect(ds.Dialect); err != nil {
				errs = append(errs, fmt.Sprintf("datasources.%s.dialect: %v", name, err))
			}
		}
	}
	if len(c.Datasources) > 0 {
		if _, ok := c.Datasources[c.Defaults.Datasource]; !ok {
			errs = append(errs, fmt.Sprintf("defaults.datasource %q is not configured", c.Defaults.Datasource))
		}
	}

	if c.Audit.Enabled && c.Audit.Datasource != "" {
		ds, ok := c.Datasources[c.Audit.Datasource]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("audit.datasource %q is not configured", c.Audit.Datasource))
		case ds.Driver != "postgres":
			errs = append(errs, "audit.datasource must use the postgres driver")
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
