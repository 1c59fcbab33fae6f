package query

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	// Registered database/sql drivers.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrUnknownDatasource is returned when a datasource name is not registered.
var ErrUnknownDatasource = errors.New("unknown datasource")

// Datasource is a named database handle and its dialect.
type Datasource struct {
	Name    string
	DB      *sql.DB
	Dialect Dialect
}

// driverNames maps a configured driver to its database/sql driver name.
var driverNames = map[string]string{
	"postgres": "postgres",
	"sqlite":   "sqlite",
}

// Open opens a datasource using one of the registered drivers. The dialect
// defaults to the driver name.
func Open(name, driver, dsn, dialect string) (*Datasource, error) {
	driverName, ok := driverNames[driver]
	if !ok {
		return nil, fmt.Errorf("datasource %s: unsupported driver %q", name, driver)
	}
	if dialect == "" {
		dialect = driver
	}
	d, err := LookupDialect(dialect)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: %w", name, err)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: opening database: %w", name, err)
	}
	if driver == "sqlite" {
		// Each connection to an in-memory database is a separate database.
		db.SetMaxOpenConns(1)
	}
	return &Datasource{Name: name, DB: db, Dialect: d}, nil
}

// Datasources is a registry of named datasources.
type Datasources struct {
	mu      sync.RWMutex
	sources map[string]*Datasource
}

// NewDatasources creates an empty registry.
func NewDatasources() *Datasources {
	return &Datasources{sources: make(map[string]*Datasource)}
}

// Register adds or replaces a datasource.
func (d *Datasources) Register(ds *Datasource) error {
	if ds == nil || ds.Name == "" {
		return fmt.Errorf("datasource name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[ds.Name] = ds
	return nil
}

// Get returns a datasource by name.
func (d *Datasources) Get(name string) (*Datasource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ds, ok := d.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatasource, name)
	}
	return ds, nil
}

// Names returns the registered names in order.
func (d *Datasources) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.sources))
	for name := range d.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every database handle.
func (d *Datasources) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for _, ds := range d.sources {
		if ds.DB != nil {
			if err := ds.DB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", ds.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
