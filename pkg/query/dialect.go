package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect captures the SQL differences the interpreter cares about.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	// ForUpdate and ForShare are lock suffixes; empty means unsupported
	// and the lock action is a no-op.
	ForUpdate string
	ForShare  string
}

// Builder returns a statement builder using the dialect's placeholders.
func (d Dialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

// Supported dialects.
var (
	Postgres = Dialect{Name: "postgres", Placeholder: sq.Dollar, ForUpdate: "FOR UPDATE", ForShare: "FOR SHARE"}
	SQLite   = Dialect{Name: "sqlite", Placeholder: sq.Question}
	MySQL    = Dialect{Name: "mysql", Placeholder: sq.Question, ForUpdate: "FOR UPDATE", ForShare: "LOCK IN SHARE MODE"}
)

// LookupDialect returns a dialect by name. An empty name means Postgres.
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("unknown dialect %q", name)
	}
}
