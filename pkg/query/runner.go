package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Runner executes SQL. *sql.DB, *sql.Conn, and *sql.Tx satisfy it.
type Runner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// binaryTypes are database type names whose []byte values stay binary.
var binaryTypes = []string{"BLOB", "BYTEA", "BINARY", "VARBINARY", "IMAGE"}

// Run executes a query and scans every row. Driver errors are wrapped, not
// replaced, so callers can still match them with errors.Is and errors.As.
func Run(ctx context.Context, r Runner, query string, args []any) (*Result, error) {
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return Scan(rows)
}

// Scan reads all rows into a Result. Text returned by drivers as []byte is
// converted to string unless the column type is binary.
func Scan(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	binary := make([]bool, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			binary[i] = isBinaryType(ct.DatabaseTypeName())
		}
	}

	result := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok && !binary[i] {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	for _, t := range binaryTypes {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}
