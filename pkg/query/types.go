// Package query is the execution side of the interpreter: named datasources,
// SQL dialects, and scanning of driver rows into a native result.
package query

// Result is the native result handle produced by running a query. Rows are
// aligned positionally to Columns.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Count returns the number of rows.
func (r *Result) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Column returns the values of one column, or false if it does not exist.
func (r *Result) Column(name string) ([]any, bool) {
	idx := r.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Index returns the position of a column, or -1.
func (r *Result) Index(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
