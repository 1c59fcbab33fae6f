package format

import (
	"bytes"
	"encoding/json"

	"github.com/txn2/mcp-querydsl/pkg/query"
)

// Record is one row keyed by column name. It marshals to a JSON object with
// keys in column order.
type Record struct {
	keys   []string
	values []any
}

// NewRecord pairs columns with one row's values.
func NewRecord(columns []string, values []any) Record {
	return Record{keys: columns, values: values}
}

// Records converts every row of res.
func Records(res *query.Result) []Record {
	out := make([]Record, 0, res.Count())
	if res == nil {
		return out
	}
	for _, row := range res.Rows {
		out = append(out, NewRecord(res.Columns, row))
	}
	return out
}

// Keys returns the column names in order.
func (r Record) Keys() []string {
	return r.keys
}

// Get returns the value of a column. When a column name repeats, the last
// occurrence wins, as it does in the JSON form.
func (r Record) Get(key string) (any, bool) {
	for i := len(r.keys) - 1; i >= 0; i-- {
		if r.keys[i] == key {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the record as an unordered map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for i, k := range r.keys {
		m[k] = r.values[i]
	}
	return m
}

// MarshalJSON writes the record as an object in column order. A repeated
// column appears once, at its first position, with its last value.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]bool, len(r.keys))
	for _, k := range r.keys {
		if seen[k] {
			continue
		}
		if len(seen) > 0 {
			buf.WriteByte(',')
		}
		seen[k] = true

		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		v, _ := r.Get(k)
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
