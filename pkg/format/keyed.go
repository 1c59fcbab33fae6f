package format

import (
	"fmt"

	"github.com/txn2/mcp-querydsl/pkg/query"
)

// Keyed builds a lookup from each row's columnKey value. With no valueKeys
// the value is the whole row, with one it is that scalar, and with several
// it is a record of those columns. When keys repeat, the last row wins.
func Keyed(res *query.Result, columnKey string, valueKeys []string) (map[string]any, error) {
	if res == nil {
		res = &query.Result{}
	}
	keyIdx := res.Index(columnKey)
	if keyIdx < 0 {
		return nil, &KeyError{Err: ErrInvalidColumnKey, Key: columnKey, Available: res.Columns}
	}
	valueIdx := make([]int, len(valueKeys))
	for i, k := range valueKeys {
		valueIdx[i] = res.Index(k)
		if valueIdx[i] < 0 {
			return nil, &KeyError{Err: ErrInvalidValueKey, Key: k, Available: res.Columns}
		}
	}

	out := make(map[string]any, len(res.Rows))
	for _, row := range res.Rows {
		key := keyString(row[keyIdx])
		switch len(valueIdx) {
		case 0:
			out[key] = NewRecord(res.Columns, row)
		case 1:
			out[key] = row[valueIdx[0]]
		default:
			values := make([]any, len(valueIdx))
			for i, idx := range valueIdx {
				values[i] = row[idx]
			}
			out[key] = NewRecord(valueKeys, values)
		}
	}
	return out, nil
}

func keyString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
