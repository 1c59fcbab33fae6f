package format

import (
	"encoding/json"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/mcp-querydsl/pkg/query"
)

// ColumnType is an inferred column type.
type ColumnType string

// Column types, inferred from runtime values rather than schema metadata.
const (
	TypeInteger  ColumnType = "integer"
	TypeBigint   ColumnType = "bigint"
	TypeDecimal  ColumnType = "decimal"
	TypeVarchar  ColumnType = "varchar"
	TypeBoolean  ColumnType = "boolean"
	TypeDatetime ColumnType = "datetime"
	TypeUUID     ColumnType = "uuid"
	TypeObject   ColumnType = "object"
	TypeArray    ColumnType = "array"
	TypeBinary   ColumnType = "binary"
	TypeUnknown  ColumnType = "unknown"
)

// Column describes one tabular column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Table is the tabular shape: typed columns and positional rows.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable infers each column's type from its first non-null value.
func NewTable(res *query.Result) *Table {
	t := &Table{Columns: []Column{}, Rows: [][]any{}}
	if res == nil {
		return t
	}
	for i, name := range res.Columns {
		typ := TypeUnknown
		for _, row := range res.Rows {
			if row[i] != nil {
				typ = Infer(row[i])
				break
			}
		}
		t.Columns = append(t.Columns, Column{Name: name, Type: typ})
	}
	if res.Rows != nil {
		t.Rows = res.Rows
	}
	return t
}

// Infer maps a value's runtime type to a column type.
func Infer(v any) ColumnType {
	switch val := v.(type) {
	case nil:
		return TypeUnknown
	case bool:
		return TypeBoolean
	case int8, int16, int32, uint8, uint16:
		return TypeInteger
	case int:
		return intType(int64(val))
	case int64:
		return intType(val)
	case uint32:
		return intType(int64(val))
	case uint, uint64:
		return TypeBigint
	case float32, float64:
		return TypeDecimal
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return intType(n)
		}
		return TypeDecimal
	case string:
		if len(val) == 36 {
			if _, err := uuid.Parse(val); err == nil {
				return TypeUUID
			}
		}
		return TypeVarchar
	case []byte:
		return TypeBinary
	case time.Time:
		return TypeDatetime
	case uuid.UUID:
		return TypeUUID
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Struct:
		return TypeObject
	case reflect.Slice, reflect.Array:
		return TypeArray
	default:
		return TypeUnknown
	}
}

func intType(n int64) ColumnType {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return TypeInteger
	}
	return TypeBigint
}
