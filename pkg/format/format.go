// Package format shapes query results for callers: keyed rows, typed
// tables, keyed lookups, the native result, and pagination envelopes.
package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/txn2/mcp-querydsl/pkg/query"
)

// Type names a result shape.
type Type string

// Result shapes.
const (
	Array   Type = "array"
	Query   Type = "query"
	Tabular Type = "tabular"
	Struct  Type = "struct"
)

var (
	// ErrInvalidSpec is returned for an unrecognized return format.
	ErrInvalidSpec = errors.New("invalid return format")

	// ErrInvalidColumnKey is wrapped by KeyError when columnKey is unknown.
	ErrInvalidColumnKey = errors.New("invalid column key")

	// ErrInvalidValueKey is wrapped by KeyError when a valueKeys entry is unknown.
	ErrInvalidValueKey = errors.New("invalid value key")
)

// KeyError reports a struct key that names no result column.
type KeyError struct {
	Err       error
	Key       string
	Available []string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %q: available columns are %s", e.Err, e.Key, strings.Join(e.Available, ", "))
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// Spec is a parsed return format.
type Spec struct {
	Type      Type     `json:"type"`
	ColumnKey string   `json:"columnKey,omitempty"`
	ValueKeys []string `json:"valueKeys,omitempty"`
}

// IsZero reports whether the spec is unset.
func (s Spec) IsZero() bool {
	return s.Type == ""
}

// ParseSpec accepts "array", "query", "tabular", "struct",
// ["struct", columnKey, valueKeys...], or {type, columnKey, valueKeys}.
// A nil value yields the zero Spec.
func ParseSpec(v any) (Spec, error) {
	var s Spec
	switch val := v.(type) {
	case nil:
		return Spec{}, nil
	case Spec:
		s = val
	case Type:
		s.Type = val
	case string:
		s.Type = Type(val)
	case []any:
		if len(val) == 0 {
			return Spec{}, fmt.Errorf("%w: empty list", ErrInvalidSpec)
		}
		t, ok := val[0].(string)
		if !ok {
			return Spec{}, fmt.Errorf("%w: type must be a string, got %T", ErrInvalidSpec, val[0])
		}
		s.Type = Type(t)
		if len(val) > 1 {
			key, ok := val[1].(string)
			if !ok {
				return Spec{}, fmt.Errorf("%w: columnKey must be a string, got %T", ErrInvalidSpec, val[1])
			}
			s.ColumnKey = key
		}
		keys, err := stringList(val[min(2, len(val)):])
		if err != nil {
			return Spec{}, err
		}
		s.ValueKeys = keys
	case map[string]any:
		for k := range val {
			switch k {
			case "type", "columnKey", "valueKeys":
			default:
				return Spec{}, fmt.Errorf("%w: unknown key %s", ErrInvalidSpec, k)
			}
		}
		t, ok := val["type"].(string)
		if !ok {
			return Spec{}, fmt.Errorf("%w: type is required", ErrInvalidSpec)
		}
		s.Type = Type(t)
		if key, ok := val["columnKey"]; ok && key != nil {
			str, ok := key.(string)
			if !ok {
				return Spec{}, fmt.Errorf("%w: columnKey must be a string, got %T", ErrInvalidSpec, key)
			}
			s.ColumnKey = str
		}
		switch keys := val["valueKeys"].(type) {
		case nil:
		case string:
			s.ValueKeys = []string{keys}
		case []any:
			list, err := stringList(keys)
			if err != nil {
				return Spec{}, err
			}
			s.ValueKeys = list
		default:
			return Spec{}, fmt.Errorf("%w: valueKeys must be a list, got %T", ErrInvalidSpec, keys)
		}
	default:
		return Spec{}, fmt.Errorf("%w: unsupported value %T", ErrInvalidSpec, v)
	}

	s.Type = Type(strings.ToLower(string(s.Type)))
	return s, s.validate()
}

func (s Spec) validate() error {
	switch s.Type {
	case Array, Query, Tabular:
		if s.ColumnKey != "" || len(s.ValueKeys) > 0 {
			return fmt.Errorf("%w: %s takes no keys", ErrInvalidSpec, s.Type)
		}
	case Struct:
		if s.ColumnKey == "" {
			return fmt.Errorf("%w: struct requires a columnKey", ErrInvalidSpec)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSpec, s.Type)
	}
	return nil
}

func stringList(items []any) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		// ["struct", "id", ["a", "b"]] nests the value keys.
		if nested, ok := item.([]any); ok {
			keys, err := stringList(nested)
			if err != nil {
				return nil, err
			}
			out = append(out, keys...)
			continue
		}
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: valueKeys must be strings, got %T", ErrInvalidSpec, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Choose parses candidates in priority order and returns the first one that
// is set. With none set the result is Array.
func Choose(candidates ...any) (Spec, error) {
	for _, c := range candidates {
		if s, ok := c.(string); ok && s == "" {
			continue
		}
		s, err := ParseSpec(c)
		if err != nil {
			return Spec{}, err
		}
		if !s.IsZero() {
			return s, nil
		}
	}
	return Spec{Type: Array}, nil
}

// Format shapes res according to spec.
func Format(res *query.Result, spec Spec) (any, error) {
	switch spec.Type {
	case Array, "":
		return Records(res), nil
	case Query:
		return res, nil
	case Tabular:
		return NewTable(res), nil
	case Struct:
		return Keyed(res, spec.ColumnKey, spec.ValueKeys)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSpec, spec.Type)
	}
}

// FormatOne shapes a result of at most one row, as first and find return.
// Array yields the single record or nil; other shapes match Format.
func FormatOne(res *query.Result, spec Spec) (any, error) {
	if spec.Type == Array || spec.Type == "" {
		if res.Count() == 0 {
			return nil, nil
		}
		return NewRecord(res.Columns, res.Rows[0]), nil
	}
	return Format(res, spec)
}
