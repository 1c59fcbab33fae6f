// Package params resolves runtime parameter references inside query
// definitions.
//
// Two forms are supported. A mapping of the exact shape {"$param": "name"}
// is replaced wholesale by the parameter value, and a missing parameter is
// an error. Inside strings, $name$ tokens are replaced by scalar parameter
// values; tokens naming absent or non-scalar parameters are left in place.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
)

// RefKey is the single key of a parameter reference mapping.
const RefKey = "$param"

// ErrParamNotFound is wrapped by ResolutionError.
var ErrParamNotFound = errors.New("parameter not found")

// ResolutionError names a referenced parameter that was not supplied.
type ResolutionError struct {
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("parameter %q referenced but not supplied", e.Name)
}

// Unwrap returns ErrParamNotFound.
func (*ResolutionError) Unwrap() error {
	return ErrParamNotFound
}

// Map holds caller-supplied parameter values. It is never modified.
type Map map[string]any

// templatePattern matches $name$ tokens.
var templatePattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_.]*)\$`)

// Resolve returns v with every parameter reference substituted. The input is
// not modified; containers are copied as they are walked.
func Resolve(v any, p Map) (any, error) {
	return resolve(v, p, true)
}

// ResolveLenient is Resolve with absent references resolved to nil. It is
// meant for gate evaluation, where a missing parameter simply fails a check.
func ResolveLenient(v any, p Map) any {
	out, _ := resolve(v, p, false)
	return out
}

func resolve(v any, p Map, strict bool) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if name, ok := RefName(val); ok {
			got, found := p[name]
			if !found {
				if strict {
					return nil, &ResolutionError{Name: name}
				}
				return nil, nil
			}
			if seq, ok := Sequence(got); ok {
				return seq, nil
			}
			return got, nil
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := resolve(item, p, strict)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := resolve(item, p, strict)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case string:
		return Interpolate(val, p), nil
	default:
		return v, nil
	}
}

// Sequence reports whether v is a slice or array and returns its elements
// as []any. Byte slices are values, not sequences.
func Sequence(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return val, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return []any{}, true
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// RefName reports whether m is a parameter reference and returns its name.
func RefName(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	raw, ok := m[RefKey]
	if !ok {
		return "", false
	}
	name, ok := raw.(string)
	return name, ok
}

// Interpolate replaces $name$ tokens whose parameter is a string or number.
func Interpolate(s string, p Map) string {
	if len(p) == 0 {
		return s
	}
	return templatePattern.ReplaceAllStringFunc(s, func(token string) string {
		name := token[1 : len(token)-1]
		if str, ok := scalarString(p[name]); ok {
			return str
		}
		return token
	})
}

// scalarString stringifies strings and numbers. Anything else is not a
// template scalar.
func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}
