package action

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/txn2/mcp-querydsl/pkg/params"
)

// Normalize converts resolved arguments of kind into its canonical record.
// Positional sequences, named mappings, and bare scalars are all accepted
// where the kind's shape allows them.
func Normalize(kind Kind, raw any, pos int) (Args, error) {
	sh, ok := shapes[kind]
	if !ok {
		return nil, malformed(kind, pos, "unknown action kind")
	}

	switch sh.family {
	case famColumns:
		return normalizeColumns(kind, raw, pos)
	case famFlag, famExecutor:
		return normalizeFlag(kind, sh, raw, pos)
	}

	m, err := named(kind, sh, raw, pos)
	if err != nil {
		return nil, err
	}
	r := reader{kind: kind, pos: pos, m: m}

	switch sh.family {
	case famTable:
		name, alias, err := r.table("table")
		return TableArgs{Table: name, Alias: alias}, err
	case famRaw:
		return r.raw()
	case famName:
		name, err := r.ident(sh.fields[0])
		return NameArgs{Name: name}, err
	case famWhere:
		return r.where()
	case famLike:
		col, err := r.ident("column")
		if err != nil {
			return nil, err
		}
		v, err := r.required("value")
		return WhereArgs{Column: col, Operator: "LIKE", Value: v}, err
	case famIn:
		col, err := r.ident("column")
		if err != nil {
			return nil, err
		}
		return InArgs{Column: col, Values: r.list("values")}, nil
	case famBetween:
		return r.between()
	case famColumn:
		col, err := r.column("column")
		return ColumnArgs{Column: col}, err
	case famCompare:
		return r.compare()
	case famJoin, famJoinSub:
		return r.join(sh.family == famJoinSub)
	case famOrder:
		return r.order()
	case famNumber:
		n, err := r.number("value", true)
		return NumberArgs{Value: uint64(n)}, err
	case famPage:
		page, err := r.number("page", false)
		if err != nil {
			return nil, err
		}
		maxRows, err := r.number("maxRows", false)
		return PageArgs{Page: page, MaxRows: maxRows}, err
	case famFind:
		id, err := r.required("id")
		if err != nil {
			return nil, err
		}
		col := "id"
		if _, ok := m["column"]; ok {
			if col, err = r.ident("column"); err != nil {
				return nil, err
			}
		}
		return FindArgs{ID: id, Column: col}, nil
	case famAggregate:
		col := "*"
		if v, ok := m["column"]; ok && v != nil && v != "*" {
			if col, err = r.ident("column"); err != nil {
				return nil, err
			}
		}
		return ColumnArgs{Column: col}, nil
	default:
		return nil, malformed(kind, pos, "no normalizer for action kind")
	}
}

// Positional returns the arguments in positional order, for gate evaluation.
func Positional(kind Kind, raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		if shapes[kind].family == famColumns {
			return []any{v}
		}
		return v
	case map[string]any:
		fields := shapes[kind].fields
		out := make([]any, 0, len(fields))
		for _, f := range fields {
			if val, ok := v[f]; ok {
				out = append(out, val)
			}
		}
		return out
	default:
		return []any{v}
	}
}

// named maps raw arguments onto the shape's field names.
func named(kind Kind, sh shape, raw any, pos int) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		var unknown []string
		for k := range v {
			if !contains(sh.fields, k) {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, malformed(kind, pos, "unknown keys %s; expected %s",
				strings.Join(unknown, ", "), strings.Join(sh.fields, ", "))
		}
		return v, nil
	case []any:
		n := len(v)
		if n < sh.required || n > len(sh.fields) {
			return nil, malformed(kind, pos, "expected %s positional arguments (%s), got %d",
				arity(sh), strings.Join(sh.fields, ", "), n)
		}
		out := make(map[string]any, n)
		if sh.opIndex >= 0 && n == len(sh.fields)-1 {
			j := 0
			for i, f := range sh.fields {
				if i == sh.opIndex {
					continue
				}
				out[f] = v[j]
				j++
			}
			return out, nil
		}
		for i := 0; i < n; i++ {
			out[sh.fields[i]] = v[i]
		}
		return out, nil
	case nil:
		if sh.required == 0 {
			return map[string]any{}, nil
		}
	case bool:
		if v && sh.required == 0 {
			return map[string]any{}, nil
		}
		if sh.scalar && sh.family == famFind {
			return map[string]any{sh.fields[0]: v}, nil
		}
	default:
		if sh.scalar {
			return map[string]any{sh.fields[0]: v}, nil
		}
	}
	return nil, malformed(kind, pos, "expected %s positional arguments (%s) or an object, got %T",
		arity(sh), strings.Join(sh.fields, ", "), raw)
}

func arity(sh shape) string {
	if sh.required == len(sh.fields) {
		return strconv.Itoa(sh.required)
	}
	return fmt.Sprintf("%d to %d", sh.required, len(sh.fields))
}

func normalizeColumns(kind Kind, raw any, pos int) (Args, error) {
	if m, ok := raw.(map[string]any); ok {
		for k := range m {
			if k != "columns" {
				return nil, malformed(kind, pos, "unknown key %s; expected columns", k)
			}
		}
		raw = m["columns"]
	}
	var cols []string
	switch v := raw.(type) {
	case string:
		cols = splitColumnList(v)
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, malformed(kind, pos, "columns must be strings, got %T", item)
			}
			cols = append(cols, splitColumnList(s)...)
		}
	case []string:
		for _, s := range v {
			cols = append(cols, splitColumnList(s)...)
		}
	default:
		return nil, malformed(kind, pos, "expected a column or list of columns, got %T", raw)
	}
	if len(cols) == 0 {
		return nil, malformed(kind, pos, "at least one column is required")
	}
	for _, c := range cols {
		if !ValidColumn(c) {
			return nil, malformed(kind, pos, "invalid column %q", c)
		}
		if kind == GroupBy {
			if _, alias, _ := SplitAlias(c); alias != "" {
				return nil, malformed(kind, pos, "column %q may not carry an alias", c)
			}
		}
	}
	return ColumnsArgs{Columns: cols}, nil
}

// splitColumnList accepts "id, name" as well as "id".
func splitColumnList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeFlag(kind Kind, sh shape, raw any, pos int) (Args, error) {
	switch v := raw.(type) {
	case nil:
		return FlagArgs{Enabled: true}, nil
	case bool:
		if !v && sh.family == famExecutor {
			return nil, malformed(kind, pos, "executor cannot be false")
		}
		return FlagArgs{Enabled: v}, nil
	case map[string]any:
		if len(v) == 0 {
			return FlagArgs{Enabled: true}, nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, malformed(kind, pos, "takes no arguments, got %s", strings.Join(keys, ", "))
	default:
		return nil, malformed(kind, pos, "expected true, got %T", raw)
	}
}

// reader extracts typed fields from a named argument map.
type reader struct {
	kind Kind
	pos  int
	m    map[string]any
}

func (r reader) errorf(format string, args ...any) error {
	return malformed(r.kind, r.pos, format, args...)
}

func (r reader) required(key string) (any, error) {
	v, ok := r.m[key]
	if !ok {
		return nil, r.errorf("missing %s", key)
	}
	return v, nil
}

func (r reader) str(key string) (string, error) {
	v, err := r.required(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", r.errorf("%s must be a non-empty string, got %v", key, v)
	}
	return strings.TrimSpace(s), nil
}

func (r reader) ident(key string) (string, error) {
	s, err := r.str(key)
	if err != nil {
		return "", err
	}
	if !ValidIdent(s) {
		return "", r.errorf("invalid identifier %s %q", key, s)
	}
	return s, nil
}

func (r reader) column(key string) (string, error) {
	s, err := r.str(key)
	if err != nil {
		return "", err
	}
	if !ValidColumn(s) {
		return "", r.errorf("invalid column %q", s)
	}
	return s, nil
}

func (r reader) table(key string) (name, alias string, err error) {
	s, err := r.str(key)
	if err != nil {
		return "", "", err
	}
	name, alias, ok := SplitAlias(s)
	if !ok || name == "*" {
		return "", "", r.errorf("invalid table %q", s)
	}
	return name, alias, nil
}

func (r reader) operator(key string) (string, error) {
	v, ok := r.m[key]
	if !ok || v == nil {
		return "=", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", r.errorf("operator must be a string, got %T", v)
	}
	op, ok := CanonicalOperator(s)
	if !ok {
		return "", r.errorf("unsupported operator %q", s)
	}
	return op, nil
}

// list returns the value under key as a sequence, wrapping scalars.
// A missing key yields nil.
func (r reader) list(key string) []any {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	if seq, ok := params.Sequence(v); ok {
		return seq
	}
	return []any{v}
}

func (r reader) number(key string, required bool) (int, error) {
	v, ok := r.m[key]
	if !ok || v == nil {
		if required {
			return 0, r.errorf("missing %s", key)
		}
		return 0, nil
	}
	n, ok := toInt(v)
	if !ok || n < 0 {
		return 0, r.errorf("%s must be a non-negative integer, got %v", key, v)
	}
	return n, nil
}

func (r reader) raw() (Args, error) {
	sql, err := r.str("sql")
	if err != nil {
		return nil, err
	}
	return RawArgs{SQL: sql, Bindings: r.list("bindings")}, nil
}

func (r reader) where() (Args, error) {
	col, err := r.ident("column")
	if err != nil {
		return nil, err
	}
	op, err := r.operator("operator")
	if err != nil {
		return nil, err
	}
	v, err := r.required("value")
	if err != nil {
		return nil, err
	}
	return WhereArgs{Column: col, Operator: op, Value: v}, nil
}

func (r reader) between() (Args, error) {
	col, err := r.ident("column")
	if err != nil {
		return nil, err
	}
	start, err := r.required("start")
	if err != nil {
		return nil, err
	}
	end, err := r.required("end")
	if err != nil {
		return nil, err
	}
	return BetweenArgs{Column: col, Start: start, End: end}, nil
}

func (r reader) compare() (Args, error) {
	first, err := r.ident("first")
	if err != nil {
		return nil, err
	}
	op, err := r.operator("operator")
	if err != nil {
		return nil, err
	}
	second, err := r.ident("second")
	if err != nil {
		return nil, err
	}
	return CompareArgs{First: first, Operator: op, Second: second}, nil
}

func (r reader) join(sub bool) (Args, error) {
	var out JoinArgs
	if sub {
		alias, err := r.ident("alias")
		if err != nil {
			return nil, err
		}
		out.Alias = alias
	} else {
		name, alias, err := r.table("table")
		if err != nil {
			return nil, err
		}
		out.Table, out.Alias = name, alias
	}

	_, hasFirst := r.m["first"]
	_, hasSecond := r.m["second"]
	if !hasFirst && !hasSecond {
		return out, nil
	}
	cmp, err := r.compare()
	if err != nil {
		return nil, err
	}
	c := cmp.(CompareArgs)
	out.First, out.Operator, out.Second = c.First, c.Operator, c.Second
	return out, nil
}

func (r reader) order() (Args, error) {
	col, err := r.ident("column")
	if err != nil {
		return nil, err
	}
	dir := "ASC"
	if v, ok := r.m["direction"]; ok && v != nil {
		s, _ := v.(string)
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "asc":
		case "desc":
			dir = "DESC"
		default:
			return nil, r.errorf("direction must be asc or desc, got %v", v)
		}
	}
	return OrderArgs{Column: col, Direction: dir}, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return toInt(float64(n))
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
