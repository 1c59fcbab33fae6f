// Package condition evaluates when/else gates attached to query actions.
package condition

import (
	"errors"
	"fmt"
	"sort"

	"github.com/txn2/mcp-querydsl/pkg/params"
)

// ErrInvalidCondition is returned for gate specs outside the grammar.
var ErrInvalidCondition = errors.New("invalid condition")

// Shorthand names accepted as bare strings.
const (
	HasValues = "hasValues"
	NotEmpty  = "notEmpty"
	IsEmpty   = "isEmpty"
)

// Predicate kinds.
const (
	KindGt       = "gt"
	KindGte      = "gte"
	KindLt       = "lt"
	KindLte      = "lte"
	KindEq       = "eq"
	KindNeq      = "neq"
	KindHasValue = "hasValue"
)

// Node is a parsed gate.
type Node interface {
	eval(args []any, p params.Map) bool
}

// Shorthand tests the sequence-typed action arguments.
type Shorthand string

// Const is a literal true/false gate.
type Const bool

// ArgPredicate addresses a 1-based positional argument.
type ArgPredicate struct {
	Kind  string
	Index int
	Value any
}

// ParamPredicate addresses a named parameter.
type ParamPredicate struct {
	Kind  string
	Name  string
	Value any
}

// And is true when every child is true. Evaluation stops at the first false.
type And []Node

// Or is true when any child is true. Evaluation stops at the first true.
type Or []Node

// Not negates its child.
type Not struct {
	Node Node
}

// Evaluate parses spec and evaluates it against the action's positional
// arguments and the parameter map.
func Evaluate(spec any, args []any, p params.Map) (bool, error) {
	node, err := Parse(spec)
	if err != nil {
		return false, err
	}
	return node.eval(args, p), nil
}

// Parse converts a raw gate spec into a Node.
func Parse(spec any) (Node, error) {
	switch s := spec.(type) {
	case bool:
		return Const(s), nil
	case string:
		switch s {
		case HasValues, NotEmpty, IsEmpty:
			return Shorthand(s), nil
		}
		return nil, invalid("unknown shorthand %q", s)
	case map[string]any:
		return parseObject(s)
	default:
		return nil, invalid("unsupported condition type %T", spec)
	}
}

func parseObject(m map[string]any) (Node, error) {
	if name, ok := m["param"]; ok {
		return parseParam(name, m)
	}
	if len(m) != 1 {
		return nil, invalid("condition object must have exactly one key, got %v", keys(m))
	}
	for kind, raw := range m {
		switch kind {
		case "and", "or":
			children, err := parseList(kind, raw)
			if err != nil {
				return nil, err
			}
			if kind == "and" {
				return And(children), nil
			}
			return Or(children), nil
		case "not":
			child, err := Parse(raw)
			if err != nil {
				return nil, err
			}
			return Not{Node: child}, nil
		case NotEmpty, HasValues, IsEmpty:
			idx, err := index(kind, raw)
			if err != nil {
				return nil, err
			}
			return ArgPredicate{Kind: kind, Index: idx}, nil
		case KindGt, KindGte, KindLt, KindLte, KindEq, KindNeq:
			pair, ok := raw.([]any)
			if !ok || len(pair) != 2 {
				return nil, invalid("%s expects [argIndex, value]", kind)
			}
			idx, err := index(kind, pair[0])
			if err != nil {
				return nil, err
			}
			return ArgPredicate{Kind: kind, Index: idx, Value: pair[1]}, nil
		default:
			return nil, invalid("unknown predicate %q", kind)
		}
	}
	return nil, invalid("empty condition")
}

func parseList(kind string, raw any) ([]Node, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, invalid("%s expects a list of conditions", kind)
	}
	out := make([]Node, 0, len(items))
	for _, item := range items {
		child, err := Parse(item)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func parseParam(rawName any, m map[string]any) (Node, error) {
	name, ok := rawName.(string)
	if !ok || name == "" {
		return nil, invalid("param must be a non-empty string")
	}
	if len(m) != 2 {
		return nil, invalid("param predicate needs exactly one kind besides param, got %v", keys(m))
	}
	for kind, value := range m {
		if kind == "param" {
			continue
		}
		switch kind {
		case KindGt, KindGte, KindLt, KindLte, KindEq, KindNeq,
			KindHasValue, NotEmpty, HasValues, IsEmpty:
			return ParamPredicate{Kind: kind, Name: name, Value: value}, nil
		default:
			return nil, invalid("unknown param predicate %q", kind)
		}
	}
	return nil, invalid("param predicate without kind")
}

func index(kind string, raw any) (int, error) {
	f, ok := toFloat(raw)
	if !ok || f < 1 || f != float64(int(f)) {
		return 0, invalid("%s: argument index must be a positive integer, got %v", kind, raw)
	}
	return int(f), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCondition, fmt.Sprintf(format, args...))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
