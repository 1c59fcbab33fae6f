package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrMalformedAction is wrapped by MalformedError.
var ErrMalformedAction = errors.New("malformed action")

// MalformedError reports an action that does not fit the vocabulary.
type MalformedError struct {
	Kind     string
	Position int
	Reason   string
}

func (e *MalformedError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("malformed action at position %d: %s", e.Position, e.Reason)
	}
	return fmt.Sprintf("malformed action %q at position %d: %s", e.Kind, e.Position, e.Reason)
}

// Unwrap returns ErrMalformedAction.
func (*MalformedError) Unwrap() error {
	return ErrMalformedAction
}

func malformed(kind Kind, pos int, format string, args ...any) *MalformedError {
	return &MalformedError{Kind: string(kind), Position: pos, Reason: fmt.Sprintf(format, args...)}
}

// Reserved keys that may accompany the action key in an action object.
const (
	keyWhen         = "when"
	keyElse         = "else"
	keyQuery        = "query"
	keyOn           = "on"
	keyOptions      = "options"
	keyReturnFormat = "returnFormat"
)

// Action is one parsed step of a definition.
type Action struct {
	Kind Kind
	// Args is the raw value of the action key, before resolution.
	Args any
	// When is the raw gate; HasWhen distinguishes an absent gate from null.
	When    any
	HasWhen bool
	// Else replaces the action when the gate is false.
	Else *Action
	// Query is a nested definition for query-composing kinds.
	Query Definition
	// On is a nested conditions list for joins.
	On Definition
	// Options holds executor options such as returnFormat.
	Options map[string]any
	// Position is the zero-based index in the enclosing definition.
	Position int
}

// Definition is an ordered list of actions.
type Definition []Action

// ReturnFormat returns the executor-level returnFormat option, if any.
func (a Action) ReturnFormat() (any, bool) {
	v, ok := a.Options[keyReturnFormat]
	return v, ok && v != nil
}

// ParseJSON decodes a JSON array of action objects.
func ParseJSON(data []byte) (Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding definition: %w", err)
	}
	return Parse(NormalizeNumbers(raw))
}

// Parse converts a decoded definition (a sequence of mappings) into actions.
// The input is not modified.
func Parse(raw any) (Definition, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, &MalformedError{Reason: fmt.Sprintf("definition must be a list of actions, got %T", raw)}
	}
	def := make(Definition, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &MalformedError{Position: i, Reason: fmt.Sprintf("action must be an object, got %T", item)}
		}
		a, err := parseAction(obj, i)
		if err != nil {
			return nil, err
		}
		def = append(def, a)
	}
	return def, nil
}

func parseAction(obj map[string]any, pos int) (Action, error) {
	a := Action{Position: pos, Options: map[string]any{}}
	var actionKeys []string
	for key := range obj {
		switch key {
		case keyWhen, keyElse, keyQuery, keyOn, keyOptions, keyReturnFormat:
		default:
			actionKeys = append(actionKeys, key)
		}
	}
	sort.Strings(actionKeys)

	// "on" doubles as an action kind inside join condition lists.
	if len(actionKeys) == 0 {
		if _, ok := obj[keyOn]; ok {
			actionKeys = []string{keyOn}
		}
	}

	switch len(actionKeys) {
	case 0:
		return a, &MalformedError{Position: pos, Reason: "action object has no action key"}
	case 1:
	default:
		return a, &MalformedError{Position: pos, Reason: "action object has multiple action keys: " + strings.Join(actionKeys, ", ")}
	}

	kind, ok := Lookup(actionKeys[0])
	if !ok {
		return a, &MalformedError{Kind: actionKeys[0], Position: pos, Reason: "unknown action kind"}
	}
	a.Kind = kind
	a.Args = obj[actionKeys[0]]

	if when, ok := obj[keyWhen]; ok {
		a.When = when
		a.HasWhen = true
	}

	if raw, ok := obj[keyElse]; ok {
		elseObj, ok := raw.(map[string]any)
		if !ok {
			return a, malformed(kind, pos, "else must be an action object")
		}
		alt, err := parseAction(elseObj, pos)
		if err != nil {
			return a, err
		}
		a.Else = &alt
	}

	if raw, ok := obj[keyQuery]; ok {
		q, err := Parse(raw)
		if err != nil {
			return a, fmt.Errorf("%s at position %d: nested query: %w", kind, pos, err)
		}
		a.Query = q
	}

	if raw, ok := obj[keyOn]; ok && kind != On {
		on, err := Parse(raw)
		if err != nil {
			return a, fmt.Errorf("%s at position %d: on conditions: %w", kind, pos, err)
		}
		a.On = on
	}

	if raw, ok := obj[keyOptions]; ok {
		opts, ok := raw.(map[string]any)
		if !ok {
			return a, malformed(kind, pos, "options must be an object")
		}
		for k, v := range opts {
			a.Options[k] = v
		}
	}
	if rf, ok := obj[keyReturnFormat]; ok {
		a.Options[keyReturnFormat] = rf
	}

	// Executor named args may carry returnFormat; lift it into Options.
	if kind.IsExecutor() {
		if m, ok := a.Args.(map[string]any); ok {
			if rf, ok := m[keyReturnFormat]; ok {
				a.Options[keyReturnFormat] = rf
				rest := make(map[string]any, len(m)-1)
				for k, v := range m {
					if k != keyReturnFormat {
						rest[k] = v
					}
				}
				a.Args = rest
			}
		}
	}

	return a, nil
}

// NormalizeNumbers converts json.Number values to int64 when integral and
// float64 otherwise, so bindings reach drivers as native numbers.
func NormalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeNumbers(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeNumbers(item)
		}
		return out
	default:
		return v
	}
}
