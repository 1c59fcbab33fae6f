package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/txn2/mcp-querydsl/pkg/params"
)

func (c Const) eval(_ []any, _ params.Map) bool {
	return bool(c)
}

func (s Shorthand) eval(args []any, _ params.Map) bool {
	for _, arg := range args {
		seq, ok := params.Sequence(arg)
		if !ok {
			continue
		}
		if s == IsEmpty && len(seq) == 0 {
			return true
		}
		if s != IsEmpty && len(seq) > 0 {
			return true
		}
	}
	return false
}

func (a ArgPredicate) eval(args []any, _ params.Map) bool {
	var v any
	if a.Index <= len(args) {
		v = args[a.Index-1]
	}
	switch a.Kind {
	case NotEmpty, HasValues:
		return !isEmpty(v)
	case IsEmpty:
		return isEmpty(v)
	default:
		return compare(a.Kind, v, a.Value)
	}
}

func (pp ParamPredicate) eval(_ []any, p params.Map) bool {
	v, present := p[pp.Name]
	switch pp.Kind {
	case KindHasValue:
		if want, ok := pp.Value.(bool); ok && !want {
			return !present
		}
		return present
	case NotEmpty, HasValues:
		return present && !isEmpty(v)
	case IsEmpty:
		return !present || isEmpty(v)
	default:
		if !present {
			return pp.Kind == KindNeq
		}
		return compare(pp.Kind, v, pp.Value)
	}
}

func (a And) eval(args []any, p params.Map) bool {
	for _, n := range a {
		if !n.eval(args, p) {
			return false
		}
	}
	return true
}

func (o Or) eval(args []any, p params.Map) bool {
	for _, n := range o {
		if n.eval(args, p) {
			return true
		}
	}
	return false
}

func (n Not) eval(args []any, p params.Map) bool {
	return !n.Node.eval(args, p)
}

// isEmpty treats nil, "", and empty sequences or mappings as empty.
func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	default:
		if seq, ok := params.Sequence(v); ok {
			return len(seq) == 0
		}
		return false
	}
}

// compare applies a comparison kind. Numbers (and numeric strings) compare
// numerically when both sides are numeric; everything else compares as text.
func compare(kind string, left, right any) bool {
	if kind == KindNeq {
		return !compare(KindEq, left, right)
	}
	if left == nil || right == nil {
		return kind == KindEq && left == nil && right == nil
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	var cmp int
	if lok && rok {
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(fmt.Sprint(left), fmt.Sprint(right))
	}

	switch kind {
	case KindEq:
		return cmp == 0
	case KindGt:
		return cmp > 0
	case KindGte:
		return cmp >= 0
	case KindLt:
		return cmp < 0
	case KindLte:
		return cmp <= 0
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
