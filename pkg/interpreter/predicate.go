package interpreter

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/mcp-querydsl/pkg/action"
)

// isCondition reports whether k renders a where or join condition.
func isCondition(k action.Kind) bool {
	s := string(k)
	return strings.HasPrefix(s, "where") || strings.HasPrefix(s, "orWhere") ||
		k == action.On || k == action.OrOn
}

// isOr reports whether k joins its clause with OR.
func isOr(k action.Kind) bool {
	s := string(k)
	return strings.HasPrefix(s, "orWhere") || strings.HasPrefix(s, "orHaving") || k == action.OrOn
}

func negated(k action.Kind) bool {
	return strings.Contains(string(k), "Not")
}

// predicate renders a condition-bearing action. A nil predicate means the
// action contributes nothing.
func (in *Interpreter) predicate(a action.Action, args action.Args) (sq.Sqlizer, error) {
	not := negated(a.Kind)
	switch v := args.(type) {
	case action.WhereArgs:
		switch a.Kind {
		case action.WhereNotLike:
			return compare(v.Column, "NOT LIKE", v.Value), nil
		case action.WhereNot, action.OrWhereNot:
			return sq.ConcatExpr("NOT (", compare(v.Column, v.Operator, v.Value), ")"), nil
		}
		return compare(v.Column, v.Operator, v.Value), nil

	case action.InArgs:
		if len(a.Query) > 0 {
			sub, err := in.subquery(a)
			if err != nil {
				return nil, err
			}
			op := " IN ("
			if not {
				op = " NOT IN ("
			}
			return sq.ConcatExpr(v.Column+op, sub, ")"), nil
		}
		if v.Values == nil {
			return nil, malformed(a, "requires values or a nested query")
		}
		// An empty list renders (1=0) for IN and (1=1) for NOT IN.
		if not {
			return sq.NotEq{v.Column: v.Values}, nil
		}
		return sq.Eq{v.Column: v.Values}, nil

	case action.BetweenArgs:
		op := " BETWEEN ? AND ?"
		if not {
			op = " NOT BETWEEN ? AND ?"
		}
		return sq.Expr(v.Column+op, v.Start, v.End), nil

	case action.ColumnArgs:
		if not {
			return sq.NotEq{v.Column: nil}, nil
		}
		return sq.Eq{v.Column: nil}, nil

	case action.CompareArgs:
		return sq.Expr(v.First + " " + v.Operator + " " + v.Second), nil

	case action.RawArgs:
		return sq.Expr("("+v.SQL+")", v.Bindings...), nil

	case action.FlagArgs:
		if !v.Enabled {
			return nil, nil
		}
		if a.Kind == action.WhereNested || a.Kind == action.OrWhereNested {
			return in.nestedWhere(a)
		}
		sub, err := in.subquery(a)
		if err != nil {
			return nil, err
		}
		op := "EXISTS ("
		if not {
			op = "NOT EXISTS ("
		}
		return sq.ConcatExpr(op, sub, ")"), nil
	}
	return nil, malformed(a, "unexpected condition arguments %T", args)
}

// compare renders "column operator value" with squirrel's predicate types
// where one exists. A nil value with = or IS renders IS NULL.
func compare(col, op string, v any) sq.Sqlizer {
	switch op {
	case "=":
		return sq.Eq{col: v}
	case "<>":
		return sq.NotEq{col: v}
	case "<":
		return sq.Lt{col: v}
	case "<=":
		return sq.LtOrEq{col: v}
	case ">":
		return sq.Gt{col: v}
	case ">=":
		return sq.GtOrEq{col: v}
	case "LIKE":
		return sq.Like{col: v}
	case "NOT LIKE":
		return sq.NotLike{col: v}
	case "ILIKE":
		return sq.ILike{col: v}
	case "NOT ILIKE":
		return sq.NotILike{col: v}
	case "IS":
		if v == nil {
			return sq.Eq{col: nil}
		}
	case "IS NOT":
		if v == nil {
			return sq.NotEq{col: nil}
		}
	}
	return sq.Expr(col+" "+op+" ?", v)
}
