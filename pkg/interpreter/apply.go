package interpreter

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/mcp-querydsl/pkg/action"
	"github.com/txn2/mcp-querydsl/pkg/params"
)

var joinKeywords = map[action.Kind]string{
	action.Join:        "JOIN",
	action.InnerJoin:   "INNER JOIN",
	action.LeftJoin:    "LEFT JOIN",
	action.RightJoin:   "RIGHT JOIN",
	action.CrossJoin:   "CROSS JOIN",
	action.JoinRaw:     "JOIN",
	action.LeftJoinRaw: "LEFT JOIN",
	action.JoinSub:     "JOIN",
	action.LeftJoinSub: "LEFT JOIN",
}

// dispatch applies a normalized action to the build state.
func (in *Interpreter) dispatch(a action.Action, args action.Args) error {
	if err := in.allowedHere(a); err != nil {
		return err
	}
	if a.Kind.IsExecutor() {
		return in.setExecutor(a, args)
	}

	st := in.st
	switch a.Kind {
	case action.From, action.Table:
		st.from = in.tableRef(args.(action.TableArgs))
		st.fromSub = nil
	case action.FromRaw:
		raw := args.(action.RawArgs)
		if len(raw.Bindings) > 0 {
			return malformed(a, "bindings are not supported")
		}
		st.from = raw.SQL
		st.fromSub = nil
	case action.FromSub:
		sub, err := in.subquery(a)
		if err != nil {
			return err
		}
		st.fromSub = &derived{body: sub, alias: args.(action.NameArgs).Name}
		st.from = ""

	case action.Select:
		st.columns = columnExprs(args.(action.ColumnsArgs).Columns)
	case action.AddSelect:
		st.columns = append(st.columns, columnExprs(args.(action.ColumnsArgs).Columns)...)
	case action.SelectRaw:
		raw := args.(action.RawArgs)
		st.columns = append(st.columns, sq.Expr(raw.SQL, raw.Bindings...))
	case action.SubSelect:
		sub, err := in.subquery(a)
		if err != nil {
			return err
		}
		st.columns = append(st.columns, sq.Alias(sub, args.(action.NameArgs).Name))
	case action.Distinct:
		st.distinct = args.(action.FlagArgs).Enabled

	case action.Join, action.InnerJoin, action.LeftJoin, action.RightJoin, action.CrossJoin,
		action.JoinRaw, action.LeftJoinRaw, action.JoinSub, action.LeftJoinSub:
		return in.join(a, args)

	case action.GroupBy:
		st.groups = append(st.groups, columnList(args.(action.ColumnsArgs).Columns)...)
	case action.GroupByRaw:
		raw := args.(action.RawArgs)
		if len(raw.Bindings) > 0 {
			return malformed(a, "bindings are not supported")
		}
		st.groups = append(st.groups, raw.SQL)
	case action.Having, action.OrHaving, action.HavingRaw, action.OrHavingRaw:
		pred, err := in.predicate(a, args)
		if err != nil {
			return err
		}
		st.havings = append(st.havings, clause{or: isOr(a.Kind), expr: pred})

	case action.OrderBy:
		o := args.(action.OrderArgs)
		st.orders = append(st.orders, sq.Expr(o.Column+" "+o.Direction))
	case action.OrderByAsc:
		st.orders = append(st.orders, sq.Expr(args.(action.ColumnArgs).Column+" ASC"))
	case action.OrderByDesc:
		st.orders = append(st.orders, sq.Expr(args.(action.ColumnArgs).Column+" DESC"))
	case action.OrderByRaw:
		raw := args.(action.RawArgs)
		st.orders = append(st.orders, sq.Expr(raw.SQL, raw.Bindings...))
	case action.Reorder, action.ClearOrders:
		if args.(action.FlagArgs).Enabled {
			st.orders = nil
		}
	case action.Limit, action.Take:
		n := args.(action.NumberArgs).Value
		st.limit = &n
	case action.Offset, action.Skip:
		n := args.(action.NumberArgs).Value
		st.offset = &n
	case action.ForPage:
		p := args.(action.PageArgs)
		limit, offset := in.page(p)
		st.limit, st.offset = &limit, &offset

	case action.With, action.WithRecursive:
		name := args.(action.NameArgs).Name
		// Only a recursive CTE may name itself in its body; elsewhere the
		// name still means the real table there.
		if a.Kind == action.WithRecursive {
			in.scope.Grant(name)
		}
		sub, err := in.subquery(a)
		if err != nil {
			return err
		}
		if a.Kind == action.With {
			in.scope.Grant(name)
		}
		st.ctes = append(st.ctes, cte{name: name, body: sub})
		st.recursive = st.recursive || a.Kind == action.WithRecursive
	case action.Union, action.UnionAll:
		if !args.(action.FlagArgs).Enabled {
			return nil
		}
		sub, err := in.subquery(a)
		if err != nil {
			return err
		}
		kw := "UNION "
		if a.Kind == action.UnionAll {
			kw = "UNION ALL "
		}
		st.unions = append(st.unions, sq.ConcatExpr(kw, sub))

	case action.LockForUpdate:
		if args.(action.FlagArgs).Enabled {
			st.lock = in.cfg.Dialect.ForUpdate
		}
	case action.SharedLock:
		if args.(action.FlagArgs).Enabled {
			st.lock = in.cfg.Dialect.ForShare
		}
	case action.NoLock:
		if args.(action.FlagArgs).Enabled {
			st.lock = ""
		}

	default:
		if !isCondition(a.Kind) {
			return malformed(a, "no handler for action kind")
		}
		pred, err := in.predicate(a, args)
		if err != nil || pred == nil {
			return err
		}
		st.wheres = append(st.wheres, clause{or: isOr(a.Kind), expr: pred})
	}
	return nil
}

// allowedHere rejects kinds that do not belong in the current definition.
func (in *Interpreter) allowedHere(a action.Action) error {
	onKind := a.Kind == action.On || a.Kind == action.OrOn
	switch in.mode {
	case modeWhere:
		if !isCondition(a.Kind) || onKind {
			return malformed(a, "only where actions are allowed in a nested where")
		}
	case modeOn:
		if !isCondition(a.Kind) {
			return malformed(a, "only on and where actions are allowed in a join condition list")
		}
	default:
		if onKind {
			return malformed(a, "only allowed in a join condition list")
		}
	}
	if in.nested && a.Kind.IsExecutor() {
		return malformed(a, "executor not allowed in a nested query")
	}
	return nil
}

func (in *Interpreter) setExecutor(a action.Action, args action.Args) error {
	opts, err := params.Resolve(map[string]any(a.Options), in.params)
	if err != nil {
		return fmt.Errorf("%s at position %d: options: %w", a.Kind, a.Position, err)
	}
	options, _ := opts.(map[string]any)
	in.exec = &executor{kind: a.Kind, args: args, options: options}
	return nil
}

// join appends one join clause.
func (in *Interpreter) join(a action.Action, args action.Args) error {
	kw := joinKeywords[a.Kind]
	switch v := args.(type) {
	case action.TableArgs:
		in.st.joins = append(in.st.joins, sq.Expr(kw+" "+in.tableRef(v)))
	case action.RawArgs:
		in.st.joins = append(in.st.joins, sq.Expr(kw+" "+v.SQL, v.Bindings...))
	case action.JoinArgs:
		var target any
		if a.Kind == action.JoinSub || a.Kind == action.LeftJoinSub {
			sub, err := in.subquery(a)
			if err != nil {
				return err
			}
			target = sq.Alias(sub, v.Alias)
		} else {
			target = in.tableRef(action.TableArgs{Table: v.Table, Alias: v.Alias})
		}
		on, err := in.onClause(a, v)
		if err != nil {
			return err
		}
		in.st.joins = append(in.st.joins, sq.ConcatExpr(kw+" ", target, " ON ", on))
	default:
		return malformed(a, "unexpected join arguments %T", args)
	}
	return nil
}

// onClause renders a join condition from inline columns or an on list.
func (in *Interpreter) onClause(a action.Action, v action.JoinArgs) (sq.Sqlizer, error) {
	if v.First != "" {
		if len(a.On) > 0 {
			return nil, malformed(a, "join columns and an on list are mutually exclusive")
		}
		return sq.Expr(v.First + " " + v.Operator + " " + v.Second), nil
	}
	if len(a.On) == 0 {
		return nil, malformed(a, "requires join columns or an on list")
	}
	ch, err := in.child(modeOn)
	if err != nil {
		return nil, err
	}
	if err := ch.apply(a.On); err != nil {
		return nil, fmt.Errorf("%s at position %d: on: %w", a.Kind, a.Position, err)
	}
	if len(ch.st.wheres) == 0 {
		return nil, malformed(a, "on list produced no conditions")
	}
	return ch.st.wheres, nil
}

// subquery interprets a's nested query and returns its builder.
func (in *Interpreter) subquery(a action.Action) (sq.SelectBuilder, error) {
	if len(a.Query) == 0 {
		return sq.SelectBuilder{}, malformed(a, "requires a nested query")
	}
	ch, err := in.child(modeQuery)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	if err := ch.apply(a.Query); err != nil {
		return sq.SelectBuilder{}, fmt.Errorf("%s at position %d: nested query: %w", a.Kind, a.Position, err)
	}
	return ch.st.render(sq.StatementBuilder), nil
}

// nestedWhere interprets a's nested query as a parenthesized condition
// group. An empty group yields nil.
func (in *Interpreter) nestedWhere(a action.Action) (sq.Sqlizer, error) {
	if len(a.Query) == 0 {
		return nil, malformed(a, "requires a nested query")
	}
	ch, err := in.child(modeWhere)
	if err != nil {
		return nil, err
	}
	if err := ch.apply(a.Query); err != nil {
		return nil, fmt.Errorf("%s at position %d: nested query: %w", a.Kind, a.Position, err)
	}
	if len(ch.st.wheres) == 0 {
		return nil, nil
	}
	return sq.ConcatExpr("(", ch.st.wheres, ")"), nil
}

// tableRef resolves a table through the scope. An aliased friendly name
// keeps the friendly name as its SQL alias.
func (in *Interpreter) tableRef(t action.TableArgs) string {
	resolved := in.scope.Resolve(t.Table)
	alias := t.Alias
	if alias == "" && resolved != t.Table && !strings.Contains(t.Table, ".") {
		alias = t.Table
	}
	if alias == "" {
		return resolved
	}
	return resolved + " AS " + alias
}

// page converts a page request to limit and offset.
func (in *Interpreter) page(p action.PageArgs) (limit, offset uint64) {
	return pageBounds(p, in.cfg.maxRows())
}

func pageBounds(p action.PageArgs, defaultRows int) (limit, offset uint64) {
	page, rows := p.Page, p.MaxRows
	if page < 1 {
		page = 1
	}
	if rows < 1 {
		rows = defaultRows
	}
	return uint64(rows), uint64((page - 1) * rows)
}

func columnExprs(cols []string) []sq.Sqlizer {
	out := make([]sq.Sqlizer, 0, len(cols))
	for _, c := range columnList(cols) {
		out = append(out, sq.Expr(c))
	}
	return out
}

// columnList canonicalizes "name as alias" spellings.
func columnList(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if name, alias, _ := action.SplitAlias(c); alias != "" {
			c = name + " AS " + alias
		} else {
			c = name
		}
		out = append(out, c)
	}
	return out
}
