package interpreter

import (
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// clause is one link of a where or having chain.
type clause struct {
	or   bool
	expr sq.Sqlizer
}

// clauses renders a chain in input order. SQL gives AND precedence over
// OR, so "a AND b OR c" groups as "(a AND b) OR c".
type clauses []clause

func (c clauses) ToSql() (string, []any, error) {
	var (
		sb   strings.Builder
		args []any
	)
	for i, cl := range c {
		sql, a, err := cl.expr.ToSql()
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			if cl.or {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		sb.WriteString(sql)
		args = append(args, a...)
	}
	return sb.String(), args, nil
}

type cte struct {
	name string
	body sq.SelectBuilder
}

type derived struct {
	body  sq.SelectBuilder
	alias string
}

// state is the ordered build state of one definition. It is rendered to a
// squirrel builder only when needed, so executors can derive variants.
type state struct {
	ctes      []cte
	recursive bool
	distinct  bool
	columns   []sq.Sqlizer
	from      string
	fromSub   *derived
	joins     []sq.Sqlizer
	wheres    clauses
	groups    []string
	havings   clauses
	orders    []sq.Sqlizer
	limit     *uint64
	offset    *uint64
	unions    []sq.Sqlizer
	lock      string
}

func (s *state) clone() *state {
	c := *s
	c.ctes = slices.Clone(s.ctes)
	c.columns = slices.Clone(s.columns)
	c.joins = slices.Clone(s.joins)
	c.wheres = slices.Clone(s.wheres)
	c.groups = slices.Clone(s.groups)
	c.havings = slices.Clone(s.havings)
	c.orders = slices.Clone(s.orders)
	c.unions = slices.Clone(s.unions)
	return &c
}

// grouped reports whether an aggregate must wrap the query as a derived
// table to count its rows.
func (s *state) grouped() bool {
	return len(s.groups) > 0 || len(s.havings) > 0 || s.distinct || len(s.unions) > 0
}

// render converts the state to a select builder. Nested queries render
// with the default ? placeholders; only the root applies the dialect's.
func (s *state) render(b sq.StatementBuilderType) sq.SelectBuilder {
	// ORDER BY and LIMIT after a UNION apply to the whole compound select.
	if len(s.unions) > 0 && (len(s.orders) > 0 || s.limit != nil || s.offset != nil) {
		inner := s.clone()
		inner.orders, inner.limit, inner.offset, inner.lock = nil, nil, nil, ""
		outer := &state{
			fromSub: &derived{body: inner.render(sq.StatementBuilder), alias: "unioned"},
			orders:  s.orders,
			limit:   s.limit,
			offset:  s.offset,
			lock:    s.lock,
		}
		return outer.render(b)
	}

	sb := b.Select()
	if len(s.ctes) > 0 {
		sb = sb.PrefixExpr(s.with())
	}
	if s.distinct {
		sb = sb.Distinct()
	}
	if len(s.columns) == 0 {
		sb = sb.Columns("*")
	}
	for _, c := range s.columns {
		sb = sb.Column(c)
	}
	switch {
	case s.fromSub != nil:
		sb = sb.FromSelect(s.fromSub.body, s.fromSub.alias)
	case s.from != "":
		sb = sb.From(s.from)
	}
	for _, j := range s.joins {
		sb = sb.JoinClause(j)
	}
	if len(s.wheres) > 0 {
		sb = sb.Where(s.wheres)
	}
	if len(s.groups) > 0 {
		sb = sb.GroupBy(s.groups...)
	}
	if len(s.havings) > 0 {
		sb = sb.Having(s.havings)
	}
	for _, o := range s.orders {
		sb = sb.OrderByClause(o)
	}
	if s.limit != nil {
		sb = sb.Limit(*s.limit)
	}
	if s.offset != nil {
		sb = sb.Offset(*s.offset)
	}
	for _, u := range s.unions {
		sb = sb.SuffixExpr(u)
	}
	if s.lock != "" {
		sb = sb.Suffix(s.lock)
	}
	return sb
}

func (s *state) with() sq.Sqlizer {
	kw := "WITH "
	if s.recursive {
		kw = "WITH RECURSIVE "
	}
	parts := []any{kw}
	for i, c := range s.ctes {
		if i > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, c.name+" AS (", c.body, ")")
	}
	return sq.ConcatExpr(parts...)
}

// aggregate returns a state selecting fn(col) AS aggregate over s, without
// ordering or limits.
func (s *state) aggregate(fn, col string) *state {
	expr := sq.Expr(fn + "(" + col + ") AS aggregate")
	if s.grouped() {
		inner := s.clone()
		inner.orders, inner.limit, inner.offset, inner.lock = nil, nil, nil, ""
		if col != "*" {
			// Qualifiers refer to the inner query's tables.
			if i := strings.LastIndex(col, "."); i >= 0 {
				col = col[i+1:]
			}
			expr = sq.Expr(fn + "(aggregate_table." + col + ") AS aggregate")
		}
		return &state{
			columns: []sq.Sqlizer{expr},
			fromSub: &derived{body: inner.render(sq.StatementBuilder), alias: "aggregate_table"},
		}
	}
	c := s.clone()
	c.columns = []sq.Sqlizer{expr}
	c.orders, c.limit, c.offset, c.lock = nil, nil, nil, ""
	return c
}
