package interpreter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/mcp-querydsl/pkg/action"
	"github.com/txn2/mcp-querydsl/pkg/policy"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

// Built is an interpreted definition, ready to render or run.
type Built struct {
	// Executor is the terminal action, or empty when the definition has none.
	Executor action.Kind

	// Options are the executor's resolved options, such as returnFormat.
	Options map[string]any

	// Journal lists the CTE names that widened the table policy.
	Journal []policy.Grant

	args    action.Args
	state   *state
	dialect query.Dialect
	maxRows int
}

// ReturnFormat returns the executor-level returnFormat option, if set.
func (b *Built) ReturnFormat() (any, bool) {
	v, ok := b.Options["returnFormat"]
	return v, ok && v != nil
}

// Builder returns the squirrel builder for the query before executor
// effects, using the dialect's placeholders.
func (b *Built) Builder() sq.SelectBuilder {
	return b.state.render(b.dialect.Builder())
}

// ToSQL renders the statement the executor runs. For paginate this is the
// page query; for toSQL and definitions without an executor it is the
// query itself.
func (b *Built) ToSQL() (string, []any, error) {
	sql, args, err := b.statement().ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("rendering sql: %w", err)
	}
	return sql, args, nil
}

// statement derives the executed query from the build state.
func (b *Built) statement() sq.SelectBuilder {
	st := b.state
	switch b.Executor {
	case action.First:
		st = limited(st, 1)
	case action.Find:
		f := b.args.(action.FindArgs)
		st = limited(st, 1)
		st.wheres = and(st.wheres, sq.Eq{f.Column: f.ID})
	case action.Value:
		st = limited(st, 1)
		st.columns = columnExprs([]string{b.args.(action.ColumnArgs).Column})
	case action.Values:
		st = st.clone()
		st.columns = columnExprs([]string{b.args.(action.ColumnArgs).Column})
	case action.Count, action.Sum, action.Avg, action.Min, action.Max:
		fn := strings.ToUpper(string(b.Executor))
		st = st.aggregate(fn, b.args.(action.ColumnArgs).Column)
	case action.Exists:
		st = limited(st, 1)
	case action.Paginate, action.SimplePaginate:
		limit, offset := pageBounds(b.args.(action.PageArgs), b.maxRows)
		st = st.clone()
		st.limit, st.offset = &limit, &offset
	}
	return st.render(b.dialect.Builder())
}

// and appends expr to c with AND, grouping c first when it contains an OR.
func and(c clauses, expr sq.Sqlizer) clauses {
	for _, cl := range c[min(1, len(c)):] {
		if cl.or {
			return clauses{{expr: sq.ConcatExpr("(", c, ")")}, {expr: expr}}
		}
	}
	return append(c, clause{expr: expr})
}

func limited(s *state, n uint64) *state {
	c := s.clone()
	c.limit = &n
	return c
}

// Page describes the page a paginate executor fetched.
type Page struct {
	Page    int
	MaxRows int
	// Total is the row count without paging; it is zero for simple pages.
	Total  int64
	Simple bool
}

// Outcome is the raw output of an executor.
type Outcome struct {
	Executor action.Kind

	// Result holds the rows for get, first, find, and paginate executors.
	Result *query.Result

	// Scalar holds the value of value, count, sum, avg, min, max, and exists.
	Scalar any

	// Values holds the column of a values executor.
	Values []any

	// Page is set for paginate executors.
	Page *Page

	// SQL and Bindings are set for toSQL.
	SQL      string
	Bindings []any
}

// Run executes the built query. Driver errors are returned wrapped but
// otherwise unchanged.
func (b *Built) Run(ctx context.Context, r query.Runner) (*Outcome, error) {
	out := &Outcome{Executor: b.Executor}
	switch b.Executor {
	case "":
		return nil, ErrNoExecutor
	case action.ToSQL:
		sql, args, err := b.ToSQL()
		if err != nil {
			return nil, err
		}
		out.SQL, out.Bindings = sql, args
		return out, nil
	case action.Paginate, action.SimplePaginate:
		return b.paginate(ctx, r)
	}

	res, err := b.run(ctx, r, b.statement())
	if err != nil {
		return nil, err
	}
	switch b.Executor {
	case action.Value, action.Count, action.Sum, action.Avg, action.Min, action.Max:
		out.Scalar = firstValue(res)
	case action.Values:
		out.Values = make([]any, 0, len(res.Rows))
		for _, row := range res.Rows {
			out.Values = append(out.Values, row[0])
		}
	case action.Exists:
		out.Scalar = res.Count() > 0
	default:
		out.Result = res
	}
	return out, nil
}

func (b *Built) paginate(ctx context.Context, r query.Runner) (*Outcome, error) {
	p := b.args.(action.PageArgs)
	limit, offset := pageBounds(p, b.maxRows)
	page := &Page{
		Page:    int(offset/limit) + 1,
		MaxRows: int(limit),
		Simple:  b.Executor == action.SimplePaginate,
	}

	if !page.Simple {
		counted, err := b.run(ctx, r, b.state.aggregate("COUNT", "*").render(b.dialect.Builder()))
		if err != nil {
			return nil, err
		}
		total, err := toInt64(firstValue(counted))
		if err != nil {
			return nil, fmt.Errorf("reading row count: %w", err)
		}
		page.Total = total
	}

	res, err := b.run(ctx, r, b.statement())
	if err != nil {
		return nil, err
	}
	return &Outcome{Executor: b.Executor, Result: res, Page: page}, nil
}

func (b *Built) run(ctx context.Context, r query.Runner, sb sq.SelectBuilder) (*query.Result, error) {
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("rendering sql: %w", err)
	}
	return query.Run(ctx, r, sql, args)
}

func firstValue(res *query.Result) any {
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return nil
	}
	return res.Rows[0][0]
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
