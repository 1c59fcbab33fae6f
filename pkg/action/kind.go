// Package action defines the query-definition vocabulary: the closed set of
// action kinds, the definition parser, and argument normalization.
package action

import (
	"sort"
	"strings"
)

// Kind is an action name. The set is closed; use Lookup to convert input.
type Kind string

// Source actions.
const (
	From    Kind = "from"
	Table   Kind = "table"
	FromRaw Kind = "fromRaw"
	FromSub Kind = "fromSub"
)

// Selection actions.
const (
	Select    Kind = "select"
	AddSelect Kind = "addSelect"
	SelectRaw Kind = "selectRaw"
	SubSelect Kind = "subSelect"
	Distinct  Kind = "distinct"
)

// Where-family actions.
const (
	Where           Kind = "where"
	OrWhere         Kind = "orWhere"
	WhereNot        Kind = "whereNot"
	OrWhereNot      Kind = "orWhereNot"
	WhereLike       Kind = "whereLike"
	OrWhereLike     Kind = "orWhereLike"
	WhereNotLike    Kind = "whereNotLike"
	WhereIn         Kind = "whereIn"
	WhereNotIn      Kind = "whereNotIn"
	OrWhereIn       Kind = "orWhereIn"
	OrWhereNotIn    Kind = "orWhereNotIn"
	WhereBetween    Kind = "whereBetween"
	WhereNotBetween Kind = "whereNotBetween"
	OrWhereBetween  Kind = "orWhereBetween"
	WhereNull       Kind = "whereNull"
	WhereNotNull    Kind = "whereNotNull"
	OrWhereNull     Kind = "orWhereNull"
	OrWhereNotNull  Kind = "orWhereNotNull"
	WhereColumn     Kind = "whereColumn"
	OrWhereColumn   Kind = "orWhereColumn"
	WhereRaw        Kind = "whereRaw"
	OrWhereRaw      Kind = "orWhereRaw"
	WhereExists     Kind = "whereExists"
	WhereNotExists  Kind = "whereNotExists"
	OrWhereExists   Kind = "orWhereExists"
	WhereNested     Kind = "whereNested"
	OrWhereNested   Kind = "orWhereNested"
)

// Join-family actions. On and OrOn are only valid inside a join's "on" list.
const (
	Join        Kind = "join"
	InnerJoin   Kind = "innerJoin"
	LeftJoin    Kind = "leftJoin"
	RightJoin   Kind = "rightJoin"
	CrossJoin   Kind = "crossJoin"
	JoinRaw     Kind = "joinRaw"
	LeftJoinRaw Kind = "leftJoinRaw"
	JoinSub     Kind = "joinSub"
	LeftJoinSub Kind = "leftJoinSub"
	On          Kind = "on"
	OrOn        Kind = "orOn"
)

// Grouping, ordering, and limiting actions.
const (
	GroupBy     Kind = "groupBy"
	GroupByRaw  Kind = "groupByRaw"
	Having      Kind = "having"
	OrHaving    Kind = "orHaving"
	HavingRaw   Kind = "havingRaw"
	OrHavingRaw Kind = "orHavingRaw"
	OrderBy     Kind = "orderBy"
	OrderByAsc  Kind = "orderByAsc"
	OrderByDesc Kind = "orderByDesc"
	OrderByRaw  Kind = "orderByRaw"
	Reorder     Kind = "reorder"
	ClearOrders Kind = "clearOrders"
	Limit       Kind = "limit"
	Take        Kind = "take"
	Offset      Kind = "offset"
	Skip        Kind = "skip"
	ForPage     Kind = "forPage"
)

// CTE, union, and lock actions.
const (
	With          Kind = "with"
	WithRecursive Kind = "withRecursive"
	Union         Kind = "union"
	UnionAll      Kind = "unionAll"
	LockForUpdate Kind = "lockForUpdate"
	SharedLock    Kind = "sharedLock"
	NoLock        Kind = "noLock"
)

// Executor actions.
const (
	Get            Kind = "get"
	First          Kind = "first"
	Find           Kind = "find"
	Value          Kind = "value"
	Values         Kind = "values"
	Count          Kind = "count"
	Sum            Kind = "sum"
	Avg            Kind = "avg"
	Min            Kind = "min"
	Max            Kind = "max"
	Exists         Kind = "exists"
	Paginate       Kind = "paginate"
	SimplePaginate Kind = "simplePaginate"
	ToSQL          Kind = "toSQL"
)

// family groups kinds that share an argument shape.
type family int

const (
	famTable family = iota
	famColumns
	famRaw
	famName
	famFlag
	famWhere
	famLike
	famIn
	famBetween
	famColumn
	famCompare
	famJoin
	famJoinSub
	famOrder
	famNumber
	famPage
	famFind
	famAggregate
	famExecutor
)

// shape is the positional field layout of a kind; the same names are the
// accepted keys of the named form.
type shape struct {
	family   family
	fields   []string
	required int  // minimum positional arity
	opIndex  int  // index of the optional operator field, or -1
	scalar   bool // a bare scalar fills fields[0]
}

func newShape(f family, fields []string, required, opIndex int, scalar bool) shape {
	return shape{family: f, fields: fields, required: required, opIndex: opIndex, scalar: scalar}
}

var (
	tableShape     = newShape(famTable, []string{"table"}, 1, -1, true)
	columnsShape   = newShape(famColumns, []string{"columns"}, 1, -1, true)
	rawShape       = newShape(famRaw, []string{"sql", "bindings"}, 1, -1, true)
	aliasShape     = newShape(famName, []string{"alias"}, 1, -1, true)
	cteShape       = newShape(famName, []string{"name"}, 1, -1, true)
	flagShape      = newShape(famFlag, nil, 0, -1, false)
	whereShape     = newShape(famWhere, []string{"column", "operator", "value"}, 2, 1, false)
	likeShape      = newShape(famLike, []string{"column", "value"}, 2, -1, false)
	inShape        = newShape(famIn, []string{"column", "values"}, 1, -1, true)
	betweenShape   = newShape(famBetween, []string{"column", "start", "end"}, 3, -1, false)
	columnShape    = newShape(famColumn, []string{"column"}, 1, -1, true)
	compareShape   = newShape(famCompare, []string{"first", "operator", "second"}, 2, 1, false)
	joinShape      = newShape(famJoin, []string{"table", "first", "operator", "second"}, 1, 2, true)
	joinSubShape   = newShape(famJoinSub, []string{"alias", "first", "operator", "second"}, 1, 2, true)
	orderShape     = newShape(famOrder, []string{"column", "direction"}, 1, -1, true)
	numberShape    = newShape(famNumber, []string{"value"}, 1, -1, true)
	pageShape      = newShape(famPage, []string{"page", "maxRows"}, 0, -1, true)
	findShape      = newShape(famFind, []string{"id", "column"}, 1, -1, true)
	aggregateShape = newShape(famAggregate, []string{"column"}, 0, -1, true)
	executorShape  = newShape(famExecutor, nil, 0, -1, false)
)

// shapes is the vocabulary. Every Kind constant has exactly one entry.
var shapes = map[Kind]shape{
	From:    tableShape,
	Table:   tableShape,
	FromRaw: rawShape,
	FromSub: aliasShape,

	Select:    columnsShape,
	AddSelect: columnsShape,
	SelectRaw: rawShape,
	SubSelect: aliasShape,
	Distinct:  flagShape,

	Where:           whereShape,
	OrWhere:         whereShape,
	WhereNot:        whereShape,
	OrWhereNot:      whereShape,
	WhereLike:       likeShape,
	OrWhereLike:     likeShape,
	WhereNotLike:    likeShape,
	WhereIn:         inShape,
	WhereNotIn:      inShape,
	OrWhereIn:       inShape,
	OrWhereNotIn:    inShape,
	WhereBetween:    betweenShape,
	WhereNotBetween: betweenShape,
	OrWhereBetween:  betweenShape,
	WhereNull:       columnShape,
	WhereNotNull:    columnShape,
	OrWhereNull:     columnShape,
	OrWhereNotNull:  columnShape,
	WhereColumn:     compareShape,
	OrWhereColumn:   compareShape,
	WhereRaw:        rawShape,
	OrWhereRaw:      rawShape,
	WhereExists:     flagShape,
	WhereNotExists:  flagShape,
	OrWhereExists:   flagShape,
	WhereNested:     flagShape,
	OrWhereNested:   flagShape,

	Join:        joinShape,
	InnerJoin:   joinShape,
	LeftJoin:    joinShape,
	RightJoin:   joinShape,
	CrossJoin:   tableShape,
	JoinRaw:     rawShape,
	LeftJoinRaw: rawShape,
	JoinSub:     joinSubShape,
	LeftJoinSub: joinSubShape,
	On:          compareShape,
	OrOn:        compareShape,

	GroupBy:     columnsShape,
	GroupByRaw:  rawShape,
	Having:      whereShape,
	OrHaving:    whereShape,
	HavingRaw:   rawShape,
	OrHavingRaw: rawShape,
	OrderBy:     orderShape,
	OrderByAsc:  columnShape,
	OrderByDesc: columnShape,
	OrderByRaw:  rawShape,
	Reorder:     flagShape,
	ClearOrders: flagShape,
	Limit:       numberShape,
	Take:        numberShape,
	Offset:      numberShape,
	Skip:        numberShape,
	ForPage:     pageShape,

	With:          cteShape,
	WithRecursive: cteShape,
	Union:         flagShape,
	UnionAll:      flagShape,
	LockForUpdate: flagShape,
	SharedLock:    flagShape,
	NoLock:        flagShape,

	Get:            executorShape,
	First:          executorShape,
	Find:           findShape,
	Value:          columnShape,
	Values:         columnShape,
	Count:          aggregateShape,
	Sum:            columnShape,
	Avg:            columnShape,
	Min:            columnShape,
	Max:            columnShape,
	Exists:         executorShape,
	Paginate:       pageShape,
	SimplePaginate: pageShape,
	ToSQL:          executorShape,
}

var executors = map[Kind]bool{
	Get: true, First: true, Find: true, Value: true, Values: true,
	Count: true, Sum: true, Avg: true, Min: true, Max: true,
	Exists: true, Paginate: true, SimplePaginate: true, ToSQL: true,
}

// Lookup converts an action name to a Kind. Names are case-sensitive.
func Lookup(name string) (Kind, bool) {
	k := Kind(name)
	_, ok := shapes[k]
	return k, ok
}

// All returns every kind in lexical order.
func All() []Kind {
	out := make([]Kind, 0, len(shapes))
	for k := range shapes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsExecutor reports whether k terminates a definition.
func (k Kind) IsExecutor() bool {
	return executors[k]
}

// IsRaw reports whether k carries a raw SQL fragment.
func (k Kind) IsRaw() bool {
	return strings.HasSuffix(string(k), "Raw")
}

// Fields returns the positional field names of k, in order.
func (k Kind) Fields() []string {
	return shapes[k].fields
}
