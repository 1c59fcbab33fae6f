package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_WhereForms(t *testing.T) {
	want := WhereArgs{Column: "status", Operator: "=", Value: "active"}

	forms := []any{
		[]any{"status", "active"},
		[]any{"status", "=", "active"},
		map[string]any{"column": "status", "value": "active"},
		map[string]any{"column": "status", "operator": "=", "value": "active"},
	}

	for _, form := range forms {
		got, err := Normalize(Where, form, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNormalize_Operators(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"!=", "<>"},
		{">=", ">="},
		{"like", "LIKE"},
		{"NOT   like", "NOT LIKE"},
		{"ilike", "ILIKE"},
	}
	for _, tt := range tests {
		got, err := Normalize(Where, []any{"a", tt.in, 1}, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.(WhereArgs).Operator)
	}

	_, err := Normalize(Where, []any{"a", "; drop", 1}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operator")
}

func TestNormalize_Canonical(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		raw  any
		want Args
	}{
		{"from scalar", From, "users", TableArgs{Table: "users"}},
		{"from alias", From, "users as u", TableArgs{Table: "users", Alias: "u"}},
		{"from named", Table, map[string]any{"table": "reporting.sales"}, TableArgs{Table: "reporting.sales"}},
		{"select list", Select, []any{"id", "name as n"}, ColumnsArgs{Columns: []string{"id", "name as n"}}},
		{"select csv", Select, "id, name", ColumnsArgs{Columns: []string{"id", "name"}}},
		{"select named", AddSelect, map[string]any{"columns": []any{"u.*"}}, ColumnsArgs{Columns: []string{"u.*"}}},
		{"raw scalar", WhereRaw, "age > 18", RawArgs{SQL: "age > 18"}},
		{"raw bindings", WhereRaw, []any{"age > ?", []any{18}}, RawArgs{SQL: "age > ?", Bindings: []any{18}}},
		{"raw single binding", SelectRaw, []any{"? AS one", 1}, RawArgs{SQL: "? AS one", Bindings: []any{1}}},
		{"raw named", HavingRaw, map[string]any{"sql": "SUM(x) > ?", "bindings": []any{3}}, RawArgs{SQL: "SUM(x) > ?", Bindings: []any{3}}},
		{"with name", With, "recent", NameArgs{Name: "recent"}},
		{"fromSub named", FromSub, map[string]any{"alias": "t"}, NameArgs{Name: "t"}},
		{"distinct true", Distinct, true, FlagArgs{Enabled: true}},
		{"distinct false", Distinct, false, FlagArgs{Enabled: false}},
		{"get nil", Get, nil, FlagArgs{Enabled: true}},
		{"whereLike", WhereLike, []any{"name", "a%"}, WhereArgs{Column: "name", Operator: "LIKE", Value: "a%"}},
		{"whereIn", WhereIn, []any{"id", []any{1, 2}}, InArgs{Column: "id", Values: []any{1, 2}}},
		{"whereIn scalar value", WhereIn, []any{"id", 1}, InArgs{Column: "id", Values: []any{1}}},
		{"whereIn sub", WhereIn, "id", InArgs{Column: "id"}},
		{"whereIn named", WhereNotIn, map[string]any{"column": "id", "values": []any{}}, InArgs{Column: "id", Values: []any{}}},
		{"between", WhereBetween, []any{"age", 18, 65}, BetweenArgs{Column: "age", Start: 18, End: 65}},
		{"null scalar", WhereNull, "deleted_at", ColumnArgs{Column: "deleted_at"}},
		{"null list", WhereNotNull, []any{"deleted_at"}, ColumnArgs{Column: "deleted_at"}},
		{"whereColumn", WhereColumn, []any{"a", "b"}, CompareArgs{First: "a", Operator: "=", Second: "b"}},
		{"whereColumn op", WhereColumn, []any{"a", ">", "b"}, CompareArgs{First: "a", Operator: ">", Second: "b"}},
		{"join 3", Join, []any{"contacts", "users.id", "contacts.user_id"}, JoinArgs{Table: "contacts", First: "users.id", Operator: "=", Second: "contacts.user_id"}},
		{"join 4", LeftJoin, []any{"contacts as c", "users.id", "=", "c.user_id"}, JoinArgs{Table: "contacts", Alias: "c", First: "users.id", Operator: "=", Second: "c.user_id"}},
		{"join on-form", Join, "contacts", JoinArgs{Table: "contacts"}},
		{"joinSub", JoinSub, []any{"o", "o.user_id", "users.id"}, JoinArgs{Alias: "o", First: "o.user_id", Operator: "=", Second: "users.id"}},
		{"orderBy scalar", OrderBy, "name", OrderArgs{Column: "name", Direction: "ASC"}},
		{"orderBy desc", OrderBy, []any{"name", "desc"}, OrderArgs{Column: "name", Direction: "DESC"}},
		{"orderBy named", OrderBy, map[string]any{"column": "name", "direction": "DESC"}, OrderArgs{Column: "name", Direction: "DESC"}},
		{"orderByDesc", OrderByDesc, "created_at", ColumnArgs{Column: "created_at"}},
		{"limit", Limit, int64(10), NumberArgs{Value: 10}},
		{"offset named", Offset, map[string]any{"value": 5}, NumberArgs{Value: 5}},
		{"forPage", ForPage, []any{2, 25}, PageArgs{Page: 2, MaxRows: 25}},
		{"paginate true", Paginate, true, PageArgs{}},
		{"paginate scalar", Paginate, 3, PageArgs{Page: 3}},
		{"paginate named", SimplePaginate, map[string]any{"page": 2, "maxRows": 10}, PageArgs{Page: 2, MaxRows: 10}},
		{"find scalar", Find, 7, FindArgs{ID: 7, Column: "id"}},
		{"find column", Find, []any{"abc", "uuid"}, FindArgs{ID: "abc", Column: "uuid"}},
		{"count true", Count, true, ColumnArgs{Column: "*"}},
		{"count column", Count, "id", ColumnArgs{Column: "id"}},
		{"sum", Sum, "amount", ColumnArgs{Column: "amount"}},
		{"value", Value, "name", ColumnArgs{Column: "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.kind, tt.raw, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		raw  any
	}{
		{"where one arg", Where, []any{"status"}},
		{"where four args", Where, []any{"a", "=", 1, 2}},
		{"where unknown key", Where, map[string]any{"column": "a", "value": 1, "boolean": "or"}},
		{"where missing value", Where, map[string]any{"column": "a"}},
		{"where scalar", Where, "status"},
		{"bad identifier", Where, []any{"a; drop", 1}},
		{"bad table", From, "users; drop"},
		{"star table", From, "*"},
		{"empty select", Select, []any{}},
		{"select non-string", Select, []any{1}},
		{"select bad column", Select, []any{"count(*)"}},
		{"groupBy alias", GroupBy, []any{"status", "created_at AS day"}},
		{"between two", WhereBetween, []any{"a", 1}},
		{"negative limit", Limit, -1},
		{"fractional limit", Limit, 1.5},
		{"bad direction", OrderBy, []any{"a", "sideways"}},
		{"flag with args", Distinct, map[string]any{"on": "x"}},
		{"executor false", Get, false},
		{"raw empty", WhereRaw, ""},
		{"join partial", Join, []any{"contacts", "users.id"}},
		{"sum without column", Sum, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.kind, tt.raw, 4)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedAction))
			var m *MalformedError
			require.True(t, errors.As(err, &m))
			assert.Equal(t, string(tt.kind), m.Kind)
			assert.Equal(t, 4, m.Position)
		})
	}
}

func TestNormalize_EveryKind(t *testing.T) {
	samples := map[family]any{
		famTable:     "users",
		famColumns:   "id",
		famRaw:       "1 = 1",
		famName:      "x",
		famFlag:      true,
		famWhere:     []any{"a", 1},
		famLike:      []any{"a", "%x%"},
		famIn:        []any{"a", []any{1}},
		famBetween:   []any{"a", 1, 2},
		famColumn:    "a",
		famCompare:   []any{"a", "b"},
		famJoin:      []any{"t", "a", "b"},
		famJoinSub:   []any{"t", "a", "b"},
		famOrder:     "a",
		famNumber:    1,
		famPage:      []any{1, 10},
		famFind:      1,
		famAggregate: true,
		famExecutor:  true,
	}

	for _, kind := range All() {
		sample, ok := samples[shapes[kind].family]
		require.True(t, ok, "no sample for %s", kind)
		_, err := Normalize(kind, sample, 0)
		assert.NoError(t, err, "kind %s", kind)
	}
}

func TestPositional(t *testing.T) {
	assert.Equal(t, []any{"status", "active"}, Positional(Where, []any{"status", "active"}))
	assert.Equal(t, []any{"status", "=", "active"},
		Positional(Where, map[string]any{"value": "active", "column": "status", "operator": "="}))
	assert.Equal(t, []any{[]any{"id"}}, Positional(Select, []any{"id"}))
	assert.Equal(t, []any{"users"}, Positional(From, "users"))
	assert.Nil(t, Positional(Get, nil))
}
