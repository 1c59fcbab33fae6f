package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-querydsl/pkg/params"
	"github.com/txn2/mcp-querydsl/pkg/policy"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

func openSQLite(t *testing.T) *query.Datasource {
	t.Helper()
	ds, err := query.Open("test", "sqlite", ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.DB.Close() })

	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, status TEXT, age INTEGER)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, total REAL)`,
		`INSERT INTO users (id, name, status, age) VALUES
			(1, 'ada', 'active', 36), (2, 'brian', 'inactive', 41),
			(3, 'grace', 'active', 45), (4, 'linus', 'active', 28)`,
		`INSERT INTO orders (user_id, total) VALUES (1, 10.5), (1, 99.5), (3, 250), (4, 5)`,
	}
	for _, s := range stmts {
		_, err := ds.DB.Exec(s)
		require.NoError(t, err)
	}
	return ds
}

func runSQLite(t *testing.T, ds *query.Datasource, pols policy.Policies, p params.Map, def string) (*Outcome, error) {
	t.Helper()
	cfg := &Config{Dialect: ds.Dialect, Policies: pols}
	b, err := build(t, cfg, p, def)
	if err != nil {
		return nil, err
	}
	return b.Run(context.Background(), ds.DB)
}

func TestE2E_ActiveUsers(t *testing.T) {
	ds := openSQLite(t)
	allowUsers := policy.Policies{Tables: policy.Policy{Mode: policy.ModeAllow, List: []string{"users"}}}

	out, err := runSQLite(t, ds, allowUsers, nil,
		`[{"from":"users"},{"select":["id","name"]},{"where":["status","active"]},{"orderBy":"id"},{"get":true}]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, out.Result.Columns)
	assert.Equal(t, [][]any{{int64(1), "ada"}, {int64(3), "grace"}, {int64(4), "linus"}}, out.Result.Rows)

	allowOrders := policy.Policies{Tables: policy.Policy{Mode: policy.ModeAllow, List: []string{"orders"}}}
	_, err = runSQLite(t, ds, allowOrders, nil,
		`[{"from":"users"},{"select":["id","name"]},{"where":["status","active"]},{"get":true}]`)
	assert.ErrorIs(t, err, policy.ErrSecurityViolation)
}

func TestE2E_CTEJoinAggregate(t *testing.T) {
	ds := openSQLite(t)
	pols := policy.Policies{Tables: policy.Policy{Mode: policy.ModeAllow, List: []string{"users", "orders"}}}

	out, err := runSQLite(t, ds, pols, params.Map{"min": 50}, `[
		{"with":"big_orders","query":[{"from":"orders"},{"where":["total",">=",{"$param":"min"}]}]},
		{"from":"users"},
		{"join":["big_orders","big_orders.user_id","users.id"]},
		{"select":"users.name"},
		{"orderBy":"users.name"},
		{"values":"users.name"}]`)
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "grace"}, out.Values)

	out, err = runSQLite(t, ds, pols, nil,
		`[{"from":"orders"},{"whereIn":"user_id","query":[{"from":"users"},{"select":"id"},{"where":["status","active"]}]},{"sum":"total"}]`)
	require.NoError(t, err)
	assert.InDelta(t, 365.0, out.Scalar, 0.001)

	out, err = runSQLite(t, ds, pols, nil,
		`[{"from":"orders"},{"select":"user_id"},{"groupBy":"user_id"},{"count":true}]`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Scalar)
}

func TestE2E_Paginate(t *testing.T) {
	ds := openSQLite(t)

	out, err := runSQLite(t, ds, policy.Policies{}, nil,
		`[{"from":"users"},{"select":"name"},{"orderBy":"id"},{"paginate":[2,3]}]`)
	require.NoError(t, err)
	assert.Equal(t, Page{Page: 2, MaxRows: 3, Total: 4}, *out.Page)
	assert.Equal(t, [][]any{{"linus"}}, out.Result.Rows)
}

func TestE2E_EmptyInList(t *testing.T) {
	ds := openSQLite(t)

	out, err := runSQLite(t, ds, policy.Policies{}, params.Map{"ids": []any{}},
		`[{"from":"users"},{"whereIn":["id",{"$param":"ids"}]},{"count":true}]`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Scalar)
}
