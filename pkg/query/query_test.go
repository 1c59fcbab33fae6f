package query

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id, name FROM users WHERE status = $1").
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("ann")).
			AddRow(int64(2), nil))

	res, err := Run(context.Background(), db, "SELECT id, name FROM users WHERE status = $1", []any{"active"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), "ann"}, {int64(2), nil}}, res.Rows)
	assert.Equal(t, 2, res.Count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	res, err := Run(context.Background(), db, "SELECT id FROM users", nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Equal(t, 0, res.Count())
}

func TestRun_Errors(t *testing.T) {
	driverErr := errors.New("relation \"nope\" does not exist")

	t.Run("query", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("SELECT").WillReturnError(driverErr)

		_, err = Run(context.Background(), db, "SELECT * FROM nope", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, driverErr)
		assert.Contains(t, err.Error(), "executing query")
	})

	t.Run("rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("SELECT").WillReturnRows(
			sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).RowError(0, driverErr))

		_, err = Run(context.Background(), db, "SELECT id FROM t", nil)
		assert.ErrorIs(t, err, driverErr)
	})
}

func TestScan_BinaryColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("payload").OfType("BYTEA", []byte{}),
		mock.NewColumn("label").OfType("TEXT", ""),
	).AddRow([]byte{0x01, 0x02}, []byte("x"))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	res, err := Run(context.Background(), db, "SELECT payload, label FROM files", nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []byte{0x01, 0x02}, res.Rows[0][0])
	assert.Equal(t, "x", res.Rows[0][1])
}

func TestIsBinaryType(t *testing.T) {
	assert.True(t, isBinaryType("bytea"))
	assert.True(t, isBinaryType("LONGBLOB"))
	assert.True(t, isBinaryType("VARBINARY"))
	assert.False(t, isBinaryType("TEXT"))
	assert.False(t, isBinaryType(""))
}

func TestResult_Column(t *testing.T) {
	res := &Result{Columns: []string{"id", "name"}, Rows: [][]any{{1, "a"}, {2, "b"}}}

	names, ok := res.Column("name")
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, names)

	_, ok = res.Column("missing")
	assert.False(t, ok)
	assert.Equal(t, -1, res.Index("missing"))

	var nilResult *Result
	assert.Equal(t, 0, nilResult.Count())
}

func TestLookupDialect(t *testing.T) {
	tests := []struct {
		name string
		want Dialect
	}{
		{"", Postgres},
		{"postgres", Postgres},
		{"PostgreSQL", Postgres},
		{"sqlite", SQLite},
		{"sqlite3", SQLite},
		{"mysql", MySQL},
		{"mariadb", MySQL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LookupDialect(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Name, got.Name)
		})
	}

	_, err := LookupDialect("oracle")
	assert.ErrorContains(t, err, "unknown dialect")
}

func TestDialect_Builder(t *testing.T) {
	sql, args, err := Postgres.Builder().Select("id").From("users").Where(sq.Eq{"id": 1}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE id = $1", sql)
	assert.Equal(t, []any{1}, args)

	sql, _, err = SQLite.Builder().Select("id").From("users").Where(sq.Eq{"id": 1}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE id = ?", sql)

	assert.Empty(t, SQLite.ForUpdate)
	assert.Equal(t, "LOCK IN SHARE MODE", MySQL.ForShare)
}

func TestOpen(t *testing.T) {
	ds, err := Open("local", "sqlite", ":memory:", "")
	require.NoError(t, err)
	defer func() { _ = ds.DB.Close() }()

	assert.Equal(t, "local", ds.Name)
	assert.Equal(t, SQLite.Name, ds.Dialect.Name)

	res, err := Run(context.Background(), ds.DB, "SELECT 1 AS one, 'a' AS letter", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "letter"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), "a"}}, res.Rows)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("x", "oracle", "dsn", "")
	assert.ErrorContains(t, err, "unsupported driver")

	_, err = Open("x", "sqlite", ":memory:", "db2")
	assert.ErrorContains(t, err, "unknown dialect")
}

func TestDatasources(t *testing.T) {
	reg := NewDatasources()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	require.NoError(t, reg.Register(&Datasource{Name: "main", DB: db, Dialect: Postgres}))
	require.NoError(t, reg.Register(&Datasource{Name: "archive", Dialect: SQLite}))
	assert.Error(t, reg.Register(&Datasource{}))
	assert.Error(t, reg.Register(nil))

	assert.Equal(t, []string{"archive", "main"}, reg.Names())

	ds, err := reg.Get("main")
	require.NoError(t, err)
	assert.Equal(t, db, ds.DB)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownDatasource)
	assert.Contains(t, err.Error(), `"missing"`)

	assert.NoError(t, reg.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
