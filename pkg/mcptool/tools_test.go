package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-querydsl/pkg/config"
	"github.com/txn2/mcp-querydsl/pkg/engine"
	"github.com/txn2/mcp-querydsl/pkg/policy"
	"github.com/txn2/mcp-querydsl/pkg/query"
)

func newTools(t *testing.T) (*Tools, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default()
	cfg.Actions = policy.Policy{Mode: policy.ModeBlock, List: []string{"*Raw"}}

	sources := query.NewDatasources()
	require.NoError(t, sources.Register(&query.Datasource{Name: config.DefaultDatasource, DB: db, Dialect: query.Postgres}))
	return New(engine.New(cfg, engine.WithDatasources(sources))), mock
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	return text.Text
}

// decodeJSON re-parses a definition literal the way a tool call delivers it.
func decodeJSON(t *testing.T, s string) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestHandleExecute(t *testing.T) {
	tools, mock := newTools(t)
	mock.ExpectQuery("SELECT id FROM users WHERE age > $1 LIMIT 5").
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	result, _, err := tools.handleExecute(context.Background(), nil, ExecuteInput{
		Definition: decodeJSON(t, `[{"from":"users"},{"select":"id"},{"where":["age",">",{"$param":"age"}]},{"limit":5},{"get":true}]`),
		Params:     map[string]any{"age": float64(21)},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `[{"id":3}]`, textOf(t, result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleExecute_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   ExecuteInput
		want string
	}{
		{
			name: "malformed",
			in:   ExecuteInput{Definition: []any{"from"}},
			want: "malformed action",
		},
		{
			name: "blocked raw",
			in:   ExecuteInput{Definition: []any{map[string]any{"from": "users"}, map[string]any{"whereRaw": "1=1"}, map[string]any{"get": true}}},
			want: "security violation",
		},
		{
			name: "bad return format",
			in:   ExecuteInput{Definition: []any{map[string]any{"from": "users"}, map[string]any{"get": true}}, ReturnFormat: "csv"},
			want: "invalid return format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools, _ := newTools(t)
			result, _, err := tools.handleExecute(context.Background(), nil, tt.in)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, textOf(t, result), tt.want)
		})
	}
}

func TestHandleSQL(t *testing.T) {
	tools, mock := newTools(t)

	result, _, err := tools.handleSQL(context.Background(), nil, SQLInput{
		Definition: decodeJSON(t, `[{"from":"users"},{"whereIn":["id",{"$param":"ids"}]}]`),
		Params:     map[string]any{"ids": []any{float64(1), float64(2)}},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"sql":"SELECT * FROM users WHERE id IN ($1,$2)","bindings":[1,2]}`, textOf(t, result))

	result, _, err = tools.handleSQL(context.Background(), nil, SQLInput{
		Definition: decodeJSON(t, `[{"from":"users"}]`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sql":"SELECT * FROM users","bindings":[]}`, textOf(t, result))

	result, _, err = tools.handleSQL(context.Background(), nil, SQLInput{
		Definition: decodeJSON(t, `[{"from":"users"},{"where":["id",{"$param":"id"}]}]`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister(t *testing.T) {
	tools, mock := newTools(t)
	mock.ExpectQuery("SELECT COUNT(*) AS aggregate FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"aggregate"}).AddRow(int64(4)))

	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v1"}, nil)
	tools.Register(server)

	ctx := context.Background()
	t1, t2 := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	list, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
		if tool.Name == ExecuteToolName {
			assert.Contains(t, tool.Description, fmt.Sprintf("Datasources: %s", config.DefaultDatasource))
		}
	}
	assert.ElementsMatch(t, []string{ExecuteToolName, SQLToolName}, names)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: ExecuteToolName,
		Arguments: map[string]any{
			"definition": []any{map[string]any{"from": "users"}, map[string]any{"count": true}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "4", textOf(t, result))
}
