// Package mcptool exposes the query engine as MCP tools.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-querydsl/pkg/action"
	"github.com/txn2/mcp-querydsl/pkg/engine"
	"github.com/txn2/mcp-querydsl/pkg/params"
)

// Tool names.
const (
	ExecuteToolName = "querydsl_execute"
	SQLToolName     = "querydsl_sql"
)

// ExecuteInput is the input of querydsl_execute.
type ExecuteInput struct {
	Definition   []any          `json:"definition" jsonschema:"ordered list of action objects, each keyed by its action kind"`
	Params       map[string]any `json:"params,omitempty" jsonschema:"values for $param references and $name$ placeholders"`
	ReturnFormat any            `json:"returnFormat,omitempty" jsonschema:"array, query, tabular, struct, or [\"struct\", columnKey, valueKeys...]"`
	Datasource   string         `json:"datasource,omitempty" jsonschema:"configured datasource name; defaults to the configured default"`
}

// SQLInput is the input of querydsl_sql.
type SQLInput struct {
	Definition []any          `json:"definition" jsonschema:"ordered list of action objects, each keyed by its action kind"`
	Params     map[string]any `json:"params,omitempty" jsonschema:"values for $param references and $name$ placeholders"`
}

// Tools registers the query engine tools on an MCP server.
type Tools struct {
	engine *engine.Engine
}

// New creates the tool set.
func New(e *engine.Engine) *Tools {
	return &Tools{engine: e}
}

// Register adds every tool to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        ExecuteToolName,
		Description: t.executeDescription(),
	}, t.handleExecute)

	mcp.AddTool(server, &mcp.Tool{
		Name: SQLToolName,
		Description: "Render a query definition to SQL and its bindings without running it. " +
			"Use this to check what a definition will do before calling " + ExecuteToolName + ".",
	}, t.handleSQL)
}

func (t *Tools) executeDescription() string {
	desc := "Run a declarative query definition: an ordered list of builder actions " +
		`such as {"from":"users"}, {"where":["status","active"]}, {"orderBy":"name"} ` +
		`ending in one executor such as {"get":true}, {"first":true}, {"count":true} or {"paginate":{"page":1}}.`
	if names := t.engine.Datasources().Names(); len(names) > 0 {
		desc += fmt.Sprintf(" Datasources: %s (default %s).",
			strings.Join(names, ", "), t.engine.Config().Defaults.Datasource)
	}
	return desc
}

func (t *Tools) handleExecute(ctx context.Context, _ *mcp.CallToolRequest, in ExecuteInput) (*mcp.CallToolResult, any, error) {
	def, p, err := decode(in.Definition, in.Params)
	if err != nil {
		return errorResult(err), nil, nil
	}

	result, err := t.engine.Execute(ctx, def, engine.Options{
		Params:       p,
		ReturnFormat: in.ReturnFormat,
		Datasource:   in.Datasource,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(result), nil, nil
}

func (t *Tools) handleSQL(_ context.Context, _ *mcp.CallToolRequest, in SQLInput) (*mcp.CallToolResult, any, error) {
	def, p, err := decode(in.Definition, in.Params)
	if err != nil {
		return errorResult(err), nil, nil
	}

	sql, args, err := t.engine.ToSQL(def, p)
	if err != nil {
		return errorResult(err), nil, nil
	}
	if args == nil {
		args = []any{}
	}
	return jsonResult(engine.Statement{SQL: sql, Bindings: args}), nil, nil
}

// decode parses a definition and parameters received as JSON.
func decode(rawDef []any, rawParams map[string]any) (action.Definition, params.Map, error) {
	def, err := action.Parse(action.NormalizeNumbers(rawDef))
	if err != nil {
		return nil, nil, err
	}
	var p params.Map
	if rawParams != nil {
		p, _ = action.NormalizeNumbers(rawParams).(map[string]any)
	}
	return def, p, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + err.Error()},
		},
		IsError: true,
	}
}
