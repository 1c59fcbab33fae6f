// Package middleware provides MCP protocol-level middleware for the query
// tools.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const methodToolsCall = "tools/call"

// MCPToolCallLogging creates MCP protocol-level middleware that logs every
// tools/call request with its duration and outcome. Failed calls and tool
// results flagged IsError are logged at Warn. Other methods pass through.
func MCPToolCallLogging(logger *slog.Logger) mcp.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			toolName, err := extractToolName(req)
			if err != nil {
				return createErrorResult(fmt.Sprintf("invalid request: %v", err)), nil
			}

			start := time.Now()
			result, err := next(ctx, method, req)

			attrs := []slog.Attr{
				slog.String("tool", toolName),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			level := slog.LevelInfo
			switch {
			case err != nil:
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", err.Error()))
			case isErrorResult(result):
				level = slog.LevelWarn
				attrs = append(attrs, slog.Bool("is_error", true))
			}
			logger.LogAttrs(ctx, level, "tool call", attrs...)

			return result, err
		}
	}
}

// extractToolName extracts the tool name from a tools/call request.
func extractToolName(req mcp.Request) (string, error) {
	params := req.GetParams()
	if params == nil {
		return "", errors.New("missing params")
	}

	callParams, ok := params.(*mcp.CallToolParamsRaw)
	if !ok {
		return "", fmt.Errorf("unexpected params type: %T", params)
	}
	// A typed nil pointer passes the assertion.
	if callParams == nil {
		return "", errors.New("missing params")
	}
	if callParams.Name == "" {
		return "", errors.New("missing tool name")
	}
	return callParams.Name, nil
}

func isErrorResult(result mcp.Result) bool {
	r, ok := result.(*mcp.CallToolResult)
	return ok && r != nil && r.IsError
}

// createErrorResult creates an MCP error result for a malformed request.
func createErrorResult(errMsg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: errMsg},
		},
	}
}
