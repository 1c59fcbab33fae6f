package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	mcpserver "github.com/txn2/mcp-querydsl/internal/server"
	"github.com/txn2/mcp-querydsl/pkg/health"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type serverOptions struct {
	transport string
	address   string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := serverOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query tools over MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			applyConfigOverrides(cfg.Server.Transport, cfg.Server.Address, &opts)

			mcpServer, platform, err := mcpserver.New(cfg)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer func() { _ = platform.Close() }()

			ctx := setupSignalHandler(cmd.Context())
			return startServer(ctx, mcpServer, platform.HealthChecker(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport type: stdio, http (default from config)")
	cmd.Flags().StringVar(&opts.address, "address", "", "Listen address for the http transport (default from config)")
	return cmd
}

// applyConfigOverrides fills flags the user left empty from the config.
func applyConfigOverrides(transport, address string, opts *serverOptions) {
	if opts.transport == "" {
		opts.transport = transport
	}
	if opts.address == "" {
		opts.address = address
	}
}

func setupSignalHandler(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx
}

func startServer(ctx context.Context, mcpServer *mcp.Server, checker *health.Checker, opts serverOptions) error {
	switch opts.transport {
	case "stdio":
		return mcpServer.Run(ctx, &mcp.StdioTransport{})
	case "http":
		return serveHTTP(ctx, mcpServer, checker, opts.address)
	default:
		return fmt.Errorf("unknown transport: %s", opts.transport)
	}
}

// newHTTPHandler mounts the health endpoints next to the MCP handler.
func newHTTPHandler(mcpServer *mcp.Server, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", checker.LivenessHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	mux.Handle("/", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpServer }, nil))
	return mux
}

// serveHTTP serves the streamable HTTP transport until ctx is cancelled.
func serveHTTP(ctx context.Context, mcpServer *mcp.Server, checker *health.Checker, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           newHTTPHandler(mcpServer, checker),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving MCP over streamable HTTP", "address", address)
		errCh <- httpServer.ListenAndServe()
	}()
	checker.SetReady()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		checker.SetDraining()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	}
}
