// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stacklok/dockerhub-mcp/pkg/logger"
	"github.com/stacklok/dockerhub-mcp/pkg/tools"
	"github.com/stacklok/dockerhub-mcp/pkg/versions"
)

const (
	// ServerName is reported to MCP clients during initialization.
	ServerName = "dockerhub-mcp-server"

	// DefaultMCPPort is the default port for the streamable HTTP transport.
	DefaultMCPPort = "8080"

	// MCPEndpointPath is where the streamable HTTP transport is mounted.
	MCPEndpointPath = "/mcp"
)

// Config holds the configuration for the MCP server
type Config struct {
	Host string
	Port string

	// Tools limits the advertised tools. Empty means all tools.
	Tools []string

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// Server binds the tool dispatcher to the MCP protocol.
type Server struct {
	config     *Config
	mcpServer  *server.MCPServer
	streamable *server.StreamableHTTPServer
	httpServer *http.Server
	handler    *Handler
	tools      []tools.Definition
}

// New creates a server that serves the tools of dispatcher.
func New(ctx context.Context, config *Config, dispatcher Dispatcher) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	enabled, err := filterTools(tools.Definitions(), config.Tools)
	if err != nil {
		return nil, err
	}

	versionInfo := versions.GetVersionInfo()
	mcpServer := server.NewMCPServer(
		ServerName,
		versionInfo.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithLogging(),
		server.WithToolFilter(hideUnregisteredTool),
	)

	handler := NewHandler(dispatcher)
	registerTools(mcpServer, handler, enabled)

	streamableServer := server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath(MCPEndpointPath),
		server.WithHTTPContextFunc(func(_ context.Context, _ *http.Request) context.Context {
			return ctx
		}),
	)

	s := &Server{
		config:     config,
		mcpServer:  mcpServer,
		streamable: streamableServer,
		handler:    handler,
		tools:      enabled,
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(config.Host, config.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}
	return s, nil
}

// Router returns the HTTP routes: the MCP endpoint, Prometheus metrics and a
// liveness probe.
func (s *Server) Router() http.Handler {
	gatherer := s.config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.With(s.routeUnregisteredTools).Handle(MCPEndpointPath, s.streamable)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Tools returns the tools this server advertises.
func (s *Server) Tools() []tools.Definition {
	return s.tools
}

// ServeStdio speaks MCP over in and out until ctx is cancelled or in is
// closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Get().Handler(), slog.LevelError))

	input := s.rewriteLines(in)
	defer input.Close()

	logger.Infow("serving MCP over stdio", "tools", len(s.tools))
	if err := stdio.Listen(ctx, input, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server error: %w", err)
	}
	return nil
}

// Start serves the streamable HTTP transport until Shutdown.
func (s *Server) Start() error {
	logger.Infof("Starting MCP server on %s", s.GetAddress())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the MCP server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down MCP server...")
	if err := s.streamable.Shutdown(ctx); err != nil {
		logger.Warnw("failed to close MCP sessions", "error", err)
	}
	return s.httpServer.Shutdown(ctx)
}

// GetAddress returns the server address
func (s *Server) GetAddress() string {
	return "http://" + net.JoinHostPort(s.config.Host, s.config.Port) + MCPEndpointPath
}

// registerTools registers the enabled tools with the server, plus the hidden
// tool that answers calls of every other name.
func registerTools(mcpServer *server.MCPServer, handler *Handler, enabled []tools.Definition) {
	for _, def := range enabled {
		mcpServer.AddTool(
			mcp.NewToolWithRawSchema(def.Name, def.Description, def.InputSchema),
			handler.CallTool,
		)
	}
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema(unregisteredToolName, "Reports calls of unknown tools.",
			json.RawMessage(`{"type":"object"}`)),
		handler.callUnregistered,
	)
}
