// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/dockerhub-mcp/pkg/config"
	"github.com/stacklok/dockerhub-mcp/pkg/logger"
	"github.com/stacklok/dockerhub-mcp/pkg/mcp/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server.

With --transport stdio (the default) the server speaks MCP over stdin and
stdout. With --transport http it serves streamable HTTP at /mcp, Prometheus
metrics at /metrics and a liveness probe at /health.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	addRegistryFlags(cmd.Flags())
	addTransportFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, &server.Config{
		Host:     cfg.Host,
		Port:     strconv.Itoa(cfg.Port),
		Tools:    cfg.Tools,
		Gatherer: rt.registry,
	}, rt.dispatcher)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	logger.Infow("starting MCP server",
		"transport", cfg.Transport,
		"tools", len(srv.Tools()),
		"registry", cfg.RegistryURL,
	)

	if cfg.Transport == config.TransportStdio {
		return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
	return serveHTTP(ctx, srv)
}

// serveHTTP runs srv until ctx is canceled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *server.Server) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("MCP server listening at %s", srv.GetAddress())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down MCP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down MCP server: %w", err)
	}
	return nil
}
