// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stacklok/dockerhub-mcp/pkg/config"
	"github.com/stacklok/dockerhub-mcp/pkg/dockerhub"
	"github.com/stacklok/dockerhub-mcp/pkg/logger"
	"github.com/stacklok/dockerhub-mcp/pkg/metrics"
	"github.com/stacklok/dockerhub-mcp/pkg/networking"
	"github.com/stacklok/dockerhub-mcp/pkg/ratelimit"
	"github.com/stacklok/dockerhub-mcp/pkg/tools"
	"github.com/stacklok/dockerhub-mcp/pkg/versions"
)

// runtime holds the components built once at startup and shared by every
// tool invocation.
type runtime struct {
	client     *dockerhub.Client
	limiter    *ratelimit.Limiter
	dispatcher *tools.Dispatcher
	registry   *prometheus.Registry
}

// newRuntime wires the registry client, cache, limiter and dispatcher from
// cfg. The Hub session is established here; a failed login is logged and the
// server continues anonymously.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	httpClient, err := networking.NewHttpClientBuilder().
		WithTimeout(cfg.RequestTimeout).
		WithCABundle(cfg.CABundle).
		WithUserAgent(versions.UserAgent()).
		WithPrivateIPs(cfg.AllowPrivateIPs).
		WithAllowHTTP(cfg.AllowHTTP).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusMetrics(registry)

	client, err := dockerhub.NewClient(dockerhub.Options{
		RegistryURL: cfg.RegistryURL,
		HubURL:      cfg.HubURL,
		AuthURL:     cfg.AuthURL,
		AuthService: cfg.AuthService,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Timeout:     cfg.RequestTimeout,
		CacheSize:   cfg.CacheMaxSize,
	}, httpClient, dockerhub.WithObserver(recorder))
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}

	authCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := client.Authenticate(authCtx); err != nil {
		logger.Warnw("Docker Hub authentication failed, continuing anonymously", "error", err)
	}

	limiter := ratelimit.New(cfg.RateLimitPerMinute)
	service := tools.NewService(client, client.Cache(), tools.WithRecorder(recorder))
	dispatcher := tools.NewDispatcher(service, limiter,
		tools.WithDispatchRecorder(recorder),
		tools.WithEnabledTools(cfg.Tools...),
	)

	logger.Debugw("runtime initialized",
		"registry", client.RegistryURL(),
		"authenticated", client.SessionToken() != "",
		"cache_max_size", client.Cache().MaxSize(),
		"rate_limit", limiter.Capacity(),
	)

	return &runtime{
		client:     client,
		limiter:    limiter,
		dispatcher: dispatcher,
		registry:   registry,
	}, nil
}
