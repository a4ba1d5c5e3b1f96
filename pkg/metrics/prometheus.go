// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus collectors for tool dispatch, the result
// cache, the rate limiter and upstream registry calls.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stacklok/dockerhub-mcp/pkg/networking"
)

const namespace = "dockerhub_mcp"

// Status label values.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
	StatusTimeout     = "timeout"
)

// PrometheusMetrics records dispatch and upstream activity.
type PrometheusMetrics struct {
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	rateLimited      prometheus.Counter
	upstreamRequests *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors with registerer, or with the
// default registerer when nil.
func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool invocations by outcome",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Duration of tool invocations in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tool"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of cache lookups by result",
			},
			[]string{"result"},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Total number of tool invocations rejected by the rate limiter",
			},
		),
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of requests to Docker Hub and registry endpoints",
			},
			[]string{"endpoint", "status"},
		),
	}
}

// ObserveToolCall records one finished tool invocation.
func (p *PrometheusMetrics) ObserveToolCall(tool, status string, duration time.Duration) {
	p.toolCalls.WithLabelValues(tool, status).Inc()
	p.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveCacheLookup records a cache hit or miss.
func (p *PrometheusMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveRateLimited records an admission denial.
func (p *PrometheusMetrics) ObserveRateLimited() {
	p.rateLimited.Inc()
}

// ObserveUpstream records an outbound request. The status label is the HTTP
// status code for rejected requests.
func (p *PrometheusMetrics) ObserveUpstream(endpoint string, err error) {
	p.upstreamRequests.WithLabelValues(endpoint, UpstreamStatus(err)).Inc()
}

// UpstreamStatus maps an outbound request error to a status label.
func UpstreamStatus(err error) string {
	if err == nil {
		return StatusSuccess
	}
	var httpErr *networking.HTTPError
	if errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode)
	}
	if networking.IsTimeout(err) {
		return StatusTimeout
	}
	return StatusError
}
