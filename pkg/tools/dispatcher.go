// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/dockerhub-mcp/pkg/logger"
	"github.com/stacklok/dockerhub-mcp/pkg/ratelimit"
)

// Call outcomes reported to the Recorder.
const (
	outcomeSuccess     = "success"
	outcomeError       = "error"
	outcomeRateLimited = "rate_limited"
)

// Handler runs one tool with raw arguments that already passed schema
// validation.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// RateLimitedError carries the wait before the next call can be admitted.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

// Unwrap returns ErrRateLimited.
func (*RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// UnknownToolError names a tool that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + e.Name
}

// Unwrap returns ErrUnknownTool.
func (*UnknownToolError) Unwrap() error {
	return ErrUnknownTool
}

// Dispatcher routes tool calls to their handlers. Every call first draws a
// token from the limiter's global bucket.
type Dispatcher struct {
	service  *Service
	limiter  *ratelimit.Limiter
	recorder Recorder
	handlers map[string]Handler
	enabled  []string
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchRecorder reports tool calls and limiter rejections to r.
func WithDispatchRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithEnabledTools restricts the dispatcher to the named tools. Calls to any
// other tool fail as unknown. No names means every tool.
func WithEnabledTools(names ...string) DispatcherOption {
	return func(d *Dispatcher) {
		d.enabled = names
	}
}

// NewDispatcher creates a Dispatcher for all tools. A nil limiter admits
// every call.
func NewDispatcher(service *Service, limiter *ratelimit.Limiter, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		service:  service,
		limiter:  limiter,
		recorder: nopRecorder{},
	}
	for _, o := range opts {
		o(d)
	}

	d.handlers = map[string]Handler{
		ToolSearchImages:       d.searchImages,
		ToolGetImageDetails:    d.imageDetails,
		ToolListTags:           d.listTags,
		ToolGetManifest:        d.manifest,
		ToolAnalyzeLayers:      d.analyzeLayers,
		ToolCompareImages:      d.compareImages,
		ToolGetDockerfile:      d.dockerfile,
		ToolGetStats:           d.stats,
		ToolGetVulnerabilities: d.vulnerabilities,
		ToolGetImageHistory:    d.imageHistory,
		ToolTrackBaseUpdates:   d.baseUpdates,
		ToolEstimatePullSize:   d.estimatePullSize,
	}
	if len(d.enabled) > 0 {
		keep := make(map[string]Handler, len(d.enabled))
		for _, name := range d.enabled {
			if h, ok := d.handlers[name]; ok {
				keep[name] = h
			}
		}
		d.handlers = keep
	}
	return d
}

// Invoke runs a tool and returns its structured result.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	start := time.Now()
	callID := uuid.NewString()
	logger.Debugw("tool call started", "call_id", callID, "tool", name)

	result, err := d.invoke(ctx, name, args)

	outcome := outcomeSuccess
	switch {
	case errors.Is(err, ErrRateLimited):
		outcome = outcomeRateLimited
	case err != nil:
		outcome = outcomeError
	}
	elapsed := time.Since(start)
	d.recorder.ObserveToolCall(name, outcome, elapsed)
	logger.Debugw("tool call finished",
		"call_id", callID, "tool", name, "outcome", outcome, "duration", elapsed, "error", err)

	return result, err
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if d.limiter != nil && !d.limiter.Allow(ratelimit.GlobalKey) {
		d.recorder.ObserveRateLimited()
		return nil, &RateLimitedError{RetryAfter: d.limiter.RetryAfter(ratelimit.GlobalKey)}
	}

	def, ok := Lookup(name)
	handler, registered := d.handlers[name]
	if !ok || !registered {
		return nil, &UnknownToolError{Name: name}
	}
	args = def.Strip(args)
	if err := def.Validate(args); err != nil {
		return nil, err
	}
	return handler(ctx, args)
}

// Dispatch runs a tool and renders the outcome as an MCP tool result.
// Success is indented JSON text. Failures set IsError: rate limiting yields
// a JSON payload and every other failure yields "Error: <message>".
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	result, err := d.Invoke(ctx, name, args)
	if err != nil {
		return ErrorResult(err)
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return ErrorResult(fmt.Errorf("failed to encode result: %w", err))
	}
	return mcp.NewToolResultText(string(text))
}

// ErrorResult renders err as an MCP error result.
func ErrorResult(err error) *mcp.CallToolResult {
	var limited *RateLimitedError
	if errors.As(err, &limited) {
		payload, _ := json.Marshal(map[string]any{
			"error":               "rate_limited",
			"message":             "Rate limit exceeded. Please try again later.",
			"retry_after_seconds": int64(math.Ceil(limited.RetryAfter.Seconds())),
		})
		return mcp.NewToolResultError(string(payload))
	}
	return mcp.NewToolResultError("Error: " + err.Error())
}

func (d *Dispatcher) searchImages(ctx context.Context, raw map[string]any) (any, error) {
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return d.service.Search(ctx, args.params())
}

func (d *Dispatcher) imageDetails(ctx context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return d.service.ImageDetails(ctx, image)
}

func (d *Dispatcher) listTags(ctx context.Context, raw map[string]any) (any, error) {
	var args listTagsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	image, err := normalizeImage(args.Repository, "")
	if err != nil {
		return nil, err
	}
	return d.service.Tags(ctx, image.Repo, orDefault(args.Limit, DefaultLimit), orDefault(args.Page, DefaultPage))
}

func (d *Dispatcher) manifest(ctx context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return d.service.Manifest(ctx, image)
}

func (d *Dispatcher) analyzeLayers(ctx context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return d.service.AnalyzeLayers(ctx, image)
}

func (d *Dispatcher) compareImages(ctx context.Context, raw map[string]any) (any, error) {
	var args compareArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	left, err := normalizeImage(args.Image1, args.Tag1)
	if err != nil {
		return nil, err
	}
	right, err := normalizeImage(args.Image2, args.Tag2)
	if err != nil {
		return nil, err
	}
	return d.service.Compare(ctx, left, right)
}

func (*Dispatcher) dockerfile(_ context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return dockerfileGuidance(image), nil
}

func (d *Dispatcher) stats(ctx context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return d.service.Stats(ctx, image.Repo)
}

func (d *Dispatcher) vulnerabilities(ctx context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return d.service.Vulnerabilities(ctx, image)
}

func (*Dispatcher) imageHistory(_ context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return historyGuidance(image), nil
}

func (d *Dispatcher) baseUpdates(ctx context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return d.service.BaseUpdates(ctx, image)
}

func (d *Dispatcher) estimatePullSize(ctx context.Context, raw map[string]any) (any, error) {
	image, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	return d.service.EstimatePullSize(ctx, image)
}

func decodeImage(raw map[string]any) (imageArgs, error) {
	var args repositoryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return imageArgs{}, err
	}
	return normalizeImage(args.Repository, args.Tag)
}
