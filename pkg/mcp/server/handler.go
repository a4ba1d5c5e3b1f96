// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package server provides the MCP (Model Context Protocol) server for the
// Docker Hub tools.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Dispatcher runs a named tool and renders its result envelope.
// *tools.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult
}

// Handler handles MCP tool requests
type Handler struct {
	dispatcher Dispatcher
}

// NewHandler creates a new handler
func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// CallTool forwards a tools/call request to the dispatcher. Tool failures are
// reported in the result, never as a protocol error.
func (h *Handler) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.dispatcher.Dispatch(ctx, request.Params.Name, request.GetArguments()), nil
}
