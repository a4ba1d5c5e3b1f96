// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/dockerhub-mcp/pkg/logger"
)

// unregisteredToolName is the hidden tool that receives tools/call requests
// for names the MCP server does not know. mcp-go answers those with a
// protocol error before any handler runs, so they are renamed on the way in
// and handed to the dispatcher, which renders the usual unknown tool result.
const unregisteredToolName = "dockerhub_mcp_unregistered_tool"

// Argument keys of the hidden tool.
const (
	unregisteredNameArg = "name"
	unregisteredArgsArg = "arguments"
)

// rewriteToolCall renames a tools/call for an unregistered tool to the hidden
// tool, carrying the requested name and arguments inside its arguments. Any
// other message, including anything that does not parse, is returned as is.
func (s *Server) rewriteToolCall(message []byte) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(message, &envelope); err != nil {
		return message
	}

	var method string
	if err := json.Unmarshal(envelope["method"], &method); err != nil || method != string(mcp.MethodToolsCall) {
		return message
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(envelope["params"], &params); err != nil || params == nil {
		return message
	}
	var name string
	if err := json.Unmarshal(params["name"], &name); err != nil || s.isRegistered(name) {
		return message
	}

	wrapped := map[string]json.RawMessage{unregisteredNameArg: params["name"]}
	if args, ok := params["arguments"]; ok {
		wrapped[unregisteredArgsArg] = args
	}

	var err error
	if params["arguments"], err = json.Marshal(wrapped); err != nil {
		return message
	}
	if params["name"], err = json.Marshal(unregisteredToolName); err != nil {
		return message
	}
	if envelope["params"], err = json.Marshal(params); err != nil {
		return message
	}
	rewritten, err := json.Marshal(envelope)
	if err != nil {
		return message
	}

	logger.Debugw("routing call of unregistered tool to dispatcher", "tool", name)
	return rewritten
}

// isRegistered reports whether name is an advertised tool. The hidden tool
// itself never counts, so it cannot be called directly.
func (s *Server) isRegistered(name string) bool {
	return name != unregisteredToolName && s.mcpServer.GetTool(name) != nil
}

// HandleMessage processes one JSON-RPC message the way the transports do.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, s.rewriteToolCall(message))
}

// routeUnregisteredTools applies rewriteToolCall to MCP POST bodies.
func (s *Server) routeUnregisteredTools(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}

		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			// If we can't read the body, let the next handler deal with it
			next.ServeHTTP(w, r)
			return
		}

		bodyBytes = s.rewriteToolCall(bodyBytes)
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		r.ContentLength = int64(len(bodyBytes))
		next.ServeHTTP(w, r)
	})
}

// rewriteLines returns a reader over in with rewriteToolCall applied to each
// newline delimited message. Closing the returned reader stops the copy.
func (s *Server) rewriteLines(in io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadBytes('\n')
			if trimmed := bytes.TrimRight(line, "\r\n"); len(trimmed) > 0 {
				out := append(s.rewriteToolCall(trimmed), '\n')
				if _, werr := pw.Write(out); werr != nil {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				pw.CloseWithError(err)
				return
			}
		}
	}()
	return pr
}

// callUnregistered is the handler of the hidden tool.
func (h *Handler) callUnregistered(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, _ := args[unregisteredNameArg].(string)
	toolArgs, _ := args[unregisteredArgsArg].(map[string]any)
	return h.dispatcher.Dispatch(ctx, name, toolArgs), nil
}

// hideUnregisteredTool keeps the hidden tool out of tools/list.
func hideUnregisteredTool(_ context.Context, listed []mcp.Tool) []mcp.Tool {
	out := listed[:0:0]
	for _, tool := range listed {
		if tool.Name != unregisteredToolName {
			out = append(out, tool)
		}
	}
	return out
}
