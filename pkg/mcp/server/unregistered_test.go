// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/dockerhub-mcp/pkg/ratelimit"
	"github.com/stacklok/dockerhub-mcp/pkg/tools"
)

type callResponse struct {
	Result *struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeCallResponse(t *testing.T, raw []byte) callResponse {
	t.Helper()
	var resp callResponse
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	require.Nil(t, resp.Error, string(raw))
	require.NotNil(t, resp.Result, string(raw))
	require.Len(t, resp.Result.Content, 1)
	return resp
}

func toolCall(name string, args string) string {
	return `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"` + name + `","arguments":` + args + `}}`
}

func TestServer_UnknownToolRendersToolError(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(100)
	server, err := New(context.Background(), &Config{Port: "8080"}, tools.NewDispatcher(nil, limiter))
	require.NoError(t, err)

	response := server.HandleMessage(context.Background(),
		json.RawMessage(toolCall("docker_nope", `{"repository":"nginx"}`)))
	raw, err := json.Marshal(response)
	require.NoError(t, err)

	resp := decodeCallResponse(t, raw)
	assert.True(t, resp.Result.IsError)
	assert.Equal(t, "Error: Unknown tool: docker_nope", resp.Result.Content[0].Text)
	assert.Less(t, limiter.Tokens(ratelimit.GlobalKey), 100.0, "unknown tools are charged to the limiter")
}

func TestServer_UnregisteredNamesReachDispatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		tool     string
		args     string
		wantArgs map[string]any
	}{
		{
			name:     "unknown tool",
			tool:     "docker_nope",
			args:     `{"a":1}`,
			wantArgs: map[string]any{"a": float64(1)},
		},
		{
			name:     "tool outside the allow list",
			tool:     tools.ToolGetStats,
			args:     `{"repository":"nginx"}`,
			wantArgs: map[string]any{"repository": "nginx"},
		},
		{
			name: "hidden tool called directly",
			tool: unregisteredToolName,
			args: `{"name":"docker_get_stats"}`,
			wantArgs: map[string]any{
				"name": "docker_get_stats",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dispatcher := &fakeDispatcher{}
			server, err := New(context.Background(),
				&Config{Port: "8080", Tools: []string{tools.ToolListTags}}, dispatcher)
			require.NoError(t, err)

			response := server.HandleMessage(context.Background(), json.RawMessage(toolCall(tt.tool, tt.args)))
			raw, err := json.Marshal(response)
			require.NoError(t, err)
			decodeCallResponse(t, raw)

			require.Len(t, dispatcher.calls, 1)
			assert.Equal(t, tt.tool, dispatcher.calls[0].name)
			assert.Equal(t, tt.wantArgs, dispatcher.calls[0].args)
		})
	}
}

func TestServer_HiddenToolNotListed(t *testing.T) {
	t.Parallel()

	server, err := New(context.Background(), &Config{Port: "8080"}, &fakeDispatcher{})
	require.NoError(t, err)

	response := server.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(response)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), unregisteredToolName)
	for _, def := range tools.Definitions() {
		assert.Contains(t, string(raw), `"`+def.Name+`"`)
	}
}

func TestServer_RewriteToolCallPassesThrough(t *testing.T) {
	t.Parallel()

	server, err := New(context.Background(), &Config{Port: "8080"}, &fakeDispatcher{})
	require.NoError(t, err)

	for _, message := range []string{
		`not json`,
		`[{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"docker_nope"}}]`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"arguments":{}}}`,
		toolCall(tools.ToolGetStats, `{"repository":"nginx"}`),
	} {
		assert.Equal(t, message, string(server.rewriteToolCall([]byte(message))))
	}
}

func TestServer_UnknownToolOverHTTP(t *testing.T) {
	t.Parallel()

	server, err := New(context.Background(), &Config{Port: "8080"}, tools.NewDispatcher(nil, nil))
	require.NoError(t, err)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	post := func(body, sessionID string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.URL+MCPEndpointPath, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		if sessionID != "" {
			req.Header.Set("Mcp-Session-Id", sessionID)
		}
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	initResp := post(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26",`+
		`"capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`, "")
	require.Equal(t, http.StatusOK, initResp.StatusCode)

	resp := post(toolCall("docker_nope", `{}`), initResp.Header.Get("Mcp-Session-Id"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"isError":true`)
	assert.Contains(t, string(body), "Error: Unknown tool: docker_nope")
}

func TestServer_UnknownToolOverStdio(t *testing.T) {
	t.Parallel()

	server, err := New(context.Background(), &Config{Port: "8080"}, tools.NewDispatcher(nil, nil))
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader(toolCall("docker_nope", `{}`) + "\n")
	require.NoError(t, server.ServeStdio(context.Background(), in, &out))

	resp := decodeCallResponse(t, bytes.TrimSpace(out.Bytes()))
	assert.True(t, resp.Result.IsError)
	assert.Equal(t, "Error: Unknown tool: docker_nope", resp.Result.Content[0].Text)
}
