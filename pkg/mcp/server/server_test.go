// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/dockerhub-mcp/pkg/logger"
	"github.com/stacklok/dockerhub-mcp/pkg/tools"
)

func init() {
	// Initialize the logger for tests
	logger.Initialize()
}

type recordedCall struct {
	name string
	args map[string]any
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeDispatcher) Dispatch(_ context.Context, name string, args map[string]any) *mcp.CallToolResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	return mcp.NewToolResultText(`{"ok": true}`)
}

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		config    *Config
		wantTools int
		wantErr   error
	}{
		{
			name:      "all tools",
			config:    &Config{Host: "localhost", Port: "8080"},
			wantTools: 12,
		},
		{
			name: "filtered tools",
			config: &Config{
				Host:  "127.0.0.1",
				Port:  "9090",
				Tools: []string{tools.ToolGetStats, tools.ToolSearchImages},
			},
			wantTools: 2,
		},
		{
			name:    "unknown tool in filter",
			config:  &Config{Port: "8080", Tools: []string{"docker_push_image"}},
			wantErr: errToolNameNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server, err := New(context.Background(), tt.config, &fakeDispatcher{})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, server)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.config, server.config)
			assert.NotNil(t, server.httpServer)
			assert.NotNil(t, server.handler)
			assert.Len(t, server.Tools(), tt.wantTools)
			// Plus the hidden tool for unregistered names.
			assert.Len(t, server.mcpServer.ListTools(), tt.wantTools+1)
		})
	}
}

func TestNew_RequiresDispatcher(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &Config{Port: "8080"}, nil)
	assert.Error(t, err)
}

func TestFilterTools_KeepsDefinitionOrder(t *testing.T) {
	t.Parallel()

	got, err := filterTools(tools.Definitions(), []string{tools.ToolEstimatePullSize, tools.ToolSearchImages})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, tools.ToolSearchImages, got[0].Name)
	assert.Equal(t, tools.ToolEstimatePullSize, got[1].Name)

	_, err = filterTools(tools.Definitions(), []string{""})
	assert.Error(t, err)
}

func TestServer_GetAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name:     "localhost with default port",
			config:   &Config{Host: "localhost", Port: DefaultMCPPort},
			expected: "http://localhost:8080/mcp",
		},
		{
			name:     "custom host and port",
			config:   &Config{Host: "192.168.1.1", Port: "9090"},
			expected: "http://192.168.1.1:9090/mcp",
		},
		{
			name:     "ipv6 host",
			config:   &Config{Host: "::1", Port: "8080"},
			expected: "http://[::1]:8080/mcp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server, err := New(context.Background(), tt.config, &fakeDispatcher{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, server.GetAddress())
		})
	}
}

func TestServer_ToolCallReachesDispatcher(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	server, err := New(context.Background(), &Config{Port: "8080"}, dispatcher)
	require.NoError(t, err)

	request := `{"jsonrpc":"2.0","id":1,"method":"tools/call",` +
		`"params":{"name":"docker_get_manifest","arguments":{"repository":"nginx","tag":"1.25"}}}`
	response := server.HandleMessage(context.Background(), json.RawMessage(request))

	raw, err := json.Marshal(response)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{\"ok\": true}`)

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, tools.ToolGetManifest, dispatcher.calls[0].name)
	assert.Equal(t, map[string]any{"repository": "nginx", "tag": "1.25"}, dispatcher.calls[0].args)
}

func TestServer_ToolsListAdvertisesSchemas(t *testing.T) {
	t.Parallel()

	server, err := New(context.Background(), &Config{Port: "8080", Tools: []string{tools.ToolListTags}}, &fakeDispatcher{})
	require.NoError(t, err)

	response := server.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	raw, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name        string         `json:"name"`
				InputSchema map[string]any `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Result.Tools, 1)
	assert.Equal(t, tools.ToolListTags, decoded.Result.Tools[0].Name)
	assert.Equal(t, []any{"repository"}, decoded.Result.Tools[0].InputSchema["required"])
}

func TestServer_Router(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	server, err := New(context.Background(), &Config{Port: "8080", Gatherer: registry}, &fakeDispatcher{})
	require.NoError(t, err)
	router := server.Router()

	t.Run("health", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "router_test_total 1")
	})

	t.Run("unknown route", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_CallTool(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	handler := NewHandler(dispatcher)

	request := mcp.CallToolRequest{}
	request.Params.Name = tools.ToolGetStats
	request.Params.Arguments = map[string]any{"repository": "redis"}

	result, err := handler.CallTool(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, "redis", dispatcher.calls[0].args["repository"])
}

func TestServer_StartAndShutdown(t *testing.T) {
	t.Parallel()
	config := &Config{
		Host: "127.0.0.1",
		Port: "0", // Use port 0 to let the system assign a free port
	}

	server, err := New(context.Background(), config, &fakeDispatcher{})
	require.NoError(t, err)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	time.Sleep(100 * time.Millisecond)

	select {
	case err := <-serverErr:
		t.Fatalf("Server failed to start: %v", err)
	default:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(shutdownCtx))

	select {
	case <-serverErr:
	case <-time.After(1 * time.Second):
		t.Fatal("Server did not stop in time")
	}
}
