// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/dockerhub-mcp/pkg/config"
	"github.com/stacklok/dockerhub-mcp/pkg/tools"
)

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReadCallRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		args     []string
		wantName string
		wantArgs map[string]any
		wantErr  bool
	}{
		{
			name:     "full request",
			body:     `{"name":"docker_get_stats","args":{"repository":"nginx"}}`,
			wantName: "docker_get_stats",
			wantArgs: map[string]any{"repository": "nginx"},
		},
		{
			name:     "request without args",
			body:     `{"name":"docker_get_stats"}`,
			wantName: "docker_get_stats",
			wantArgs: map[string]any{},
		},
		{
			name:     "tool name as argument",
			body:     `{"repository":"redis","tag":"7"}`,
			args:     []string{"docker_get_manifest"},
			wantName: "docker_get_manifest",
			wantArgs: map[string]any{"repository": "redis", "tag": "7"},
		},
		{
			name:     "tool name with empty stdin",
			args:     []string{"docker_get_stats"},
			wantName: "docker_get_stats",
			wantArgs: map[string]any{},
		},
		{name: "missing name", body: `{"args":{}}`, wantErr: true},
		{name: "malformed request", body: `{"name":`, wantErr: true},
		{name: "malformed arguments", body: `[1,2]`, args: []string{"docker_get_stats"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := readCallRequest(strings.NewReader(tt.body), tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, req.Name)
			assert.Equal(t, tt.wantArgs, req.Args)
		})
	}
}

func TestRenderToolsTable(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, renderToolsTable(&out, tools.Definitions()))

	for _, def := range tools.Definitions() {
		assert.Contains(t, out.String(), def.Name)
	}
}

func TestRequiredArgs(t *testing.T) {
	t.Parallel()

	def, ok := tools.Lookup(tools.ToolCompareImages)
	require.True(t, ok)
	assert.Equal(t, []string{"image1", "image2"}, requiredArgs(def))

	def, ok = tools.Lookup(tools.ToolSearchImages)
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, requiredArgs(def))
}

func TestToolsCmd_JSON(t *testing.T) { //nolint:paralleltest // binds the global debug flag
	out, err := execute(t, "", "tools", "--json")
	require.NoError(t, err)

	var listed []toolJSON
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, len(tools.Definitions()))
	assert.Equal(t, tools.ToolSearchImages, listed[0].Name)
	assert.NotEmpty(t, listed[0].InputSchema)
}

func TestVersionCmd(t *testing.T) { //nolint:paralleltest // binds the global debug flag
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dockerhub-mcp ")
	assert.Contains(t, out, "Go version:")

	out, err = execute(t, "", "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "platform")
}

func TestConfigCmd_RedactsPassword(t *testing.T) { //nolint:paralleltest // sets environment variables
	t.Setenv("DOCKERHUB_USERNAME", "alice")
	t.Setenv("DOCKERHUB_PASSWORD", "hunter2")

	out, err := execute(t, "", "config", "--rate-limit", "30")
	require.NoError(t, err)

	assert.Contains(t, out, "username: alice")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "rate_limit_requests_per_minute: 30")
	assert.Contains(t, out, "registry_url: "+config.DefaultRegistryURL)
}

func TestConfigCmd_FileAndFlags(t *testing.T) { //nolint:paralleltest // binds the global debug flag
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_max_size: 50\nport: 9000\n"), 0o600))

	out, err := execute(t, "", "config", "--config", path, "--port", "9100")
	require.NoError(t, err)

	assert.Contains(t, out, "cache_max_size: 50")
	assert.Contains(t, out, "port: 9100")
}

func TestConfigCmd_InvalidConfig(t *testing.T) { //nolint:paralleltest // binds the global debug flag
	_, err := execute(t, "", "config", "--transport", "carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport")
}

func newHubServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/repositories/library/nginx/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"nginx","namespace":"library","star_count":7,"pull_count":42,` +
			`"last_updated":"2024-01-01T00:00:00Z"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCallCmd(t *testing.T) { //nolint:paralleltest // binds the global debug flag
	hub := newHubServer(t)
	hubFlags := []string{"--hub-url", hub.URL, "--allow-http", "--allow-private-ips"}

	t.Run("full request on stdin", func(t *testing.T) {
		out, err := execute(t, `{"name":"docker_get_stats","args":{"repository":"nginx"}}`,
			append([]string{"call"}, hubFlags...)...)
		require.NoError(t, err)

		var resp tools.StatsResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, 7, resp.Statistics.StarCount)
		assert.Equal(t, int64(42), resp.Statistics.PullCount)
	})

	t.Run("tool name as argument", func(t *testing.T) {
		out, err := execute(t, `{"repository":"library/nginx"}`,
			append([]string{"call", tools.ToolGetStats}, hubFlags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, `"star_count": 7`)
	})

	t.Run("upstream failure", func(t *testing.T) {
		out, err := execute(t, `{"repository":"missing"}`,
			append([]string{"call", tools.ToolGetStats}, hubFlags...)...)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(out, "Error: "))
		assert.Contains(t, out, "404")
	})

	t.Run("invalid arguments", func(t *testing.T) {
		out, err := execute(t, `{}`, append([]string{"call", tools.ToolGetStats}, hubFlags...)...)
		require.Error(t, err)
		assert.Contains(t, out, "repository")
	})
}
