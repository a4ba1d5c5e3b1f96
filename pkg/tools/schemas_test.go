// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-core/httperr"
)

func TestDefinitions(t *testing.T) {
	t.Parallel()

	defs := Definitions()
	require.Len(t, defs, 12)

	seen := map[string]bool{}
	for _, def := range defs {
		assert.False(t, seen[def.Name], "duplicate tool %s", def.Name)
		seen[def.Name] = true
		assert.NotEmpty(t, def.Description)

		var schema map[string]any
		require.NoError(t, json.Unmarshal(def.InputSchema, &schema), def.Name)
		assert.Equal(t, "object", schema["type"])
		assert.NotContains(t, schema, "additionalProperties")
	}
	assert.Equal(t, ToolSearchImages, defs[0].Name)
	assert.Equal(t, ToolEstimatePullSize, defs[len(defs)-1].Name)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	def, ok := Lookup(ToolGetManifest)
	require.True(t, ok)
	assert.Equal(t, "Retrieve the manifest for a specific image tag", def.Description)

	_, ok = Lookup("docker_push_image")
	assert.False(t, ok)
}

func TestDefinition_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		wantErr string
	}{
		{name: "search minimal", tool: ToolSearchImages, args: map[string]any{"query": "nginx"}},
		{
			name: "search all fields",
			tool: ToolSearchImages,
			args: map[string]any{"query": "nginx", "limit": float64(100), "page": float64(3), "is_official": false, "is_automated": true},
		},
		{name: "search missing query", tool: ToolSearchImages, args: map[string]any{}, wantErr: "query is required"},
		{name: "search nil args", tool: ToolSearchImages, args: nil, wantErr: "query is required"},
		{name: "limit too small", tool: ToolSearchImages, args: map[string]any{"query": "a", "limit": float64(0)}, wantErr: "limit"},
		{name: "limit too large", tool: ToolListTags, args: map[string]any{"repository": "a", "limit": float64(101)}, wantErr: "limit"},
		{name: "fractional limit", tool: ToolListTags, args: map[string]any{"repository": "a", "limit": 2.5}, wantErr: "limit"},
		{name: "page zero", tool: ToolSearchImages, args: map[string]any{"query": "a", "page": float64(0)}, wantErr: "page"},
		{name: "limit as string", tool: ToolSearchImages, args: map[string]any{"query": "a", "limit": "10"}, wantErr: "limit"},
		{name: "empty repository", tool: ToolGetManifest, args: map[string]any{"repository": ""}, wantErr: "repository"},
		{name: "compare requires both", tool: ToolCompareImages, args: map[string]any{"image1": "a"}, wantErr: "image2 is required"},
		{name: "compare", tool: ToolCompareImages, args: map[string]any{"image1": "a", "image2": "b", "tag2": "1.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, ok := Lookup(tt.tool)
			require.True(t, ok)

			err := def.Validate(tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArguments))
			assert.Equal(t, http.StatusBadRequest, httperr.Code(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefinition_Strip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tool string
		args map[string]any
		want map[string]any
	}{
		{
			name: "undeclared key dropped",
			tool: ToolGetManifest,
			args: map[string]any{"repository": "nginx", "digest": "x"},
			want: map[string]any{"repository": "nginx"},
		},
		{
			name: "stats drops tag",
			tool: ToolGetStats,
			args: map[string]any{"repository": "nginx", "tag": "1"},
			want: map[string]any{"repository": "nginx"},
		},
		{
			name: "declared keys kept",
			tool: ToolCompareImages,
			args: map[string]any{"image1": "a", "image2": "b", "tag2": "1.0"},
			want: map[string]any{"image1": "a", "image2": "b", "tag2": "1.0"},
		},
		{name: "nil args", tool: ToolSearchImages, args: nil, want: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, ok := Lookup(tt.tool)
			require.True(t, ok)

			assert.Equal(t, tt.want, def.Strip(tt.args))
		})
	}
}
