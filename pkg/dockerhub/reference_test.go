// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dockerhub

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-core/httperr"
)

func TestParseRepository(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input     string
		namespace string
		name      string
		wantErr   bool
	}{
		{input: "nginx", namespace: "library", name: "nginx"},
		{input: "library/nginx", namespace: "library", name: "nginx"},
		{input: "  redis ", namespace: "library", name: "redis"},
		{input: "bitnami/postgresql", namespace: "bitnami", name: "postgresql"},
		{input: "a", namespace: "library", name: "a"},
		{input: "org/team/app", namespace: "org", name: "team/app"},
		{input: "", wantErr: true},
		{input: "Nginx", wantErr: true},
		{input: "bad repo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			ref, err := ParseRepository(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRepository))
				assert.Equal(t, http.StatusBadRequest, httperr.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.namespace, ref.Namespace)
			assert.Equal(t, tt.name, ref.Name)
			assert.Equal(t, tt.namespace+"/"+tt.name, ref.Path())
		})
	}
}

func TestParseRepository_BareAndLibraryAreIdentical(t *testing.T) {
	t.Parallel()

	bare, err := ParseRepository("nginx")
	require.NoError(t, err)
	full, err := ParseRepository("library/nginx")
	require.NoError(t, err)

	assert.Equal(t, bare, full)
	assert.Equal(t, bare.String(), full.String())
}

func TestValidateReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref     string
		wantErr bool
	}{
		{ref: "latest"},
		{ref: "1.25-alpine"},
		{ref: "v2.0.1_rc"},
		{ref: "sha256:" + strings.Repeat("a", 64)},
		{ref: "bad tag", wantErr: true},
		{ref: "../../etc", wantErr: true},
		{ref: "sha256:xyz", wantErr: true},
		{ref: strings.Repeat("t", 129), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()

			err := ValidateReference(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidReference))
				return
			}
			assert.NoError(t, err)
		})
	}
}
