// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"

	"github.com/stacklok/dockerhub-mcp/pkg/dockerhub"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go RegistryClient

// RegistryClient is the subset of the registry access layer used by the
// tools. *dockerhub.Client implements it.
type RegistryClient interface {
	SearchImages(ctx context.Context, params dockerhub.SearchParams) (*dockerhub.SearchPage, error)
	GetRepositoryInfo(ctx context.Context, repo dockerhub.RepositoryRef) (*dockerhub.RepositoryInfo, error)
	GetRepositoryTags(ctx context.Context, repo dockerhub.RepositoryRef, limit, page int) (*dockerhub.TagPage, error)
	GetImageManifest(ctx context.Context, repo dockerhub.RepositoryRef, reference string) (*dockerhub.Manifest, error)
}

var _ RegistryClient = (*dockerhub.Client)(nil)
