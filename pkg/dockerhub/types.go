// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dockerhub

import (
	"time"

	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// SearchParams are the inputs of a Hub repository search. IsOfficial and
// IsAutomated are tri-state: nil omits the filter.
type SearchParams struct {
	Query       string
	Limit       int
	Page        int
	IsOfficial  *bool
	IsAutomated *bool
}

// SearchPage is one page of Hub search results.
type SearchPage struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []SearchResult `json:"results"`
}

// SearchResult is a single repository in a search page. The Hub search API
// reports repo_name/short_description; older responses used name/description.
type SearchResult struct {
	RepoName         string `json:"repo_name"`
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	RepoOwner        string `json:"repo_owner"`
	StarCount        int    `json:"star_count"`
	PullCount        int64  `json:"pull_count"`
	IsOfficial       bool   `json:"is_official"`
	IsAutomated      bool   `json:"is_automated"`
	LastUpdated      string `json:"last_updated"`
}

// DisplayName returns the repository name as reported by the API.
func (r SearchResult) DisplayName() string {
	if r.RepoName != "" {
		return r.RepoName
	}
	return r.Name
}

// DisplayDescription returns the short description, if any.
func (r SearchResult) DisplayDescription() string {
	if r.ShortDescription != "" {
		return r.ShortDescription
	}
	return r.Description
}

// RepositoryInfo is the Hub repository resource.
type RepositoryInfo struct {
	User            string `json:"user"`
	Name            string `json:"name"`
	Namespace       string `json:"namespace"`
	RepositoryType  string `json:"repository_type"`
	Description     string `json:"description"`
	FullDescription string `json:"full_description"`
	IsPrivate       bool   `json:"is_private"`
	IsAutomated     bool   `json:"is_automated"`
	IsOfficialField *bool  `json:"is_official,omitempty"`
	StarCount       int    `json:"star_count"`
	PullCount       int64  `json:"pull_count"`
	LastUpdated     string `json:"last_updated"`
}

// IsOfficial reports whether the repository is a Docker Official Image. The
// repository endpoint does not always carry the flag, in which case the
// library namespace decides.
func (r *RepositoryInfo) IsOfficial() bool {
	if r.IsOfficialField != nil {
		return *r.IsOfficialField
	}
	return r.Namespace == libraryNamespace
}

// LastUpdatedTime parses LastUpdated. The zero time is returned when the
// field is empty or malformed.
func (r *RepositoryInfo) LastUpdatedTime() time.Time {
	return parseHubTime(r.LastUpdated)
}

// TagPage is one page of repository tags.
type TagPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Tag   `json:"results"`
}

// Tag is a single repository tag.
type Tag struct {
	Name        string     `json:"name"`
	FullSize    int64      `json:"full_size"`
	LastUpdated string     `json:"last_updated"`
	Digest      string     `json:"digest"`
	Images      []TagImage `json:"images"`
}

// TagImage is a per-platform image behind a tag.
type TagImage struct {
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
	Variant      string `json:"variant,omitempty"`
	Size         int64  `json:"size"`
	Digest       string `json:"digest,omitempty"`
}

// Manifest is an image manifest or an image index as returned by the
// registry. Exactly one of Layers or Manifests is normally populated.
type Manifest struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType,omitempty"`
	Config        *ocispec.Descriptor  `json:"config,omitempty"`
	Layers        []ocispec.Descriptor `json:"layers,omitempty"`
	Manifests     []ocispec.Descriptor `json:"manifests,omitempty"`

	// Digest is the content digest reported by the registry, if any.
	Digest digest.Digest `json:"-"`
}

// IsIndex reports whether the manifest is a Docker manifest list or an OCI
// image index.
func (m *Manifest) IsIndex() bool {
	return types.MediaType(m.MediaType).IsIndex() || (m.MediaType == "" && len(m.Manifests) > 0)
}

// TotalLayerSize sums the sizes of all layers.
func (m *Manifest) TotalLayerSize() int64 {
	var total int64
	for _, l := range m.Layers {
		total += l.Size
	}
	return total
}

func parseHubTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
