// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"encoding/json"
	"fmt"

	"github.com/stacklok/dockerhub-mcp/pkg/dockerhub"
)

// Argument defaults.
const (
	DefaultLimit = 25
	DefaultPage  = 1

	// detailsTagLimit is the tag page size fetched alongside repository info
	// when resolving image details.
	detailsTagLimit = 10
)

type searchArgs struct {
	Query       string `json:"query"`
	Limit       int    `json:"limit"`
	Page        int    `json:"page"`
	IsOfficial  *bool  `json:"is_official"`
	IsAutomated *bool  `json:"is_automated"`
}

type repositoryArgs struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

type listTagsArgs struct {
	Repository string `json:"repository"`
	Limit      int    `json:"limit"`
	Page       int    `json:"page"`
}

type compareArgs struct {
	Image1 string `json:"image1"`
	Image2 string `json:"image2"`
	Tag1   string `json:"tag1"`
	Tag2   string `json:"tag2"`
}

// imageArgs is a repository and tag after normalization.
type imageArgs struct {
	Repo dockerhub.RepositoryRef
	Tag  string
}

// decodeArgs copies schema-validated arguments into target.
func decodeArgs(args map[string]any, target any) error {
	if args == nil {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

func (a *searchArgs) params() dockerhub.SearchParams {
	return dockerhub.SearchParams{
		Query:       a.Query,
		Limit:       orDefault(a.Limit, DefaultLimit),
		Page:        orDefault(a.Page, DefaultPage),
		IsOfficial:  a.IsOfficial,
		IsAutomated: a.IsAutomated,
	}
}

// normalizeImage parses the repository and applies the default tag.
func normalizeImage(repository, tag string) (imageArgs, error) {
	ref, err := dockerhub.ParseRepository(repository)
	if err != nil {
		return imageArgs{}, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	if tag == "" {
		tag = dockerhub.DefaultTag
	}
	if err := dockerhub.ValidateReference(tag); err != nil {
		return imageArgs{}, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return imageArgs{Repo: ref, Tag: tag}, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
