// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dockerhub

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/opencontainers/go-digest"

	"github.com/stacklok/toolhive-core/httperr"
)

const libraryNamespace = "library"

// DefaultTag is used when no tag is supplied.
const DefaultTag = "latest"

var (
	// ErrInvalidRepository is returned for repository names the registry
	// would reject.
	ErrInvalidRepository = httperr.WithCode(
		errors.New("invalid repository name"),
		http.StatusBadRequest,
	)

	// ErrInvalidReference is returned for malformed tags or digests.
	ErrInvalidReference = httperr.WithCode(
		errors.New("invalid tag or digest"),
		http.StatusBadRequest,
	)
)

// RepositoryRef is a normalized namespace/name pair.
type RepositoryRef struct {
	Namespace string
	Name      string
}

// ParseRepository normalizes a user-supplied repository. A name without a
// namespace separator is placed in the library namespace, so "nginx" and
// "library/nginx" yield the same ref.
func ParseRepository(repository string) (RepositoryRef, error) {
	repository = strings.TrimSpace(repository)
	if repository == "" {
		return RepositoryRef{}, fmt.Errorf("%w: empty", ErrInvalidRepository)
	}
	path := repository
	if !strings.Contains(path, "/") {
		path = libraryNamespace + "/" + path
	}

	// The default registry host is only a parsing anchor: it keeps the first
	// path component from being read as a registry.
	if _, err := name.NewRepository(name.DefaultRegistry + "/" + path); err != nil {
		return RepositoryRef{}, fmt.Errorf("%w %q: %w", ErrInvalidRepository, repository, err)
	}

	namespace, rest, _ := strings.Cut(path, "/")
	return RepositoryRef{Namespace: namespace, Name: rest}, nil
}

// Path returns "namespace/name".
func (r RepositoryRef) Path() string {
	return r.Namespace + "/" + r.Name
}

// String implements fmt.Stringer.
func (r RepositoryRef) String() string {
	return r.Path()
}

// ValidateReference checks that ref is a well-formed tag or content digest.
func ValidateReference(ref string) error {
	if strings.Contains(ref, ":") {
		if _, err := digest.Parse(ref); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidReference, ref, err)
		}
		return nil
	}
	if _, err := name.NewTag(name.DefaultRegistry+"/library/x:"+ref, name.StrictValidation); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidReference, ref, err)
	}
	return nil
}
