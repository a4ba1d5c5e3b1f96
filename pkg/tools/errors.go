// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"errors"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"
)

var (
	// ErrInvalidArguments is returned when tool arguments fail validation.
	// Validation happens before any network access.
	ErrInvalidArguments = httperr.WithCode(
		errors.New("invalid arguments"),
		http.StatusBadRequest,
	)

	// ErrUnknownTool is returned for a tool name that is not registered.
	ErrUnknownTool = httperr.WithCode(
		errors.New("unknown tool"),
		http.StatusNotFound,
	)

	// ErrRateLimited is returned when the dispatcher refuses a call because
	// the rate limit bucket is empty.
	ErrRateLimited = httperr.WithCode(
		errors.New("rate limit exceeded"),
		http.StatusTooManyRequests,
	)
)
