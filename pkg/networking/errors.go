// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"
)

// ErrTimeout is returned when an outbound request does not complete within
// its deadline. It is distinct from HTTPError, which means the remote
// answered with a non-2xx status.
var ErrTimeout = httperr.WithCode(
	errors.New("request timed out"),
	http.StatusGatewayTimeout,
)

// HTTPError represents a non-2xx HTTP response.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Status is the reason phrase, e.g. "Not Found".
	Status string

	// Body is a preview of the response body (limited to DefaultErrorPreviewSize).
	// It is kept for debugging and never included in Error().
	Body string

	// URL is the requested URL.
	URL string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Status, e.URL)
}

// NewHTTPError creates a new HTTP error. An empty status falls back to the
// standard reason phrase for the code.
func NewHTTPError(statusCode int, status, url string) *HTTPError {
	if status == "" {
		status = http.StatusText(statusCode)
	}
	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
		URL:        url,
	}
}

// IsHTTPError checks if an error is an HTTPError with the specified status code.
// If statusCode is 0, it matches any HTTPError.
func IsHTTPError(err error, statusCode int) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if statusCode == 0 {
		return true
	}
	return httpErr.StatusCode == statusCode
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// isDeadline reports whether a transport error was caused by a deadline,
// either the per-request context or the client's own timeout.
func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// reasonPhrase strips the numeric prefix from http.Response.Status.
func reasonPhrase(resp *http.Response) string {
	status := resp.Status
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if len(status) > len(prefix) && status[:len(prefix)] == prefix {
		return status[len(prefix):]
	}
	return http.StatusText(resp.StatusCode)
}
