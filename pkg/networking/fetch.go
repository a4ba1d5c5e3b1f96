// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxResponseSize is the default maximum response body size (4MB).
	// Manifest lists for popular images exceed the 1MB used elsewhere.
	DefaultMaxResponseSize = 4 * 1024 * 1024

	// DefaultErrorPreviewSize is the maximum size of error body preview in HTTPError.
	DefaultErrorPreviewSize = 1024

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"
)

// HTTPClient is the subset of *http.Client used by the fetch helpers.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchResult contains the result of a successful JSON fetch operation.
type FetchResult[T any] struct {
	// Data is the parsed JSON response body.
	Data T

	// Raw is the unparsed response body.
	Raw []byte

	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Headers are the response headers.
	Headers http.Header

	// ContentType is the Content-Type header value.
	ContentType string
}

// FetchOption configures a fetch request.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	method                    string
	headers                   http.Header
	body                      io.Reader
	bodyErr                   error
	maxResponseSize           int64
	timeout                   time.Duration
	basicUser                 string
	basicPass                 string
	skipContentTypeValidation bool
}

func newFetchOptions() *fetchOptions {
	return &fetchOptions{
		method:          http.MethodGet,
		headers:         make(http.Header),
		maxResponseSize: DefaultMaxResponseSize,
	}
}

// WithMethod sets the HTTP method for the request.
func WithMethod(method string) FetchOption {
	return func(opts *fetchOptions) {
		opts.method = method
	}
}

// WithHeader sets a single header on the request.
func WithHeader(key, value string) FetchOption {
	return func(opts *fetchOptions) {
		opts.headers.Set(key, value)
	}
}

// WithBody sets the request body.
func WithBody(body io.Reader) FetchOption {
	return func(opts *fetchOptions) {
		opts.body = body
	}
}

// WithJSONBody encodes v as the request body and sets Content-Type.
func WithJSONBody(v any) FetchOption {
	return func(opts *fetchOptions) {
		data, err := json.Marshal(v)
		if err != nil {
			opts.bodyErr = fmt.Errorf("failed to encode request body: %w", err)
			return
		}
		opts.body = bytes.NewReader(data)
		opts.headers.Set("Content-Type", ContentTypeJSON)
	}
}

// WithBasicAuth attaches HTTP Basic credentials. Empty credentials are ignored.
func WithBasicAuth(username, password string) FetchOption {
	return func(opts *fetchOptions) {
		opts.basicUser = username
		opts.basicPass = password
	}
}

// WithTimeout bounds the whole round trip, including reading the body.
// A zero or negative value disables the per-request deadline.
func WithTimeout(timeout time.Duration) FetchOption {
	return func(opts *fetchOptions) {
		opts.timeout = timeout
	}
}

// WithMaxResponseSize sets the maximum response body size.
func WithMaxResponseSize(size int64) FetchOption {
	return func(opts *fetchOptions) {
		opts.maxResponseSize = size
	}
}

// WithoutContentTypeValidation disables Content-Type validation.
// Registry manifests are served with vendor media types, not application/json.
func WithoutContentTypeValidation() FetchOption {
	return func(opts *fetchOptions) {
		opts.skipContentTypeValidation = true
	}
}

// FetchJSON performs an HTTP request and parses the JSON response body.
// It sets the Accept header to application/json unless one is supplied.
// Any non-2xx response is returned as *HTTPError; a deadline hit is returned
// wrapped in ErrTimeout.
func FetchJSON[T any](
	ctx context.Context,
	client HTTPClient,
	requestURL string,
	opts ...FetchOption,
) (*FetchResult[T], error) {
	options := newFetchOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.bodyErr != nil {
		return nil, options.bodyErr
	}

	if options.headers.Get("Accept") == "" {
		options.headers.Set("Accept", ContentTypeJSON)
	}

	if options.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, options.method, requestURL, options.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range options.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if options.basicUser != "" || options.basicPass != "" {
		req.SetBasicAuth(options.basicUser, options.basicPass)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isDeadline(err) {
			return nil, fmt.Errorf("%w: %s %s after %s: %w", ErrTimeout, options.method, requestURL, options.timeout, err)
		}
		return nil, fmt.Errorf("request to %s failed: %w", requestURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, options.maxResponseSize))
	if err != nil {
		if isDeadline(err) {
			return nil, fmt.Errorf("%w: reading %s after %s: %w", ErrTimeout, requestURL, options.timeout, err)
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyPreview := string(body)
		if len(bodyPreview) > DefaultErrorPreviewSize {
			bodyPreview = bodyPreview[:DefaultErrorPreviewSize]
		}
		httpErr := NewHTTPError(resp.StatusCode, reasonPhrase(resp), requestURL)
		httpErr.Body = bodyPreview
		return nil, httpErr
	}

	contentType := resp.Header.Get("Content-Type")
	if !options.skipContentTypeValidation && !strings.Contains(strings.ToLower(contentType), ContentTypeJSON) {
		return nil, fmt.Errorf("unexpected content type %q from %s", contentType, requestURL)
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response from %s: %w", requestURL, err)
	}

	return &FetchResult[T]{
		Data:        data,
		Raw:         body,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		ContentType: contentType,
	}, nil
}
