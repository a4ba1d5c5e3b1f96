// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dockerhub provides access to the Docker Hub API and to Registry v2
// manifest endpoints.
//
// A Client holds the registry endpoints, optional credentials and the Hub
// session token obtained by Authenticate, and owns the result cache shared by
// the tool layer. Content calls (search, repository, tags, manifest) fail on
// any non-2xx response; the two auth steps (Hub login and registry token
// exchange) fall back to anonymous access instead.
package dockerhub

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/opencontainers/go-digest"
	"github.com/tidwall/gjson"

	"github.com/stacklok/dockerhub-mcp/pkg/cache"
	"github.com/stacklok/dockerhub-mcp/pkg/networking"
)

// Default endpoints.
const (
	DefaultRegistryURL = "https://registry-1.docker.io"
	DefaultHubURL      = "https://hub.docker.com"
	DefaultAuthURL     = "https://auth.docker.io/token"
	DefaultAuthService = "registry.docker.io"
	DefaultTimeout     = 10 * time.Second
)

// Endpoint names reported to the UpstreamObserver.
const (
	EndpointLogin      = "login"
	EndpointSearch     = "search"
	EndpointRepository = "repository"
	EndpointTags       = "tags"
	EndpointToken      = "token"
	EndpointManifest   = "manifest"
)

// ManifestMediaTypes are advertised on every manifest request so that
// multi-platform images resolve to their list or index.
var ManifestMediaTypes = []types.MediaType{
	types.DockerManifestSchema2,
	types.DockerManifestList,
	types.OCIManifestSchema1,
	types.OCIImageIndex,
}

// UpstreamObserver is notified after every outbound request.
type UpstreamObserver interface {
	ObserveUpstream(endpoint string, err error)
}

// Options configure a Client.
type Options struct {
	RegistryURL string
	HubURL      string
	AuthURL     string
	AuthService string
	Username    string
	Password    string
	Timeout     time.Duration
	CacheSize   int
}

// Client is the process-wide registry context.
type Client struct {
	registryURL string
	hubURL      string
	authURL     string
	authService string
	username    string
	password    string
	timeout     time.Duration

	httpClient networking.HTTPClient
	cache      *cache.Cache[any]
	observer   UpstreamObserver

	mu           sync.RWMutex
	sessionToken string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithObserver reports outbound requests to o.
func WithObserver(o UpstreamObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithCache replaces the cache created from Options.CacheSize.
func WithCache(ch *cache.Cache[any]) ClientOption {
	return func(c *Client) {
		c.cache = ch
	}
}

// NewClient creates a Client. Empty endpoint options fall back to Docker Hub.
func NewClient(opts Options, httpClient networking.HTTPClient, clientOpts ...ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	c := &Client{
		registryURL: strings.TrimRight(valueOr(opts.RegistryURL, DefaultRegistryURL), "/"),
		hubURL:      strings.TrimRight(valueOr(opts.HubURL, DefaultHubURL), "/"),
		authURL:     valueOr(opts.AuthURL, DefaultAuthURL),
		authService: valueOr(opts.AuthService, DefaultAuthService),
		username:    opts.Username,
		password:    opts.Password,
		timeout:     opts.Timeout,
		httpClient:  httpClient,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if _, err := neturl.Parse(c.registryURL); err != nil {
		return nil, fmt.Errorf("invalid registry URL %q: %w", c.registryURL, err)
	}

	for _, o := range clientOpts {
		o(c)
	}
	if c.cache == nil {
		c.cache = cache.New[any](opts.CacheSize)
	}
	return c, nil
}

// Cache returns the cache owned by this client.
func (c *Client) Cache() *cache.Cache[any] {
	return c.cache
}

// RegistryURL returns the normalized registry base URL.
func (c *Client) RegistryURL() string {
	return c.registryURL
}

// HasCredentials reports whether a username and password are configured.
func (c *Client) HasCredentials() bool {
	return c.username != "" && c.password != ""
}

// SessionToken returns the Hub session token, or "" when anonymous.
func (c *Client) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionToken
}

func (c *Client) setSessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionToken = token
}

// IsDockerHubRegistry reports whether the registry host belongs to Docker Hub.
func (c *Client) IsDockerHubRegistry() bool {
	u, err := neturl.Parse(c.registryURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "docker.io" || strings.HasSuffix(host, ".docker.io")
}

// Authenticate logs in to Docker Hub and stores the session token. It does
// nothing without credentials. A rejected login is logged and leaves the
// client anonymous; only transport failures are returned.
func (c *Client) Authenticate(ctx context.Context) error {
	if !c.HasCredentials() {
		return nil
	}

	loginURL := c.hubURL + "/v2/users/login/"
	result, err := networking.FetchJSON[map[string]any](ctx, c.httpClient, loginURL,
		networking.WithMethod(http.MethodPost),
		networking.WithJSONBody(map[string]string{
			"username": c.username,
			"password": c.password,
		}),
		networking.WithTimeout(c.timeout),
		networking.WithoutContentTypeValidation(),
	)
	c.observe(EndpointLogin, err)
	if err != nil {
		if networking.IsHTTPError(err, 0) {
			slog.Warn("Docker Hub login rejected, continuing anonymously", "error", err)
			return nil
		}
		return fmt.Errorf("docker hub login failed: %w", err)
	}

	token := gjson.GetBytes(result.Raw, "token").String()
	if token == "" {
		slog.Warn("Docker Hub login response carried no token, continuing anonymously")
		return nil
	}
	c.setSessionToken(token)
	slog.Debug("authenticated to Docker Hub", "username", c.username)
	return nil
}

// SearchImages queries the Hub repository search.
func (c *Client) SearchImages(ctx context.Context, params SearchParams) (*SearchPage, error) {
	q := neturl.Values{}
	q.Set("query", params.Query)
	q.Set("page_size", strconv.Itoa(params.Limit))
	q.Set("page", strconv.Itoa(params.Page))
	if params.IsOfficial != nil {
		q.Set("is_official", strconv.FormatBool(*params.IsOfficial))
	}
	if params.IsAutomated != nil {
		q.Set("is_automated", strconv.FormatBool(*params.IsAutomated))
	}

	searchURL := c.hubURL + "/v2/search/repositories/?" + q.Encode()
	return hubGet[SearchPage](ctx, c, EndpointSearch, searchURL)
}

// GetRepositoryInfo fetches repository metadata.
func (c *Client) GetRepositoryInfo(ctx context.Context, repo RepositoryRef) (*RepositoryInfo, error) {
	repoURL := fmt.Sprintf("%s/v2/repositories/%s/", c.hubURL, repo.Path())
	return hubGet[RepositoryInfo](ctx, c, EndpointRepository, repoURL)
}

// GetRepositoryTags fetches one page of tags.
func (c *Client) GetRepositoryTags(ctx context.Context, repo RepositoryRef, limit, page int) (*TagPage, error) {
	q := neturl.Values{}
	q.Set("page_size", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))

	tagsURL := fmt.Sprintf("%s/v2/repositories/%s/tags/?%s", c.hubURL, repo.Path(), q.Encode())
	return hubGet[TagPage](ctx, c, EndpointTags, tagsURL)
}

// GetImageManifest fetches the manifest for repo at reference (tag or digest).
//
// On Docker Hub a pull-scoped bearer token is requested first; if that fails
// the manifest is requested anonymously. Other registries receive HTTP Basic
// credentials directly when configured.
func (c *Client) GetImageManifest(ctx context.Context, repo RepositoryRef, reference string) (*Manifest, error) {
	if reference == "" {
		reference = DefaultTag
	}

	opts := []networking.FetchOption{
		networking.WithHeader("Accept", acceptManifestHeader()),
		networking.WithTimeout(c.timeout),
		networking.WithoutContentTypeValidation(),
	}

	if c.IsDockerHubRegistry() {
		if token := c.exchangeToken(ctx, repo); token != "" {
			opts = append(opts, networking.WithHeader("Authorization", "Bearer "+token))
		}
	} else if c.HasCredentials() {
		opts = append(opts, networking.WithBasicAuth(c.username, c.password))
	}

	manifestURL := fmt.Sprintf("%s/v2/%s/manifests/%s", c.registryURL, repo.Path(), reference)
	result, err := networking.FetchJSON[Manifest](ctx, c.httpClient, manifestURL, opts...)
	c.observe(EndpointManifest, err)
	if err != nil {
		return nil, err
	}

	m := result.Data
	if m.MediaType == "" {
		m.MediaType = mediaTypeOf(result.ContentType)
	}
	if d, err := digest.Parse(result.Headers.Get("Docker-Content-Digest")); err == nil {
		m.Digest = d
	}
	return &m, nil
}

// exchangeToken obtains a pull-scoped registry token. Any failure yields ""
// so the caller proceeds without a token.
func (c *Client) exchangeToken(ctx context.Context, repo RepositoryRef) string {
	q := neturl.Values{}
	q.Set("service", c.authService)
	q.Set("scope", fmt.Sprintf("repository:%s:pull", repo.Path()))
	tokenURL := c.authURL + "?" + q.Encode()

	opts := []networking.FetchOption{
		networking.WithTimeout(c.timeout),
		networking.WithoutContentTypeValidation(),
	}
	if c.HasCredentials() {
		opts = append(opts, networking.WithBasicAuth(c.username, c.password))
	}

	result, err := networking.FetchJSON[map[string]any](ctx, c.httpClient, tokenURL, opts...)
	c.observe(EndpointToken, err)
	if err != nil {
		slog.Warn("registry token exchange failed, requesting manifest without a token",
			"scope", q.Get("scope"), "error", err)
		return ""
	}

	token := gjson.GetBytes(result.Raw, "token").String()
	if token == "" {
		token = gjson.GetBytes(result.Raw, "access_token").String()
	}
	if token == "" {
		slog.Warn("registry token response carried no token", "scope", q.Get("scope"))
	}
	return token
}

// hubGet performs an authenticated GET against a Hub content endpoint.
func hubGet[T any](ctx context.Context, c *Client, endpoint, requestURL string) (*T, error) {
	opts := []networking.FetchOption{
		networking.WithTimeout(c.timeout),
	}
	if token := c.SessionToken(); token != "" {
		opts = append(opts, networking.WithHeader("Authorization", "JWT "+token))
	}

	result, err := networking.FetchJSON[T](ctx, c.httpClient, requestURL, opts...)
	c.observe(endpoint, err)
	if err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (c *Client) observe(endpoint string, err error) {
	if c.observer != nil {
		c.observer.ObserveUpstream(endpoint, err)
	}
}

func acceptManifestHeader() string {
	accept := make([]string, len(ManifestMediaTypes))
	for i, mt := range ManifestMediaTypes {
		accept[i] = string(mt)
	}
	return strings.Join(accept, ", ")
}

func mediaTypeOf(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(mt)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
