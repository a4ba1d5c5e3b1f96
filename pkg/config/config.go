// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config resolves the runtime configuration of dockerhub-mcp from
// defaults, an optional YAML file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Viper keys. Flags are bound to the same keys by the CLI.
const (
	KeyConfigFile       = "config"
	KeyRegistryURL      = "registry_url"
	KeyHubURL           = "hub_url"
	KeyAuthURL          = "auth_url"
	KeyAuthService      = "auth_service"
	KeyUsername         = "username"
	KeyPassword         = "password"
	KeyRequestTimeoutMs = "request_timeout_ms"
	KeyCacheMaxSize     = "cache_max_size"
	KeyRateLimit        = "rate_limit_requests_per_minute"
	KeyLogLevel         = "log_level"
	KeyTransport        = "transport"
	KeyHost             = "host"
	KeyPort             = "port"
	KeyCABundle         = "ca_bundle"
	KeyAllowHTTP        = "allow_http"
	KeyAllowPrivateIPs  = "allow_private_ips"
	KeyTools            = "tools"
)

// Defaults
const (
	DefaultRegistryURL      = "https://registry-1.docker.io"
	DefaultHubURL           = "https://hub.docker.com"
	DefaultAuthURL          = "https://auth.docker.io/token"
	DefaultAuthService      = "registry.docker.io"
	DefaultRequestTimeoutMs = 10000
	DefaultCacheMaxSize     = 1000
	DefaultRateLimit        = 100
	DefaultLogLevel         = "info"
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 8080
)

// Transport names accepted by the serve command.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const redacted = "********"

// envBindings maps viper keys to the environment variables that may set them.
// When more than one variable is listed the first non-empty one wins.
var envBindings = map[string][]string{
	KeyRegistryURL:      {"PRIVATE_REGISTRY_URL", "DOCKER_REGISTRY_URL"},
	KeyHubURL:           {"DOCKERHUB_HUB_URL"},
	KeyAuthURL:          {"DOCKERHUB_AUTH_URL"},
	KeyAuthService:      {"DOCKERHUB_AUTH_SERVICE"},
	KeyUsername:         {"DOCKERHUB_USERNAME"},
	KeyPassword:         {"DOCKERHUB_PASSWORD"},
	KeyRequestTimeoutMs: {"REQUEST_TIMEOUT_MS"},
	KeyCacheMaxSize:     {"CACHE_MAX_SIZE"},
	KeyRateLimit:        {"RATE_LIMIT_REQUESTS_PER_MINUTE"},
	KeyLogLevel:         {"LOG_LEVEL"},
	KeyTransport:        {"MCP_TRANSPORT"},
	KeyHost:             {"MCP_HOST"},
	KeyPort:             {"MCP_PORT"},
	KeyCABundle:         {"DOCKERHUB_CA_BUNDLE"},
	KeyAllowHTTP:        {"DOCKERHUB_ALLOW_HTTP"},
	KeyAllowPrivateIPs:  {"DOCKERHUB_ALLOW_PRIVATE_IPS"},
	KeyTools:            {"DOCKERHUB_MCP_TOOLS"},
}

// Config is the resolved configuration.
type Config struct {
	RegistryURL        string        `yaml:"registry_url"`
	HubURL             string        `yaml:"hub_url"`
	AuthURL            string        `yaml:"auth_url"`
	AuthService        string        `yaml:"auth_service"`
	Username           string        `yaml:"username,omitempty"`
	Password           string        `yaml:"password,omitempty"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	CacheMaxSize       int           `yaml:"cache_max_size"`
	RateLimitPerMinute int           `yaml:"rate_limit_requests_per_minute"`
	LogLevel           string        `yaml:"log_level"`
	Transport          string        `yaml:"transport"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	CABundle           string        `yaml:"ca_bundle,omitempty"`
	AllowHTTP          bool          `yaml:"allow_http"`
	AllowPrivateIPs    bool          `yaml:"allow_private_ips"`
	Tools              []string      `yaml:"tools,omitempty"`
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault(KeyRegistryURL, DefaultRegistryURL)
	v.SetDefault(KeyHubURL, DefaultHubURL)
	v.SetDefault(KeyAuthURL, DefaultAuthURL)
	v.SetDefault(KeyAuthService, DefaultAuthService)
	v.SetDefault(KeyRequestTimeoutMs, DefaultRequestTimeoutMs)
	v.SetDefault(KeyCacheMaxSize, DefaultCacheMaxSize)
	v.SetDefault(KeyRateLimit, DefaultRateLimit)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyTransport, TransportStdio)
	v.SetDefault(KeyHost, DefaultHost)
	v.SetDefault(KeyPort, DefaultPort)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load resolves a Config from v. If the config key names a file it is read
// first; environment variables and bound flags take precedence over it.
func Load(v *viper.Viper) (*Config, error) {
	if err := SetDefaults(v); err != nil {
		return nil, err
	}

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		RegistryURL:        strings.TrimRight(v.GetString(KeyRegistryURL), "/"),
		HubURL:             strings.TrimRight(v.GetString(KeyHubURL), "/"),
		AuthURL:            v.GetString(KeyAuthURL),
		AuthService:        v.GetString(KeyAuthService),
		Username:           v.GetString(KeyUsername),
		Password:           v.GetString(KeyPassword),
		RequestTimeout:     time.Duration(v.GetInt(KeyRequestTimeoutMs)) * time.Millisecond,
		CacheMaxSize:       v.GetInt(KeyCacheMaxSize),
		RateLimitPerMinute: v.GetInt(KeyRateLimit),
		LogLevel:           strings.ToLower(v.GetString(KeyLogLevel)),
		Transport:          strings.ToLower(v.GetString(KeyTransport)),
		Host:               v.GetString(KeyHost),
		Port:               v.GetInt(KeyPort),
		CABundle:           v.GetString(KeyCABundle),
		AllowHTTP:          v.GetBool(KeyAllowHTTP),
		AllowPrivateIPs:    v.GetBool(KeyAllowPrivateIPs),
		Tools:              splitList(v.GetStringSlice(KeyTools)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
// A non-positive rate limit is accepted; the limiter clamps it to 1.
func (c *Config) Validate() error {
	var errs []error

	for _, u := range []struct{ name, raw string }{
		{KeyRegistryURL, c.RegistryURL},
		{KeyHubURL, c.HubURL},
		{KeyAuthURL, c.AuthURL},
	} {
		if err := validateURL(u.raw, c.AllowHTTP); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.name, err))
		}
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout_ms must be positive, got %d", c.RequestTimeout.Milliseconds()))
	}
	if c.CacheMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("cache_max_size must be positive, got %d", c.CacheMaxSize))
	}
	if (c.Username == "") != (c.Password == "") {
		errs = append(errs, errors.New("username and password must be set together"))
	}

	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Port <= 0 || c.Port > 65535 {
			errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Transport))
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// HasCredentials reports whether both username and password are configured.
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// Redacted returns a copy of c with the password masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Password != "" {
		out.Password = redacted
	}
	return out
}

// splitList flattens comma separated entries, so that "a,b" from the
// environment and ["a", "b"] from a file resolve the same way.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func validateURL(raw string, allowHTTP bool) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://, got %q", raw)
	}
	if u.Scheme == "http" && !allowHTTP {
		return fmt.Errorf("URL %q uses plain http; set %s to permit it", raw, KeyAllowHTTP)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
