// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the command-line interface of the Docker Hub MCP server.
package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"

	"github.com/stacklok/dockerhub-mcp/pkg/config"
	"github.com/stacklok/dockerhub-mcp/pkg/logger"
)

// configFlag ties a command-line flag to the config key it overrides.
type configFlag struct {
	name string
	key  string
}

// registryFlags are shared by every command that talks to the registry.
var registryFlags = []configFlag{
	{name: "registry-url", key: config.KeyRegistryURL},
	{name: "hub-url", key: config.KeyHubURL},
	{name: "request-timeout-ms", key: config.KeyRequestTimeoutMs},
	{name: "cache-max-size", key: config.KeyCacheMaxSize},
	{name: "rate-limit", key: config.KeyRateLimit},
	{name: "ca-bundle", key: config.KeyCABundle},
	{name: "allow-http", key: config.KeyAllowHTTP},
	{name: "allow-private-ips", key: config.KeyAllowPrivateIPs},
	{name: "log-level", key: config.KeyLogLevel},
}

// transportFlags only apply to serve.
var transportFlags = []configFlag{
	{name: "transport", key: config.KeyTransport},
	{name: "host", key: config.KeyHost},
	{name: "port", key: config.KeyPort},
	{name: "tools", key: config.KeyTools},
}

// NewRootCmd creates a new root command for the dockerhub-mcp CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "dockerhub-mcp",
		DisableAutoGenTag: true,
		Short:             "MCP server exposing Docker Hub and registry metadata as tools",
		Long: `dockerhub-mcp is a Model Context Protocol (MCP) server that exposes Docker Hub
and OCI registry metadata as tools: image search, repository details, tags,
manifests, layer analysis, image comparison and pull size estimates.

Upstream calls are cached and rate limited. Credentials are optional; without
them the server uses anonymous access.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}
	rootCmd.PersistentFlags().StringP(config.KeyConfigFile, "c", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// addRegistryFlags registers the flags every registry-facing command accepts.
// Defaults are left to the config package so that an unset flag never hides
// a value from the environment or the config file.
func addRegistryFlags(flags *pflag.FlagSet) {
	flags.String("registry-url", "", "Registry v2 base URL (default "+config.DefaultRegistryURL+")")
	flags.String("hub-url", "", "Docker Hub API base URL (default "+config.DefaultHubURL+")")
	flags.Int("request-timeout-ms", 0, "Timeout for each upstream request in milliseconds")
	flags.Int("cache-max-size", 0, "Maximum number of cached results")
	flags.Int("rate-limit", 0, "Maximum tool calls per minute")
	flags.String("ca-bundle", "", "Path to a PEM CA bundle for registry TLS")
	flags.Bool("allow-http", false, "Allow plain http:// registry URLs")
	flags.Bool("allow-private-ips", false, "Allow connections to private IP addresses")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
}

func addTransportFlags(flags *pflag.FlagSet) {
	flags.String("transport", "", "MCP transport: stdio or http (default stdio)")
	flags.String("host", "", "Host to listen on with the http transport")
	flags.Int("port", 0, "Port to listen on with the http transport")
	flags.StringSlice("tools", nil, "Expose only the named tools (comma separated)")
}

// loadConfig resolves the configuration for cmd. Only flags the user set
// override the environment and the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	if f := cmd.Flags().Lookup(config.KeyConfigFile); f != nil && f.Changed {
		v.Set(config.KeyConfigFile, f.Value.String())
	}

	for _, group := range [][]configFlag{registryFlags, transportFlags} {
		for _, cf := range group {
			f := cmd.Flags().Lookup(cf.name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(cf.key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", cf.name, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	applyLogLevel(cfg.LogLevel)
	return cfg, nil
}

// applyLogLevel re-initializes the logger when the level comes from the config
// file or a flag rather than the LOG_LEVEL variable.
func applyLogLevel(level string) {
	if level == "" || viper.GetBool("debug") {
		return
	}
	logger.InitializeWithEnv(levelOverride{Reader: &env.OSReader{}, level: level})
}

// levelOverride reports a fixed LOG_LEVEL and defers everything else.
type levelOverride struct {
	env.Reader
	level string
}

func (l levelOverride) Getenv(key string) string {
	if strings.EqualFold(key, "LOG_LEVEL") {
		return l.level
	}
	return l.Reader.Getenv(key)
}
