// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

// callRequest is the document read by the call command.
type callRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call [tool]",
		Short: "Invoke a single tool and print its result",
		Long: `Invoke a single tool without starting an MCP transport.

The request is read from stdin as {"name": "<tool>", "args": {...}}. When a
tool name is given as an argument, stdin holds only the arguments object.
The result text is written to stdout; a failed call exits non-zero.`,
		Example: `  echo '{"name":"docker_get_stats","args":{"repository":"nginx"}}' | dockerhub-mcp call
  echo '{"repository":"nginx","tag":"alpine"}' | dockerhub-mcp call docker_get_manifest`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCall,
	}

	addRegistryFlags(cmd.Flags())
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	req, err := readCallRequest(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	result := rt.dispatcher.Dispatch(cmd.Context(), req.Name, req.Args)
	text := resultText(result)
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), text); err != nil {
		return err
	}
	if result.IsError {
		return fmt.Errorf("tool %s failed", req.Name)
	}
	return nil
}

// readCallRequest decodes the request from r. With a tool name in args, r
// carries only the arguments; an empty body means no arguments.
func readCallRequest(r io.Reader, args []string) (*callRequest, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	req := &callRequest{}
	if len(args) == 1 {
		req.Name = args[0]
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req.Args); err != nil {
				return nil, fmt.Errorf("invalid arguments JSON: %w", err)
			}
		}
	} else if err := json.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("invalid request JSON: %w", err)
	}

	if req.Name == "" {
		return nil, errors.New("request has no tool name")
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}
	return req, nil
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := mcp.AsTextContent(c); ok {
			return text.Text
		}
	}
	return ""
}
