// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/stacklok/dockerhub-mcp/pkg/tools"
)

func newToolsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		Long:  `List the tools the server exposes, with their descriptions and required arguments.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOutput {
				return printToolsJSON(cmd.OutOrStdout(), tools.Definitions())
			}
			return renderToolsTable(cmd.OutOrStdout(), tools.Definitions())
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output tool definitions as JSON")
	return cmd
}

// renderToolsTable writes one row per tool.
func renderToolsTable(w io.Writer, defs []tools.Definition) error {
	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader([]string{"Tool", "Required", "Description"}),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(3, tw.AlignLeft)),
	)

	for _, def := range defs {
		if err := table.Append([]string{
			def.Name,
			strings.Join(requiredArgs(def), ", "),
			def.Description,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

type toolJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func printToolsJSON(w io.Writer, defs []tools.Definition) error {
	out := make([]toolJSON, 0, len(defs))
	for _, def := range defs {
		out = append(out, toolJSON{Name: def.Name, Description: def.Description, InputSchema: def.InputSchema})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// requiredArgs reads the required property names from the input schema.
func requiredArgs(def tools.Definition) []string {
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
		return nil
	}
	return schema.Required
}
