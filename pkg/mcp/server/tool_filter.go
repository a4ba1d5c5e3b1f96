// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"

	"github.com/stacklok/dockerhub-mcp/pkg/tools"
)

var errToolNameNotFound = errors.New("tool name not found")

// filterTools keeps the definitions named in filter, in definition order. An
// empty filter keeps everything.
func filterTools(defs []tools.Definition, filter []string) ([]tools.Definition, error) {
	if len(filter) == 0 {
		return defs, nil
	}

	wanted := make(map[string]struct{}, len(filter))
	for _, name := range filter {
		if name == "" {
			return nil, fmt.Errorf("tool name cannot be empty")
		}
		if _, ok := tools.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %s", errToolNameNotFound, name)
		}
		wanted[name] = struct{}{}
	}

	out := make([]tools.Definition, 0, len(wanted))
	for _, def := range defs {
		if _, ok := wanted[def.Name]; ok {
			out = append(out, def)
		}
	}
	return out, nil
}
