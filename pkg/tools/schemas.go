// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Tool names.
const (
	ToolSearchImages       = "docker_search_images"
	ToolGetImageDetails    = "docker_get_image_details"
	ToolListTags           = "docker_list_tags"
	ToolGetManifest        = "docker_get_manifest"
	ToolAnalyzeLayers      = "docker_analyze_layers"
	ToolCompareImages      = "docker_compare_images"
	ToolGetDockerfile      = "docker_get_dockerfile"
	ToolGetStats           = "docker_get_stats"
	ToolGetVulnerabilities = "docker_get_vulnerabilities"
	ToolGetImageHistory    = "docker_get_image_history"
	ToolTrackBaseUpdates   = "docker_track_base_updates"
	ToolEstimatePullSize   = "docker_estimate_pull_size"
)

// Definition describes one tool as advertised to MCP clients.
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	schema     *gojsonschema.Schema
	properties map[string]struct{}
}

const (
	repositoryProperty = `"repository": {"type": "string", "minLength": 1, "description": "Repository name (e.g., \"nginx\" or \"library/nginx\")"}`
	tagProperty        = `"tag": {"type": "string", "description": "Image tag (default: \"latest\")"}`
	pageProperty       = `"page": {"type": "integer", "minimum": 1, "description": "Page number for pagination (default: 1)"}`
)

func limitProperty(noun string) string {
	return fmt.Sprintf(
		`"limit": {"type": "integer", "minimum": 1, "maximum": 100, "description": "Number of %s to return (default: 25)"}`,
		noun,
	)
}

func objectSchema(required []string, properties ...string) json.RawMessage {
	req, _ := json.Marshal(required)
	return json.RawMessage(fmt.Sprintf(
		`{"type": "object", "properties": {%s}, "required": %s}`,
		strings.Join(properties, ", "), req,
	))
}

// repositorySchema is shared by every tool taking repository and tag.
var repositorySchema = objectSchema([]string{"repository"}, repositoryProperty, tagProperty)

var definitions = []*Definition{
	{
		Name:        ToolSearchImages,
		Description: "Search Docker Hub for images with optional filters",
		InputSchema: objectSchema([]string{"query"},
			`"query": {"type": "string", "description": "Search query for images"}`,
			limitProperty("results"),
			pageProperty,
			`"is_official": {"type": "boolean", "description": "Filter for official images only"}`,
			`"is_automated": {"type": "boolean", "description": "Filter for automated builds only"}`,
		),
	},
	{
		Name:        ToolGetImageDetails,
		Description: "Get detailed information about a specific Docker image",
		InputSchema: repositorySchema,
	},
	{
		Name:        ToolListTags,
		Description: "List all tags for a Docker repository",
		InputSchema: objectSchema([]string{"repository"}, repositoryProperty, limitProperty("tags"), pageProperty),
	},
	{
		Name:        ToolGetManifest,
		Description: "Retrieve the manifest for a specific image tag",
		InputSchema: repositorySchema,
	},
	{
		Name:        ToolAnalyzeLayers,
		Description: "Analyze the layers of a Docker image",
		InputSchema: repositorySchema,
	},
	{
		Name:        ToolCompareImages,
		Description: "Compare two Docker images (layers, sizes, base images)",
		InputSchema: objectSchema([]string{"image1", "image2"},
			`"image1": {"type": "string", "minLength": 1, "description": "First image repository name"}`,
			`"image2": {"type": "string", "minLength": 1, "description": "Second image repository name"}`,
			`"tag1": {"type": "string", "description": "Tag for first image (default: \"latest\")"}`,
			`"tag2": {"type": "string", "description": "Tag for second image (default: \"latest\")"}`,
		),
	},
	{
		Name:        ToolGetDockerfile,
		Description: "Attempt to retrieve Dockerfile for an image (when available)",
		InputSchema: repositorySchema,
	},
	{
		Name:        ToolGetStats,
		Description: "Get download statistics and star count for an image",
		InputSchema: objectSchema([]string{"repository"}, repositoryProperty),
	},
	{
		Name:        ToolGetVulnerabilities,
		Description: "Check for known security vulnerabilities in an image",
		InputSchema: repositorySchema,
	},
	{
		Name:        ToolGetImageHistory,
		Description: "Get image build history and layer commands",
		InputSchema: repositorySchema,
	},
	{
		Name:        ToolTrackBaseUpdates,
		Description: "Track updates to base images and dependencies",
		InputSchema: repositorySchema,
	},
	{
		Name:        ToolEstimatePullSize,
		Description: "Calculate estimated download size for pulling an image",
		InputSchema: repositorySchema,
	},
}

var definitionsByName = func() map[string]*Definition {
	byName := make(map[string]*Definition, len(definitions))
	for _, def := range definitions {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.InputSchema))
		if err != nil {
			panic(fmt.Sprintf("invalid input schema for %s: %v", def.Name, err))
		}
		var parsed struct {
			Properties map[string]json.RawMessage `json:"properties"`
		}
		if err := json.Unmarshal(def.InputSchema, &parsed); err != nil {
			panic(fmt.Sprintf("invalid input schema for %s: %v", def.Name, err))
		}
		def.properties = make(map[string]struct{}, len(parsed.Properties))
		for key := range parsed.Properties {
			def.properties[key] = struct{}{}
		}
		def.schema = schema
		byName[def.Name] = def
	}
	return byName
}()

// Definitions returns the tool definitions in registration order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	for i, def := range definitions {
		out[i] = *def
	}
	return out
}

// Lookup returns the definition for name.
func Lookup(name string) (Definition, bool) {
	def, ok := definitionsByName[name]
	if !ok {
		return Definition{}, false
	}
	return *def, true
}

// Strip returns a copy of args holding only the properties the tool declares.
// Undeclared keys are dropped rather than rejected.
func (d Definition) Strip(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for key, value := range args {
		if _, ok := d.properties[key]; ok {
			out[key] = value
		}
	}
	return out
}

// Validate checks args against the tool's input schema. All violations are
// reported in one ErrInvalidArguments error.
func (d Definition) Validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	result, err := d.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
}
