// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"fmt"
	"math"
	"time"

	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"

	"github.com/stacklok/dockerhub-mcp/pkg/dockerhub"
)

const (
	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024

	noDescription = "No description available"
	unknown       = "unknown"
)

// SearchResponse is the docker_search_images result.
type SearchResponse struct {
	Count   int            `json:"count"`
	Results []ImageSummary `json:"results"`
	Summary string         `json:"summary"`
}

// ImageSummary is one repository in a search result.
type ImageSummary struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	StarCount   int     `json:"star_count"`
	PullCount   int64   `json:"pull_count"`
	IsOfficial  bool    `json:"is_official"`
	IsAutomated bool    `json:"is_automated"`
	LastUpdated *string `json:"last_updated"`
}

// ImageDetailsResponse is the docker_get_image_details result.
type ImageDetailsResponse struct {
	Repository RepositoryView `json:"repository"`
	Tag        TagDetails     `json:"tag"`
	Summary    string         `json:"summary"`
}

// RepositoryView is the repository part of an image details result.
type RepositoryView struct {
	Name        string  `json:"name"`
	Namespace   string  `json:"namespace"`
	Description string  `json:"description"`
	IsOfficial  bool    `json:"is_official"`
	StarCount   int     `json:"star_count"`
	PullCount   int64   `json:"pull_count"`
	LastUpdated *string `json:"last_updated"`
}

// TagDetails describes the requested tag. FullSize and LastUpdated are null
// when the tag was not among the fetched tags.
type TagDetails struct {
	Name        string               `json:"name"`
	FullSize    *int64               `json:"full_size"`
	LastUpdated *string              `json:"last_updated"`
	Images      []dockerhub.TagImage `json:"images"`
}

// TagsResponse is the docker_list_tags result.
type TagsResponse struct {
	Count   int       `json:"count"`
	Tags    []TagView `json:"tags"`
	Summary string    `json:"summary"`
}

// TagView is one tag in a tag listing.
type TagView struct {
	Name        string         `json:"name"`
	FullSize    *int64         `json:"full_size"`
	SizeMB      *int64         `json:"size_mb"`
	LastUpdated *string        `json:"last_updated"`
	Images      []PlatformSize `json:"images"`
}

// PlatformSize is the per-platform size of a tag.
type PlatformSize struct {
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
	Size         *int64 `json:"size"`
}

// ManifestResponse is the docker_get_manifest result.
type ManifestResponse struct {
	Repository string       `json:"repository"`
	Tag        string       `json:"tag"`
	Manifest   ManifestView `json:"manifest"`
	Summary    string       `json:"summary"`
}

// ManifestView is the reshaped manifest. Manifests is set for a manifest
// list or image index.
type ManifestView struct {
	SchemaVersion int                `json:"schema_version"`
	MediaType     string             `json:"media_type"`
	Digest        string             `json:"digest,omitempty"`
	Layers        []LayerView        `json:"layers"`
	TotalSize     int64              `json:"total_size"`
	Manifests     []PlatformManifest `json:"manifests,omitempty"`
}

// LayerView is a single layer descriptor.
type LayerView struct {
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
}

// PlatformManifest is a child manifest of an index.
type PlatformManifest struct {
	Digest    string `json:"digest"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Platform  string `json:"platform"`
}

// LayerAnalysisResponse is the docker_analyze_layers result.
type LayerAnalysisResponse struct {
	Repository string        `json:"repository"`
	Tag        string        `json:"tag"`
	Analysis   LayerAnalysis `json:"analysis"`
	Layers     []LayerSize   `json:"layers"`
	Platforms  []string      `json:"platforms,omitempty"`
	Summary    string        `json:"summary"`
}

// LayerAnalysis holds layer totals.
type LayerAnalysis struct {
	TotalLayers    int   `json:"total_layers"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
	TotalSizeMB    int64 `json:"total_size_mb"`
	LargestLayerMB int64 `json:"largest_layer_mb"`
}

// LayerSize is one layer in a layer analysis.
type LayerSize struct {
	Index  int    `json:"index"`
	SizeMB int64  `json:"size_mb"`
	Digest string `json:"digest"`
}

// CompareResponse is the docker_compare_images result.
type CompareResponse struct {
	Comparison  Comparison  `json:"comparison"`
	Differences Differences `json:"differences"`
	Summary     string      `json:"summary"`
}

// Comparison holds both sides of a comparison.
type Comparison struct {
	Image1 ComparedImage `json:"image1"`
	Image2 ComparedImage `json:"image2"`
}

// ComparedImage is one side of a comparison.
type ComparedImage struct {
	Name   string `json:"name"`
	Tag    string `json:"tag"`
	SizeMB int64  `json:"size_mb"`
	Layers int    `json:"layers"`
	Stars  int    `json:"stars"`
}

// Differences are image2 minus image1.
type Differences struct {
	SizeDifferenceMB int64 `json:"size_difference_mb"`
	LayerDifference  int   `json:"layer_difference"`
}

// PullSizeResponse is the docker_estimate_pull_size result.
type PullSizeResponse struct {
	Repository            string        `json:"repository"`
	Tag                   string        `json:"tag"`
	SizeEstimate          SizeEstimate  `json:"size_estimate"`
	DownloadTimeEstimates DownloadTimes `json:"download_time_estimates"`
	Summary               string        `json:"summary"`
}

// SizeEstimate is the compressed download size.
type SizeEstimate struct {
	TotalBytes    int64   `json:"total_bytes"`
	TotalMB       int64   `json:"total_mb"`
	TotalGB       float64 `json:"total_gb"`
	HumanReadable string  `json:"human_readable"`
}

// DownloadTimes are download durations at fixed link speeds.
type DownloadTimes struct {
	Fast   string `json:"fast_connection_10mbps"`
	Medium string `json:"medium_connection_5mbps"`
	Slow   string `json:"slow_connection_1mbps"`
}

// StatsResponse is the docker_get_stats result.
type StatsResponse struct {
	Repository StatsRepository `json:"repository"`
	Statistics Statistics      `json:"statistics"`
	Summary    string          `json:"summary"`
}

// StatsRepository identifies the repository in a stats result.
type StatsRepository struct {
	Name       string `json:"name"`
	IsOfficial bool   `json:"is_official"`
}

// Statistics are popularity figures.
type Statistics struct {
	StarCount       int     `json:"star_count"`
	PullCount       int64   `json:"pull_count"`
	PopularityLevel string  `json:"popularity_level"`
	LastUpdated     *string `json:"last_updated"`
}

// Popularity levels.
const (
	PopularityLow      = "low"
	PopularityMedium   = "medium"
	PopularityHigh     = "high"
	PopularityVeryHigh = "very_high"
)

// SecurityResponse is the docker_get_vulnerabilities result.
type SecurityResponse struct {
	Repository         string             `json:"repository"`
	Tag                string             `json:"tag"`
	SecurityAssessment SecurityAssessment `json:"security_assessment"`
	Recommendations    []string           `json:"recommendations"`
	Summary            string             `json:"summary"`
}

// SecurityAssessment is a heuristic rating; it is not a vulnerability scan.
type SecurityAssessment struct {
	Level           string `json:"level"`
	IsOfficial      bool   `json:"is_official"`
	DaysSinceUpdate *int   `json:"days_since_update"`
}

// Security levels.
const (
	SecurityLow    = "low"
	SecurityMedium = "medium"
	SecurityHigh   = "high"
)

// UnavailableInfo explains why data cannot be retrieved from the API.
type UnavailableInfo struct {
	Available   bool     `json:"available"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DockerfileResponse is the docker_get_dockerfile result.
type DockerfileResponse struct {
	Repository     string          `json:"repository"`
	Tag            string          `json:"tag"`
	DockerfileInfo UnavailableInfo `json:"dockerfile_info"`
	Summary        string          `json:"summary"`
}

// HistoryResponse is the docker_get_image_history result.
type HistoryResponse struct {
	Repository   string          `json:"repository"`
	Tag          string          `json:"tag"`
	HistoryInfo  UnavailableInfo `json:"history_info"`
	Alternatives HistoryOptions  `json:"alternatives"`
	Summary      string          `json:"summary"`
}

// HistoryOptions are ways to obtain build history locally.
type HistoryOptions struct {
	DockerHistory    string `json:"docker_history"`
	ManifestAnalysis string `json:"manifest_analysis"`
}

// BaseUpdatesResponse is the docker_track_base_updates result.
type BaseUpdatesResponse struct {
	Repository        string          `json:"repository"`
	Tag               string          `json:"tag"`
	BaseImageTracking UnavailableInfo `json:"base_image_tracking"`
	Recommendations   []string        `json:"recommendations"`
	LastUpdated       *string         `json:"last_updated"`
	Summary           string          `json:"summary"`
}

func formatSearchResults(page *dockerhub.SearchPage, query string) *SearchResponse {
	if page == nil || page.Results == nil {
		return &SearchResponse{
			Count:   0,
			Results: []ImageSummary{},
			Summary: "No images found matching the search criteria.",
		}
	}

	results := make([]ImageSummary, 0, len(page.Results))
	for _, r := range page.Results {
		results = append(results, ImageSummary{
			Name:        stringOr(r.DisplayName(), "Unknown"),
			Description: stringOr(r.DisplayDescription(), noDescription),
			StarCount:   r.StarCount,
			PullCount:   r.PullCount,
			IsOfficial:  r.IsOfficial,
			IsAutomated: r.IsAutomated,
			LastUpdated: nullable(r.LastUpdated),
		})
	}

	count := page.Count
	if count == 0 {
		count = len(results)
	}
	return &SearchResponse{
		Count:   count,
		Results: results,
		Summary: fmt.Sprintf("Found %d images matching %q", len(results), query),
	}
}

func formatImageDetails(info *dockerhub.RepositoryInfo, tags *dockerhub.TagPage, tag string) *ImageDetailsResponse {
	details := TagDetails{Name: tag, Images: []dockerhub.TagImage{}}
	if tags != nil {
		for _, t := range tags.Results {
			if t.Name != tag {
				continue
			}
			details.FullSize = nonZero(t.FullSize)
			details.LastUpdated = nullable(t.LastUpdated)
			if t.Images != nil {
				details.Images = t.Images
			}
			break
		}
	}

	return &ImageDetailsResponse{
		Repository: RepositoryView{
			Name:        stringOr(info.Name, "Unknown"),
			Namespace:   stringOr(info.Namespace, "Unknown"),
			Description: stringOr(info.Description, noDescription),
			IsOfficial:  info.IsOfficial(),
			StarCount:   info.StarCount,
			PullCount:   info.PullCount,
			LastUpdated: nullable(info.LastUpdated),
		},
		Tag: details,
		Summary: fmt.Sprintf("%s (%s) - %s",
			stringOr(info.Name, "Repository"), tag, stringOr(info.Description, "No description")),
	}
}

func formatTags(page *dockerhub.TagPage) *TagsResponse {
	if page == nil || page.Results == nil {
		return &TagsResponse{
			Count:   0,
			Tags:    []TagView{},
			Summary: "No tags found for this repository.",
		}
	}

	tags := make([]TagView, 0, len(page.Results))
	for _, t := range page.Results {
		view := TagView{
			Name:        stringOr(t.Name, unknown),
			FullSize:    nonZero(t.FullSize),
			LastUpdated: nullable(t.LastUpdated),
			Images:      make([]PlatformSize, 0, len(t.Images)),
		}
		if t.FullSize > 0 {
			mb := roundMB(t.FullSize)
			view.SizeMB = &mb
		}
		for _, img := range t.Images {
			view.Images = append(view.Images, PlatformSize{
				Architecture: stringOr(img.Architecture, unknown),
				OS:           stringOr(img.OS, unknown),
				Size:         nonZero(img.Size),
			})
		}
		tags = append(tags, view)
	}

	count := page.Count
	if count == 0 {
		count = len(tags)
	}
	return &TagsResponse{
		Count:   count,
		Tags:    tags,
		Summary: fmt.Sprintf("Found %d tags for repository", len(tags)),
	}
}

func formatManifest(m *dockerhub.Manifest, repository, tag string) *ManifestResponse {
	view := ManifestView{
		SchemaVersion: m.SchemaVersion,
		MediaType:     stringOr(m.MediaType, unknown),
		Digest:        m.Digest.String(),
		Layers:        make([]LayerView, 0, len(m.Layers)),
		TotalSize:     m.TotalLayerSize(),
	}
	for _, l := range m.Layers {
		view.Layers = append(view.Layers, LayerView{
			MediaType: l.MediaType,
			Size:      l.Size,
			Digest:    l.Digest.String(),
		})
	}
	if m.IsIndex() {
		view.Manifests = make([]PlatformManifest, 0, len(m.Manifests))
		for _, child := range m.Manifests {
			pm := PlatformManifest{
				Digest:    child.Digest.String(),
				MediaType: child.MediaType,
				Size:      child.Size,
				Platform:  unknown,
			}
			if child.Platform != nil {
				pm.Platform = child.Platform.OS + "/" + child.Platform.Architecture
				if child.Platform.Variant != "" {
					pm.Platform += "/" + child.Platform.Variant
				}
			}
			view.Manifests = append(view.Manifests, pm)
		}
	}

	return &ManifestResponse{
		Repository: repository,
		Tag:        tag,
		Manifest:   view,
		Summary:    fmt.Sprintf("Manifest for %s:%s with %d layers", repository, tag, len(view.Layers)),
	}
}

func analyzeLayers(m *ManifestResponse) *LayerAnalysisResponse {
	layers := make([]LayerSize, 0, len(m.Manifest.Layers))
	var largest int64
	for i, l := range m.Manifest.Layers {
		largest = max(largest, l.Size)
		layers = append(layers, LayerSize{
			Index:  i + 1,
			SizeMB: roundMB(l.Size),
			Digest: shortDigest(l.Digest),
		})
	}

	var platforms []string
	for _, child := range m.Manifest.Manifests {
		platforms = append(platforms, child.Platform)
	}

	total := m.Manifest.TotalSize
	return &LayerAnalysisResponse{
		Repository: m.Repository,
		Tag:        m.Tag,
		Analysis: LayerAnalysis{
			TotalLayers:    len(layers),
			TotalSizeBytes: total,
			TotalSizeMB:    roundMB(total),
			LargestLayerMB: roundMB(largest),
		},
		Layers:    layers,
		Platforms: platforms,
		Summary: fmt.Sprintf("%s:%s has %d layers totaling %dMB",
			m.Repository, m.Tag, len(layers), roundMB(total)),
	}
}

func compareImages(
	info1 *dockerhub.RepositoryInfo, m1 *ManifestResponse,
	info2 *dockerhub.RepositoryInfo, m2 *ManifestResponse,
) *CompareResponse {
	side := func(info *dockerhub.RepositoryInfo, m *ManifestResponse) ComparedImage {
		return ComparedImage{
			Name:   info.Name,
			Tag:    m.Tag,
			SizeMB: roundMB(m.Manifest.TotalSize),
			Layers: len(m.Manifest.Layers),
			Stars:  info.StarCount,
		}
	}
	image1, image2 := side(info1, m1), side(info2, m2)

	return &CompareResponse{
		Comparison: Comparison{Image1: image1, Image2: image2},
		Differences: Differences{
			SizeDifferenceMB: roundMB(m2.Manifest.TotalSize - m1.Manifest.TotalSize),
			LayerDifference:  image2.Layers - image1.Layers,
		},
		Summary: fmt.Sprintf("Compared %s:%s vs %s:%s", image1.Name, image1.Tag, image2.Name, image2.Tag),
	}
}

func estimatePullSize(m *ManifestResponse) *PullSizeResponse {
	total := m.Manifest.TotalSize
	seconds := func(mbps int64) string {
		bytesPerSecond := float64(mbps*bytesPerMB) / 8
		return fmt.Sprintf("%d seconds", jsRound(float64(total)/bytesPerSecond))
	}

	return &PullSizeResponse{
		Repository: m.Repository,
		Tag:        m.Tag,
		SizeEstimate: SizeEstimate{
			TotalBytes:    total,
			TotalMB:       roundMB(total),
			TotalGB:       float64(jsRound(float64(total)/bytesPerGB*100)) / 100,
			HumanReadable: units.BytesSize(float64(total)),
		},
		DownloadTimeEstimates: DownloadTimes{
			Fast:   seconds(10),
			Medium: seconds(5),
			Slow:   seconds(1),
		},
		Summary: fmt.Sprintf("%s:%s estimated download size: %dMB", m.Repository, m.Tag, roundMB(total)),
	}
}

func formatStats(info *dockerhub.RepositoryInfo) *StatsResponse {
	return &StatsResponse{
		Repository: StatsRepository{
			Name:       stringOr(info.Name, unknown),
			IsOfficial: info.IsOfficial(),
		},
		Statistics: Statistics{
			StarCount:       info.StarCount,
			PullCount:       info.PullCount,
			PopularityLevel: popularity(info.StarCount, info.PullCount),
			LastUpdated:     nullable(info.LastUpdated),
		},
		Summary: fmt.Sprintf("%s has %d stars and %s pulls",
			stringOr(info.Name, "Repository"), info.StarCount, humanize.Comma(info.PullCount)),
	}
}

func popularity(stars int, pulls int64) string {
	switch {
	case stars > 1000 || pulls > 1_000_000:
		return PopularityVeryHigh
	case stars > 100 || pulls > 100_000:
		return PopularityHigh
	case stars > 10 || pulls > 10_000:
		return PopularityMedium
	default:
		return PopularityLow
	}
}

func assessSecurity(info *dockerhub.RepositoryInfo, image imageArgs, now time.Time) *SecurityResponse {
	level := SecurityMedium
	var recommendations []string

	official := info.IsOfficial()
	if official {
		level = SecurityHigh
		recommendations = append(recommendations, "Official image - generally well-maintained")
	} else {
		recommendations = append(recommendations, "Third-party image - verify maintainer reputation")
	}

	var daysSinceUpdate *int
	if updated := info.LastUpdatedTime(); !updated.IsZero() {
		days := int(math.Floor(now.Sub(updated).Hours() / 24))
		daysSinceUpdate = &days
		switch {
		case days > 365:
			level = SecurityLow
			recommendations = append(recommendations, "Not updated in over a year - may have vulnerabilities")
		case days > 90:
			recommendations = append(recommendations, "Consider checking for newer versions")
		default:
			recommendations = append(recommendations, "Recently updated")
		}
	}

	return &SecurityResponse{
		Repository: image.Repo.Path(),
		Tag:        image.Tag,
		SecurityAssessment: SecurityAssessment{
			Level:           level,
			IsOfficial:      official,
			DaysSinceUpdate: daysSinceUpdate,
		},
		Recommendations: recommendations,
		Summary:         "Security level: " + level,
	}
}

func dockerfileGuidance(image imageArgs) *DockerfileResponse {
	return &DockerfileResponse{
		Repository: image.Repo.Path(),
		Tag:        image.Tag,
		DockerfileInfo: UnavailableInfo{
			Available: false,
			Message:   "Dockerfile not directly accessible via Docker Hub API",
			Suggestions: []string{
				"Check the repository's source code repository (GitHub, GitLab, etc.)",
				"Look for a Dockerfile in the repository root",
				"Check the image description for build instructions",
			},
		},
		Summary: fmt.Sprintf("Dockerfile for %s:%s is not directly available via API", image.Repo.Path(), image.Tag),
	}
}

func historyGuidance(image imageArgs) *HistoryResponse {
	return &HistoryResponse{
		Repository: image.Repo.Path(),
		Tag:        image.Tag,
		HistoryInfo: UnavailableInfo{
			Available: false,
			Message:   "Detailed build history not available via Docker Hub API",
		},
		Alternatives: HistoryOptions{
			DockerHistory:    fmt.Sprintf("docker history %s:%s", image.Repo.Path(), image.Tag),
			ManifestAnalysis: "Use " + ToolGetManifest + " for layer details",
		},
		Summary: fmt.Sprintf("Build history for %s:%s requires local Docker inspection", image.Repo.Path(), image.Tag),
	}
}

func baseUpdateGuidance(info *dockerhub.RepositoryInfo, image imageArgs) *BaseUpdatesResponse {
	return &BaseUpdatesResponse{
		Repository: image.Repo.Path(),
		Tag:        image.Tag,
		BaseImageTracking: UnavailableInfo{
			Available: false,
			Message:   "Base image tracking requires additional tooling",
		},
		Recommendations: []string{
			"Use tools like Renovate or Dependabot for automated updates",
			"Monitor base image repositories for security updates",
			"Set up CI/CD pipelines to rebuild on base image updates",
		},
		LastUpdated: nullable(info.LastUpdated),
		Summary:     fmt.Sprintf("Base update tracking for %s:%s requires external tools", image.Repo.Path(), image.Tag),
	}
}

// roundMB converts bytes to whole mebibytes, rounding half up.
func roundMB(b int64) int64 {
	return jsRound(float64(b) / bytesPerMB)
}

// jsRound rounds half toward positive infinity, so -2.5 becomes -2.
func jsRound(f float64) int64 {
	return int64(math.Floor(f + 0.5))
}

func shortDigest(d string) string {
	if d == "" {
		return unknown
	}
	if len(d) > 16 {
		d = d[:16]
	}
	return d + "..."
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}
