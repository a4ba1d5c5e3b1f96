// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/stacklok/dockerhub-mcp/pkg/cache"
	"github.com/stacklok/dockerhub-mcp/pkg/dockerhub"
	"github.com/stacklok/dockerhub-mcp/pkg/logger"
)

// Cache TTLs per use-case.
const (
	SearchTTL     = 5 * time.Minute
	RepositoryTTL = 15 * time.Minute
	TagsTTL       = 10 * time.Minute
	ManifestTTL   = 30 * time.Minute
	DetailsTTL    = 15 * time.Minute
)

// Cache key categories.
const (
	categorySearch     = "search"
	categoryRepository = "repo"
	categoryTags       = "tags"
	categoryManifest   = "manifest"
	categoryDetails    = "details"
)

// Recorder receives dispatch metrics. *metrics.PrometheusMetrics implements it.
type Recorder interface {
	ObserveToolCall(tool, status string, duration time.Duration)
	ObserveCacheLookup(hit bool)
	ObserveRateLimited()
}

type nopRecorder struct{}

func (nopRecorder) ObserveToolCall(string, string, time.Duration) {}
func (nopRecorder) ObserveCacheLookup(bool)                       {}
func (nopRecorder) ObserveRateLimited()                           {}

// Service implements the tool use-cases on top of a RegistryClient and a
// shared result cache.
type Service struct {
	client   RegistryClient
	cache    *cache.Cache[any]
	recorder Recorder
	now      func() time.Time
	flight   singleflight.Group
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithRecorder reports cache lookups to r.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithServiceClock overrides the clock used for update age heuristics.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. The cache is normally the one owned by the
// registry client context.
func NewService(client RegistryClient, c *cache.Cache[any], opts ...ServiceOption) *Service {
	s := &Service{
		client:   client,
		cache:    c,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = cache.New[any](cache.DefaultMaxSize)
	}
	return s
}

// SearchKey is the cache key of a search. Absent filters render as
// "undefined" so that they never collide with an explicit false.
func SearchKey(p dockerhub.SearchParams) string {
	return cache.MakeKey(categorySearch, p.Query, p.Limit, p.Page, triState(p.IsOfficial), triState(p.IsAutomated))
}

// RepositoryKey is the cache key of raw repository info.
func RepositoryKey(repo dockerhub.RepositoryRef) string {
	return cache.MakeKey(categoryRepository, repo.Path())
}

// TagsKey is the cache key of a tag page.
func TagsKey(repo dockerhub.RepositoryRef, limit, page int) string {
	return cache.MakeKey(categoryTags, repo.Path(), limit, page)
}

// ManifestKey is the cache key of a formatted manifest.
func ManifestKey(repo dockerhub.RepositoryRef, tag string) string {
	return cache.MakeKey(categoryManifest, repo.Path(), tag)
}

// DetailsKey is the cache key of formatted image details.
func DetailsKey(repo dockerhub.RepositoryRef, tag string) string {
	return cache.MakeKey(categoryDetails, repo.Path(), tag)
}

func triState(b *bool) string {
	if b == nil {
		return "undefined"
	}
	return strconv.FormatBool(*b)
}

// Search runs a Hub search.
func (s *Service) Search(ctx context.Context, params dockerhub.SearchParams) (*SearchResponse, error) {
	return cached(ctx, s, SearchKey(params), SearchTTL, func(ctx context.Context) (*SearchResponse, error) {
		page, err := s.client.SearchImages(ctx, params)
		if err != nil {
			return nil, err
		}
		return formatSearchResults(page, params.Query), nil
	})
}

// RepositoryInfo returns raw repository metadata.
func (s *Service) RepositoryInfo(ctx context.Context, repo dockerhub.RepositoryRef) (*dockerhub.RepositoryInfo, error) {
	return cached(ctx, s, RepositoryKey(repo), RepositoryTTL, func(ctx context.Context) (*dockerhub.RepositoryInfo, error) {
		return s.client.GetRepositoryInfo(ctx, repo)
	})
}

// ImageDetails combines repository info with the entry for the requested
// tag. Both are fetched concurrently and either failure fails the call.
func (s *Service) ImageDetails(ctx context.Context, image imageArgs) (*ImageDetailsResponse, error) {
	key := DetailsKey(image.Repo, image.Tag)
	return cached(ctx, s, key, DetailsTTL, func(ctx context.Context) (*ImageDetailsResponse, error) {
		var (
			info *dockerhub.RepositoryInfo
			tags *dockerhub.TagPage
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			info, err = s.RepositoryInfo(gctx, image.Repo)
			return err
		})
		g.Go(func() error {
			var err error
			tags, err = s.client.GetRepositoryTags(gctx, image.Repo, detailsTagLimit, DefaultPage)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return formatImageDetails(info, tags, image.Tag), nil
	})
}

// Tags lists one page of tags.
func (s *Service) Tags(ctx context.Context, repo dockerhub.RepositoryRef, limit, page int) (*TagsResponse, error) {
	return cached(ctx, s, TagsKey(repo, limit, page), TagsTTL, func(ctx context.Context) (*TagsResponse, error) {
		tags, err := s.client.GetRepositoryTags(ctx, repo, limit, page)
		if err != nil {
			return nil, err
		}
		return formatTags(tags), nil
	})
}

// Manifest returns the formatted manifest for an image.
func (s *Service) Manifest(ctx context.Context, image imageArgs) (*ManifestResponse, error) {
	key := ManifestKey(image.Repo, image.Tag)
	return cached(ctx, s, key, ManifestTTL, func(ctx context.Context) (*ManifestResponse, error) {
		m, err := s.client.GetImageManifest(ctx, image.Repo, image.Tag)
		if err != nil {
			return nil, err
		}
		return formatManifest(m, image.Repo.Path(), image.Tag), nil
	})
}

// AnalyzeLayers reports layer sizes for an image.
func (s *Service) AnalyzeLayers(ctx context.Context, image imageArgs) (*LayerAnalysisResponse, error) {
	m, err := s.Manifest(ctx, image)
	if err != nil {
		return nil, err
	}
	return analyzeLayers(m), nil
}

// EstimatePullSize reports the download size for an image.
func (s *Service) EstimatePullSize(ctx context.Context, image imageArgs) (*PullSizeResponse, error) {
	m, err := s.Manifest(ctx, image)
	if err != nil {
		return nil, err
	}
	return estimatePullSize(m), nil
}

// Compare fetches info and manifest for both images concurrently. The
// comparison is not cached and fails as a whole if any fetch fails.
func (s *Service) Compare(ctx context.Context, left, right imageArgs) (*CompareResponse, error) {
	var (
		info1, info2 *dockerhub.RepositoryInfo
		m1, m2       *ManifestResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		info1, err = s.RepositoryInfo(gctx, left.Repo)
		return err
	})
	g.Go(func() (err error) {
		m1, err = s.Manifest(gctx, left)
		return err
	})
	g.Go(func() (err error) {
		info2, err = s.RepositoryInfo(gctx, right.Repo)
		return err
	})
	g.Go(func() (err error) {
		m2, err = s.Manifest(gctx, right)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return compareImages(info1, m1, info2, m2), nil
}

// Stats reports popularity figures.
func (s *Service) Stats(ctx context.Context, repo dockerhub.RepositoryRef) (*StatsResponse, error) {
	info, err := s.RepositoryInfo(ctx, repo)
	if err != nil {
		return nil, err
	}
	return formatStats(info), nil
}

// Vulnerabilities rates an image from its official flag and update age.
func (s *Service) Vulnerabilities(ctx context.Context, image imageArgs) (*SecurityResponse, error) {
	info, err := s.RepositoryInfo(ctx, image.Repo)
	if err != nil {
		return nil, err
	}
	return assessSecurity(info, image, s.now()), nil
}

// BaseUpdates returns base image tracking guidance.
func (s *Service) BaseUpdates(ctx context.Context, image imageArgs) (*BaseUpdatesResponse, error) {
	info, err := s.RepositoryInfo(ctx, image.Repo)
	if err != nil {
		return nil, err
	}
	return baseUpdateGuidance(info, image), nil
}

// cached returns the value stored under key or computes, stores and returns
// it. Concurrent misses for one key share a single fetch. Failures are never
// stored. The shared fetch is detached from the caller that started it, so a
// cancelled caller returns early without failing the others.
func cached[T any](
	ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch func(context.Context) (T, error),
) (T, error) {
	if v, ok := lookup[T](s, key); ok {
		s.recorder.ObserveCacheLookup(true)
		logger.Debugw("cache hit", "key", key)
		return v, nil
	}
	s.recorder.ObserveCacheLookup(false)
	logger.Debugw("cache miss", "key", key)

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		if v, ok := lookup[T](s, key); ok {
			return v, nil
		}
		result, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, result, ttl)
		return result, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		var zero T
		return zero, res.Err
	}
	if res.Shared {
		logger.Debugw("shared in-flight fetch", "key", key)
	}

	result, ok := res.Val.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected cached type %T for %s", res.Val, key)
	}
	return result, nil
}

func lookup[T any](s *Service, key string) (T, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}
