package extract

import (
	"context"
	"fmt"

	"github.com/ericvolp12/issues-etl/pkg/github"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 10_000

// Cache holds comment and timeline listings keyed by issue id for the
// lifetime of one extraction run. It is not safe for concurrent use of the
// same issue.
type Cache struct {
	comments *lru.Cache[int64, []github.Comment]
	timeline *lru.Cache[int64, []github.TimelineEvent]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	comments, err := lru.New[int64, []github.Comment](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment cache: %w", err)
	}
	timeline, err := lru.New[int64, []github.TimelineEvent](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create timeline cache: %w", err)
	}
	return &Cache{comments: comments, timeline: timeline}, nil
}

// issueFeed serves one issue's comments and timeline through the run cache.
type issueFeed struct {
	src   Source
	cache *Cache
	repo  github.Repository
	issue github.Issue
}

func (f *issueFeed) Comments(ctx context.Context) ([]github.Comment, error) {
	if v, ok := f.cache.comments.Get(f.issue.ID); ok {
		cacheLookups.WithLabelValues("comments", "hit").Inc()
		return v, nil
	}
	cacheLookups.WithLabelValues("comments", "miss").Inc()

	v, err := f.src.ListComments(ctx, f.repo, f.issue)
	if err != nil {
		return nil, err
	}
	f.cache.comments.Add(f.issue.ID, v)
	return v, nil
}

func (f *issueFeed) Timeline(ctx context.Context) ([]github.TimelineEvent, error) {
	if v, ok := f.cache.timeline.Get(f.issue.ID); ok {
		cacheLookups.WithLabelValues("timeline", "hit").Inc()
		return v, nil
	}
	cacheLookups.WithLabelValues("timeline", "miss").Inc()

	v, err := f.src.ListTimeline(ctx, f.repo, f.issue)
	if err != nil {
		return nil, err
	}
	f.cache.timeline.Add(f.issue.ID, v)
	return v, nil
}
