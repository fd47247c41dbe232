package extract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var issuesSeen = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "issues_etl_issues_seen_total",
	Help: "The number of issues listed, by whether they were flattened or skipped as pull requests",
}, []string{"kind"})

var eventsExtracted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "issues_etl_events_extracted_total",
	Help: "The number of activity events extracted",
})

var reposSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "issues_etl_repos_skipped_total",
	Help: "The number of repositories skipped because of fetch errors",
})

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "issues_etl_feed_cache_lookups_total",
	Help: "Run cache lookups for issue feeds",
}, []string{"feed", "result"})

var extractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "issues_etl_extract_duration_seconds",
	Help:    "The duration of a full issue extraction",
	Buckets: prometheus.ExponentialBuckets(1, 2, 14),
})
