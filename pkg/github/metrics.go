package github

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "github_api_requests_total",
	Help: "The number of requests made to the GitHub API by response status",
}, []string{"status"})

var requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "github_api_request_duration_seconds",
	Help:    "The duration of GitHub API requests",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
})
