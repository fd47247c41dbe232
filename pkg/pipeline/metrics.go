package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "issues_etl_runs_total",
	Help: "Pipeline runs by pipeline and outcome",
}, []string{"pipeline", "status"})

var runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "issues_etl_run_duration_seconds",
	Help:    "The duration of a full pipeline run",
	Buckets: prometheus.ExponentialBuckets(1, 2, 14),
}, []string{"pipeline"})

var watermarkSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "issues_etl_watermark_timestamp_seconds",
	Help: "The current watermark of a pipeline as a unix timestamp",
}, []string{"pipeline"})
