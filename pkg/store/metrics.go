package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "issues_etl_loads_total",
	Help: "Loader calls by table and outcome",
}, []string{"table", "status"})

var rowsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "issues_etl_rows_loaded_total",
	Help: "Rows handled by the loaders by table and result",
}, []string{"table", "result"})

var loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "issues_etl_load_duration_seconds",
	Help:    "The duration of a loader transaction",
	Buckets: prometheus.DefBuckets,
}, []string{"table"})
