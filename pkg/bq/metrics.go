package bq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var recordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bq_records_processed",
	Help: "The number of records mirrored to BQ",
}, []string{"table"})

var batchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bq_batch_failures",
	Help: "The number of batches BQ rejected",
}, []string{"table"})

var batchSubmissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bq_batch_submission_duration",
	Help:    "The duration of time it takes to submit a batch of records to BQ",
	Buckets: prometheus.DefBuckets,
}, []string{"table"})

var batchSizeHist = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bq_batch_size",
	Help:    "The size of a batch of records submitted to BQ",
	Buckets: prometheus.ExponentialBuckets(1, 2, 20),
}, []string{"table"})
