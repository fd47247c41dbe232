package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "issues_etl_scheduled_attempts_total",
	Help: "The total number of scheduled run attempts by outcome",
}, []string{"pipeline", "outcome"})
