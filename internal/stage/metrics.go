package stage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comic_stage_runs_total",
			Help: "Total number of pipeline stage runs, partitioned by stage.",
		},
		[]string{"stage"},
	)
	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comic_stage_failures_total",
			Help: "Total number of failed pipeline stage runs, partitioned by stage.",
		},
		[]string{"stage"},
	)
	placeholderSubstitutions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comic_placeholder_substitutions_total",
			Help: "Total number of comic pages replaced with a local placeholder image.",
		},
	)
)
