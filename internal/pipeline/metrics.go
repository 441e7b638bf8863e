package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enhanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causet",
		Subsystem: "pipeline",
		Name:      "enhance_total",
		Help:      "Enhancement runs by resolved mode and outcome.",
	}, []string{"mode", "outcome"})

	fitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "causet",
		Subsystem: "pipeline",
		Name:      "fit_failures_total",
		Help:      "Dynamic fitting calls that failed or were rejected.",
	})

	breakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "causet",
		Subsystem: "pipeline",
		Name:      "breaker_open",
		Help:      "1 while the service circuit breaker is open.",
	})

	graphCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "causet",
		Subsystem: "pipeline",
		Name:      "graph_cache_hits_total",
		Help:      "Graph builds served from the source-hash cache.",
	})
)
