package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procrecipe_match_requests_total",
			Help: "Recipe match attempts by outcome",
		},
		[]string{"result"},
	)

	fallbackSteps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "procrecipe_fallback_steps_total",
			Help: "Request steps estimated with the fallback rate because no recipe matched",
		},
	)

	estimatesByRisk = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procrecipe_estimates_total",
			Help: "Aggregated estimates by capacity risk tier",
		},
		[]string{"risk"},
	)

	estimatedMinutes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procrecipe_estimated_minutes",
			Help:    "Total minutes of aggregated estimates",
			Buckets: []float64{15, 30, 60, 120, 240, 480, 960, 1920},
		},
	)
)
