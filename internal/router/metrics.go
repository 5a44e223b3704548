package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_routed_total",
		Help: "Routed events by source and outcome",
	}, []string{"source", "outcome"})
	handlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_handler_duration_seconds",
		Help:    "Time spent in route handlers",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"source", "kind"})
	recordErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dedupe_record_errors_total",
		Help: "Successful events that could not be recorded as processed",
	})
	releaseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dedupe_release_errors_total",
		Help: "Claims that could not be released after a failed or unroutable event",
	})
)
