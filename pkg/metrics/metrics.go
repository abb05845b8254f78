package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_requests_total",
			Help: "Total number of requests",
		},
		[]string{"method", "status"},
	)

	// Redirect metrics
	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_redirects_total",
			Help: "Redirect lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "miss" or "error"
	)

	// Click pipeline metrics
	ClickEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_click_events_total",
			Help: "Click events by pipeline outcome",
		},
		[]string{"outcome"}, // "recorded", "dropped", "counter_failed", "aggregate_failed"
	)

	ClickQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortlink_click_queue_depth",
			Help: "Click events waiting for a worker",
		},
	)

	// Bulk metrics
	BulkItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_bulk_items_total",
			Help: "Bulk operation items by op and result",
		},
		[]string{"op", "result"},
	)
)
