package syncx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK  = "ok"
	resultErr = "error"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tastekeeper",
			Subsystem: "sync",
			Name:      "fetches_total",
			Help:      "Completed collection fetches by result.",
		},
		[]string{"collection", "result"},
	)

	staleFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tastekeeper",
			Subsystem: "sync",
			Name:      "stale_fetch_results_discarded_total",
			Help:      "Fetch results dropped because a newer fetch already applied or the owner scope changed.",
		},
		[]string{"collection"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tastekeeper",
			Subsystem: "sync",
			Name:      "mutations_total",
			Help:      "Create/update/delete attempts by result.",
		},
		[]string{"collection", "op", "result"},
	)

	feedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tastekeeper",
			Subsystem: "sync",
			Name:      "feed_events_total",
			Help:      "Change-feed notifications received.",
		},
		[]string{"collection"},
	)
)
