package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entitiesRepriced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_entities_repriced_total",
			Help: "Total catalog entities whose pricing was written, by operation.",
		},
		[]string{"operation"},
	)

	entitiesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_entities_skipped_total",
			Help: "Total catalog entities already at the target pricing, by operation.",
		},
		[]string{"operation"},
	)

	entitiesConflicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_entities_conflicted_total",
			Help: "Total catalog entities left untouched because another discount owns their pricing or a concurrent writer won, by operation.",
		},
		[]string{"operation"},
	)

	reconcilerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_reconciler_runs_total",
			Help: "Total expiry reconciliation passes.",
		},
	)
)
