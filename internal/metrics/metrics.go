// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NamesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hitrate_names_reconciled_total",
			Help: "Company names reconciled, by tier and status",
		},
		[]string{"tier", "status"},
	)

	Adjudications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hitrate_adjudications_total",
			Help: "Adjudication requests, by outcome",
		},
		[]string{"outcome"},
	)

	AdjudicationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hitrate_adjudication_duration_seconds",
			Help:    "Latency of adjudication calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	VerdictCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hitrate_verdict_cache_total",
			Help: "Verdict cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	Reloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hitrate_reloads_total",
			Help: "Dataset reloads, by result",
		},
		[]string{"result"},
	)

	SnapshotRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hitrate_snapshot_rows",
			Help: "Rows in the current snapshot, by table",
		},
		[]string{"table"},
	)

	IngestSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hitrate_ingest_skipped_total",
			Help: "Rows or values dropped during ingestion, by reason",
		},
		[]string{"reason"},
	)
)
