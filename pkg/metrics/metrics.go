// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"transrelay/pkg/store"
)

var (
	Updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transrelay_updates_total",
			Help: "Inbound updates by kind.",
		},
		[]string{"kind"},
	)

	Translations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transrelay_translate_total",
			Help: "Translation provider calls by result.",
		},
		[]string{"result"},
	)

	TranslateSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transrelay_translate_seconds",
			Help:    "Latency of translation provider calls.",
			Buckets: prometheus.DefBuckets,
		},
	)

	Expansions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transrelay_expand_total",
			Help: "Language expansion requests by result.",
		},
		[]string{"result"},
	)

	CollectItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transrelay_collect_items_total",
			Help: "Items accepted into collection sessions by kind.",
		},
		[]string{"kind"},
	)

	Artifacts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transrelay_artifacts_total",
			Help: "Report renders by result.",
		},
		[]string{"result"},
	)

	QueueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transrelay_queue_dropped_total",
			Help: "Updates dropped because the ingest queue was full.",
		},
	)

	pebbleDisk = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "transrelay_pebble_disk_bytes",
			Help: "On-disk size of the pebble store.",
		},
		func() float64 { return float64(store.GetPebbleMetrics().DiskBytes) },
	)

	pebbleL0 = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "transrelay_pebble_l0_files",
			Help: "Number of L0 sstables.",
		},
		func() float64 { return float64(store.GetPebbleMetrics().L0Files) },
	)

	pebbleWAL = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "transrelay_pebble_wal_bytes",
			Help: "Size of the live write-ahead log.",
		},
		func() float64 { return float64(store.GetPebbleMetrics().WALBytes) },
	)

	pebbleDebt = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "transrelay_pebble_compaction_debt_bytes",
			Help: "Estimated bytes left to compact.",
		},
		func() float64 { return float64(store.GetPebbleMetrics().CompactionBacklog) },
	)
)

func init() {
	prometheus.MustRegister(
		Updates,
		Translations,
		TranslateSeconds,
		Expansions,
		CollectItems,
		Artifacts,
		QueueDropped,
		pebbleDisk,
		pebbleL0,
		pebbleWAL,
		pebbleDebt,
	)
}
