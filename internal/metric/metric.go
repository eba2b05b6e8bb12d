// Package metric - Prometheus collectors (ambient stack).
//
// What: Process-wide gauges/counters/histograms for the storage and
// execution pipeline: commit throughput and conflict rate, watermark
// positions, retention sweep activity, flow propagation latency, and
// router retry/parking state.
// How: Grounded on cuemby-warren's pkg/metrics/metrics.go (package-level
// prometheus.NewGaugeVec/NewCounterVec/NewHistogramVec vars registered in
// init(), a Handler() returning promhttp.Handler(), and a Timer helper for
// ObserveDuration), generalized from warren's cluster/raft/deployment
// metrics to reifydb's commit/watermark/flow metrics.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Commit pipeline metrics (spec §4.C, §4.D).
	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reifydb_commits_total",
			Help: "Total number of commit attempts by outcome",
		},
		[]string{"outcome"}, // committed | failed | sequence_exhausted
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reifydb_commit_duration_seconds",
			Help:    "Time the commit writer spends applying one commit (tier write plus CDC)",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reifydb_commit_queue_depth",
			Help: "Number of commits buffered out-of-order, waiting on a lower version",
		},
	)

	// Watermark metrics (spec §4.D).
	ReadWatermark = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reifydb_read_watermark",
			Help: "Minimum snapshot version still visible to an active transaction",
		},
	)

	CommitWatermark = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reifydb_commit_watermark",
			Help: "Maximum contiguous committed version",
		},
	)

	ActiveTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reifydb_active_transactions",
			Help: "Number of transactions currently holding a read watermark reference",
		},
	)

	// Retention metrics (spec §4.E).
	RetentionSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reifydb_retention_sweep_duration_seconds",
			Help:    "Time taken for one retention sweep cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetentionPrunedVersions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reifydb_retention_pruned_versions_total",
			Help: "Total number of historical versions pruned by retention sweeps",
		},
	)

	// Flow / router metrics (spec §4.G, §4.H).
	FlowPropagationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reifydb_flow_propagation_duration_seconds",
			Help:    "Time to propagate one Change through a flow graph",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"}, // transactional | deferred
	)

	RouterRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reifydb_router_retries_total",
			Help: "Total number of deferred-flow write retries",
		},
		[]string{"flow"},
	)

	RouterParkedFlows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reifydb_router_parked_flows",
			Help: "Number of deferred flows parked after exhausting their retry budget",
		},
	)

	// Catalog metrics (spec §4.F).
	CatalogOverlayEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reifydb_catalog_overlay_entries",
			Help: "Number of pending catalog changes staged in the active overlay",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CommitsTotal,
		CommitDuration,
		CommitQueueDepth,
		ReadWatermark,
		CommitWatermark,
		ActiveTransactions,
		RetentionSweepDuration,
		RetentionPrunedVersions,
		FlowPropagationDuration,
		RouterRetriesTotal,
		RouterParkedFlows,
		CatalogOverlayEntries,
	)
}

// Handler returns the Prometheus scrape handler, to be mounted at
// /metrics by whatever HTTP server cmd/reifydb starts.
func Handler() http.Handler { return promhttp.Handler() }

// Timer measures an operation's duration for ObserveDuration/
// ObserveDurationVec.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time into a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
