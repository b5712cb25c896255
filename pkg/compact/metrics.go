package compact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for compaction runs. Long-running batch services
// compact many schematisations per day; these counters feed their
// dashboards.
var (
	metricEdgesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydroconv",
		Subsystem: "compact",
		Name:      "edges_deleted_total",
		Help:      "Edges removed from the network, by reason.",
	}, []string{"reason"})

	metricGuardSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hydroconv",
		Subsystem: "compact",
		Name:      "guard_skips_total",
		Help:      "Short edges skipped because merging their endpoints would break connectivity.",
	})

	metricRepoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hydroconv",
		Subsystem: "compact",
		Name:      "references_repointed_total",
		Help:      "Node references redirected to a surviving node.",
	})

	metricRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hydroconv",
		Subsystem: "compact",
		Name:      "run_duration_seconds",
		Help:      "Wall time of complete compaction runs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)

const (
	reasonZeroLength = "zero_length"
	reasonShort      = "short"
)
