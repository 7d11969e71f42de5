// Package metrics exposes Prometheus collectors for the capture and query paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "icmpwatch"

var (
	// PacketsObserved counts ICMP packets handed to the feature extractor.
	PacketsObserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_observed_total",
			Help:      "Total number of ICMP packets handed to the feature extractor",
		},
	)

	// PacketsDropped counts observations skipped because they carried no TTL.
	PacketsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Total number of observations dropped without a feature record",
		},
	)

	// RecordsAppended counts feature rows written to the metric log.
	RecordsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Total number of feature records appended to the metric log",
		},
	)

	// AppendErrors counts failed metric log writes.
	AppendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_errors_total",
			Help:      "Total number of failed metric log appends",
		},
	)

	// SnapshotsTotal counts aggregator invocations by result kind.
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total number of status snapshots by result kind",
		},
		[]string{"kind"},
	)

	// SnapshotLatency tracks aggregator latency.
	SnapshotLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_latency_seconds",
			Help:      "Status snapshot computation latency in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// NetworkStatus is 1 for the status of the latest ready snapshot, 0 otherwise.
	NetworkStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_status",
			Help:      "Current network status (1 for the active status label)",
		},
		[]string{"status"},
	)

	// AnomalyCount is the anomaly count of the latest ready snapshot.
	AnomalyCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_anomalies",
			Help:      "Rows flagged anomalous in the most recent window",
		},
	)

	// Bandwidth holds the latest probed throughput by direction.
	Bandwidth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_throughput_mbps",
			Help:      "Most recent measured link throughput in Mbps",
		},
		[]string{"direction"},
	)

	// RequestsTotal counts API requests by path and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks API request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ProbeFailures counts failed throughput probes.
	ProbeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Total number of failed throughput probes",
		},
	)
)

// SetStatus marks status as the active label and clears the others in statuses.
func SetStatus(active string, statuses []string) {
	for _, s := range statuses {
		v := 0.0
		if s == active {
			v = 1
		}
		NetworkStatus.WithLabelValues(s).Set(v)
	}
}
