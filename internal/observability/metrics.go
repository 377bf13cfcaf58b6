package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "landctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	registryOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landctl",
			Subsystem: "registry",
			Name:      "operations_total",
			Help:      "Registry mutations by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	registrySize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "landctl",
			Subsystem: "registry",
			Name:      "components",
			Help:      "Current size of each registry component.",
		},
		[]string{"component"},
	)
	snapshotSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landctl",
			Subsystem: "snapshot",
			Name:      "saves_total",
			Help:      "Snapshot save attempts by driver and outcome.",
		},
		[]string{"driver", "success"},
	)
	snapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "landctl",
			Subsystem: "snapshot",
			Name:      "save_duration_seconds",
			Help:      "Snapshot save duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"driver"},
	)
	feedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "landctl",
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected ledger feed clients.",
		},
	)
)

const OutcomeOK = "ok"

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			registryOps,
			registrySize,
			snapshotSaves,
			snapshotDuration,
			feedClients,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordRegistryOp counts one registry mutation. outcome is OutcomeOK or a
// registry error code.
func RecordRegistryOp(op, outcome string) {
	RegisterMetrics()
	registryOps.WithLabelValues(op, outcome).Inc()
}

func RecordRegistrySize(lands, owners, listings, ledger int) {
	RegisterMetrics()
	registrySize.WithLabelValues("lands").Set(float64(lands))
	registrySize.WithLabelValues("owners").Set(float64(owners))
	registrySize.WithLabelValues("listings").Set(float64(listings))
	registrySize.WithLabelValues("ledger").Set(float64(ledger))
}

func RecordSnapshotSave(driver string, duration time.Duration, success bool) {
	RegisterMetrics()
	snapshotSaves.WithLabelValues(driver, strconv.FormatBool(success)).Inc()
	snapshotDuration.WithLabelValues(driver).Observe(duration.Seconds())
}

func RecordFeedClients(n int) {
	RegisterMetrics()
	feedClients.Set(float64(n))
}
