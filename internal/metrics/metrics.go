package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Reconciliation outcomes.
const (
	OutcomeConverged  = "converged"
	OutcomeCached     = "cached"
	OutcomeSkipped    = "skipped"
	OutcomeTerminated = "terminated"
	OutcomeFailed     = "failed"
)

var (
	reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "node_dns_reconciliations_total",
		Help: "Number of finished node reconciliation passes, partitioned by outcome.",
	}, []string{"outcome"})

	reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "node_dns_reconcile_duration_seconds",
		Help:    "Duration of node reconciliation passes.",
		Buckets: prometheus.DefBuckets,
	})

	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "node_dns_provider_requests_total",
		Help: "Number of DNS provider API requests, partitioned by operation and status.",
	}, []string{"operation", "status"})
)

func init() {
	metrics.Registry.MustRegister(reconciliations, reconcileDuration, providerRequests)
}

// ObserveReconciliation counts a finished reconciliation pass.
func ObserveReconciliation(outcome string, duration time.Duration) {
	reconciliations.WithLabelValues(outcome).Inc()
	reconcileDuration.Observe(duration.Seconds())
}

// ObserveProviderRequest counts a single DNS provider API request. The status label is
// derived from whether the request returned an error.
func ObserveProviderRequest(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	providerRequests.WithLabelValues(operation, status).Inc()
}
