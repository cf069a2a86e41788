// Package metrics registers the Prometheus instruments the
// authenticator and multisig wallet report against.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and histogram this module emits. Zero
// value is unusable; construct with New.
type Metrics struct {
	AuthAttempts *prometheus.CounterVec
	WalletOps    *prometheus.CounterVec
	AuthDuration prometheus.Histogram
}

// New registers the instruments under namespace on reg and returns the
// handle callers use to record observations.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by signing scheme and outcome.",
		}, []string{"scheme", "result"}),
		WalletOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_operations_total",
			Help:      "Multisig wallet operations by kind and outcome.",
		}, []string{"op", "result"}),
		AuthDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_duration_seconds",
			Help:      "Time spent inside Authenticate.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.AuthAttempts, m.WalletOps, m.AuthDuration)
	return m
}

// NewUnregistered builds a Metrics instance backed by its own private
// registry, for tests and the demo CLI that don't run an /metrics
// endpoint.
func NewUnregistered(namespace string) *Metrics {
	return New(namespace, prometheus.NewRegistry())
}

func (m *Metrics) ObserveAuth(scheme, result string, elapsed time.Duration) {
	m.AuthAttempts.WithLabelValues(scheme, result).Inc()
	m.AuthDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveWalletOp(op, result string) {
	m.WalletOps.WithLabelValues(op, result).Inc()
}
