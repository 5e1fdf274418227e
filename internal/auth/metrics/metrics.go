// Package metrics exposes Prometheus counters for the token lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenguard"

// Metrics holds the service's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tokensIssued      *prometheus.CounterVec
	verifyFailures    *prometheus.CounterVec
	logouts           *prometheus.CounterVec
	refreshes         *prometheus.CounterVec
	housekeepingPurge prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Access/refresh pairs issued, by guard and issuing operation.",
		}, []string{"guard", "operation"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected authentication attempts, by guard, operation and error kind.",
		}, []string{"guard", "operation", "kind"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Completed logouts, by guard and logout type.",
		}, []string{"guard", "type"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations, by guard.",
		}, []string{"guard"}),
		housekeepingPurge: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_deleted_total",
			Help:      "Expired token records removed by housekeeping.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokensIssued,
		m.verifyFailures,
		m.logouts,
		m.refreshes,
		m.housekeepingPurge,
	)
	return m
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) TokenIssued(guard, operation string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(guard, operation).Inc()
}

func (m *Metrics) AuthFailure(guard, operation, kind string) {
	if m == nil {
		return
	}
	m.verifyFailures.WithLabelValues(guard, operation, kind).Inc()
}

func (m *Metrics) Logout(guard, logoutType string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(guard, logoutType).Inc()
}

func (m *Metrics) RefreshRotated(guard string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(guard).Inc()
}

func (m *Metrics) HousekeepingDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.housekeepingPurge.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
