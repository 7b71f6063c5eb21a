// Package metrics exposes the Prometheus instruments for the auth and
// organization surfaces.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the registry with the counters handlers increment.
type Metrics struct {
	Registry *prometheus.Registry

	AuthRequests *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// New builds a fresh registry with process and Go collectors plus the
// service counters.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orgnest_auth_requests_total",
		Help: "Auth core operations by outcome.",
	}, []string{"op", "result"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orgnest_http_requests_total",
		Help: "HTTP requests by route and status class.",
	}, []string{"route", "status"})

	reg.MustRegister(authRequests, httpRequests)

	return &Metrics{
		Registry:     reg,
		AuthRequests: authRequests,
		HTTPRequests: httpRequests,
	}
}

// Auth records one auth-core operation outcome.
func (m *Metrics) Auth(op, result string) {
	if m == nil {
		return
	}
	m.AuthRequests.WithLabelValues(op, result).Inc()
}
