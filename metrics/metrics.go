package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace       = "nodeupload_gw"
	stateSubsystem  = "state"
	uploadSubsystem = "upload"
	indexSubsystem  = "index"
	limitSubsystem  = "ratelimit"
)

// GateMetrics groups all gateway collectors.
type GateMetrics struct {
	stateMetrics
	uploadMetrics
	indexMetrics
	limitMetrics
}

type stateMetrics struct {
	healthCheck prometheus.Gauge
}

type uploadMetrics struct {
	results *prometheus.CounterVec
}

type indexMetrics struct {
	objects prometheus.Gauge
}

type limitMetrics struct {
	clients prometheus.Gauge
}

// NewGateMetrics creates new metrics for the gateway and registers them in reg.
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	m := &GateMetrics{
		stateMetrics: stateMetrics{
			healthCheck: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: stateSubsystem,
				Name:      "health",
				Help:      "Current HTTP gateway state, 1 when ready",
			}),
		},
		uploadMetrics: uploadMetrics{
			results: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: uploadSubsystem,
				Name:      "results_total",
				Help:      "Handled upload requests by result",
			}, []string{"result"}),
		},
		indexMetrics: indexMetrics{
			objects: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: indexSubsystem,
				Name:      "objects",
				Help:      "Object names known to exist in the bucket",
			}),
		},
		limitMetrics: limitMetrics{
			clients: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: limitSubsystem,
				Name:      "clients",
				Help:      "Clients with an open rate limit window",
			}),
		},
	}

	reg.MustRegister(m.healthCheck, m.results, m.objects, m.clients)

	return m
}

func (m stateMetrics) SetHealth(s int32) {
	m.healthCheck.Set(float64(s))
}

// Observe counts a handled upload request.
func (m uploadMetrics) Observe(result string) {
	m.results.WithLabelValues(result).Inc()
}

func (m indexMetrics) SetIndexSize(n int) {
	m.objects.Set(float64(n))
}

func (m limitMetrics) SetLimitedClients(n int) {
	m.clients.Set(float64(n))
}
