package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts ceremonies by kind and outcome.
type Metrics struct {
	Started   *prometheus.CounterVec
	Completed *prometheus.CounterVec
	Failed    *prometheus.CounterVec
}

// New registers ceremony metrics on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Started: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_ceremonies_started_total",
			Help: "WebAuthn ceremonies started",
		}, []string{"kind"}),
		Completed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_ceremonies_completed_total",
			Help: "WebAuthn ceremonies that enrolled a professional or recorded attendance",
		}, []string{"kind"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_ceremonies_failed_total",
			Help: "WebAuthn ceremonies that ended without a result, by error code",
		}, []string{"kind", "code"}),
	}
}

func (m *Metrics) IncrementStarted(kind string) {
	m.Started.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementCompleted(kind string) {
	m.Completed.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementFailed(kind, code string) {
	m.Failed.WithLabelValues(kind, code).Inc()
}
