package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks attendance list administration.
type Metrics struct {
	ListsCreated   prometheus.Counter
	ListsCompleted prometheus.Counter
}

// New registers list metrics on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ListsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_lists_created_total",
			Help: "Total number of attendance lists opened",
		}),
		ListsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_lists_completed_total",
			Help: "Total number of attendance lists completed",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.ListsCreated.Inc()
}

func (m *Metrics) IncrementCompleted() {
	m.ListsCompleted.Inc()
}
