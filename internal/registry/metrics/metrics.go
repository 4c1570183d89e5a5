package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the credential registry.
type Metrics struct {
	ProfessionalsEnrolled prometheus.Counter
	CodeCollisions        prometheus.Counter
	DuplicateCredentials  prometheus.Counter
	EnrollDuration        prometheus.Histogram
}

// New registers registry metrics on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ProfessionalsEnrolled: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_professionals_enrolled_total",
			Help: "Total number of professionals enrolled",
		}),
		CodeCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_registration_code_collisions_total",
			Help: "Registration codes regenerated after a uniqueness collision",
		}),
		DuplicateCredentials: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_duplicate_credentials_total",
			Help: "Enrollments rejected because the credential was already bound",
		}),
		EnrollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_enroll_duration_seconds",
			Help:    "Duration of Enroll operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementEnrolled() {
	m.ProfessionalsEnrolled.Inc()
}

func (m *Metrics) IncrementCodeCollision() {
	m.CodeCollisions.Inc()
}

func (m *Metrics) IncrementDuplicateCredential() {
	m.DuplicateCredentials.Inc()
}

// ObserveEnroll records the duration of an Enroll call started at start.
func (m *Metrics) ObserveEnroll(start time.Time) {
	m.EnrollDuration.Observe(time.Since(start).Seconds())
}
