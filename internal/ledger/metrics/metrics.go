package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks check-in outcomes.
type Metrics struct {
	AttendanceRecorded  prometheus.Counter
	RepeatedCheckIns    prometheus.Counter
	UnknownCredentials  prometheus.Counter
	NoActiveList        prometheus.Counter
	RecordDuration      prometheus.Histogram
	NotificationsFailed prometheus.Counter
}

// New registers ledger metrics on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		AttendanceRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_recorded_total",
			Help: "Attendance records created",
		}),
		RepeatedCheckIns: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_repeated_total",
			Help: "Check-ins that matched an existing record",
		}),
		UnknownCredentials: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_unknown_credentials_total",
			Help: "Check-ins presenting a credential that is not enrolled",
		}),
		NoActiveList: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_check_in_no_active_list_total",
			Help: "Check-ins rejected because the list was not active",
		}),
		RecordDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_record_attendance_duration_seconds",
			Help:    "Duration of RecordAttendance operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_roster_notifications_failed_total",
			Help: "Live roster notifications that could not be published",
		}),
	}
}

func (m *Metrics) IncrementRecorded()           { m.AttendanceRecorded.Inc() }
func (m *Metrics) IncrementRepeated()           { m.RepeatedCheckIns.Inc() }
func (m *Metrics) IncrementUnknownCredential()  { m.UnknownCredentials.Inc() }
func (m *Metrics) IncrementNoActiveList()       { m.NoActiveList.Inc() }
func (m *Metrics) IncrementNotificationFailed() { m.NotificationsFailed.Inc() }

// ObserveRecord records the duration of a RecordAttendance call started at start.
func (m *Metrics) ObserveRecord(start time.Time) {
	m.RecordDuration.Observe(time.Since(start).Seconds())
}
