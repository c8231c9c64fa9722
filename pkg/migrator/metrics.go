package migrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts unit outcomes. A nil *Metrics records nothing.
type Metrics struct {
	applied  prometheus.Counter
	reverted prometheus.Counter
	failed   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the migration metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schemaward",
			Subsystem: "migrate",
			Name:      "units_applied_total",
			Help:      "Migration units applied.",
		}),
		reverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schemaward",
			Subsystem: "migrate",
			Name:      "units_reverted_total",
			Help:      "Migration units reverted or unrecorded.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schemaward",
			Subsystem: "migrate",
			Name:      "units_failed_total",
			Help:      "Migration units that failed, by direction.",
		}, []string{"direction"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schemaward",
			Subsystem: "migrate",
			Name:      "unit_duration_seconds",
			Help:      "Time spent applying one migration unit.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.applied, m.reverted, m.failed, m.duration)
	}
	return m
}

func (m *Metrics) observe(dir Direction, started time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(dir)).Observe(time.Since(started).Seconds())
	switch {
	case err != nil:
		m.failed.WithLabelValues(string(dir)).Inc()
	case dir == DirectionUp:
		m.applied.Inc()
	default:
		m.reverted.Inc()
	}
}
