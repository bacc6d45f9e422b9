package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streetmed"

// SchedulerMetrics tracks sweep outcomes and lock contention for the cron worker.
type SchedulerMetrics struct {
	sweepDuration *prometheus.HistogramVec
	sweeps        *prometheus.CounterVec
	lockSkips     prometheus.Counter
}

// NewSchedulerMetrics registers the scheduler collectors. A nil registerer yields a no-op recorder.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	m := &SchedulerMetrics{
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a single scheduler sweep.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Scheduler sweeps by job and result.",
		}, []string{"job", "result"}),
		lockSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "lock_contended_total",
			Help:      "Ticks skipped because another worker held the scheduler lock.",
		}),
	}
	reg.MustRegister(m.sweepDuration, m.sweeps, m.lockSkips)
	return m
}

// ObserveSweep records one job execution. A non-nil err counts as a failed sweep.
func (m *SchedulerMetrics) ObserveSweep(job string, took time.Duration, err error) {
	if m == nil || m.sweeps == nil {
		return
	}
	job = normalizeLabel(job)
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepDuration.WithLabelValues(job).Observe(took.Seconds())
	m.sweeps.WithLabelValues(job, result).Inc()
}

// IncLockContended counts a tick where the lock was held elsewhere.
func (m *SchedulerMetrics) IncLockContended() {
	if m == nil || m.lockSkips == nil {
		return
	}
	m.lockSkips.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
