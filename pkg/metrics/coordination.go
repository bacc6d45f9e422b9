package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the coordination counters.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// CoordinationMetrics counts the outcomes of contended order and round operations.
type CoordinationMetrics struct {
	accepts       *prometheus.CounterVec
	binds         *prometheus.CounterVec
	autoAssign    *prometheus.CounterVec
	lotteryDrawn  prometheus.Counter
	lotteryRuns   *prometheus.CounterVec
	queueSnapshot *prometheus.CounterVec
}

// NewCoordinationMetrics registers the coordination metrics on the provided registerer.
func NewCoordinationMetrics(reg prometheus.Registerer) *CoordinationMetrics {
	if reg == nil {
		return &CoordinationMetrics{}
	}
	m := &CoordinationMetrics{
		accepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "accept_total",
			Help:      "Order accept attempts by outcome.",
		}, []string{"outcome"}),
		binds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "bind_total",
			Help:      "Order to round bind attempts by outcome.",
		}, []string{"outcome"}),
		autoAssign: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "auto_assign_orders_total",
			Help:      "Orders considered by auto assignment, split into bound and skipped.",
		}, []string{"result"}),
		lotteryDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lottery",
			Name:      "confirmed_total",
			Help:      "Sign-ups confirmed by lottery draws.",
		}),
		lotteryRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lottery",
			Name:      "runs_total",
			Help:      "Lottery runs by outcome.",
		}, []string{"outcome"}),
		queueSnapshot: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "snapshot_reads_total",
			Help:      "Pending queue reads split into cache hits and misses.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.accepts, m.binds, m.autoAssign, m.lotteryDrawn, m.lotteryRuns, m.queueSnapshot)
	return m
}

// ObserveAccept records the outcome of one accept attempt.
func (m *CoordinationMetrics) ObserveAccept(outcome string) {
	if m == nil || m.accepts == nil {
		return
	}
	m.accepts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveBind records the outcome of one bind attempt.
func (m *CoordinationMetrics) ObserveBind(outcome string) {
	if m == nil || m.binds == nil {
		return
	}
	m.binds.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveAutoAssign records the counts reported by one auto assignment pass.
func (m *CoordinationMetrics) ObserveAutoAssign(bound, skipped int) {
	if m == nil || m.autoAssign == nil {
		return
	}
	m.autoAssign.WithLabelValues("bound").Add(float64(bound))
	m.autoAssign.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveLottery records one lottery run and how many sign-ups it confirmed.
func (m *CoordinationMetrics) ObserveLottery(outcome string, confirmed int) {
	if m == nil || m.lotteryRuns == nil {
		return
	}
	m.lotteryRuns.WithLabelValues(normalizeLabel(outcome)).Inc()
	if confirmed > 0 {
		m.lotteryDrawn.Add(float64(confirmed))
	}
}

// ObserveQueueRead records whether a pending queue page came from the snapshot cache.
func (m *CoordinationMetrics) ObserveQueueRead(hit bool) {
	if m == nil || m.queueSnapshot == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.queueSnapshot.WithLabelValues(result).Inc()
}
