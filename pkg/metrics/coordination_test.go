package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCoordinationMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCoordinationMetrics(reg)

	m.ObserveAccept(OutcomeSuccess)
	m.ObserveAccept(OutcomeConflict)
	m.ObserveAccept(OutcomeConflict)
	m.ObserveBind(OutcomeRejected)
	m.ObserveAutoAssign(3, 2)
	m.ObserveLottery(OutcomeSuccess, 4)
	m.ObserveQueueRead(true)
	m.ObserveQueueRead(false)
	m.ObserveQueueRead(false)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name, label, value string
		want               float64
	}{
		{"streetmed_orders_accept_total", "outcome", OutcomeSuccess, 1},
		{"streetmed_orders_accept_total", "outcome", OutcomeConflict, 2},
		{"streetmed_rounds_bind_total", "outcome", OutcomeRejected, 1},
		{"streetmed_rounds_auto_assign_orders_total", "result", "bound", 3},
		{"streetmed_rounds_auto_assign_orders_total", "result", "skipped", 2},
		{"streetmed_lottery_runs_total", "outcome", OutcomeSuccess, 1},
		{"streetmed_queue_snapshot_reads_total", "result", "hit", 1},
		{"streetmed_queue_snapshot_reads_total", "result", "miss", 2},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, c.label, c.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s{%s=%s} = %f, want %f", c.name, c.label, c.value, got, c.want)
		}
	}

	drawn := findMetricFamily(mfs, "streetmed_lottery_confirmed_total")
	if drawn == nil || drawn.GetMetric()[0].GetCounter().GetValue() != 4 {
		t.Fatalf("expected 4 lottery confirmations, got %v", drawn)
	}
}

func TestNilCoordinationMetricsIsSafe(t *testing.T) {
	var m *CoordinationMetrics
	m.ObserveAccept(OutcomeSuccess)
	m.ObserveBind(OutcomeSuccess)
	m.ObserveAutoAssign(1, 1)
	m.ObserveLottery(OutcomeSuccess, 1)
	m.ObserveQueueRead(true)

	NewCoordinationMetrics(nil).ObserveAccept(OutcomeError)
}
