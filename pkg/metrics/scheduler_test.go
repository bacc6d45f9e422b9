package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSchedulerMetricsSplitsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulerMetrics(reg)
	m.ObserveSweep("auto-assign", 250*time.Millisecond, nil)
	m.ObserveSweep("auto-assign", 100*time.Millisecond, errors.New("db down"))
	m.ObserveSweep("auto-assign", 50*time.Millisecond, nil)
	m.IncLockContended()
	m.IncLockContended()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	sweeps := findMetricFamily(mfs, "streetmed_scheduler_sweeps_total")
	if sweeps == nil {
		t.Fatal("sweeps counter missing")
	}
	results := map[string]float64{}
	for _, metric := range sweeps.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "result" {
				results[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if results["ok"] != 2 || results["error"] != 1 {
		t.Fatalf("unexpected sweep results %v", results)
	}

	if got, err := fetchHistogramSum(mfs, "streetmed_scheduler_sweep_duration_seconds", "job", "auto-assign"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.39 || got > 0.41 {
		t.Fatalf("expected duration sum 0.4, got %f", got)
	}

	contended := findMetricFamily(mfs, "streetmed_scheduler_lock_contended_total")
	if contended == nil || contended.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatal("expected two contended ticks")
	}
}

func TestNilSchedulerMetricsIsSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.ObserveSweep("job", time.Second, nil)
	m.IncLockContended()

	unregistered := NewSchedulerMetrics(nil)
	unregistered.ObserveSweep("job", time.Second, errors.New("x"))
	unregistered.IncLockContended()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
