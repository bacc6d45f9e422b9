package cron

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/admission"
	"github.com/angelmondragon/streetmed-backend/internal/assignments"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssigner struct {
	report admission.AutoAssignReport
	err    error
	calls  int
}

func (f *fakeAssigner) AutoAssignUnboundOrders(context.Context) (admission.AutoAssignReport, error) {
	f.calls++
	return f.report, f.err
}

type sweepCall struct {
	cutoff  time.Time
	release bool
}

type fakeSweeper struct {
	calls      []sweepCall
	report     assignments.StaleReport
	releaseErr error
}

func (f *fakeSweeper) SweepStale(_ context.Context, cutoff time.Time, release bool) (assignments.StaleReport, error) {
	f.calls = append(f.calls, sweepCall{cutoff: cutoff, release: release})
	if release && f.releaseErr != nil {
		return assignments.StaleReport{}, f.releaseErr
	}
	return f.report, nil
}

func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: buf})
}

func TestAutoAssignJobLogsReport(t *testing.T) {
	buf := &bytes.Buffer{}
	assigner := &fakeAssigner{report: admission.AutoAssignReport{Bound: 3, Skipped: 1, RoundsConsidered: 2}}
	job, err := NewAutoAssignJob(AutoAssignJobParams{Logger: testLogger(buf), Admission: assigner})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "auto-assign", job.Name())
	assert.Equal(t, 1, assigner.calls)
	assert.Contains(t, buf.String(), `"bound":3`)
}

func TestAutoAssignJobWrapsFailure(t *testing.T) {
	assigner := &fakeAssigner{err: errors.New("db down")}
	job, err := NewAutoAssignJob(AutoAssignJobParams{Logger: testLogger(&bytes.Buffer{}), Admission: assigner})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestNewJobsValidateParams(t *testing.T) {
	_, err := NewAutoAssignJob(AutoAssignJobParams{})
	assert.Error(t, err)
	_, err = NewStaleAssignmentJob(StaleAssignmentJobParams{Logger: testLogger(&bytes.Buffer{}), Assignments: &fakeSweeper{}})
	assert.Error(t, err, "a job with no windows has nothing to do")
}

func TestStaleAssignmentJobReportOnlyByDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	sweeper := &fakeSweeper{report: assignments.StaleReport{Stale: 2}}
	job, err := NewStaleAssignmentJob(StaleAssignmentJobParams{
		Logger:      testLogger(buf),
		Assignments: sweeper,
		ReportAfter: time.Hour,
	})
	require.NoError(t, err)
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	job.(*staleAssignmentJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sweeper.calls, 1)
	assert.False(t, sweeper.calls[0].release)
	assert.Equal(t, now.Add(-time.Hour), sweeper.calls[0].cutoff)
	assert.Contains(t, buf.String(), "accepted assignments not started")
}

func TestStaleAssignmentJobReleasesAndCombinesErrors(t *testing.T) {
	sweeper := &fakeSweeper{releaseErr: errors.New("lock timeout")}
	job, err := NewStaleAssignmentJob(StaleAssignmentJobParams{
		Logger:       testLogger(&bytes.Buffer{}),
		Assignments:  sweeper,
		ReportAfter:  time.Hour,
		ReleaseAfter: 4 * time.Hour,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "release stale assignments"))
	require.Len(t, sweeper.calls, 2)
	assert.True(t, sweeper.calls[1].release)
}
