package cron

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Job is one scheduled sweep.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Schedule holds the jobs the worker sweeps and how often each one is due.
type Schedule struct {
	mu      sync.Mutex
	entries []*entry
}

func NewSchedule() *Schedule {
	return &Schedule{}
}

// Add registers job to run every interval. A zero interval runs it on every tick.
func (s *Schedule) Add(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	if every < 0 {
		return fmt.Errorf("job %s: negative interval", job.Name())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("job %s already scheduled", job.Name())
		}
	}
	s.entries = append(s.entries, &entry{job: job, every: every})
	return nil
}

// Names lists scheduled jobs in registration order.
func (s *Schedule) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.job.Name())
	}
	return names
}

// Due returns the jobs whose interval has elapsed at now and stamps them as run.
func (s *Schedule) Due(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Job
	for _, e := range s.entries {
		if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.every {
			continue
		}
		e.lastRun = now
		due = append(due, e.job)
	}
	return due
}

// pending reports whether any job would be due at now without stamping it.
func (s *Schedule) pending(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			return true
		}
	}
	return false
}
