package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// Lock keeps a single scheduler instance sweeping at a time.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// SweepLock is a Redis SETNX lease tagged with a per-acquire token so a worker
// whose lease expired cannot delete the lease of the worker that replaced it.
type SweepLock struct {
	store  lockStore
	key    string
	ttl    time.Duration
	holder string

	mu    sync.Mutex
	token string
}

// NewSweepLock builds a lease on key. ttl bounds how long a crashed worker can
// block the others; zero falls back to ten minutes.
func NewSweepLock(store lockStore, key string, ttl time.Duration) (*SweepLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	holder, err := os.Hostname()
	if err != nil || holder == "" {
		holder = "scheduler"
	}
	return &SweepLock{store: store, key: key, ttl: ttl, holder: holder}, nil
}

// Acquire takes the lease if nobody holds it.
func (l *SweepLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return true, nil
	}
	token := l.holder + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release drops the lease when this instance still owns it.
func (l *SweepLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.CompareAndDelete(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
