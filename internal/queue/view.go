package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	goredis "github.com/redis/go-redis/v9"
)

// SnapshotStore holds versioned page snapshots. *redis.Client satisfies it.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	QueueVersion(ctx context.Context) (int64, error)
	BumpQueueVersion(ctx context.Context) (int64, error)
	QueueSnapshotKey(version int64, page, size int) string
}

// ReadObserver is told whether each read was served from a snapshot.
type ReadObserver interface {
	ObserveQueueRead(hit bool)
}

// QueuePage is one page of the pending queue.
type QueuePage = pagination.Page[orders.OrderDTO]

// View serves the oldest-first pending queue. Snapshots may lag writes by at most the TTL.
type View struct {
	repo     Repository
	store    SnapshotStore
	ttl      time.Duration
	logg     *logger.Logger
	observer ReadObserver
}

// NewView builds the queue view. A nil store or a zero ttl reads straight from the database.
func NewView(repo Repository, store SnapshotStore, ttl time.Duration, logg *logger.Logger, observer ReadObserver) (*View, error) {
	if repo == nil {
		return nil, fmt.Errorf("queue repository required")
	}
	return &View{repo: repo, store: store, ttl: ttl, logg: logg, observer: observer}, nil
}

func (v *View) cacheEnabled() bool {
	return v.store != nil && v.ttl > 0
}

// ListPending returns one page of pending orders ordered by request time then id.
func (v *View) ListPending(ctx context.Context, params pagination.Params) (QueuePage, error) {
	params = params.Normalize()
	if !v.cacheEnabled() {
		return v.load(ctx, params)
	}

	version, err := v.store.QueueVersion(ctx)
	if err != nil {
		v.warn(ctx, "queue.version_read_failed", err)
		return v.load(ctx, params)
	}
	key := v.store.QueueSnapshotKey(version, params.Page, params.Size)

	raw, err := v.store.Get(ctx, key)
	switch {
	case err == nil:
		var page QueuePage
		decodeErr := json.Unmarshal([]byte(raw), &page)
		if decodeErr == nil {
			v.observe(true)
			return page, nil
		}
		v.warn(ctx, "queue.snapshot_decode_failed", decodeErr)
	case !errors.Is(err, goredis.Nil):
		v.warn(ctx, "queue.snapshot_read_failed", err)
	}

	v.observe(false)
	page, err := v.load(ctx, params)
	if err != nil {
		return QueuePage{}, err
	}
	if encoded, err := json.Marshal(page); err == nil {
		if err := v.store.Set(ctx, key, encoded, v.ttl); err != nil {
			v.warn(ctx, "queue.snapshot_write_failed", err)
		}
	}
	return page, nil
}

// Invalidate moves readers onto a fresh snapshot generation. Old generations expire on their own.
func (v *View) Invalidate(ctx context.Context) {
	if !v.cacheEnabled() {
		return
	}
	if _, err := v.store.BumpQueueVersion(ctx); err != nil {
		v.warn(ctx, "queue.invalidate_failed", err)
	}
}

func (v *View) load(ctx context.Context, params pagination.Params) (QueuePage, error) {
	rows, total, err := v.repo.ListPending(ctx, params)
	if err != nil {
		return QueuePage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}
	return pagination.NewPage(params, orders.FromModels(rows), total), nil
}

func (v *View) observe(hit bool) {
	if v.observer != nil {
		v.observer.ObserveQueueRead(hit)
	}
}

func (v *View) warn(ctx context.Context, msg string, err error) {
	if v.logg == nil {
		return
	}
	ctx = v.logg.WithField(ctx, "error", err.Error())
	v.logg.Warn(ctx, msg)
}
