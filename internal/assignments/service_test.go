package assignments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/queue"
	"github.com/angelmondragon/streetmed-backend/internal/testutil"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/metrics"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *recordingObserver) ObserveAccept(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

type fixture struct {
	svc      *service
	client   *db.Client
	observer *recordingObserver
	queue    *countingInvalidator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := testutil.NewDB(t)
	observer := &recordingObserver{}
	queue := &countingInvalidator{}
	svc, err := NewService(NewRepository(client.DB()), client, queue, observer)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = testutil.Clock
	return fixture{svc: impl, client: client, observer: observer, queue: queue}
}

func TestAcceptClaimsPendingOrder(t *testing.T) {
	f := newFixture(t)
	order := testutil.Order(t, f.client, testutil.Clock())

	assignment, err := f.svc.Accept(context.Background(), order.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusAccepted, assignment.Status)
	assert.Equal(t, int64(7), assignment.VolunteerID)
	assert.Equal(t, enums.OrderStatusProcessing, testutil.Reload[models.Order](t, f.client, order.ID).Status)
	assert.Equal(t, 1, f.observer.outcomes[metrics.OutcomeSuccess])
	assert.Equal(t, 1, f.queue.calls)
}

func TestAcceptErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := testutil.Order(t, f.client, testutil.Clock())

	_, err := f.svc.Accept(ctx, uuid.New(), 7)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound))

	first, err := f.svc.Accept(ctx, order.ID, 7)
	require.NoError(t, err)

	again, err := f.svc.Accept(ctx, order.ID, 7)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyAcceptedByYou))
	assert.Equal(t, pkgerrors.CodeAlreadyDone, pkgerrors.As(err).Code())
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.svc.Accept(ctx, order.ID, 8)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderAlreadyAccepted))

	cancelled := testutil.Order(t, f.client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusCancelled })
	_, err = f.svc.Accept(ctx, cancelled.ID, 8)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotPending))

	_, err = f.svc.Accept(ctx, order.ID, 0)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	order := testutil.Order(t, f.client, testutil.Clock())

	const volunteers = 10
	var wg sync.WaitGroup
	errs := make([]error, volunteers)
	start := make(chan struct{})
	for i := 0; i < volunteers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Accept(context.Background(), order.ID, int64(100+i))
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderAlreadyAccepted), "unexpected error %v", err)
	}
	assert.Equal(t, 1, winners)

	var active int64
	require.NoError(t, f.client.DB().Model(&models.Assignment{}).
		Where("order_id = ? AND status IN ?", order.ID, enums.ActiveAssignmentStatuses).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)
	assert.Equal(t, volunteers-1, f.observer.outcomes[metrics.OutcomeConflict])
}

func TestStartAndCompleteLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := testutil.Order(t, f.client, testutil.Clock())
	assignment, err := f.svc.Accept(ctx, order.ID, 7)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, assignment.ID, 7)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition), "cannot complete before starting")

	_, err = f.svc.Start(ctx, assignment.ID, 8)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNotOwner))

	started, err := f.svc.Start(ctx, assignment.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = f.svc.Start(ctx, assignment.ID, 7)
	require.NoError(t, err, "starting twice is a no-op")

	done, err := f.svc.Complete(ctx, assignment.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusCompleted, done.Status)
	assert.Equal(t, enums.OrderStatusCompleted, testutil.Reload[models.Order](t, f.client, order.ID).Status)

	_, err = f.svc.Start(ctx, uuid.New(), 7)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonAssignmentNotFound))
}

func TestCancelAssignmentRequeuesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := testutil.Order(t, f.client, testutil.Clock())
	_, err := f.svc.Accept(ctx, order.ID, 7)
	require.NoError(t, err)

	_, err = f.svc.CancelAssignment(ctx, order.ID, 8, nil)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNotOwner))

	reason := "flat tire"
	cancelled, err := f.svc.CancelAssignment(ctx, order.ID, 7, &reason)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusCancelled, cancelled.Status)
	assert.Equal(t, enums.OrderStatusPending, testutil.Reload[models.Order](t, f.client, order.ID).Status)

	_, err = f.svc.CancelAssignment(ctx, order.ID, 7, nil)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNoActiveAssignment))

	// another volunteer can pick it up again
	next, err := f.svc.Accept(ctx, order.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), next.VolunteerID)

	stored := testutil.Reload[models.Assignment](t, f.client, cancelled.ID)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, "flat tire", *stored.CancelReason)
}

func TestCancelInProgressAssignmentReturnsOrderToQueue(t *testing.T) {
	client := testutil.NewDB(t)
	ctx := context.Background()
	view, err := queue.NewView(queue.NewRepository(client.DB()), nil, 0, nil, nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), client, view, nil)
	require.NoError(t, err)
	order := testutil.Order(t, client, testutil.Clock())

	assignment, err := svc.Accept(ctx, order.ID, 7)
	require.NoError(t, err)
	_, err = svc.Start(ctx, assignment.ID, 7)
	require.NoError(t, err)

	page, err := view.ListPending(ctx, pagination.Params{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items, "in-progress orders are not pending")

	cancelled, err := svc.CancelAssignment(ctx, order.ID, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusCancelled, cancelled.Status)
	assert.Equal(t, enums.OrderStatusPending, testutil.Reload[models.Order](t, client, order.ID).Status)

	page, err = view.ListPending(ctx, pagination.Params{Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, order.ID, page.Items[0].ID)
	assert.Equal(t, enums.OrderStatusPending, page.Items[0].Status)
}

// lockRecorder notes the row locks a transaction takes.
type lockRecorder struct {
	Repository
	mu    *sync.Mutex
	locks *[]string
}

func (l lockRecorder) WithTx(tx *gorm.DB) Repository {
	return lockRecorder{Repository: l.Repository.WithTx(tx), mu: l.mu, locks: l.locks}
}

func (l lockRecorder) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	l.record("order")
	return l.Repository.LockOrder(ctx, orderID)
}

func (l lockRecorder) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	l.record("assignment")
	return l.Repository.FindByIDForUpdate(ctx, id)
}

func (l lockRecorder) record(row string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.locks = append(*l.locks, row)
}

func TestStartAndCompleteLockOrderBeforeAssignment(t *testing.T) {
	client := testutil.NewDB(t)
	ctx := context.Background()
	var locks []string
	recorder := lockRecorder{Repository: NewRepository(client.DB()), mu: &sync.Mutex{}, locks: &locks}
	svc, err := NewService(recorder, client, nil, nil)
	require.NoError(t, err)
	order := testutil.Order(t, client, testutil.Clock())

	assignment, err := svc.Accept(ctx, order.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"order"}, locks)

	locks = nil
	_, err = svc.Start(ctx, assignment.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "assignment"}, locks)

	locks = nil
	_, err = svc.Complete(ctx, assignment.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "assignment"}, locks)

	locks = nil
	_, err = svc.Complete(ctx, assignment.ID, 8)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNotOwner))
	assert.Empty(t, locks, "foreign volunteers never take locks")
}

func TestListMineNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		order := testutil.Order(t, f.client, testutil.Clock())
		testutil.Assignment(t, f.client, order.ID, 7, enums.AssignmentStatusCompleted, testutil.Clock().Add(time.Duration(i)*time.Hour))
	}
	other := testutil.Order(t, f.client, testutil.Clock())
	testutil.Assignment(t, f.client, other.ID, 8, enums.AssignmentStatusAccepted, testutil.Clock())

	page, err := f.svc.ListMine(ctx, 7, nil, pagination.Params{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasNext)
	assert.True(t, page.Items[0].AcceptedAt.After(page.Items[1].AcceptedAt))

	filtered, err := f.svc.ListMine(ctx, 7, []enums.AssignmentStatus{enums.AssignmentStatusAccepted}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, filtered.Items)

	_, err = f.svc.ListMine(ctx, 7, []enums.AssignmentStatus{"lost"}, pagination.Params{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSweepStaleReportsAndReleases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := testutil.Order(t, f.client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	oldAssignment := testutil.Assignment(t, f.client, old.ID, 7, enums.AssignmentStatusAccepted, testutil.Clock().Add(-3*time.Hour))
	started := testutil.Order(t, f.client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	testutil.Assignment(t, f.client, started.ID, 8, enums.AssignmentStatusInProgress, testutil.Clock().Add(-3*time.Hour))
	fresh := testutil.Order(t, f.client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	testutil.Assignment(t, f.client, fresh.ID, 9, enums.AssignmentStatusAccepted, testutil.Clock().Add(-10*time.Minute))

	cutoff := testutil.Clock().Add(-time.Hour)
	report, err := f.svc.SweepStale(ctx, cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, StaleReport{Stale: 1}, report)
	assert.Equal(t, enums.OrderStatusProcessing, testutil.Reload[models.Order](t, f.client, old.ID).Status)

	report, err = f.svc.SweepStale(ctx, cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, StaleReport{Stale: 1, Released: 1}, report)
	assert.Equal(t, enums.OrderStatusPending, testutil.Reload[models.Order](t, f.client, old.ID).Status)
	assert.Equal(t, enums.AssignmentStatusCancelled, testutil.Reload[models.Assignment](t, f.client, oldAssignment.ID).Status)
	assert.Equal(t, enums.OrderStatusProcessing, testutil.Reload[models.Order](t, f.client, started.ID).Status)
	assert.Equal(t, enums.OrderStatusProcessing, testutil.Reload[models.Order](t, f.client, fresh.ID).Status)
}
