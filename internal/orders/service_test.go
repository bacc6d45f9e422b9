package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/testutil"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func newTestService(t *testing.T) (*service, *db.Client, *countingInvalidator) {
	t.Helper()
	client := testutil.NewDB(t)
	inv := &countingInvalidator{}
	svc, err := NewService(NewRepository(client.DB()), client, inv)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = testutil.Clock
	return impl, client, inv
}

func validInput() CreateOrderInput {
	size := "L"
	return CreateOrderInput{
		Items: types.OrderItems{
			{ItemName: "jacket", Quantity: 1, Size: &size},
			{ItemName: "water", Quantity: 3},
		},
		DeliveryAddress: " Under the 3rd St bridge ",
		PhoneNumber:     "555-0199",
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	client := testutil.NewDB(t)
	_, err := NewService(nil, client, nil)
	require.Error(t, err)
	_, err = NewService(NewRepository(client.DB()), nil, nil)
	require.Error(t, err)
}

func TestCreateAssignsPendingGuestOrder(t *testing.T) {
	svc, client, inv := newTestService(t)

	order, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.IsGuest())
	assert.Equal(t, "Under the 3rd St bridge", order.DeliveryAddress)
	assert.True(t, order.RequestTime.Equal(testutil.Clock()))
	assert.Equal(t, 1, inv.calls)

	stored := testutil.Reload[models.Order](t, client, order.ID)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "jacket", stored.Items[0].ItemName)
	require.NotNil(t, stored.Items[0].Size)
	assert.Equal(t, "L", *stored.Items[0].Size)
	assert.Equal(t, models.GuestUserID, *stored.UserID)
}

func TestCreateKeepsAccountOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	input := validInput()
	userID := int64(77)
	input.UserID = &userID

	order, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, order.OwnedBy(77))
	assert.False(t, order.IsGuest())
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, inv := newTestService(t)
	cases := map[string]func(*CreateOrderInput){
		"no items":      func(in *CreateOrderInput) { in.Items = nil },
		"blank name":    func(in *CreateOrderInput) { in.Items[0].ItemName = " " },
		"zero quantity": func(in *CreateOrderInput) { in.Items[1].Quantity = 0 },
		"no address":    func(in *CreateOrderInput) { in.DeliveryAddress = "" },
		"no phone":      func(in *CreateOrderInput) { in.PhoneNumber = "  " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := validInput()
			mutate(&input)
			_, err := svc.Create(context.Background(), input)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
	assert.Zero(t, inv.calls)
}

func TestTransitionFollowsStateMachine(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()
	order := testutil.Order(t, client, testutil.Clock())

	_, err := svc.Transition(ctx, order.ID, enums.OrderStatusCompleted)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition))
	assert.Equal(t, enums.OrderStatusPending, testutil.Reload[models.Order](t, client, order.ID).Status)

	updated, err := svc.Transition(ctx, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, updated.Status)

	_, err = svc.Transition(ctx, order.ID, enums.OrderStatusPending)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition))

	_, err = svc.Transition(ctx, order.ID, "shipped")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Transition(ctx, uuid.New(), enums.OrderStatusCancelled)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound))
}

func TestTransitionToProcessingRequiresAccept(t *testing.T) {
	svc, client, _ := newTestService(t)
	order := testutil.Order(t, client, testutil.Clock())

	_, err := svc.Transition(context.Background(), order.ID, enums.OrderStatusProcessing)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition))
	assert.Equal(t, enums.OrderStatusPending, testutil.Reload[models.Order](t, client, order.ID).Status)

	var assignments int64
	require.NoError(t, client.DB().Model(&models.Assignment{}).Where("order_id = ?", order.ID).Count(&assignments).Error)
	assert.Zero(t, assignments)
}

func TestTransitionToCompletedRequiresStartedAssignment(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()
	accepted := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	assignment := testutil.Assignment(t, client, accepted.ID, 9, enums.AssignmentStatusAccepted, testutil.Clock())

	_, err := svc.Transition(ctx, accepted.ID, enums.OrderStatusCompleted)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition))
	assert.Equal(t, enums.OrderStatusProcessing, testutil.Reload[models.Order](t, client, accepted.ID).Status)
	assert.Equal(t, enums.AssignmentStatusAccepted, testutil.Reload[models.Assignment](t, client, assignment.ID).Status)

	orphan := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	_, err = svc.Transition(ctx, orphan.ID, enums.OrderStatusCompleted)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNoActiveAssignment))
	assert.Equal(t, enums.OrderStatusProcessing, testutil.Reload[models.Order](t, client, orphan.ID).Status)
}

func TestTransitionToCompletedClosesAssignment(t *testing.T) {
	svc, client, _ := newTestService(t)
	order := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	assignment := testutil.Assignment(t, client, order.ID, 9, enums.AssignmentStatusInProgress, testutil.Clock())

	_, err := svc.Transition(context.Background(), order.ID, enums.OrderStatusCompleted)
	require.NoError(t, err)

	stored := testutil.Reload[models.Assignment](t, client, assignment.ID)
	assert.Equal(t, enums.AssignmentStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestCancelIsIdempotentAndReleasesAssignment(t *testing.T) {
	svc, client, inv := newTestService(t)
	ctx := context.Background()
	order := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	assignment := testutil.Assignment(t, client, order.ID, 4, enums.AssignmentStatusAccepted, testutil.Clock())
	admin := Actor{UserID: 1, Role: enums.ActorRoleAdmin}

	cancelled, err := svc.Cancel(ctx, order.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	stored := testutil.Reload[models.Assignment](t, client, assignment.ID)
	assert.Equal(t, enums.AssignmentStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelReason)

	again, err := svc.Cancel(ctx, order.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, again.Status)
	assert.Equal(t, 1, inv.calls)
}

func TestCancelCompletedOrderFails(t *testing.T) {
	svc, client, _ := newTestService(t)
	order := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusCompleted })

	_, err := svc.Cancel(context.Background(), order.ID, Actor{UserID: 1, Role: enums.ActorRoleAdmin})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition))
}

func TestCancelRequiresOwnerForClients(t *testing.T) {
	svc, client, _ := newTestService(t)
	owner := int64(12)
	order := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.UserID = &owner })

	_, err := svc.Cancel(context.Background(), order.ID, Actor{UserID: 13, Role: enums.ActorRoleClient})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNotOwner))
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	guest := testutil.Order(t, client, testutil.Clock())
	_, err = svc.Cancel(context.Background(), guest.ID, Actor{UserID: models.GuestUserID, Role: enums.ActorRoleClient})
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNotOwner))

	cancelled, err := svc.Cancel(context.Background(), order.ID, Actor{UserID: owner, Role: enums.ActorRoleClient})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
}

func TestDeleteOnlyFromTerminal(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()
	processing := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.Status = enums.OrderStatusProcessing })
	assignment := testutil.Assignment(t, client, processing.ID, 3, enums.AssignmentStatusInProgress, testutil.Clock())

	err := svc.Delete(ctx, processing.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNotTerminal))
	assert.Equal(t, enums.OrderStatusProcessing, testutil.Reload[models.Order](t, client, processing.ID).Status)

	_, err = svc.Transition(ctx, processing.ID, enums.OrderStatusCompleted)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, processing.ID))

	_, err = svc.Get(ctx, processing.ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound))

	// the assignment row survives as history
	stored := testutil.Reload[models.Assignment](t, client, assignment.ID)
	assert.Equal(t, enums.AssignmentStatusCompleted, stored.Status)

	err = svc.Delete(ctx, uuid.New())
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound))
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	svc, client, _ := newTestService(t)
	order := testutil.Order(t, client, testutil.Clock())

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transition(context.Background(), order.ID, enums.OrderStatusCancelled)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition), "unexpected error %v", err)
	}
	assert.Equal(t, 1, successes)
}

func TestListByRoundOrdersByAge(t *testing.T) {
	svc, client, _ := newTestService(t)
	round := testutil.Round(t, client, testutil.Clock().Add(24*time.Hour))
	newer := testutil.Order(t, client, testutil.Clock().Add(time.Minute), func(o *models.Order) { o.RoundID = &round.ID })
	older := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.RoundID = &round.ID })
	testutil.Order(t, client, testutil.Clock())

	orders, err := svc.ListByRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, older.ID, orders[0].ID)
	assert.Equal(t, newer.ID, orders[1].ID)
	assert.Len(t, FromModels(orders), 2)
}
