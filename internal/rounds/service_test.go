package rounds

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/testutil"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*service, *db.Client) {
	t.Helper()
	client := testutil.NewDB(t)
	svc, err := NewService(NewRepository(client.DB()), client, nil, 20)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = testutil.Clock
	return impl, client
}

func createInput() CreateRoundInput {
	start := testutil.Clock().Add(24 * time.Hour)
	return CreateRoundInput{
		Title:           "Tuesday night",
		Location:        "Pioneer Square",
		StartTime:       start,
		EndTime:         start.Add(3 * time.Hour),
		MaxParticipants: 6,
	}
}

func intPtr(v int) *int { return &v }

func TestNewServiceRejectsBadCapacity(t *testing.T) {
	client := testutil.NewDB(t)
	_, err := NewService(NewRepository(client.DB()), client, nil, 0)
	require.Error(t, err)
}

func TestCreateAppliesDefaultCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	round, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	assert.Equal(t, enums.RoundStatusScheduled, round.Status)
	assert.Equal(t, 20, round.OrderCapacity)

	input := createInput()
	input.OrderCapacity = intPtr(3)
	custom, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 3, custom.OrderCapacity)
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newTestService(t)
	cases := map[string]func(*CreateRoundInput){
		"reversed window":  func(in *CreateRoundInput) { in.EndTime = in.StartTime },
		"no title":         func(in *CreateRoundInput) { in.Title = "" },
		"no participants":  func(in *CreateRoundInput) { in.MaxParticipants = 0 },
		"zero capacity":    func(in *CreateRoundInput) { in.OrderCapacity = intPtr(0) },
		"missing location": func(in *CreateRoundInput) { in.Location = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := createInput()
			mutate(&input)
			_, err := svc.Create(context.Background(), input)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestUpdateRejectsCapacityBelowUsage(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	round := testutil.Round(t, client, testutil.Clock().Add(time.Hour))
	for i := 0; i < 3; i++ {
		testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.RoundID = &round.ID })
	}
	testutil.Order(t, client, testutil.Clock(), func(o *models.Order) {
		o.RoundID = &round.ID
		o.Status = enums.OrderStatusCancelled
	})
	testutil.Signup(t, client, round.ID, 1, enums.SignupStatusConfirmed)
	testutil.Signup(t, client, round.ID, 2, enums.SignupStatusConfirmed)

	_, err := svc.Update(ctx, round.ID, UpdateRoundInput{OrderCapacity: intPtr(2)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonCapacityBelowUsage))

	_, err = svc.Update(ctx, round.ID, UpdateRoundInput{MaxParticipants: intPtr(1)})
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonCapacityBelowUsage))

	title := "Renamed"
	updated, err := svc.Update(ctx, round.ID, UpdateRoundInput{OrderCapacity: intPtr(3), Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.OrderCapacity)
	assert.Equal(t, "Renamed", testutil.Reload[models.Round](t, client, round.ID).Title)
}

func TestUpdateOnlyWhileScheduled(t *testing.T) {
	svc, client := newTestService(t)
	round := testutil.Round(t, client, testutil.Clock(), func(r *models.Round) { r.Status = enums.RoundStatusInProgress })
	title := "late edit"
	_, err := svc.Update(context.Background(), round.ID, UpdateRoundInput{Title: &title})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonRoundNotSchedulable))
}

func TestLifecycleTransitions(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	round := testutil.Round(t, client, testutil.Clock())

	_, err := svc.Complete(ctx, round.ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition))

	started, err := svc.Start(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoundStatusInProgress, started.Status)

	done, err := svc.Complete(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoundStatusCompleted, done.Status)

	_, err = svc.Cancel(ctx, round.ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition))

	_, err = svc.Start(ctx, uuid.New())
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonRoundNotFound))
}

func TestCancelReleasesPendingOrdersAndWaitlist(t *testing.T) {
	svc, client := newTestService(t)
	round := testutil.Round(t, client, testutil.Clock())
	pending := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.RoundID = &round.ID })
	processing := testutil.Order(t, client, testutil.Clock(), func(o *models.Order) {
		o.RoundID = &round.ID
		o.Status = enums.OrderStatusProcessing
	})
	waiting := testutil.Signup(t, client, round.ID, 1, enums.SignupStatusWaitlisted)
	confirmed := testutil.Signup(t, client, round.ID, 2, enums.SignupStatusConfirmed)

	result, err := svc.Cancel(context.Background(), round.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoundStatusCancelled, result.Round.Status)
	assert.Equal(t, int64(1), result.UnboundOrders)
	assert.Equal(t, int64(1), result.RejectedSignups)

	assert.Nil(t, testutil.Reload[models.Order](t, client, pending.ID).RoundID)
	kept := testutil.Reload[models.Order](t, client, processing.ID)
	require.NotNil(t, kept.RoundID)
	assert.Equal(t, round.ID, *kept.RoundID)
	assert.Equal(t, enums.SignupStatusRejected, testutil.Reload[models.Signup](t, client, waiting.ID).Status)
	assert.Equal(t, enums.SignupStatusConfirmed, testutil.Reload[models.Signup](t, client, confirmed.ID).Status)
}

func TestStatusReportsDerivedCounters(t *testing.T) {
	svc, client := newTestService(t)
	round := testutil.Round(t, client, testutil.Clock(), func(r *models.Round) {
		r.OrderCapacity = 2
		r.MaxParticipants = 3
	})
	testutil.Order(t, client, testutil.Clock(), func(o *models.Order) { o.RoundID = &round.ID })
	testutil.Order(t, client, testutil.Clock(), func(o *models.Order) {
		o.RoundID = &round.ID
		o.Status = enums.OrderStatusCompleted
	})
	testutil.Order(t, client, testutil.Clock(), func(o *models.Order) {
		o.RoundID = &round.ID
		o.Status = enums.OrderStatusCancelled
	})
	testutil.Signup(t, client, round.ID, 1, enums.SignupStatusConfirmed)
	testutil.Signup(t, client, round.ID, 2, enums.SignupStatusWaitlisted)
	testutil.Signup(t, client, round.ID, 3, enums.SignupStatusRejected)

	status, err := svc.Status(context.Background(), round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.CurrentOrderCount)
	assert.Equal(t, int64(0), status.AvailableOrderSlots)
	assert.Equal(t, int64(1), status.CurrentParticipants)
	assert.Equal(t, int64(1), status.Waitlisted)
	assert.Equal(t, int64(2), status.OpenSpots)
}

func TestListFiltersAndPages(t *testing.T) {
	svc, client := newTestService(t)
	for i := 0; i < 3; i++ {
		testutil.Round(t, client, testutil.Clock().Add(time.Duration(i)*time.Hour))
	}
	testutil.Round(t, client, testutil.Clock(), func(r *models.Round) { r.Status = enums.RoundStatusCancelled })

	page, err := svc.List(context.Background(), []enums.RoundStatus{enums.RoundStatusScheduled}, pagination.Params{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasNext)
	assert.True(t, page.Items[0].StartTime.Before(page.Items[1].StartTime))

	_, err = svc.List(context.Background(), []enums.RoundStatus{"paused"}, pagination.Params{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
