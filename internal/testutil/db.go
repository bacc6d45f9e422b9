// Package testutil builds sqlite-backed fixtures for service tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/config"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewDB opens an isolated in-memory sqlite database with the full schema.
func NewDB(t testing.TB) *db.Client {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// Clock returns a fixed UTC instant that tests advance by hand.
func Clock() time.Time {
	return time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
}

// Order seeds a pending order requested at the given time.
func Order(t testing.TB, client *db.Client, requested time.Time, mutate ...func(*models.Order)) models.Order {
	t.Helper()
	userID := models.GuestUserID
	order := models.Order{
		ID:              uuid.New(),
		Status:          enums.OrderStatusPending,
		Items:           types.OrderItems{{ItemName: "socks", Quantity: 2}},
		DeliveryAddress: "5th and Main",
		PhoneNumber:     "555-0100",
		UserID:          &userID,
		RequestTime:     requested.UTC(),
	}
	for _, fn := range mutate {
		fn(&order)
	}
	require.NoError(t, client.DB().Create(&order).Error)
	return order
}

// Round seeds a scheduled round starting at the given time.
func Round(t testing.TB, client *db.Client, start time.Time, mutate ...func(*models.Round)) models.Round {
	t.Helper()
	round := models.Round{
		ID:              uuid.New(),
		Title:           "Evening round",
		Status:          enums.RoundStatusScheduled,
		Location:        "Downtown",
		StartTime:       start.UTC(),
		EndTime:         start.Add(3 * time.Hour).UTC(),
		MaxParticipants: 5,
		OrderCapacity:   20,
	}
	for _, fn := range mutate {
		fn(&round)
	}
	require.NoError(t, client.DB().Create(&round).Error)
	return round
}

// Signup seeds a sign-up for the volunteer on the round.
func Signup(t testing.TB, client *db.Client, roundID uuid.UUID, volunteerID int64, status enums.SignupStatus) models.Signup {
	t.Helper()
	signup := models.Signup{
		ID:            uuid.New(),
		RoundID:       roundID,
		VolunteerID:   volunteerID,
		RequestedRole: "outreach",
		Status:        status,
	}
	require.NoError(t, client.DB().Create(&signup).Error)
	return signup
}

// Assignment seeds an assignment row for the order.
func Assignment(t testing.TB, client *db.Client, orderID uuid.UUID, volunteerID int64, status enums.AssignmentStatus, acceptedAt time.Time) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		ID:          uuid.New(),
		OrderID:     orderID,
		VolunteerID: volunteerID,
		Status:      status,
		AcceptedAt:  acceptedAt.UTC(),
	}
	require.NoError(t, client.DB().Create(&assignment).Error)
	return assignment
}

// Reload fetches the current row for dest by primary key.
func Reload[T any](t testing.TB, client *db.Client, id uuid.UUID) T {
	t.Helper()
	var row T
	require.NoError(t, client.DB().First(&row, "id = ?", id).Error)
	return row
}
