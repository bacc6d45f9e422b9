package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/config"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestNewSQLiteBuildsSchemaWithActiveAssignmentGuard(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, nil)
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	defer client.Close()

	orderID := uuid.New()
	first := models.Assignment{ID: uuid.New(), OrderID: orderID, VolunteerID: 1, Status: enums.AssignmentStatusAccepted, AcceptedAt: time.Now()}
	if err := client.DB().Create(&first).Error; err != nil {
		t.Fatalf("create first assignment: %v", err)
	}

	second := models.Assignment{ID: uuid.New(), OrderID: orderID, VolunteerID: 2, Status: enums.AssignmentStatusAccepted, AcceptedAt: time.Now()}
	err = client.DB().Create(&second).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}

	closed := models.Assignment{ID: uuid.New(), OrderID: orderID, VolunteerID: 3, Status: enums.AssignmentStatusCancelled, AcceptedAt: time.Now()}
	if err := client.DB().Create(&closed).Error; err != nil {
		t.Fatalf("closed assignments should not collide: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
	if !IsUniqueViolation(gorm.ErrDuplicatedKey, "") {
		t.Fatal("expected gorm duplicated key to match")
	}
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_signups_active_volunteer"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "ux_signups_active_volunteer") {
		t.Fatal("expected pg unique violation to match constraint")
	}
	if IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "other_constraint") {
		t.Fatal("constraint mismatch should not match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: assignments.order_id"), "") {
		t.Fatal("expected sqlite message to match")
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unexpected match")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}
