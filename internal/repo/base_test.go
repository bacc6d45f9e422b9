package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	withoutCtx := base.DB(nil)
	if withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseWithTxKeepsConnectionOnNil(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	if base.WithTx(nil).db != db {
		t.Fatal("nil tx should keep original connection")
	}
	tx := db.Begin()
	defer tx.Rollback()
	if base.WithTx(tx).db != tx {
		t.Fatal("expected tx to be bound")
	}
}

func TestLockedQueryRunsOnSQLite(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	if err := db.Create(&widget{ID: 1, Name: "a"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got widget
	if err := base.Locked(context.Background()).First(&got, 1).Error; err != nil {
		t.Fatalf("locked select should run on sqlite: %v", err)
	}
	if got.Name != "a" {
		t.Fatalf("unexpected row %+v", got)
	}

	stmt := ForUpdate(db.Session(&gorm.Session{DryRun: true})).First(&widget{}).Statement
	if _, ok := stmt.Clauses["FOR"]; !ok {
		t.Fatalf("expected FOR clause on statement, got %v", stmt.Clauses)
	}
}
