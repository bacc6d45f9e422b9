package db

import (
	"context"
	"fmt"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"gorm.io/gorm"
)

// sqliteIndexes mirrors the partial unique indexes from the Postgres migrations.
var sqliteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_assignments_active_order
		ON assignments (order_id) WHERE status IN ('accepted', 'in_progress')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_signups_active_volunteer
		ON signups (round_id, volunteer_id) WHERE status <> 'rejected'`,
}

// EnsureSQLiteSchema builds the schema for local sqlite runs and tests.
func EnsureSQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	db := conn.WithContext(ctx)
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate sqlite schema: %w", err)
	}
	for _, stmt := range sqliteIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create sqlite index: %w", err)
		}
	}
	return nil
}
