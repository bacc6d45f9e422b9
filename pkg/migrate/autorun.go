package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/streetmed-backend/pkg/config"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when AutoMigrate is
// set. sqlite builds its schema on connect and is skipped.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate || cfg.DB.Driver == config.DriverSQLite {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := Open(sqlDB, "", logg)
	if err != nil {
		return err
	}

	pending, err := runner.Pending(ctx)
	if err != nil {
		return fmt.Errorf("checking pending migrations: %w", err)
	}
	if !pending {
		logg.Debug(ctx, "schema up to date")
		return nil
	}

	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "applying embedded migrations (dev auto-run)")
	return runner.Up(ctx)
}
