package migrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/database"
	"github.com/yanizio/tenantpoc/internal/metrics"
	"github.com/yanizio/tenantpoc/internal/tenant"
)

// MemorySchemaHook returns a tenant.OpenHook that applies every pending
// migration to memory-provider pools as they open.  An in-memory database
// lives only inside the process holding it, so the migrator CLI can never
// reach the web service's copy.  Other providers pass through untouched.
//
// open must connect to the same database as the pool; for the memory
// provider a second pool on the same name shares the pool's data while
// the pool's pinned connection keeps it alive.
func MemorySchemaHook(open OpenFunc, log *zap.SugaredLogger) tenant.OpenHook {
	if log == nil {
		log = zap.S()
	}
	return func(ctx context.Context, p *tenant.Pool) error {
		if p.Provider != database.Memory {
			return nil
		}
		e, err := open(ctx, p.Tenant)
		if err != nil {
			return fmt.Errorf("open migrate engine: %w", err)
		}
		defer func() { _, _ = e.Close() }()

		err = e.Up()
		status := StatusApplied
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			status = StatusUpToDate
		case err != nil:
			metrics.MigrationRunsTotal.WithLabelValues(string(OpMigrate), string(StatusFailed)).Inc()
			return fmt.Errorf("migrate up: %w", err)
		}
		metrics.MigrationRunsTotal.WithLabelValues(string(OpMigrate), string(status)).Inc()

		v, _, _ := currentVersion(e)
		log.Infow("memory tenant schema ready", "tenant", p.Tenant.Name(), "status", status, "version", v)
		return nil
	}
}
