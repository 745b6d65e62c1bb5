// internal/app/boot.go
//
// Shared start-up sequence for cmd/web and cmd/migrator.
//
//  1. Console logger so early failures are visible.
//  2. Load config (dotenv, global.yaml, TENANTPOC_ env).
//  3. Switch to the rotating file logger (tee to console on a TTY).
//  4. Resolve `vault:` connection strings when any are present; the Vault
//     client keeps logging to the file logger for token renewal.
//  5. Build the tenant registry and the connection factory.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/config"
	"github.com/yanizio/tenantpoc/internal/database"
	"github.com/yanizio/tenantpoc/internal/logger"
	"github.com/yanizio/tenantpoc/internal/tenant"
	"github.com/yanizio/tenantpoc/internal/vault"
)

// Env is everything a binary needs after boot.
type Env struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Registry *tenant.Registry
	Factory  *tenant.Factory
}

// Boot runs the start-up sequence.  name prefixes the log file.
func Boot(ctx context.Context, name string) (*Env, error) {
	logger.Bootstrap()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return BootWith(ctx, name, cfg)
}

// BootWith is Boot with an already loaded config.
func BootWith(ctx context.Context, name string, cfg *config.Config) (*Env, error) {
	log, err := logger.New(logger.Options{
		Dir:   cfg.Log.Dir,
		Name:  name,
		Level: cfg.Log.Level,
		Tee:   logger.IsTTY(),
	})
	if err != nil {
		return nil, err
	}

	if config.HasSecrets(cfg) {
		vc, err := vault.New(ctx, log.Named("vault"))
		if err != nil {
			return nil, err
		}
		if err := config.ResolveSecrets(ctx, cfg, vc); err != nil {
			return nil, err
		}
	}

	reg, err := tenant.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("tenant registry: %w", err)
	}
	log.Infow("tenants registered", "count", reg.Len(), "ids", reg.IDs())

	p := cfg.Database.Pool
	opts := database.DefaultOptions
	opts.MaxOpenConns = p.MaxOpenConns
	opts.MaxIdleConns = p.MaxIdleConns
	opts.ConnMaxLifetime = p.ConnMaxLifetime

	return &Env{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Factory:  tenant.NewFactory(opts),
	}, nil
}
