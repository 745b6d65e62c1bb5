// internal/migrator/service.go
//
// Tenant-aware migration runner.
//
// Context
// -------
// The migration engine (golang-migrate) knows how to move one database
// between schema versions.  This service decides *which* databases to move
// and what happens when one of them fails:
//
//  1. The main database goes first.  If it fails the run stops and the
//     error is returned; tenants are never touched against a broken main.
//  2. Every registered tenant follows, one at a time, in registry order.
//     A tenant failure is logged and recorded, then the loop moves on.
//     One bad tenant never blocks the rest.
//  3. The context is checked between databases.  Cancellation stops the
//     run before the next database starts; the one in flight finishes.
//
// Tenants are selected explicitly through the Resolver, the same path the
// HTTP middleware uses with a header, so both sides agree on connection
// parameters.
//
// Notes
// -----
//   - Rollback targets are validated against the catalog before any
//     database is opened.
//   - Oxford commas, two spaces after periods.
package migrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/metrics"
	"github.com/yanizio/tenantpoc/internal/migrations"
	"github.com/yanizio/tenantpoc/internal/tenant"
)

// Options narrows a run.
type Options struct {
	Tenants  []string // restrict to these tenant IDs; empty means all
	SkipMain bool     // leave the main database alone
}

// Service applies or reverts migrations across the main database and
// every tenant database.
type Service struct {
	reg     *tenant.Registry
	res     *tenant.Resolver
	open    OpenFunc
	catalog *migrations.Catalog
	log     *zap.SugaredLogger
}

// New wires a Service.  catalog must describe the migrations open's
// engines apply.
func New(reg *tenant.Registry, open OpenFunc, catalog *migrations.Catalog, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.S()
	}
	return &Service{
		reg:     reg,
		res:     tenant.NewResolver(reg, ""),
		open:    open,
		catalog: catalog,
		log:     log,
	}
}

// Catalog exposes the migration catalog, e.g. for labelling versions.
func (s *Service) Catalog() *migrations.Catalog { return s.catalog }

// Migrate applies every pending migration.
func (s *Service) Migrate(ctx context.Context, opts Options) (*Report, error) {
	return s.run(ctx, OpMigrate, opts, func(e Engine, res *Result) error {
		s.log.Infow("applying migrations", "tenant", res.Tenant, "from", s.catalog.Label(res.From))
		err := e.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			res.Status = StatusUpToDate
			res.Note = "no pending migrations"
			return nil
		case err != nil:
			return err
		}
		res.Status = StatusApplied
		return nil
	})
}

// Rollback reverts migrations.  With an empty target each database steps
// back to the migration preceding its current one; databases with nothing
// to step back to are skipped.  Otherwise every database is moved to the
// target, which may be a full ID, a bare version, a name, or "0" to
// revert everything.
func (s *Service) Rollback(ctx context.Context, target string, opts Options) (*Report, error) {
	if target == "" {
		return s.run(ctx, OpRollback, opts, s.stepBack)
	}

	version, err := s.catalog.Resolve(target)
	if err != nil {
		return nil, err
	}
	label := s.catalog.Label(version)

	return s.run(ctx, OpRollback, opts, func(e Engine, res *Result) error {
		s.log.Infow("rolling back", "tenant", res.Tenant, "target", label)
		var err error
		if version == 0 {
			err = e.Down()
		} else {
			err = e.Migrate(version)
		}
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			res.Status = StatusUpToDate
			res.Note = "already at " + label
			return nil
		case err != nil:
			return err
		}
		res.Status = StatusApplied
		return nil
	})
}

// Status records each database's version without changing anything.
func (s *Service) Status(ctx context.Context, opts Options) (*Report, error) {
	return s.run(ctx, OpStatus, opts, func(_ Engine, res *Result) error {
		res.Status = StatusChecked
		if latest, ok := s.catalog.Latest(); ok && res.From < latest.Version {
			res.Note = "pending migrations"
		}
		return nil
	})
}

/*──────────────────────────── loop ────────────────────────────────────────*/

type stepFunc func(e Engine, res *Result) error

func (s *Service) run(ctx context.Context, op Operation, opts Options, step stepFunc) (*Report, error) {
	targets, err := s.targets(opts)
	if err != nil {
		return nil, err
	}

	rep := &Report{Operation: op}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			s.log.Warnw("run cancelled", "operation", op, "next", t.Name(), "err", err)
			return rep, err
		}

		res := s.apply(ctx, op, t, step)
		rep.add(res)
		metrics.MigrationRunsTotal.WithLabelValues(string(op), string(res.Status)).Inc()

		if t.IsMain() && res.Status == StatusFailed {
			return rep, fmt.Errorf("main database: %w", res.Err)
		}
	}
	return rep, nil
}

// targets lists the databases of a run: main first, then tenants in
// registry order, narrowed by opts.
func (s *Service) targets(opts Options) ([]tenant.Tenant, error) {
	ids := s.reg.IDs()
	if len(opts.Tenants) > 0 {
		want := make(map[string]struct{}, len(opts.Tenants))
		for _, id := range opts.Tenants {
			if _, ok := s.reg.Lookup(id); !ok {
				return nil, fmt.Errorf("%w: %s", tenant.ErrUnknownTenant, id)
			}
			want[id] = struct{}{}
		}
		filtered := ids[:0]
		for _, id := range ids {
			if _, ok := want[id]; ok {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	out := make([]tenant.Tenant, 0, len(ids)+1)
	if !opts.SkipMain {
		out = append(out, s.reg.Main())
	}
	for _, id := range ids {
		t, _ := s.res.Resolve(id)
		out = append(out, t)
	}
	return out, nil
}

// apply runs step against one database and never returns an error; the
// outcome lives in the Result.
func (s *Service) apply(ctx context.Context, op Operation, t tenant.Tenant, step stepFunc) Result {
	res := Result{Tenant: t.Name(), Operation: op}
	fail := func(err error) Result {
		res.Status = StatusFailed
		res.Err = err
		s.log.Errorw("migration step failed", "operation", op, "tenant", res.Tenant, "err", err)
		return res
	}

	e, err := s.open(ctx, t)
	if err != nil {
		return fail(fmt.Errorf("open: %w", err))
	}
	defer func() {
		if srcErr, dbErr := e.Close(); srcErr != nil || dbErr != nil {
			s.log.Warnw("engine close", "tenant", res.Tenant, "source_err", srcErr, "db_err", dbErr)
		}
	}()

	res.From, res.Dirty, err = currentVersion(e)
	if err != nil {
		return fail(fmt.Errorf("read version: %w", err))
	}

	if err := step(e, &res); err != nil {
		// Record where the database ended up; a failed migration usually
		// leaves it dirty.
		res.To, res.Dirty, _ = currentVersion(e)
		return fail(err)
	}

	res.To, res.Dirty, err = currentVersion(e)
	if err != nil {
		return fail(fmt.Errorf("read version: %w", err))
	}

	s.log.Infow("migration step done",
		"operation", op,
		"tenant", res.Tenant,
		"status", res.Status,
		"from", s.catalog.Label(res.From),
		"to", s.catalog.Label(res.To),
	)
	return res
}

// stepBack moves one database to the migration before its current one.
func (s *Service) stepBack(e Engine, res *Result) error {
	if res.From == 0 {
		res.Status = StatusSkipped
		res.Note = "no applied migrations"
		s.log.Infow("nothing to roll back", "tenant", res.Tenant)
		return nil
	}
	if _, known := s.catalog.Get(res.From); !known {
		return fmt.Errorf("applied version %d is not in the migration catalog", res.From)
	}
	prev, ok := s.catalog.Prev(res.From)
	if !ok {
		res.Status = StatusSkipped
		res.Note = "no previous migration"
		s.log.Infow("no previous migration to roll back to", "tenant", res.Tenant,
			"current", s.catalog.Label(res.From))
		return nil
	}

	s.log.Infow("rolling back", "tenant", res.Tenant, "target", prev.ID())
	if err := e.Migrate(prev.Version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	res.Status = StatusApplied
	return nil
}

// currentVersion maps ErrNilVersion onto version 0.
func currentVersion(e Engine) (uint, bool, error) {
	v, dirty, err := e.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
