package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	dbpkg "github.com/yanizio/tenantpoc/internal/database"
	"github.com/yanizio/tenantpoc/internal/migrations"
	"github.com/yanizio/tenantpoc/internal/tenant"
)

// Engine is the slice of *migrate.Migrate the service drives.
type Engine interface {
	Up() error
	Down() error
	Migrate(version uint) error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

var _ Engine = (*migrate.Migrate)(nil)

// OpenFunc returns an Engine bound to one tenant database.
type OpenFunc func(ctx context.Context, t tenant.Tenant) (Engine, error)

// NewOpener returns the production OpenFunc.  Each call opens a dedicated
// pool through factory, wraps it in the golang-migrate driver matching the
// tenant's provider, and pairs it with the embedded dialect directory.
func NewOpener(factory tenant.Opener, fsys fs.FS) OpenFunc {
	return func(ctx context.Context, t tenant.Tenant) (Engine, error) {
		p, err := dbpkg.ParseProvider(t.Provider)
		if err != nil {
			return nil, err
		}

		db, err := factory.Open(ctx, t)
		if err != nil {
			return nil, err
		}

		drv, err := driverFor(p, db.DB)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s migrate driver: %w", p, err)
		}

		src, err := iofs.New(fsys, p.Dialect())
		if err != nil {
			_ = drv.Close()
			_ = db.Close()
			return nil, fmt.Errorf("migration source %s: %w", p.Dialect(), err)
		}

		m, err := migrate.NewWithInstance("iofs", src, p.Dialect(), drv)
		if err != nil {
			_ = src.Close()
			_ = drv.Close()
			_ = db.Close()
			return nil, fmt.Errorf("migrate instance: %w", err)
		}
		m.Log = migrateLogger{log: zap.S().With("tenant", t.Name())}
		return &engine{migrateInstance: m, db: db.DB}, nil
	}
}

// DefaultOpener uses the embedded migrations.
func DefaultOpener(factory tenant.Opener) OpenFunc {
	return NewOpener(factory, migrations.FS)
}

func driverFor(p dbpkg.Provider, db *sql.DB) (database.Driver, error) {
	switch p {
	case dbpkg.MySQL:
		return migratemysql.WithInstance(db, &migratemysql.Config{})
	case dbpkg.Memory:
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		return migratepgx.WithInstance(db, &migratepgx.Config{})
	}
}

// migrateInstance aliases *migrate.Migrate so the embedded field is not
// named Migrate, which would shadow the promoted Migrate(uint) method.
type migrateInstance = migrate.Migrate

// engine closes the pool it owns after the migrate instance.
type engine struct {
	*migrateInstance
	db *sql.DB
}

func (e *engine) Close() (error, error) {
	srcErr, dbErr := e.migrateInstance.Close()
	// Some drivers close the *sql.DB themselves; a second Close is a no-op.
	_ = e.db.Close()
	return srcErr, dbErr
}

// migrateLogger routes golang-migrate's progress lines into zap at debug.
type migrateLogger struct {
	log *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(strings.TrimSpace(format), v...)
}

func (l migrateLogger) Verbose() bool {
	return l.log.Desugar().Core().Enabled(zap.DebugLevel)
}
