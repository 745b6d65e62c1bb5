// Package database centralises sqlx connection helpers.  Three drivers are
// registered here: jackc/pgx (PostgreSQL), go-sql-driver/mysql (MySQL and
// MariaDB), and modernc.org/sqlite (the in-memory provider).
//
// Public entry points:
//
//	Open(ctx, provider, dsn)                  – conservative pool sizes.
//	OpenWithOptions(ctx, provider, dsn, opts) – fine-grained control.
//
// Both helpers Ping the database before returning, retrying with
// exponential backoff, so callers can fail fast during bootstrap.  Callers
// should Close() the returned *sqlx.DB when no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Options tunes one pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         uint64        // additional ping attempts after the first
	RetryBackoff    time.Duration // initial interval, doubled per attempt
}

// DefaultOptions is used by Open: 15 max open, 5 idle, 30-minute lifetime,
// and two ping retries.
var DefaultOptions = Options{
	MaxOpenConns:    15,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	Retries:         2,
	RetryBackoff:    500 * time.Millisecond,
}

// Open returns a *sqlx.DB using DefaultOptions.
func Open(ctx context.Context, p Provider, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, p, dsn, DefaultOptions)
}

// OpenWithOptions normalises dsn for p, opens the pool, applies opts, and
// pings until the database answers or the retry budget is spent.
func OpenWithOptions(ctx context.Context, p Provider, dsn string, opts Options) (*sqlx.DB, error) {
	norm, err := NormalizeDSN(p, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(p.DriverName(), norm)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}

	// A shared-cache memory database vanishes with its last connection:
	// keep one idle connection and never recycle it.
	if p == Memory {
		opts.ConnMaxLifetime = 0
		if opts.MaxIdleConns < 1 {
			opts.MaxIdleConns = 1
		}
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := pingWithRetry(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", p, err)
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sqlx.DB, opts Options) error {
	eb := backoff.NewExponentialBackOff()
	if opts.RetryBackoff > 0 {
		eb.InitialInterval = opts.RetryBackoff
	}
	var b backoff.BackOff = backoff.WithMaxRetries(eb, opts.Retries)
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, b)
}
