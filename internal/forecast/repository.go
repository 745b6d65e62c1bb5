// internal/forecast/repository.go
//
// Query helpers for the `forecasts` table.
//
// Context
// -------
// The same table lives in PostgreSQL, MySQL, and SQLite tenant databases.
// Queries are built with squirrel so the placeholder style follows the
// provider ($1 for PostgreSQL, ? otherwise), and inserts read the new id
// the way each engine supports it:
//
//	postgresql, memory  INSERT … RETURNING id
//	mysql               LastInsertId()
//
// Notes
// -----
//   - A Repository is cheap; handlers build one per request around the
//     tenant pool found in request.Context.
//   - Errors are returned verbatim, except sql.ErrNoRows which becomes
//     ErrNotFound.
package forecast

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/tenantpoc/internal/database"
)

// ErrNotFound is returned when no forecast has the requested id.
var ErrNotFound = errors.New("forecast not found")

const table = "forecasts"

var columns = []string{"id", "date", "temperature_c", "summary"}

// Repository reads and writes forecasts in one tenant database.
type Repository struct {
	db       *sqlx.DB
	provider database.Provider
	sb       sq.StatementBuilderType
}

// NewRepository binds a Repository to db.
func NewRepository(db *sqlx.DB, p database.Provider) *Repository {
	ph := sq.PlaceholderFormat(sq.Question)
	if p == database.PostgreSQL {
		ph = sq.Dollar
	}
	return &Repository{db: db, provider: p, sb: sq.StatementBuilder.PlaceholderFormat(ph)}
}

// List returns every forecast ordered by date.
func (r *Repository) List(ctx context.Context) ([]Forecast, error) {
	q, args, err := r.sb.Select(columns...).From(table).OrderBy("date", "id").ToSql()
	if err != nil {
		return nil, err
	}
	out := make([]Forecast, 0, 8)
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	return out, nil
}

// Get returns one forecast.
func (r *Repository) Get(ctx context.Context, id int64) (Forecast, error) {
	q, args, err := r.sb.Select(columns...).From(table).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return Forecast{}, err
	}
	var f Forecast
	if err := r.db.GetContext(ctx, &f, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Forecast{}, ErrNotFound
		}
		return Forecast{}, fmt.Errorf("get forecast %d: %w", id, err)
	}
	return f, nil
}

// Create inserts f and sets f.ID.
func (r *Repository) Create(ctx context.Context, f *Forecast) error {
	ins := r.sb.Insert(table).
		Columns("date", "temperature_c", "summary").
		Values(f.Date, f.TemperatureC, f.Summary)

	if r.provider == database.MySQL {
		q, args, err := ins.ToSql()
		if err != nil {
			return err
		}
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("insert forecast: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert forecast: %w", err)
		}
		f.ID = id
		return nil
	}

	q, args, err := ins.Suffix("RETURNING id").ToSql()
	if err != nil {
		return err
	}
	if err := r.db.QueryRowxContext(ctx, q, args...).Scan(&f.ID); err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

// Delete removes one forecast.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	q, args, err := r.sb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("delete forecast %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete forecast %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
