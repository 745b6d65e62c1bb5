package tenant

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/tenantpoc/internal/database"
)

// Opener builds a connection pool for one tenant.  *Factory is the
// production implementation; tests substitute their own.
type Opener interface {
	Open(ctx context.Context, t Tenant) (*sqlx.DB, error)
}

// Factory turns resolved tenant parameters into a provider-specific pool.
// Each call opens a fresh pool; the HTTP path goes through Pools instead.
type Factory struct {
	opts database.Options
}

// NewFactory returns a Factory applying opts to every pool it opens.
func NewFactory(opts database.Options) *Factory {
	return &Factory{opts: opts}
}

// Open parses the tenant's provider and opens a pinged pool.  Unknown
// providers fail with database.ErrUnsupportedProvider.
func (f *Factory) Open(ctx context.Context, t Tenant) (*sqlx.DB, error) {
	p, err := database.ParseProvider(t.Provider)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", t.Name(), err)
	}
	db, err := database.OpenWithOptions(ctx, p, t.ConnectionString, f.opts)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", t.Name(), err)
	}
	return db, nil
}
