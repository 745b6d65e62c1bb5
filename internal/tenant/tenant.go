// internal/tenant/tenant.go
//
// Tenant registry.
//
// Context
// -------
// A tenant is a logical customer partition with its own database.  The
// registry is built once from configuration and never changes for the
// lifetime of the process:
//
//	database.default_connection   → the main tenant (ID "")
//	tenants.<id>.connection_string → one entry per tenant
//
// The main tenant is the default database, distinct from every per-tenant
// database.  It is shown as "main" in logs and reports, so no configured
// tenant may use that key.
//
// Notes
// -----
//   - IDs() is sorted; configuration maps are unordered and the migrator
//     must walk tenants in a stable order.
//   - Provider names are kept verbatim here and parsed by the factory, so
//     a bad provider only fails the tenant that uses it.
//   - Oxford commas, two spaces after periods.
package tenant

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yanizio/tenantpoc/internal/config"
)

// MainID is the display name of the main tenant.
const MainID = "main"

// ErrUnknownTenant is returned when an explicitly requested tenant is not
// registered.
var ErrUnknownTenant = errors.New("unknown tenant")

// Tenant carries the connection parameters of one database.
type Tenant struct {
	ID               string // empty for the main tenant
	ConnectionString string
	Provider         string
}

// IsMain reports whether t is the main tenant.
func (t Tenant) IsMain() bool { return t.ID == "" }

// Name returns the ID, or MainID for the main tenant.
func (t Tenant) Name() string {
	if t.IsMain() {
		return MainID
	}
	return t.ID
}

// Registry is the immutable tenant list.
type Registry struct {
	main    Tenant
	tenants map[string]Tenant
	ids     []string
}

// NewRegistry validates and indexes tenants.  The map key wins over any
// ID set inside the value.
func NewRegistry(main Tenant, tenants map[string]Tenant) (*Registry, error) {
	if main.ConnectionString == "" {
		return nil, errors.New("main tenant has no connection string")
	}
	main.ID = ""

	r := &Registry{
		main:    main,
		tenants: make(map[string]Tenant, len(tenants)),
		ids:     make([]string, 0, len(tenants)),
	}
	for id, t := range tenants {
		if id == "" || strings.EqualFold(id, MainID) {
			return nil, fmt.Errorf("tenant key %q is reserved", id)
		}
		if t.ConnectionString == "" {
			return nil, fmt.Errorf("tenant %s has no connection string", id)
		}
		t.ID = id
		r.tenants[id] = t
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r, nil
}

// FromConfig builds the registry from the loaded configuration.
func FromConfig(cfg *config.Config) (*Registry, error) {
	tenants := make(map[string]Tenant, len(cfg.Tenants))
	for id, t := range cfg.Tenants {
		tenants[id] = Tenant{ConnectionString: t.ConnectionString, Provider: t.Provider}
	}
	return NewRegistry(Tenant{
		ConnectionString: cfg.Database.DefaultConnection,
		Provider:         cfg.Database.DefaultProvider,
	}, tenants)
}

// IDs returns every tenant ID in lexical order.  The main tenant is not
// included.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Lookup returns the tenant registered under id.
func (r *Registry) Lookup(id string) (Tenant, bool) {
	t, ok := r.tenants[id]
	return t, ok
}

// Main returns the main tenant.
func (r *Registry) Main() Tenant { return r.main }

// Len reports the number of registered tenants, main excluded.
func (r *Registry) Len() int { return len(r.ids) }
