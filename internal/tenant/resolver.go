package tenant

import (
	"net/http"
	"strings"
)

// DefaultHeader carries the tenant key on API requests.
const DefaultHeader = "X-Tenant-ID"

// Resolver maps a tenant key onto connection parameters.  The key comes
// from a request header (HTTP path) or is passed explicitly (migrator).
type Resolver struct {
	reg    *Registry
	header string
}

// NewResolver returns a Resolver reading header; empty means DefaultHeader.
func NewResolver(reg *Registry, header string) *Resolver {
	if header == "" {
		header = DefaultHeader
	}
	return &Resolver{reg: reg, header: header}
}

// Resolve returns the tenant registered under id.  An empty or unknown id
// falls back to the main tenant; found is false in that case.
func (r *Resolver) Resolve(id string) (t Tenant, found bool) {
	if id != "" {
		if t, ok := r.reg.Lookup(id); ok {
			return t, true
		}
	}
	return r.reg.Main(), false
}

// ResolveRequest reads the tenant key from the request header and resolves
// it.  The raw key is returned so callers can tell "no header" from
// "unknown tenant".
func (r *Resolver) ResolveRequest(req *http.Request) (t Tenant, key string, found bool) {
	key = strings.TrimSpace(req.Header.Get(r.header))
	t, found = r.Resolve(key)
	return t, key, found
}

// Header returns the request header name.
func (r *Resolver) Header() string { return r.header }
