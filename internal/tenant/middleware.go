// internal/tenant/middleware.go
//
// Chi middleware that selects the tenant database for a request.
//
// Context
// -------
// The tenant key travels in a request header (X-Tenant-ID by default).
// The middleware resolves it, fetches the cached pool, and stores the pool
// in request.Context where handlers pick it up with FromContext.
//
//	no header            → main database
//	known key            → that tenant's database
//	unknown key          → main database, or 404 when strict
//	pool cannot be opened → 503
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package tenant

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/database"
)

// Middleware resolves the request's tenant and attaches its pool.
func Middleware(res *Resolver, pools *Pools, strict bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, key, found := res.ResolveRequest(r)
			if key != "" && !found {
				if strict {
					http.Error(w, "unknown tenant", http.StatusNotFound)
					return
				}
				zap.L().Debug("unknown tenant key, using main database",
					zap.String("key", key))
			}

			pool, err := pools.Get(r.Context(), t)
			if err != nil {
				if errors.Is(err, database.ErrUnsupportedProvider) {
					zap.L().Error("tenant provider unsupported",
						zap.String("tenant", t.Name()), zap.Error(err))
					http.Error(w, http.StatusText(http.StatusInternalServerError),
						http.StatusInternalServerError)
					return
				}
				http.Error(w, http.StatusText(http.StatusServiceUnavailable),
					http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPool(r.Context(), pool)))
		})
	}
}
