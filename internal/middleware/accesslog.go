// internal/middleware/accesslog.go
//
// Structured access log and request counter.
//
// One INFO line per request with method, route pattern, status, bytes,
// duration, request ID, and tenant key.  The route pattern (not the raw
// path) labels http_requests_total so IDs in URLs never explode metric
// cardinality.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/metrics"
)

// AccessLog logs every request through log and counts it.  tenantHeader
// names the header whose value is copied into the log line.
func AccessLog(log *zap.Logger, tenantHeader string) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.L()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			metrics.HTTPRequestsTotal.
				WithLabelValues(route, r.Method, strconv.Itoa(status)).
				Inc()

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("tenant", r.Header.Get(tenantHeader)),
			)
		})
	}
}

// routePattern returns the matched chi pattern, or "unmatched".
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
