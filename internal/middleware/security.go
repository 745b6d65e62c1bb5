// internal/middleware/security.go
//
// Security-header middleware.
//
// Sets a conservative header set on every API response:
//
//   • Strict-Transport-Security  (2 years, subdomains)
//   • Content-Security-Policy   (deny all; responses are JSON, never HTML)
//   • X-Frame-Options            DENY
//   • X-Content-Type-Options     nosniff
//   • Referrer-Policy            no-referrer
//   • Cache-Control              no-store, tenant data must not be shared
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP; once a handler writes, the
//   header map is frozen.  Handlers may still override any value.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

var securityHeaders = [...][2]string{
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			if h.Get(kv[0]) == "" {
				h.Set(kv[0], kv[1])
			}
		}
		next.ServeHTTP(w, r)
	})
}
