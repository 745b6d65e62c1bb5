// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
Sits after request ID and recovery, before the tenant middleware.  For
every request it:

  1. Parses the User-Agent header and Accept-Language list.
  2. Extracts the left-most client IP from X-Forwarded-For or X-Real-IP,
     falling back to r.RemoteAddr.
  3. Performs a GeoLite2 lookup when a database is configured.
  4. Stores a *RequestInfo in request.Context.

At debug level each invocation logs client IP, country, browser, device,
bot flag, and path.

Notes
-----
  • Oxford commas, two spaces after periods.  No em dash.
*/
package requestinfo

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Enrich returns a middleware that attaches *RequestInfo.  geo may be nil.
func Enrich(geo *GeoDB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := &RequestInfo{
				UA:        ParseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
				Geo:       geo.Lookup(clientIP(r)),
				Timestamp: time.Now().UTC(),
			}

			if ce := zap.L().Check(zap.DebugLevel, "request info"); ce != nil {
				ce.Write(
					zap.Stringer("ip", info.Geo.IP),
					zap.String("country", info.Geo.CountryISO),
					zap.String("browser", info.UA.Browser),
					zap.String("device", info.UA.Device),
					zap.Bool("bot", info.UA.IsBot),
					zap.String("path", r.URL.Path),
				)
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return nil
}
