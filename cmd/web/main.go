// cmd/web/main.go
//
// tenantpoc HTTP entry point.
//
// Request life-cycle
// ------------------
//
//  1. Boot: config, Vault secrets, rotating logger, tenant registry.
//
//  2. Build the pool cache (lazy-opens each tenant database on first hit,
//     evicts on idle TTL or LRU pressure).  Memory-provider databases are
//     migrated to the latest schema when their pool opens.
//
//  3. Router middleware, outermost first:
//
//     • request ID and panic recovery  (chi)
//     • ForceHTTPS                     (when http.force_https)
//     • request info                   (UA + optional GeoLite2)
//     • access log + request counter
//     • security headers
//
//  4. Routes:
//
//     • /metrics           Prometheus
//     • /healthz           pings the main database
//     • /weatherforecast   tenant middleware → forecast handlers
//
//  5. Serve until SIGINT or SIGTERM, then drain and close every pool.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/app"
	"github.com/yanizio/tenantpoc/internal/forecast"
	"github.com/yanizio/tenantpoc/internal/middleware"
	"github.com/yanizio/tenantpoc/internal/migrator"
	"github.com/yanizio/tenantpoc/internal/requestinfo"
	"github.com/yanizio/tenantpoc/internal/server"
	"github.com/yanizio/tenantpoc/internal/tenant"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.Boot(ctx, "web")
	if err != nil {
		zap.S().Fatalw("boot failed", "err", err)
	}
	defer func() { _ = zap.L().Sync() }()
	cfg := env.Config

	//
	// ── 1.  Pools and resolver ─────────────────────────────────────────
	//
	pools := newPools(env)
	defer pools.Close()
	resolver := tenant.NewResolver(env.Registry, cfg.Tenancy.Header)

	geo, err := requestinfo.OpenGeo(cfg.GeoIP.DBPath)
	if err != nil {
		env.Log.Warnw("geoip disabled", "err", err)
	}
	defer geo.Close()

	//
	// ── 2.  Router ─────────────────────────────────────────────────────
	//
	r := newRouter(env, resolver, pools, geo)

	//
	// ── 3.  Serve ──────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r)
	if err := server.Run(ctx, srv, cfg.HTTP.ShutdownTimeout); err != nil {
		env.Log.Errorw("http server", "err", err)
		stop()
		_ = zap.L().Sync()
		os.Exit(1)
	}
	env.Log.Infow("http server stopped")
}

// newPools builds the pool cache.  Memory-provider databases exist only in
// this process, so they are migrated as their pool opens.
func newPools(env *app.Env) *tenant.Pools {
	p := env.Config.Database.Pool
	hook := migrator.MemorySchemaHook(migrator.DefaultOpener(env.Factory), env.Log)
	return tenant.NewPools(env.Factory, p.IdleTTL, p.MaxEntries, env.Log, tenant.WithOpenHook(hook))
}

func newRouter(env *app.Env, resolver *tenant.Resolver, pools *tenant.Pools, geo *requestinfo.GeoDB) chi.Router {
	cfg := env.Config
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.Recoverer,
		middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS),
		requestinfo.Enrich(geo),
		middleware.AccessLog(env.Log.Desugar(), resolver.Header()),
		middleware.Security,
	)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", health(env.Registry, pools))

	r.Route(forecast.BasePath, func(r chi.Router) {
		r.Use(tenant.Middleware(resolver, pools, cfg.Tenancy.Strict))
		r.Mount("/", forecast.NewHandler().Routes())
	})
	return r
}

// health reports 200 when the main database answers a ping.
func health(reg *tenant.Registry, pools *tenant.Pools) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		p, err := pools.Get(ctx, reg.Main())
		if err == nil {
			err = p.DB.PingContext(ctx)
		}
		if err != nil {
			zap.S().Warnw("health check failed", "err", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
