// Package metrics holds Prometheus instruments that are used across the
// service and the migrator.  All collectors are registered with the global
// registry, so importing this package in main.go is enough to expose them
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTenantPools = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tenant_pools",
			Help: "Number of tenant connection pools currently open.",
		})

	TenantPoolOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_open_total",
			Help: "Cumulative number of tenant pools successfully opened.",
		})

	TenantPoolErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_errors_total",
			Help: "Cumulative number of tenant pool open errors.",
		})

	TenantEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_evict_total",
			Help: "Cumulative number of tenant pools evicted from the cache.",
		})

	MigrationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_runs_total",
			Help: "Per-database migration outcomes by operation and status.",
		}, []string{"operation", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern, method, and status code.",
		}, []string{"route", "method", "code"})
)

func init() {
	prometheus.MustRegister(
		ActiveTenantPools,
		TenantPoolOpenTotal,
		TenantPoolErrorsTotal,
		TenantEvictTotal,
		MigrationRunsTotal,
		HTTPRequestsTotal,
	)
}
