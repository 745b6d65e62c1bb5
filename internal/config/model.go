// internal/config/model.go
//
// Typed configuration model for tenantpoc.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                             – dotenv values,
//   • `conf/global.yaml`                          – primary static file,
//   • `TENANTPOC_`-prefixed environment overrides – highest precedence.
//
// Any connection string that begins with the prefix `vault:` is resolved
// through a SecretResolver *after* unmarshalling, so the rest of the app
// never sees Vault URIs, only plain DSNs.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool          `koanf:"force_https"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

//
// Tenancy section
//

// Tenancy controls how requests are mapped onto tenants.
//
// Header names the request header carrying the tenant key.  Strict turns
// an unknown tenant key into a 404 instead of the default fallback to the
// main database.
type Tenancy struct {
	Header string `koanf:"header"`
	Strict bool   `koanf:"strict"`
}

//
// Database section
//

// Pool tunes the per-tenant connection pools opened by the HTTP service.
type Pool struct {
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	IdleTTL         time.Duration `koanf:"idle_ttl"`
	MaxEntries      int           `koanf:"max_entries"       validate:"gte=0"`
}

// Database holds the main (non-tenant) connection and pool tunables.
//
// DefaultConnection is used by the main tenant and by any request whose
// tenant key is absent or unknown.
type Database struct {
	DefaultConnection string `koanf:"default_connection" validate:"required"`
	DefaultProvider   string `koanf:"default_provider"`
	Pool              Pool   `koanf:"pool"`
}

//
// Tenants section
//

// Tenant is one entry under `tenants:`.  Provider is optional and defaults
// to PostgreSQL, matching the main database.
type Tenant struct {
	ConnectionString string `koanf:"connection_string" validate:"required"`
	Provider         string `koanf:"provider"`
}

//
// Ancillary sections
//

// GeoIP points at an optional GeoLite2-City database.  Empty disables
// geo lookups.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

// Log controls the file logger.
type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // TENANTPOC_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP              `koanf:"http"`
	Tenancy  Tenancy           `koanf:"tenancy"`
	Database Database          `koanf:"database"`
	Tenants  map[string]Tenant `koanf:"tenants"  validate:"dive,keys,tenant_id,endkeys"`
	GeoIP    GeoIP             `koanf:"geoip"`
	Log      Log               `koanf:"log"`
	Paths    Paths             `koanf:"-"` // not loaded from config files
}

// applyDefaults fills optional fields left empty by YAML and env.
func (c *Config) applyDefaults() {
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if c.Tenancy.Header == "" {
		c.Tenancy.Header = "X-Tenant-ID"
	}
	if c.Database.DefaultProvider == "" {
		c.Database.DefaultProvider = "postgresql"
	}
	p := &c.Database.Pool
	if p.MaxOpenConns == 0 {
		p.MaxOpenConns = 5
	}
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = 2
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = 30 * time.Minute
	}
	if p.IdleTTL == 0 {
		p.IdleTTL = 30 * time.Minute
	}
	if p.MaxEntries == 0 {
		p.MaxEntries = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
