// internal/database/provider.go
//
// Database providers and DSN normalisation.
//
// Context
// -------
// Every tenant names a provider next to its connection string.  The
// provider decides three things: which database/sql driver opens the
// pool, how the connection string is massaged before use, and which
// migration dialect directory applies.
//
//	provider     driver   dialect    accepted spellings
//	postgresql   pgx      postgres   postgresql, postgres, pgx
//	mysql        mysql    mysql      mysql, mariadb
//	memory       sqlite   sqlite     memory, inmemory, sqlite
//
// Notes
// -----
// • Parsing is case-insensitive; an empty name means PostgreSQL.
// • Oxford commas, two spaces after periods.
package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Provider identifies a supported database backend.
type Provider string

const (
	PostgreSQL Provider = "postgresql"
	MySQL      Provider = "mysql"
	Memory     Provider = "memory"
)

// ErrUnsupportedProvider is returned for provider names we cannot open.
var ErrUnsupportedProvider = errors.New("unsupported database provider")

// ParseProvider maps a configured provider name onto a Provider.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgresql", "postgres", "pgx":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "memory", "inmemory", "sqlite":
		return Memory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}

// DriverName returns the database/sql driver registered for p.
func (p Provider) DriverName() string {
	switch p {
	case MySQL:
		return "mysql"
	case Memory:
		return "sqlite"
	default:
		return "pgx"
	}
}

// Dialect names the migration directory used for p.
func (p Provider) Dialect() string {
	switch p {
	case MySQL:
		return "mysql"
	case Memory:
		return "sqlite"
	default:
		return "postgres"
	}
}

// NormalizeDSN rewrites dsn into the form the provider's driver expects.
//
//   - mysql: parseTime and multiStatements are forced on; migration files
//     carry more than one statement.
//   - memory: a bare name becomes a shared-cache in-memory database so
//     every connection in the pool sees the same data.
func NormalizeDSN(p Provider, dsn string) (string, error) {
	switch p {
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.MultiStatements = true
		return cfg.FormatDSN(), nil
	case Memory:
		if strings.HasPrefix(dsn, "file:") {
			return dsn, nil
		}
		name := strings.TrimSpace(dsn)
		if name == "" {
			name = "main"
		}
		return "file:" + name + "?mode=memory&cache=shared", nil
	default:
		return dsn, nil
	}
}
