// internal/config/secrets.go
//
// Vault indirection for connection strings.
//
// Context
// -------
// Operators may keep credentials out of `global.yaml` by writing a
// reference instead of a DSN:
//
//	tenants:
//	  acme:
//	    connection_string: "vault:secret/tenants/acme#dsn"
//
// The part before “#” is the KV-v2 path (first segment is the mount), the
// part after is the key inside the secret.  `ResolveSecrets` swaps every
// reference for the plain value before the tenant registry is built.
//
// Notes
// -----
//   • Called once at boot by both binaries, before any goroutine reads the
//     config, so in-place mutation is safe.
//   • Oxford commas, two spaces after periods.

package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SecretPrefix marks a value that must be fetched from Vault.
const SecretPrefix = "vault:"

// SecretResolver is satisfied by *vault.Client.
type SecretResolver interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

// HasSecrets reports whether any connection string is a Vault reference.
func HasSecrets(c *Config) bool {
	if strings.HasPrefix(c.Database.DefaultConnection, SecretPrefix) {
		return true
	}
	for _, t := range c.Tenants {
		if strings.HasPrefix(t.ConnectionString, SecretPrefix) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every `vault:` reference in c with the secret
// value returned by r.
func ResolveSecrets(ctx context.Context, c *Config, r SecretResolver) error {
	dsn, err := resolveOne(ctx, r, c.Database.DefaultConnection)
	if err != nil {
		return fmt.Errorf("database.default_connection: %w", err)
	}
	c.Database.DefaultConnection = dsn

	for id, t := range c.Tenants {
		dsn, err := resolveOne(ctx, r, t.ConnectionString)
		if err != nil {
			return fmt.Errorf("tenants.%s.connection_string: %w", id, err)
		}
		t.ConnectionString = dsn
		c.Tenants[id] = t
	}
	return nil
}

// ParseSecretRef splits "vault:<path>#<key>" into path and key.
func ParseSecretRef(ref string) (path, key string, err error) {
	rest, ok := strings.CutPrefix(ref, SecretPrefix)
	if !ok {
		return "", "", fmt.Errorf("%q is not a vault reference", ref)
	}
	path, key, ok = strings.Cut(rest, "#")
	if !ok || path == "" || key == "" {
		return "", "", fmt.Errorf("vault reference %q must look like vault:<path>#<key>", ref)
	}
	return path, key, nil
}

func resolveOne(ctx context.Context, r SecretResolver, v string) (string, error) {
	if !strings.HasPrefix(v, SecretPrefix) {
		return v, nil
	}
	if r == nil {
		return "", fmt.Errorf("vault reference found but no vault client configured")
	}
	path, key, err := ParseSecretRef(v)
	if err != nil {
		return "", err
	}
	// TTL 0: boot-time read, nothing to cache.
	return r.GetKV(ctx, path, key, 0)
}
