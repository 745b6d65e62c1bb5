// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `Load()` calls `validateStruct` immediately after it unmarshals the
// merged Koanf tree into a `Config` instance.  Any tag mismatch or
// validation error aborts startup, so neither binary ever runs with
// partial, malformed, or missing configuration.
//
// Besides the built-in rules we register `tenant_id`, applied to the keys
// of the `tenants:` map.  Tenant keys travel in HTTP headers and log
// lines, so they are restricted to a conservative alphabet.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var (
	v          = validator.New()
	tenantIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,62}$`)
)

func init() {
	_ = v.RegisterValidation("tenant_id", func(fl validator.FieldLevel) bool {
		return ValidTenantID(fl.Field().String())
	})
}

//
// public API
//

// ValidTenantID reports whether id is acceptable as a tenant key.  Dots
// are rejected; koanf uses "." as its key delimiter.
func ValidTenantID(id string) bool {
	return tenantIDRe.MatchString(id)
}

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
