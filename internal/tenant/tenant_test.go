package tenant

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/tenantpoc/internal/config"
	"github.com/yanizio/tenantpoc/internal/database"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		Tenant{ConnectionString: "postgres://main", Provider: "PostgreSQL"},
		map[string]Tenant{
			"globex": {ConnectionString: "globex", Provider: "memory"},
			"acme":   {ConnectionString: "postgres://acme"},
		})
	require.NoError(t, err)
	return reg
}

func TestRegistry(t *testing.T) {
	reg := testRegistry(t)

	assert.Equal(t, []string{"acme", "globex"}, reg.IDs())
	assert.Equal(t, 2, reg.Len())

	acme, ok := reg.Lookup("acme")
	require.True(t, ok)
	assert.Equal(t, "acme", acme.ID)
	assert.Equal(t, "postgres://acme", acme.ConnectionString)

	_, ok = reg.Lookup("ACME")
	assert.False(t, ok, "lookup is case-sensitive")

	main := reg.Main()
	assert.True(t, main.IsMain())
	assert.Equal(t, MainID, main.Name())
}

func TestRegistry_Rejects(t *testing.T) {
	_, err := NewRegistry(Tenant{}, nil)
	assert.Error(t, err, "main needs a connection string")

	_, err = NewRegistry(Tenant{ConnectionString: "x"}, map[string]Tenant{"Main": {ConnectionString: "y"}})
	assert.Error(t, err, "main is reserved")

	_, err = NewRegistry(Tenant{ConnectionString: "x"}, map[string]Tenant{"acme": {}})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Database: config.Database{DefaultConnection: "main-dsn", DefaultProvider: "mysql"},
		Tenants: map[string]config.Tenant{
			"acme": {ConnectionString: "acme-dsn", Provider: "memory"},
		},
	}
	reg, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mysql", reg.Main().Provider)
	acme, ok := reg.Lookup("acme")
	require.True(t, ok)
	assert.Equal(t, "memory", acme.Provider)
}

func TestResolver(t *testing.T) {
	res := NewResolver(testRegistry(t), "")
	assert.Equal(t, DefaultHeader, res.Header())

	got, found := res.Resolve("acme")
	assert.True(t, found)
	assert.Equal(t, "acme", got.ID)

	got, found = res.Resolve("")
	assert.False(t, found)
	assert.True(t, got.IsMain())

	got, found = res.Resolve("initech")
	assert.False(t, found, "unknown tenant falls back to main")
	assert.True(t, got.IsMain())
}

func TestResolveRequest(t *testing.T) {
	res := NewResolver(testRegistry(t), "X-Org")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Org", " globex ")
	got, key, found := res.ResolveRequest(req)
	assert.True(t, found)
	assert.Equal(t, "globex", key)
	assert.Equal(t, "memory", got.Provider)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Tenant-ID", "acme") // wrong header name
	got, key, found = res.ResolveRequest(req)
	assert.False(t, found)
	assert.Empty(t, key)
	assert.True(t, got.IsMain())
}

func TestFactory(t *testing.T) {
	f := NewFactory(database.Options{MaxOpenConns: 2})

	db, err := f.Open(context.Background(), Tenant{ID: "mem", ConnectionString: t.Name(), Provider: "Memory"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.DriverName())
	require.NoError(t, db.Close())

	_, err = f.Open(context.Background(), Tenant{ID: "x", ConnectionString: "x", Provider: "oracle"})
	assert.True(t, errors.Is(err, database.ErrUnsupportedProvider))
}
