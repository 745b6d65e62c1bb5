package migrations

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDialectsShareVersions(t *testing.T) {
	base, err := Embedded("postgres")
	require.NoError(t, err)
	require.Len(t, base.All(), 3)

	for _, d := range Dialects {
		c, err := Embedded(d)
		require.NoError(t, err, d)
		assert.Equal(t, base.All(), c.All(), d)
	}
}

func TestCatalogOrderAndNavigation(t *testing.T) {
	c, err := Embedded("postgres")
	require.NoError(t, err)

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, "20241202092144_initial3", latest.ID())

	prev, ok := c.Prev(latest.Version)
	require.True(t, ok)
	assert.Equal(t, "20241202062205_initial2", prev.ID())

	first := c.All()[0]
	_, ok = c.Prev(first.Version)
	assert.False(t, ok, "first migration has no predecessor")

	_, ok = c.Prev(42)
	assert.False(t, ok)

	assert.Equal(t, "none", c.Label(0))
	assert.Equal(t, "20241202061510_initial", c.Label(first.Version))
	assert.Equal(t, "7", c.Label(7))
}

func TestCatalogResolve(t *testing.T) {
	c, err := Embedded("sqlite")
	require.NoError(t, err)

	tests := map[string]uint{
		"20241202062205_initial2": 20241202062205,
		"20241202062205":          20241202062205,
		"Initial2":                20241202062205,
		"initial":                 20241202061510,
		"0":                       0,
	}
	for in, want := range tests {
		got, err := c.Resolve(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"initial9", "123", ""} {
		_, err := c.Resolve(bad)
		assert.True(t, errors.Is(err, ErrUnknownMigration), bad)
	}
}

func TestLoadRejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"x/1_a.up.sql":   {Data: []byte("SELECT 1;")},
		"x/notes.txt":    {Data: []byte("hello")},
		"x/1_a.down.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := Load(fsys, "x")
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"x/1_a.up.sql": {Data: []byte("SELECT 1;")},
		"x/1_b.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := Load(fsys, "x")
	assert.Error(t, err)
}
