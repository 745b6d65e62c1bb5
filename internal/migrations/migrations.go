// Package migrations embeds the schema history and indexes it.
//
// One directory per SQL dialect (postgres, mysql, sqlite) holds
// golang-migrate style files:
//
//	<version>_<name>.up.sql
//	<version>_<name>.down.sql
//
// Every dialect carries the same versions; only the SQL differs.  A
// migration is addressed by its ID, "<version>_<name>", e.g.
// "20241202062205_initial2".
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
)

//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var FS embed.FS

// Dialects lists the embedded directories.
var Dialects = []string{"postgres", "mysql", "sqlite"}

// ErrUnknownMigration is returned when a target matches no migration.
var ErrUnknownMigration = errors.New("unknown migration")

// Migration is one versioned schema change.
type Migration struct {
	Version uint
	Name    string
}

// ID returns "<version>_<name>".
func (m Migration) ID() string {
	return strconv.FormatUint(uint64(m.Version), 10) + "_" + m.Name
}

// Catalog is the ordered list of migrations in one dialect directory.
type Catalog struct {
	list []Migration
}

// Load indexes dir inside fsys.  Files that do not follow the naming
// scheme are rejected so a typo never silently drops a migration.
func Load(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	seen := make(map[uint]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m, err := source.Parse(e.Name())
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", dir, e.Name(), err)
		}
		if prev, ok := seen[m.Version]; ok && prev != m.Identifier {
			return nil, fmt.Errorf("%s: version %d used by %q and %q", dir, m.Version, prev, m.Identifier)
		}
		seen[m.Version] = m.Identifier
	}

	c := &Catalog{list: make([]Migration, 0, len(seen))}
	for v, name := range seen {
		c.list = append(c.list, Migration{Version: v, Name: name})
	}
	sort.Slice(c.list, func(i, j int) bool { return c.list[i].Version < c.list[j].Version })
	return c, nil
}

// Embedded loads the catalog of one embedded dialect.
func Embedded(dialect string) (*Catalog, error) {
	return Load(FS, dialect)
}

// All returns a copy of the ordered migrations.
func (c *Catalog) All() []Migration {
	out := make([]Migration, len(c.list))
	copy(out, c.list)
	return out
}

// Latest returns the newest migration, false when the catalog is empty.
func (c *Catalog) Latest() (Migration, bool) {
	if len(c.list) == 0 {
		return Migration{}, false
	}
	return c.list[len(c.list)-1], true
}

// Get returns the migration with the given version.
func (c *Catalog) Get(version uint) (Migration, bool) {
	i := sort.Search(len(c.list), func(i int) bool { return c.list[i].Version >= version })
	if i < len(c.list) && c.list[i].Version == version {
		return c.list[i], true
	}
	return Migration{}, false
}

// Prev returns the migration applied just before version, false when
// version is the first one or unknown.
func (c *Catalog) Prev(version uint) (Migration, bool) {
	i := sort.Search(len(c.list), func(i int) bool { return c.list[i].Version >= version })
	if i >= len(c.list) || c.list[i].Version != version || i == 0 {
		return Migration{}, false
	}
	return c.list[i-1], true
}

// Label renders version for humans: its ID when known, "none" for zero.
func (c *Catalog) Label(version uint) string {
	if version == 0 {
		return "none"
	}
	if m, ok := c.Get(version); ok {
		return m.ID()
	}
	return strconv.FormatUint(uint64(version), 10)
}

// Resolve maps a user-supplied target onto a version.  Accepted forms are
// the full ID ("20241202062205_initial2"), the bare version, or the name
// alone (case-insensitive).  "0" resolves to version 0, meaning "revert
// everything".
func (c *Catalog) Resolve(target string) (uint, error) {
	target = strings.TrimSpace(target)
	if target == "0" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(target, 10, 64); err == nil {
		if m, ok := c.Get(uint(n)); ok {
			return m.Version, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrUnknownMigration, target)
	}
	for _, m := range c.list {
		if strings.EqualFold(m.ID(), target) || strings.EqualFold(m.Name, target) {
			return m.Version, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownMigration, target)
}
