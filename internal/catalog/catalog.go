// Package catalog tracks the serving layouts a ulpsi-server operator
// has built, in a local sqlite database. It is a manifest, not a data
// store: the layouts themselves live as flat files under a data
// directory (internal/ulpsi/wire.go's params.bin/serving_layout.bin);
// the catalog only remembers where each build is and what it was
// built from.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	name        TEXT PRIMARY KEY,
	data_dir    TEXT NOT NULL,
	item_count  INTEGER NOT NULL,
	num_tables  INTEGER NOT NULL,
	built_at    TIMESTAMP NOT NULL
);
`

// Build is one row of the manifest: a named, preprocessed serving
// layout and where it lives on disk.
type Build struct {
	Name      string
	DataDir   string
	ItemCount int
	NumTables int
	BuiltAt   time.Time
}

// Catalog wraps a sqlite connection holding the builds table.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record inserts or replaces a build entry.
func (c *Catalog) Record(b Build) error {
	_, err := c.db.Exec(
		`INSERT INTO builds (name, data_dir, item_count, num_tables, built_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			data_dir=excluded.data_dir,
			item_count=excluded.item_count,
			num_tables=excluded.num_tables,
			built_at=excluded.built_at`,
		b.Name, b.DataDir, b.ItemCount, b.NumTables, b.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("recording build %q: %w", b.Name, err)
	}
	return nil
}

// Get looks up a build by name.
func (c *Catalog) Get(name string) (Build, error) {
	var b Build
	row := c.db.QueryRow(
		`SELECT name, data_dir, item_count, num_tables, built_at FROM builds WHERE name = ?`,
		name,
	)
	if err := row.Scan(&b.Name, &b.DataDir, &b.ItemCount, &b.NumTables, &b.BuiltAt); err != nil {
		return Build{}, fmt.Errorf("looking up build %q: %w", name, err)
	}
	return b, nil
}

// List returns every recorded build, most recently built first.
func (c *Catalog) List() ([]Build, error) {
	rows, err := c.db.Query(
		`SELECT name, data_dir, item_count, num_tables, built_at FROM builds ORDER BY built_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.Name, &b.DataDir, &b.ItemCount, &b.NumTables, &b.BuiltAt); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Remove deletes a build entry. It does not touch the underlying
// files; callers that want to free disk space remove data_dir
// themselves.
func (c *Catalog) Remove(name string) error {
	if _, err := c.db.Exec(`DELETE FROM builds WHERE name = ?`, name); err != nil {
		return fmt.Errorf("removing build %q: %w", name, err)
	}
	return nil
}
