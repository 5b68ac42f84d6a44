// Package sqlitehistorian is a reference implementation of the
// subscription.EventHistorian hook (spec.md §4.C.5 step 4). It lives
// outside the OPC UA core boundary: the core only ever calls the interface,
// never this package directly. An embedding application wires a *Store in
// when it wants events persisted.
package sqlitehistorian

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// OpenDB opens (or creates) a SQLite database at path with the same
// single-writer pragmas the teacher's own state/cache databases use.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open historian db %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	return db, nil
}
