package sqlitehistorian

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const historianMigrationsPath = "migrations/historian"

//go:embed migrations/historian/*.sql
var migrationsFS embed.FS

// migrateDB applies every pending historian migration, the same
// iofs-source/sqlite-driver pairing the teacher uses for state.db/cache.db.
func migrateDB(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate historian: nil db")
	}

	sourceDriver, err := iofs.New(migrationsFS, historianMigrationsPath)
	if err != nil {
		return fmt.Errorf("migrate historian: init source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate historian: init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate historian: init migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate historian: up: %w", err)
	}
	return nil
}
