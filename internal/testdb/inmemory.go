// Package testdb provides in-memory database fixtures for tests.
package testdb

import (
	"database/sql"
	"fmt"

	"github.com/smillett/millettbooks/internal/db"
)

// NewCatalogDBInMemory creates an in-memory catalog database with the full
// schema applied. Each call gets a private database; close it when done.
func NewCatalogDBInMemory() (*db.CatalogDB, error) {
	sqlDB, err := sql.Open(db.SQLiteDriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory catalog database: %w", err)
	}

	// A :memory: database lives per-connection; more than one connection
	// would see different empty databases.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping in-memory catalog database: %w", err)
	}

	if err := applyFastSQLitePragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply fast SQLite pragmas: %w", err)
	}

	if _, err := sqlDB.Exec(db.CatalogDBSchema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize in-memory catalog schema: %w", err)
	}

	catalog := db.NewCatalogDBFromSQL(sqlDB)
	if err := catalog.MigrateCatalogDB(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate in-memory catalog schema: %w", err)
	}

	return catalog, nil
}

func applyFastSQLitePragmas(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
