// Package db provides the SQLite-backed catalog store: user accounts,
// sessions, books, genres, reviews, and bookshelf rows.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultDataDirectory is the default root directory for the database file
	DefaultDataDirectory = "./data"

	// CatalogDBName is the filename for the catalog database
	CatalogDBName = "catalog.db"

	// MaxOpenConns is the maximum number of open connections.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns = 2
)

var (
	// DataDirectory is the actual data directory being used (can be overridden for tests)
	DataDirectory = DefaultDataDirectory
)

var (
	catalogDB     *sql.DB
	catalogDBOnce sync.Once
	catalogDBErr  error
)

// CatalogDB wraps the sql.DB connection for the catalog database.
type CatalogDB struct {
	db *sql.DB
}

// NewCatalogDBFromSQL wraps an existing sql.DB as CatalogDB.
func NewCatalogDBFromSQL(sqlDB *sql.DB) *CatalogDB {
	return &CatalogDB{db: sqlDB}
}

// DB returns the underlying sql.DB for direct access when needed
func (c *CatalogDB) DB() *sql.DB {
	return c.db
}

// OpenCatalogDB opens the shared catalog database. The connection is cached
// as a singleton and reused across calls.
func OpenCatalogDB() (*CatalogDB, error) {
	catalogDBOnce.Do(func() {
		if err := os.MkdirAll(DataDirectory, 0750); err != nil {
			catalogDBErr = fmt.Errorf("failed to create data directory: %w", err)
			return
		}

		dbPath := filepath.Join(DataDirectory, CatalogDBName)
		dsn := appendSQLiteParams(dbPath, sqliteCommonParams())

		db, err := sql.Open(SQLiteDriverName, dsn)
		if err != nil {
			catalogDBErr = fmt.Errorf("failed to open catalog database: %w", err)
			return
		}

		db.SetMaxOpenConns(MaxOpenConns)
		db.SetMaxIdleConns(MaxIdleConns)

		if err := db.Ping(); err != nil {
			db.Close()
			catalogDBErr = fmt.Errorf("failed to ping catalog database: %w", err)
			return
		}

		if _, err := db.Exec(CatalogDBSchema); err != nil {
			db.Close()
			catalogDBErr = fmt.Errorf("failed to initialize catalog schema: %w", err)
			return
		}

		if err := NewCatalogDBFromSQL(db).MigrateCatalogDB(); err != nil {
			db.Close()
			catalogDBErr = fmt.Errorf("failed to migrate catalog schema: %w", err)
			return
		}

		catalogDB = db
	})

	if catalogDBErr != nil {
		return nil, catalogDBErr
	}

	return NewCatalogDBFromSQL(catalogDB), nil
}

// MigrateCatalogDB applies idempotent schema migrations to an existing
// database. SQLite ADD COLUMN errors if the column exists, so that specific
// error is caught and ignored.
func (c *CatalogDB) MigrateCatalogDB() error {
	statements := strings.Split(CatalogDBMigrations, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := c.db.Exec(stmt)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CloseAll closes the shared database connection.
// This should be called during graceful shutdown.
func CloseAll() error {
	if catalogDB != nil {
		if err := catalogDB.Close(); err != nil {
			return fmt.Errorf("failed to close catalog database: %w", err)
		}
		catalogDB = nil
	}
	return nil
}

// ResetForTesting resets all internal state for clean test isolation.
func ResetForTesting() {
	CloseAll()
	catalogDBOnce = sync.Once{}
	catalogDB = nil
	catalogDBErr = nil
}

func sqliteCommonParams() string {
	// Production-safe defaults: WAL + NORMAL provides good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// Close closes the CatalogDB connection. Only needed for in-memory databases
// that are not cached by the package.
func (c *CatalogDB) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
