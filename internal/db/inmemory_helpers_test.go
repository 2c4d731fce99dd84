package db

import (
	"database/sql"
	"testing"

	"pgregory.net/rapid"
)

// newTestCatalogDB creates a private in-memory catalog database with the full
// schema applied. This mirrors internal/testdb, which cannot be imported here
// without a cycle.
func newTestCatalogDB(t *testing.T) *CatalogDB {
	t.Helper()

	sqlDB, err := sql.Open(SQLiteDriverName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	// A :memory: database lives per-connection; more than one connection
	// would see different empty databases.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			t.Fatalf("failed to apply pragma %q: %v", pragma, err)
		}
	}

	if _, err := sqlDB.Exec(CatalogDBSchema); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	catalog := NewCatalogDBFromSQL(sqlDB)
	if err := catalog.MigrateCatalogDB(); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return catalog
}

func drawUnixEpoch(t *rapid.T, label string) int64 {
	return rapid.Int64Range(946684800, 4102444800).Draw(t, label) // 2000-01-01 .. 2100-01-01 UTC
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
