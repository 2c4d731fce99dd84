package db

import (
	"database/sql"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the project-specific driver registration.
	// go-sqlcipher registers plain "sqlite3" itself; a dedicated name keeps
	// us from colliding with any other sqlite package linked into tests.
	SQLiteDriverName = "sqlite3_millettbooks"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{})
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure
// (duplicate username, email, or ISBN).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
