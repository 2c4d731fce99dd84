package db

import (
	"context"
	"database/sql"
	"fmt"
)

// UserRecord is a row of the users table. PasswordHash is the stored
// credential exactly as persisted; decoding legacy encodings is the auth
// layer's job, not this package's.
type UserRecord struct {
	UserID         string
	Username       string
	Email          string
	PasswordHash   string
	ProfilePicture sql.NullString
	Role           string
	CreatedAt      int64
}

// InsertUser inserts a new user row. A UNIQUE violation on username or email
// surfaces as-is; detect it with IsUniqueViolation.
func (c *CatalogDB) InsertUser(ctx context.Context, u UserRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, email, password_hash, profile_picture, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.UserID, u.Username, u.Email, u.PasswordHash, u.ProfilePicture, u.Role, u.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByUsername returns the user with the given username.
// Returns sql.ErrNoRows if no such user exists.
func (c *CatalogDB) GetUserByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return c.scanUser(c.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, password_hash, profile_picture, role, created_at
		FROM users WHERE username = ?
	`, username))
}

// GetUserByID returns the user with the given id.
// Returns sql.ErrNoRows if no such user exists.
func (c *CatalogDB) GetUserByID(ctx context.Context, userID string) (*UserRecord, error) {
	return c.scanUser(c.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, password_hash, profile_picture, role, created_at
		FROM users WHERE user_id = ?
	`, userID))
}

// UpdateUserProfile updates the mutable profile fields of a user.
func (c *CatalogDB) UpdateUserProfile(ctx context.Context, userID string, email string, profilePicture sql.NullString) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE users SET email = ?, profile_picture = ? WHERE user_id = ?
	`, email, profilePicture, userID)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// UpdateUserCredential replaces the stored credential for a user. Used to
// rewrite legacy escaped-hex rows into canonical form after a successful
// verification.
func (c *CatalogDB) UpdateUserCredential(ctx context.Context, userID, passwordHash string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ? WHERE user_id = ?
	`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update user credential: %w", err)
	}
	return nil
}

// DeleteUser removes a user row. Sessions referencing the user become
// orphans; session resolution treats those as anonymous.
func (c *CatalogDB) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (c *CatalogDB) scanUser(row *sql.Row) (*UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePicture, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
