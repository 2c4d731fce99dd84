package db

import (
	"context"
	"fmt"
)

// SessionRecord is a row of the sessions table.
type SessionRecord struct {
	SessionID string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

// UpsertSession stores a session row, replacing any existing row with the
// same id.
func (c *CatalogDB) UpsertSession(ctx context.Context, s SessionRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`, s.SessionID, s.UserID, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetValidSession returns the session with the given id if it expires after
// now. Returns sql.ErrNoRows for unknown or expired sessions.
func (c *CatalogDB) GetValidSession(ctx context.Context, sessionID string, now int64) (*SessionRecord, error) {
	var s SessionRecord
	err := c.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, expires_at, created_at
		FROM sessions WHERE session_id = ? AND expires_at > ?
	`, sessionID, now).Scan(&s.SessionID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes a session row.
func (c *CatalogDB) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteSessionsByUserID removes all sessions for a user.
func (c *CatalogDB) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions expiring at or before now.
func (c *CatalogDB) DeleteExpiredSessions(ctx context.Context, now int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	return nil
}

// CountActiveSessions returns the number of unexpired sessions held by a user.
func (c *CatalogDB) CountActiveSessions(ctx context.Context, userID string, now int64) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE user_id = ? AND expires_at > ?
	`, userID, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}
