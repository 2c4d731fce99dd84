package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smillett/millettbooks/internal/db"
	"github.com/smillett/millettbooks/internal/errs"
)

// Session errors
var (
	ErrSessionNotFound = errs.New(errs.Unauthenticated, "session not found")
	// ErrUnknownPrincipal reports a live session whose user no longer
	// exists. Callers treat it as anonymous; the orphan row is deleted.
	ErrUnknownPrincipal = errs.New(errs.Unauthenticated, "session principal no longer exists")
)

// Session configuration
const (
	// RememberedSessionDuration applies when the user checks "remember me":
	// the cookie and the session row survive browser restarts.
	RememberedSessionDuration = 30 * 24 * time.Hour
	// DefaultSessionDuration applies otherwise; the cookie is a browser
	// session cookie and the row expires server-side.
	DefaultSessionDuration = 12 * time.Hour

	SessionIDLength   = 32 // 256 bits
	SessionCookieName = "session_id"
)

// SessionService manages server-side authentication state. A user is
// authenticated exactly when they hold an unexpired session row; there is no
// durable flag on the user record.
type SessionService struct {
	db     *db.CatalogDB
	users  *UserService
	clock  Clock
	secure bool

	defaultDuration    time.Duration
	rememberedDuration time.Duration
}

// NewSessionService creates a new session service. secure controls the
// Secure attribute on cookies; disable it only for localhost development.
func NewSessionService(catalogDB *db.CatalogDB, users *UserService, secure bool) *SessionService {
	return &SessionService{
		db:                 catalogDB,
		users:              users,
		clock:              realClock{},
		secure:             secure,
		defaultDuration:    DefaultSessionDuration,
		rememberedDuration: RememberedSessionDuration,
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *SessionService) SetClock(c Clock) {
	s.clock = c
}

// SetDurations overrides the session lifetimes, normally from config.
func (s *SessionService) SetDurations(defaultDuration, rememberedDuration time.Duration) {
	s.defaultDuration = defaultDuration
	s.rememberedDuration = rememberedDuration
}

// Create establishes a session for a user and returns the token to store in
// the cookie. remember selects the 30-day durable lifetime over the 12-hour
// default. Concurrent logins each get their own row; last writer wins is
// acceptable and no partial state is possible since a session is one row.
func (s *SessionService) Create(ctx context.Context, userID string, remember bool) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}

	now := s.clock.Now()
	duration := s.defaultDuration
	if remember {
		duration = s.rememberedDuration
	}

	err = s.db.UpsertSession(ctx, db.SessionRecord{
		SessionID: sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(duration).Unix(),
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return sessionID, nil
}

// Resolve maps a session token to its principal. Unknown or expired tokens
// return ErrSessionNotFound. A valid token whose user has been deleted
// returns ErrUnknownPrincipal after removing the orphan row; the caller
// treats both cases as anonymous.
func (s *SessionService) Resolve(ctx context.Context, sessionID string) (*User, error) {
	session, err := s.db.GetValidSession(ctx, sessionID, s.clock.Now().Unix())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = s.db.DeleteSession(ctx, sessionID)
			return nil, ErrUnknownPrincipal
		}
		return nil, err
	}

	return user, nil
}

// Destroy removes a session (logout). Destroying an already-absent session
// is not an error.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	if err := s.db.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DestroyAllForUser removes every session a user holds.
func (s *SessionService) DestroyAllForUser(ctx context.Context, userID string) error {
	if err := s.db.DeleteSessionsByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// Authenticated reports whether the user currently holds at least one
// unexpired session. This is the observable login state: true after a
// successful login, false after logout.
func (s *SessionService) Authenticated(ctx context.Context, userID string) (bool, error) {
	count, err := s.db.CountActiveSessions(ctx, userID, s.clock.Now().Unix())
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Cleanup removes all expired sessions.
// This should be called periodically by a background goroutine.
func (s *SessionService) Cleanup(ctx context.Context) error {
	if err := s.db.DeleteExpiredSessions(ctx, s.clock.Now().Unix()); err != nil {
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return nil
}

// Cookie helpers

// SetCookie sets the session cookie on the response. With remember the
// cookie carries a MaxAge and survives browser restarts; without it the
// cookie lives only for the browser session.
func (s *SessionService) SetCookie(w http.ResponseWriter, sessionID string, remember bool) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.MaxAge = int(s.rememberedDuration.Seconds())
	}
	http.SetCookie(w, cookie)
}

// ClearCookie removes the session cookie.
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1, // Delete immediately
	})
}

// TokenFromRequest retrieves the session token from the request cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
