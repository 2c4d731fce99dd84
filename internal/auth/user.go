// Package auth implements the credential and session core: password hashing
// and verification, the user directory, and server-side session state.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smillett/millettbooks/internal/db"
	"github.com/smillett/millettbooks/internal/errs"
	"github.com/smillett/millettbooks/internal/obs"
)

// Errors
var (
	ErrUserNotFound = errs.New(errs.NotFound, "user not found")
	// ErrInvalidCredentials covers unknown username AND wrong password: the
	// two are never distinguished outward (enumeration hardening).
	ErrInvalidCredentials = errs.New(errs.Unauthenticated, "incorrect username or password")
	ErrAccountExists      = errs.New(errs.FailedPrecondition, "account already exists")
)

// Roles a user can hold. Anything role-like beyond the single admin bit is
// out of scope.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a user account. Authentication state is deliberately not a
// field here: whether a user is logged in is a property of their sessions,
// not of the account record.
type User struct {
	ID             string
	Username       string
	Email          string
	Role           string
	ProfilePicture string
	CreatedAt      time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserService handles signup and login against the user directory.
type UserService struct {
	db     *db.CatalogDB
	hasher PasswordHasher
	clock  Clock
}

// NewUserService creates a new user service with the production hasher.
func NewUserService(catalogDB *db.CatalogDB) *UserService {
	return &UserService{
		db:     catalogDB,
		hasher: NewBcryptHasher(),
		clock:  realClock{},
	}
}

// SetHasher replaces the password hasher. Intended for testing.
func (s *UserService) SetHasher(h PasswordHasher) {
	s.hasher = h
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Signup creates a new account. The route layer has already validated field
// presence and password/confirm equality; this re-rejects an empty password
// (ErrEmptyPassword) as a guard against caller bugs and returns
// ErrAccountExists on duplicate username or email. Nothing is persisted on
// any failure.
func (s *UserService) Signup(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, errs.New(errs.InvalidArgument, "username and email are required")
	}

	cred, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &User{
		ID:        generateUserID(),
		Username:  username,
		Email:     email,
		Role:      RoleUser,
		CreatedAt: now,
	}

	err = s.db.InsertUser(ctx, db.UserRecord{
		UserID:       user.ID,
		Username:     username,
		Email:        email,
		PasswordHash: EncodeCanonical(cred),
		Role:         RoleUser,
		CreatedAt:    now.Unix(),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// Login verifies username/password and returns the principal on success.
// Unknown username and wrong password both return ErrInvalidCredentials. A
// stored credential that fails to decode returns ErrMalformedCredential —
// the route layer renders that identically to ErrInvalidCredentials but it
// is logged here as a data-integrity problem. Login performs no session or
// directory writes on failure.
func (s *UserService) Login(ctx context.Context, username, password string) (*User, error) {
	record, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	cred, err := DecodeStoredCredential(record.PasswordHash)
	if err != nil {
		obs.From(ctx).Error("stored credential failed to decode",
			"user_id", record.UserID, "err", err)
		return nil, err
	}

	if !s.hasher.VerifyPassword(password, cred) {
		return nil, ErrInvalidCredentials
	}

	// Legacy escaped-hex rows are rewritten to canonical form on their next
	// successful login. Best effort: a failed rewrite does not fail the login.
	if canonical := EncodeCanonical(cred); canonical != record.PasswordHash {
		if err := s.db.UpdateUserCredential(ctx, record.UserID, canonical); err != nil {
			obs.From(ctx).Warn("credential rewrite failed",
				"user_id", record.UserID, "err", err)
		}
	}

	return userFromRecord(record), nil
}

// FindByID returns the user with the given id, or ErrUserNotFound.
func (s *UserService) FindByID(ctx context.Context, userID string) (*User, error) {
	record, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return userFromRecord(record), nil
}

func userFromRecord(r *db.UserRecord) *User {
	return &User{
		ID:             r.UserID,
		Username:       r.Username,
		Email:          r.Email,
		Role:           r.Role,
		ProfilePicture: r.ProfilePicture.String,
		CreatedAt:      time.Unix(r.CreatedAt, 0),
	}
}

func generateUserID() string {
	return "user-" + uuid.NewString()
}
