package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/smillett/millettbooks/internal/db/testutil"
)

func insertTestUser(t *testing.T, catalog *CatalogDB, userID, username string) {
	t.Helper()
	err := catalog.InsertUser(context.Background(), UserRecord{
		UserID:       userID,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         "user",
		CreatedAt:    1700000000,
	})
	if err != nil {
		t.Fatalf("InsertUser(%q) failed: %v", username, err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		username := testutil.ValidUsername().Draw(rt, "username")
		userID := "user-" + username
		hash := testutil.ArbitraryNonEmptyString().Draw(rt, "hash")
		createdAt := drawUnixEpoch(rt, "createdAt")

		err := catalog.InsertUser(ctx, UserRecord{
			UserID:       userID,
			Username:     username,
			Email:        username + "@example.com",
			PasswordHash: hash,
			Role:         "user",
			CreatedAt:    createdAt,
		})
		if IsUniqueViolation(err) {
			// rapid may redraw the same username across iterations
			return
		}
		if err != nil {
			rt.Fatalf("InsertUser failed: %v", err)
		}

		byName, err := catalog.GetUserByUsername(ctx, username)
		if err != nil {
			rt.Fatalf("GetUserByUsername failed: %v", err)
		}
		if byName.UserID != userID || byName.PasswordHash != hash || byName.CreatedAt != createdAt {
			rt.Fatalf("round trip mismatch: got %+v", byName)
		}

		byID, err := catalog.GetUserByID(ctx, userID)
		if err != nil {
			rt.Fatalf("GetUserByID failed: %v", err)
		}
		if byID.Username != username {
			rt.Fatalf("GetUserByID returned username %q, want %q", byID.Username, username)
		}
	})
}

func TestUserUniqueConstraints(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()

	insertTestUser(t, catalog, "user-1", "alice")

	// Same username, different email
	err := catalog.InsertUser(ctx, UserRecord{
		UserID: "user-2", Username: "alice", Email: "other@example.com",
		PasswordHash: "x", Role: "user", CreatedAt: 1,
	})
	if !IsUniqueViolation(err) {
		t.Fatalf("duplicate username: expected unique violation, got %v", err)
	}

	// Same email, different username
	err = catalog.InsertUser(ctx, UserRecord{
		UserID: "user-3", Username: "bob", Email: "alice@example.com",
		PasswordHash: "x", Role: "user", CreatedAt: 1,
	})
	if !IsUniqueViolation(err) {
		t.Fatalf("duplicate email: expected unique violation, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()

	if _, err := catalog.GetUserByUsername(ctx, "ghost"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if _, err := catalog.GetUserByID(ctx, "user-ghost"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpdateUserCredential(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()
	insertTestUser(t, catalog, "user-1", "alice")

	if err := catalog.UpdateUserCredential(ctx, "user-1", "$2b$12$rewritten"); err != nil {
		t.Fatalf("UpdateUserCredential failed: %v", err)
	}

	user, err := catalog.GetUserByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.PasswordHash != "$2b$12$rewritten" {
		t.Fatalf("credential not rewritten: %q", user.PasswordHash)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()
	insertTestUser(t, catalog, "user-1", "alice")

	pic := sql.NullString{String: "covers/alice.png", Valid: true}
	if err := catalog.UpdateUserProfile(ctx, "user-1", "new@example.com", pic); err != nil {
		t.Fatalf("UpdateUserProfile failed: %v", err)
	}

	user, err := catalog.GetUserByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.Email != "new@example.com" || user.ProfilePicture != pic {
		t.Fatalf("profile not updated: %+v", user)
	}
}

func TestSessionValidityWindow(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()
	insertTestUser(t, catalog, "user-1", "alice")

	rapid.Check(t, func(rt *rapid.T) {
		sessionID := rapid.StringMatching("[a-zA-Z0-9_-]{43}").Draw(rt, "sessionID")
		createdAt := drawUnixEpoch(rt, "createdAt")
		lifetime := rapid.Int64Range(1, 86400*30).Draw(rt, "lifetime")
		expiresAt := createdAt + lifetime

		err := catalog.UpsertSession(ctx, SessionRecord{
			SessionID: sessionID,
			UserID:    "user-1",
			ExpiresAt: expiresAt,
			CreatedAt: createdAt,
		})
		if err != nil {
			rt.Fatalf("UpsertSession failed: %v", err)
		}

		// Strictly before expiry: valid
		if _, err := catalog.GetValidSession(ctx, sessionID, expiresAt-1); err != nil {
			rt.Fatalf("session should be valid before expiry: %v", err)
		}
		// At expiry: gone (expires_at > now is strict)
		if _, err := catalog.GetValidSession(ctx, sessionID, expiresAt); !errors.Is(err, sql.ErrNoRows) {
			rt.Fatalf("session at expiry instant should be invalid, got %v", err)
		}

		if err := catalog.DeleteSession(ctx, sessionID); err != nil {
			rt.Fatalf("DeleteSession failed: %v", err)
		}
	})
}

func TestCountActiveSessions(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()
	insertTestUser(t, catalog, "user-1", "alice")
	insertTestUser(t, catalog, "user-2", "bob")

	now := int64(1700000000)
	for i := 0; i < 3; i++ {
		err := catalog.UpsertSession(ctx, SessionRecord{
			SessionID: fmt.Sprintf("sess-alice-%d", i),
			UserID:    "user-1",
			ExpiresAt: now + 3600,
			CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("UpsertSession failed: %v", err)
		}
	}
	// One expired row that must not count
	err := catalog.UpsertSession(ctx, SessionRecord{
		SessionID: "sess-alice-old", UserID: "user-1", ExpiresAt: now - 1, CreatedAt: now - 7200,
	})
	if err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	count, err := catalog.CountActiveSessions(ctx, "user-1", now)
	if err != nil {
		t.Fatalf("CountActiveSessions failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 active sessions, got %d", count)
	}

	count, err = catalog.CountActiveSessions(ctx, "user-2", now)
	if err != nil {
		t.Fatalf("CountActiveSessions failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 sessions for bob, got %d", count)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()
	insertTestUser(t, catalog, "user-1", "alice")

	now := int64(1700000000)
	sessions := []SessionRecord{
		{SessionID: "live", UserID: "user-1", ExpiresAt: now + 100, CreatedAt: now},
		{SessionID: "edge", UserID: "user-1", ExpiresAt: now, CreatedAt: now - 100},
		{SessionID: "dead", UserID: "user-1", ExpiresAt: now - 100, CreatedAt: now - 200},
	}
	for _, s := range sessions {
		if err := catalog.UpsertSession(ctx, s); err != nil {
			t.Fatalf("UpsertSession(%s) failed: %v", s.SessionID, err)
		}
	}

	if err := catalog.DeleteExpiredSessions(ctx, now); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}

	// expires_at <= now is deleted, so only "live" remains
	count, err := catalog.CountActiveSessions(ctx, "user-1", now-1000)
	if err != nil {
		t.Fatalf("CountActiveSessions failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 surviving session, got %d", count)
	}
}

func TestDeleteSessionsByUserID(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()
	insertTestUser(t, catalog, "user-1", "alice")
	insertTestUser(t, catalog, "user-2", "bob")

	now := int64(1700000000)
	for _, s := range []SessionRecord{
		{SessionID: "a1", UserID: "user-1", ExpiresAt: now + 100, CreatedAt: now},
		{SessionID: "a2", UserID: "user-1", ExpiresAt: now + 100, CreatedAt: now},
		{SessionID: "b1", UserID: "user-2", ExpiresAt: now + 100, CreatedAt: now},
	} {
		if err := catalog.UpsertSession(ctx, s); err != nil {
			t.Fatalf("UpsertSession failed: %v", err)
		}
	}

	if err := catalog.DeleteSessionsByUserID(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteSessionsByUserID failed: %v", err)
	}

	aliceCount, _ := catalog.CountActiveSessions(ctx, "user-1", now)
	bobCount, _ := catalog.CountActiveSessions(ctx, "user-2", now)
	if aliceCount != 0 {
		t.Fatalf("alice should have no sessions, got %d", aliceCount)
	}
	if bobCount != 1 {
		t.Fatalf("bob's session should survive, got %d", bobCount)
	}
}

func TestUpsertSessionReplaces(t *testing.T) {
	catalog := newTestCatalogDB(t)
	ctx := context.Background()
	insertTestUser(t, catalog, "user-1", "alice")

	now := int64(1700000000)
	if err := catalog.UpsertSession(ctx, SessionRecord{
		SessionID: "sess", UserID: "user-1", ExpiresAt: now + 100, CreatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}
	if err := catalog.UpsertSession(ctx, SessionRecord{
		SessionID: "sess", UserID: "user-1", ExpiresAt: now + 9999, CreatedAt: now,
	}); err != nil {
		t.Fatalf("second UpsertSession failed: %v", err)
	}

	s, err := catalog.GetValidSession(ctx, "sess", now)
	if err != nil {
		t.Fatalf("GetValidSession failed: %v", err)
	}
	if s.ExpiresAt != now+9999 {
		t.Fatalf("upsert did not replace expiry: got %d", s.ExpiresAt)
	}
}
