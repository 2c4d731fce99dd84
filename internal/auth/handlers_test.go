package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func setupHandlerTest(t *testing.T) (*http.ServeMux, *UserService, *SessionService) {
	t.Helper()
	users, sessions, _, _ := setupAuthTest(t)

	mux := http.NewServeMux()
	NewHandler(users, sessions).RegisterRoutes(mux)
	return mux, users, sessions
}

func postForm(mux *http.ServeMux, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestHandleSignup_CreatesAccount(t *testing.T) {
	mux, users, _ := setupHandlerTest(t)

	rec := postForm(mux, "/signup", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"Sw0rdfish!"},
		"confirm_password": {"Sw0rdfish!"},
	})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/login" {
		t.Fatalf("expected redirect to /login, got %q", got)
	}

	if _, err := users.Login(context.Background(), "alice", "Sw0rdfish!"); err != nil {
		t.Fatalf("account should exist after signup: %v", err)
	}
}

func TestHandleSignup_PasswordMismatch(t *testing.T) {
	mux, users, _ := setupHandlerTest(t)

	rec := postForm(mux, "/signup", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"one"},
		"confirm_password": {"two"},
	})
	if got := rec.Header().Get("Location"); got != "/signup?error=mismatch" {
		t.Fatalf("expected mismatch redirect, got %q", got)
	}

	if _, err := users.Login(context.Background(), "alice", "one"); err == nil {
		t.Fatal("mismatched signup should not create an account")
	}
}

func TestHandleSignup_DuplicateAccount(t *testing.T) {
	mux, users, _ := setupHandlerTest(t)

	if _, err := users.Signup(context.Background(), "alice", "alice@example.com", "pw"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	rec := postForm(mux, "/signup", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"pw"},
		"confirm_password": {"pw"},
	})
	if got := rec.Header().Get("Location"); got != "/signup?error=exists" {
		t.Fatalf("expected exists redirect, got %q", got)
	}
}

func TestHandleLogin_SetsSessionCookie(t *testing.T) {
	mux, users, sessions := setupHandlerTest(t)
	ctx := context.Background()

	created, err := users.Signup(ctx, "alice", "alice@example.com", "Sw0rdfish!")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	rec := postForm(mux, "/login", url.Values{
		"username": {"alice"},
		"password": {"Sw0rdfish!"},
	})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/" {
		t.Fatalf("expected redirect to /, got %q", got)
	}

	cookie := sessionCookie(t, rec)
	user, err := sessions.Resolve(ctx, cookie.Value)
	if err != nil {
		t.Fatalf("cookie token should resolve: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("cookie resolves to wrong user: %s", user.ID)
	}
}

// TestHandleLogin_GenericFailure verifies unknown username and wrong
// password are indistinguishable from outside.
func TestHandleLogin_GenericFailure(t *testing.T) {
	mux, users, _ := setupHandlerTest(t)

	if _, err := users.Signup(context.Background(), "alice", "alice@example.com", "right"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	unknown := postForm(mux, "/login", url.Values{
		"username": {"nobody"},
		"password": {"right"},
	})
	wrong := postForm(mux, "/login", url.Values{
		"username": {"alice"},
		"password": {"wrong"},
	})

	if unknown.Code != wrong.Code {
		t.Fatalf("status differs: unknown=%d wrong=%d", unknown.Code, wrong.Code)
	}
	if unknown.Header().Get("Location") != wrong.Header().Get("Location") {
		t.Fatalf("redirect differs: unknown=%q wrong=%q",
			unknown.Header().Get("Location"), wrong.Header().Get("Location"))
	}
	if got := wrong.Header().Get("Location"); got != "/login?error=invalid" {
		t.Fatalf("expected generic invalid redirect, got %q", got)
	}
}

func TestHandleLogin_ReturnTo(t *testing.T) {
	mux, users, _ := setupHandlerTest(t)

	if _, err := users.Signup(context.Background(), "alice", "alice@example.com", "pw"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	rec := postForm(mux, "/login?return_to=%2Fshelf", url.Values{
		"username": {"alice"},
		"password": {"pw"},
	})
	if got := rec.Header().Get("Location"); got != "/shelf" {
		t.Fatalf("expected redirect to /shelf, got %q", got)
	}

	// Off-site targets fall back to the home page.
	rec = postForm(mux, "/login?return_to=https%3A%2F%2Fevil.example", url.Values{
		"username": {"alice"},
		"password": {"pw"},
	})
	if got := rec.Header().Get("Location"); got != "/" {
		t.Fatalf("off-site return_to should fall back to /, got %q", got)
	}
}

func TestHandleLogout_DestroysSession(t *testing.T) {
	mux, users, sessions := setupHandlerTest(t)
	ctx := context.Background()

	created, err := users.Signup(ctx, "alice", "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	token, err := sessions.Create(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := postForm(mux, "/logout", url.Values{}, &http.Cookie{Name: SessionCookieName, Value: token})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}

	if _, err := sessions.Resolve(ctx, token); err == nil {
		t.Fatal("token should be dead after logout")
	}
	if c := sessionCookie(t, rec); c.MaxAge >= 0 {
		t.Fatalf("logout should clear the cookie, got MaxAge %d", c.MaxAge)
	}

	authed, err := sessions.Authenticated(ctx, created.ID)
	if err != nil {
		t.Fatalf("Authenticated failed: %v", err)
	}
	if authed {
		t.Fatal("user still authenticated after logout")
	}
}

func TestMiddleware_RequireAuth(t *testing.T) {
	users, sessions, _, _ := setupAuthTest(t)
	ctx := context.Background()

	created, err := users.Signup(ctx, "alice", "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	token, err := sessions.Create(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mw := NewMiddleware(sessions)
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			t.Fatal("no user in context behind RequireAuth")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shelf", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no cookie: expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/shelf", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid cookie: expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_RequireAdmin(t *testing.T) {
	users, sessions, catalog, _ := setupAuthTest(t)
	ctx := context.Background()

	created, err := users.Signup(ctx, "alice", "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	token, err := sessions.Create(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mw := NewMiddleware(sessions)
	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("plain user: expected 403, got %d", rec.Code)
	}

	if _, err := catalog.DB().ExecContext(ctx,
		"UPDATE users SET role = ? WHERE user_id = ?", RoleAdmin, created.ID); err != nil {
		t.Fatalf("promote to admin: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_RequireAuthWithRedirect(t *testing.T) {
	_, sessions, _, _ := setupAuthTest(t)

	mw := NewMiddleware(sessions)
	handler := mw.RequireAuthWithRedirect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shelf", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?return_to=%2Fshelf" {
		t.Fatalf("expected login redirect preserving path, got %q", got)
	}
}
