package auth

import (
	"context"
	"net/http"
	"net/url"
)

// Context keys for auth data
type contextKey string

const userKey contextKey = "user"

// Middleware provides authentication middleware for HTTP handlers.
type Middleware struct {
	sessions *SessionService
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(sessions *SessionService) *Middleware {
	return &Middleware{sessions: sessions}
}

// RequireAuth is middleware that requires a valid session.
// Returns 401 Unauthorized if no valid session is present.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.resolve(w, r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAuthWithRedirect requires a valid session and redirects browsers to
// the login page, preserving the original path as return_to.
func (m *Middleware) RequireAuthWithRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.resolve(w, r)
		if !ok {
			http.Redirect(w, r, "/login?return_to="+url.QueryEscape(r.URL.Path), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAdmin requires a valid session belonging to an admin user.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.resolve(w, r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !user.IsAdmin() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// OptionalAuth adds the user to context if a valid session is present.
// Continues with or without a session.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := m.resolve(w, r); ok {
			r = r.WithContext(withUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// resolve maps the request's session cookie to a user. A session whose
// principal was deleted clears the stale cookie so the browser ends up
// cleanly logged out.
func (m *Middleware) resolve(w http.ResponseWriter, r *http.Request) (*User, bool) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return nil, false
	}
	user, err := m.sessions.Resolve(r.Context(), token)
	if err != nil {
		m.sessions.ClearCookie(w)
		return nil, false
	}
	return user, true
}

func withUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
// Returns nil if no user is authenticated.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userKey).(*User)
	return user
}

// IsAuthenticated checks if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return UserFromContext(ctx) != nil
}
