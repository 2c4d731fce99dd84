package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/smillett/millettbooks/internal/errs"
	"github.com/smillett/millettbooks/internal/logutil"
	"github.com/smillett/millettbooks/internal/obs"
)

// Handler provides HTTP handlers for the authentication form posts. Pages
// themselves (GET /login, GET /signup) are rendered by the web layer;
// failures here redirect back with an error code the page translates into
// copy, so no internal detail ever reaches the browser.
type Handler struct {
	users    *UserService
	sessions *SessionService
}

// NewHandler creates a new auth handler.
func NewHandler(users *UserService, sessions *SessionService) *Handler {
	return &Handler{users: users, sessions: sessions}
}

// RegisterRoutes registers the auth form routes on the given mux. The
// optional middleware wraps signup and login (the credential-guessing
// surface) but not logout.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, credentialLimit ...func(http.Handler) http.Handler) {
	wrap := func(handler http.HandlerFunc) http.Handler {
		var wrapped http.Handler = handler
		for _, mw := range credentialLimit {
			wrapped = mw(wrapped)
		}
		return wrapped
	}
	mux.Handle("POST /signup", wrap(h.HandleSignup))
	mux.Handle("POST /login", wrap(h.HandleLogin))
	mux.HandleFunc("POST /logout", h.HandleLogout)
}

// HandleSignup processes the signup form. Field presence and
// password/confirm equality are validated here at the boundary — the user
// service never sees confirm_password.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	if username == "" || email == "" || password == "" {
		redirectWithError(w, r, "/signup", "missing")
		return
	}
	if password != confirm {
		redirectWithError(w, r, "/signup", "mismatch")
		return
	}

	_, err := h.users.Signup(r.Context(), username, email, password)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			redirectWithError(w, r, "/signup", "exists")
			return
		}
		obs.From(r.Context()).Error("signup failed", "err", err,
			"form", logutil.RedactFormForLog(r.PostForm))
		redirectWithError(w, r, "/signup", "internal")
		return
	}

	// Account created; the user logs in explicitly, as the original flow did.
	http.Redirect(w, r, "/login", http.StatusFound)
}

// HandleLogin processes the login form. Unknown username, wrong password,
// and an undecodable stored credential all redirect with the same generic
// error code; the last is additionally logged as a data-integrity problem.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	remember := r.PostFormValue("remember") != ""

	if username == "" || password == "" {
		redirectWithError(w, r, "/login", "invalid")
		return
	}

	user, err := h.users.Login(r.Context(), username, password)
	if err != nil {
		if errs.IsCode(err, errs.MalformedCredential) {
			// Already logged by the service; outwardly identical to a
			// wrong password.
			redirectWithError(w, r, "/login", "invalid")
			return
		}
		if errors.Is(err, ErrInvalidCredentials) {
			redirectWithError(w, r, "/login", "invalid")
			return
		}
		obs.From(r.Context()).Error("login failed", "err", err,
			"form", logutil.RedactFormForLog(r.PostForm))
		redirectWithError(w, r, "/login", "internal")
		return
	}

	token, err := h.sessions.Create(r.Context(), user.ID, remember)
	if err != nil {
		obs.From(r.Context()).Error("session create failed", "err", err)
		redirectWithError(w, r, "/login", "internal")
		return
	}
	h.sessions.SetCookie(w, token, remember)

	http.Redirect(w, r, safeReturnTo(r.FormValue("return_to")), http.StatusFound)
}

// HandleLogout destroys the current session and clears the cookie. Logout
// without a session is a no-op redirect.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token, err := TokenFromRequest(r); err == nil {
		if err := h.sessions.Destroy(r.Context(), token); err != nil {
			obs.From(r.Context()).Error("session destroy failed", "err", err)
		}
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, code string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(code), http.StatusFound)
}

// safeReturnTo only allows same-site absolute paths as post-login redirect
// targets, never full URLs.
func safeReturnTo(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}
