package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/smillett/millettbooks/internal/auth"
	"github.com/smillett/millettbooks/internal/catalog"
	"github.com/smillett/millettbooks/internal/covers"
	"github.com/smillett/millettbooks/internal/errs"
	"github.com/smillett/millettbooks/internal/obs"
	"github.com/smillett/millettbooks/internal/urlutil"
)

// WebHandler provides HTTP handlers for the site pages.
type WebHandler struct {
	renderer   *Renderer
	books      *catalog.Service
	coverStore *covers.Store
	baseURL    string
}

// NewWebHandler creates a new web handler.
func NewWebHandler(renderer *Renderer, books *catalog.Service, coverStore *covers.Store, baseURL string) *WebHandler {
	return &WebHandler{
		renderer:   renderer,
		books:      books,
		coverStore: coverStore,
		baseURL:    baseURL,
	}
}

// RegisterRoutes registers all page routes on the given mux.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	// Public pages
	mux.Handle("GET /", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleHome)))
	mux.Handle("GET /books", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleBrowse)))
	mux.Handle("GET /books/{id}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleBookDetail)))
	mux.Handle("GET /search", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleSearch)))

	// Auth pages (HTML only - POST routes are registered by internal/auth/handlers.go)
	mux.HandleFunc("GET /signup", h.HandleSignupPage)
	mux.HandleFunc("GET /login", h.HandleLoginPage)

	// Member pages and actions
	mux.Handle("GET /shelf", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleShelf)))
	mux.Handle("POST /books/{id}/reviews", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleAddReview)))
	mux.Handle("POST /books/{id}/shelf", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleSetShelf)))
	mux.Handle("POST /books/{id}/shelf/remove", authMiddleware.RequireAuthWithRedirect(http.HandlerFunc(h.HandleRemoveShelf)))

	// Admin
	mux.Handle("POST /admin/books/{id}/cover", authMiddleware.RequireAdmin(http.HandlerFunc(h.HandleUploadCover)))
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title        string
	User         *auth.User
	FlashMessage string
	FlashType    string // "success", "error", "info"
	Error        string
}

// BookView pairs a book with its resolved cover URL for display.
type BookView struct {
	catalog.Book
	CoverURL string
}

// HomeData contains data for the home page.
type HomeData struct {
	PageData
	Featured []BookView
}

// BrowseData contains data for the catalog browse page.
type BrowseData struct {
	PageData
	Books      []BookView
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// BookDetailData contains data for the book page.
type BookDetailData struct {
	PageData
	Book          BookView
	Genre         *catalog.Genre
	Reviews       []catalog.Review
	AverageRating float64
	ReviewCount   int64
	OnShelf       bool
	ShelfStatus   string
	CanonicalURL  string
}

// SearchData contains data for the search results page.
type SearchData struct {
	PageData
	Query   string
	Results []BookView
}

// ShelfData contains data for the user's bookshelf page.
type ShelfData struct {
	PageData
	Entries []ShelfEntryView
}

// ShelfEntryView pairs a shelf entry with its resolved cover URL.
type ShelfEntryView struct {
	catalog.ShelfEntry
	CoverURL string
}

// AuthPageData contains data for the login and signup pages.
type AuthPageData struct {
	PageData
	ReturnTo string
}

// Handler implementations

// HandleHome handles GET / - the home page with featured books. Any other
// path falls through to this handler and gets the 404 page.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.renderer.RenderError(w, http.StatusNotFound, "Page not found")
		return
	}

	featured, err := h.books.FeaturedBooks(r.Context())
	if err != nil {
		h.renderInternalError(w, r, err)
		return
	}

	data := HomeData{
		PageData: PageData{
			Title: "Millett Books",
			User:  auth.UserFromContext(r.Context()),
		},
		Featured: h.bookViews(featured),
	}

	if err := h.renderer.Render(w, "home.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleBrowse handles GET /books - the paginated catalog.
func (h *WebHandler) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if page < 1 {
		page = 1
	}

	books, total, err := h.books.ListBooks(r.Context(), page)
	if err != nil {
		h.renderInternalError(w, r, err)
		return
	}

	totalPages := int((total + catalog.DefaultPageSize - 1) / catalog.DefaultPageSize)
	data := BrowseData{
		PageData: PageData{
			Title: "Browse Books",
			User:  auth.UserFromContext(r.Context()),
		},
		Books:      h.bookViews(books),
		Page:       int(page),
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    int(page) < totalPages,
	}

	if err := h.renderer.Render(w, "books/list.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleBookDetail handles GET /books/{id} - one book with its reviews.
func (h *WebHandler) HandleBookDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.books.GetBookDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrBookNotFound) {
			h.renderer.RenderError(w, http.StatusNotFound, "Book not found")
			return
		}
		h.renderInternalError(w, r, err)
		return
	}

	user := auth.UserFromContext(r.Context())
	data := BookDetailData{
		PageData: PageData{
			Title: detail.Book.Title,
			User:  user,
		},
		Book:          h.bookView(detail.Book),
		Genre:         detail.Genre,
		Reviews:       detail.Reviews,
		AverageRating: detail.AverageRating,
		ReviewCount:   detail.ReviewCount,
		CanonicalURL: urlutil.BuildAbsolute(
			urlutil.OriginFromRequest(r, h.baseURL), "/books/"+detail.Book.ID),
	}

	if user != nil {
		shelf, err := h.books.UserShelf(r.Context(), user.ID)
		if err == nil {
			for _, entry := range shelf {
				if entry.Book.ID == detail.Book.ID {
					data.OnShelf = true
					data.ShelfStatus = entry.Status
					break
				}
			}
		}
	}

	if flash := r.URL.Query().Get("flash"); flash != "" {
		data.FlashMessage = flashMessage(flash)
		data.FlashType = "success"
	}
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		data.Error = actionErrorMessage(errCode)
	}

	if err := h.renderer.Render(w, "books/detail.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleSearch handles GET /search - full-text catalog search.
func (h *WebHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page, _ := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)

	var results []catalog.Book
	if query != "" {
		var err error
		results, err = h.books.Search(r.Context(), query, page)
		if err != nil {
			h.renderInternalError(w, r, err)
			return
		}
	}

	data := SearchData{
		PageData: PageData{
			Title: "Search",
			User:  auth.UserFromContext(r.Context()),
		},
		Query:   query,
		Results: h.bookViews(results),
	}

	if err := h.renderer.Render(w, "books/search.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleSignupPage handles GET /signup.
func (h *WebHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{
		PageData: PageData{Title: "Create Account"},
		ReturnTo: r.URL.Query().Get("return_to"),
	}
	if code := r.URL.Query().Get("error"); code != "" {
		data.Error = signupErrorMessage(code)
	}

	if err := h.renderer.Render(w, "auth/signup.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLoginPage handles GET /login.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{
		PageData: PageData{Title: "Sign In"},
		ReturnTo: r.URL.Query().Get("return_to"),
	}
	if code := r.URL.Query().Get("error"); code != "" {
		data.Error = loginErrorMessage(code)
	}

	if err := h.renderer.Render(w, "auth/login.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleShelf handles GET /shelf - the signed-in user's bookshelf.
func (h *WebHandler) HandleShelf(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	shelf, err := h.books.UserShelf(r.Context(), user.ID)
	if err != nil {
		h.renderInternalError(w, r, err)
		return
	}

	entries := make([]ShelfEntryView, 0, len(shelf))
	for _, entry := range shelf {
		entries = append(entries, ShelfEntryView{
			ShelfEntry: entry,
			CoverURL:   h.coverURL(entry.Book),
		})
	}

	data := ShelfData{
		PageData: PageData{
			Title: "My Bookshelf",
			User:  user,
		},
		Entries: entries,
	}

	if err := h.renderer.Render(w, "shelf/list.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleAddReview handles POST /books/{id}/reviews.
func (h *WebHandler) HandleAddReview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	user := auth.UserFromContext(r.Context())
	bookID := r.PathValue("id")
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	text := r.PostFormValue("review_text")

	err := h.books.AddReview(r.Context(), user.ID, bookID, rating, text)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrBookNotFound):
			h.renderer.RenderError(w, http.StatusNotFound, "Book not found")
		case errs.IsCode(err, errs.InvalidArgument):
			http.Redirect(w, r, "/books/"+bookID+"?error=rating", http.StatusFound)
		default:
			h.renderInternalError(w, r, err)
		}
		return
	}

	http.Redirect(w, r, "/books/"+bookID+"?flash=reviewed", http.StatusFound)
}

// HandleSetShelf handles POST /books/{id}/shelf.
func (h *WebHandler) HandleSetShelf(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	user := auth.UserFromContext(r.Context())
	bookID := r.PathValue("id")
	status := r.PostFormValue("status")

	err := h.books.SetShelfStatus(r.Context(), user.ID, bookID, status)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrBookNotFound):
			h.renderer.RenderError(w, http.StatusNotFound, "Book not found")
		case errs.IsCode(err, errs.InvalidArgument):
			http.Redirect(w, r, "/books/"+bookID+"?error=status", http.StatusFound)
		default:
			h.renderInternalError(w, r, err)
		}
		return
	}

	http.Redirect(w, r, "/books/"+bookID+"?flash=shelved", http.StatusFound)
}

// HandleRemoveShelf handles POST /books/{id}/shelf/remove.
func (h *WebHandler) HandleRemoveShelf(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	if err := h.books.RemoveFromShelf(r.Context(), user.ID, r.PathValue("id")); err != nil {
		h.renderInternalError(w, r, err)
		return
	}

	http.Redirect(w, r, "/shelf", http.StatusFound)
}

// HandleUploadCover handles POST /admin/books/{id}/cover - multipart cover
// image upload, admin only.
func (h *WebHandler) HandleUploadCover(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("id")

	if err := r.ParseMultipartForm(covers.MaxCoverBytes + 1024); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("cover")
	if err != nil {
		http.Error(w, "Missing cover file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, covers.MaxCoverBytes+1))
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	key, err := h.coverStore.Upload(r.Context(), bookID, content)
	if err != nil {
		if errs.IsCode(err, errs.InvalidArgument) {
			http.Error(w, errs.MessageOf(err), http.StatusBadRequest)
			return
		}
		h.renderInternalError(w, r, err)
		return
	}

	if err := h.books.SetBookCover(r.Context(), bookID, key); err != nil {
		if errors.Is(err, catalog.ErrBookNotFound) {
			h.renderer.RenderError(w, http.StatusNotFound, "Book not found")
			return
		}
		h.renderInternalError(w, r, err)
		return
	}

	http.Redirect(w, r, "/books/"+bookID, http.StatusFound)
}

// Helpers

func (h *WebHandler) renderInternalError(w http.ResponseWriter, r *http.Request, err error) {
	obs.From(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	h.renderer.RenderError(w, http.StatusInternalServerError, "Something went wrong")
}

func (h *WebHandler) bookView(b catalog.Book) BookView {
	return BookView{Book: b, CoverURL: h.coverURL(b)}
}

func (h *WebHandler) bookViews(books []catalog.Book) []BookView {
	views := make([]BookView, 0, len(books))
	for _, b := range books {
		views = append(views, h.bookView(b))
	}
	return views
}

func (h *WebHandler) coverURL(b catalog.Book) string {
	if b.CoverImage == "" || h.coverStore == nil {
		return ""
	}
	return h.coverStore.PublicURL(b.CoverImage)
}

// loginErrorMessage translates a login redirect code into user-facing copy.
// All credential failures share one message.
func loginErrorMessage(code string) string {
	switch code {
	case "invalid":
		return "Incorrect username or password."
	default:
		return "Something went wrong. Please try again."
	}
}

// signupErrorMessage translates a signup redirect code into user-facing copy.
func signupErrorMessage(code string) string {
	switch code {
	case "missing":
		return "Username, email, and password are all required."
	case "mismatch":
		return "The passwords you entered do not match."
	case "exists":
		return "An account with that username or email already exists."
	default:
		return "Something went wrong. Please try again."
	}
}

// actionErrorMessage translates a book-page action error code into copy.
func actionErrorMessage(code string) string {
	switch code {
	case "rating":
		return "Ratings must be between 1 and 5 stars."
	case "status":
		return "Pick a valid shelf status."
	default:
		return "Something went wrong. Please try again."
	}
}

// flashMessage translates a book-page flash code into copy.
func flashMessage(code string) string {
	switch code {
	case "reviewed":
		return "Your review has been saved."
	case "shelved":
		return "Added to your bookshelf."
	default:
		return ""
	}
}
