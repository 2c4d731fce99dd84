// Package catalog implements the book catalog: browsing, featured picks,
// search, reviews, and per-user bookshelves.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smillett/millettbooks/internal/db"
	"github.com/smillett/millettbooks/internal/errs"
)

// Errors
var (
	ErrBookNotFound  = errs.New(errs.NotFound, "book not found")
	ErrGenreNotFound = errs.New(errs.NotFound, "genre not found")
	ErrDuplicateISBN = errs.New(errs.FailedPrecondition, "a book with this ISBN already exists")
	ErrInvalidRating = errs.New(errs.InvalidArgument, "rating must be between 1 and 5")
	ErrInvalidStatus = errs.New(errs.InvalidArgument, "unknown bookshelf status")
)

// Bookshelf statuses.
const (
	StatusWantToRead = "want_to_read"
	StatusReading    = "reading"
	StatusRead       = "read"
)

// FeaturedCount is how many books the home page features.
const FeaturedCount = 4

// DefaultPageSize is the browse page size.
const DefaultPageSize = 24

// Book is a catalog entry.
type Book struct {
	ID              string
	Title           string
	Author          string
	PublicationYear int
	ISBN            string
	GenreID         string
	Synopsis        string
	CoverImage      string
	CreatedAt       time.Time
}

// Genre is a browsable category.
type Genre struct {
	ID          string
	Name        string
	Description string
}

// Review is a user's rating and optional text for a book.
type Review struct {
	ID        string
	UserID    string
	Username  string
	BookID    string
	Rating    int
	Text      string
	CreatedAt time.Time
}

// ShelfEntry is one book on a user's shelf.
type ShelfEntry struct {
	ID        string
	Book      Book
	Status    string
	UpdatedAt time.Time
}

// BookDetail bundles everything the book page shows.
type BookDetail struct {
	Book          Book
	Genre         *Genre
	Reviews       []Review
	AverageRating float64
	ReviewCount   int64
}

// Service implements catalog operations over the shared database.
type Service struct {
	db *db.CatalogDB
}

// NewService creates a catalog service.
func NewService(catalogDB *db.CatalogDB) *Service {
	return &Service{db: catalogDB}
}

// AddGenre creates a genre.
func (s *Service) AddGenre(ctx context.Context, name, description string) (*Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "genre name is required")
	}
	g := db.GenreRecord{
		GenreID:     "genre-" + uuid.NewString(),
		Name:        name,
		Description: nullString(description),
	}
	if err := s.db.InsertGenre(ctx, g); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errs.New(errs.FailedPrecondition, "genre already exists")
		}
		return nil, err
	}
	return genreFromRecord(g), nil
}

// ListGenres returns all genres.
func (s *Service) ListGenres(ctx context.Context) ([]Genre, error) {
	records, err := s.db.ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	genres := make([]Genre, 0, len(records))
	for _, r := range records {
		genres = append(genres, *genreFromRecord(r))
	}
	return genres, nil
}

// AddBook creates a book. ISBN is optional but unique when present.
func (s *Service) AddBook(ctx context.Context, book Book) (*Book, error) {
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	if book.Title == "" || book.Author == "" {
		return nil, errs.New(errs.InvalidArgument, "title and author are required")
	}

	record := db.BookRecord{
		BookID:     "book-" + uuid.NewString(),
		Title:      book.Title,
		Author:     book.Author,
		ISBN:       nullString(book.ISBN),
		GenreID:    nullString(book.GenreID),
		Synopsis:   nullString(book.Synopsis),
		CoverImage: nullString(book.CoverImage),
		CreatedAt:  time.Now().Unix(),
	}
	if book.PublicationYear != 0 {
		record.PublicationYear = sql.NullInt64{Int64: int64(book.PublicationYear), Valid: true}
	}

	if err := s.db.InsertBook(ctx, record); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateISBN
		}
		return nil, err
	}
	result := bookFromRecord(record)
	return &result, nil
}

// GetBook returns a single book.
func (s *Service) GetBook(ctx context.Context, bookID string) (*Book, error) {
	record, err := s.db.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	book := bookFromRecord(*record)
	return &book, nil
}

// GetBookDetail returns a book with its genre, reviews, and rating summary.
func (s *Service) GetBookDetail(ctx context.Context, bookID string) (*BookDetail, error) {
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	detail := &BookDetail{Book: *book}

	if book.GenreID != "" {
		genre, err := s.db.GetGenre(ctx, book.GenreID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get genre: %w", err)
		}
		if genre != nil {
			detail.Genre = genreFromRecord(*genre)
		}
	}

	reviews, err := s.db.ListReviewsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	for _, r := range reviews {
		detail.Reviews = append(detail.Reviews, reviewFromRecord(r))
	}

	avg, count, err := s.db.AverageRating(ctx, bookID)
	if err != nil {
		return nil, err
	}
	detail.AverageRating = avg
	detail.ReviewCount = count

	return detail, nil
}

// ListBooks returns one page of the catalog ordered by title, plus the total
// count for pagination.
func (s *Service) ListBooks(ctx context.Context, page int64) ([]Book, int64, error) {
	if page < 1 {
		page = 1
	}
	records, err := s.db.ListBooks(ctx, DefaultPageSize, (page-1)*DefaultPageSize)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.db.CountBooks(ctx)
	if err != nil {
		return nil, 0, err
	}
	return booksFromRecords(records), total, nil
}

// FeaturedBooks returns a random sample of up to FeaturedCount books for the
// home page. Each call reshuffles.
func (s *Service) FeaturedBooks(ctx context.Context) ([]Book, error) {
	records, err := s.db.ListAllBooks(ctx)
	if err != nil {
		return nil, err
	}
	books := booksFromRecords(records)
	rand.Shuffle(len(books), func(i, j int) {
		books[i], books[j] = books[j], books[i]
	})
	if len(books) > FeaturedCount {
		books = books[:FeaturedCount]
	}
	return books, nil
}

// Search runs a ranked full-text search over titles, authors, and synopses.
func (s *Service) Search(ctx context.Context, query string, page int64) ([]Book, error) {
	if page < 1 {
		page = 1
	}
	results, err := s.db.SearchBooks(ctx, query, DefaultPageSize, (page-1)*DefaultPageSize)
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(results))
	for _, r := range results {
		books = append(books, bookFromRecord(r.Book))
	}
	return books, nil
}

// AddReview stores a user's review of a book, replacing any earlier review
// they wrote for it. Rating must be 1 to 5.
func (s *Service) AddReview(ctx context.Context, userID, bookID string, rating int, text string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}
	return s.db.UpsertReview(ctx, db.ReviewRecord{
		ReviewID:   "review-" + uuid.NewString(),
		UserID:     userID,
		BookID:     bookID,
		Rating:     int64(rating),
		ReviewText: nullString(strings.TrimSpace(text)),
		CreatedAt:  time.Now().Unix(),
	})
}

// SetShelfStatus puts a book on the user's shelf with the given status,
// replacing any earlier status.
func (s *Service) SetShelfStatus(ctx context.Context, userID, bookID, status string) error {
	switch status {
	case StatusWantToRead, StatusReading, StatusRead:
	default:
		return ErrInvalidStatus
	}
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}
	return s.db.UpsertShelf(ctx, "shelf-"+uuid.NewString(), userID, bookID, status, time.Now().Unix())
}

// RemoveFromShelf takes a book off the user's shelf. Removing an absent
// entry is a no-op.
func (s *Service) RemoveFromShelf(ctx context.Context, userID, bookID string) error {
	return s.db.DeleteShelf(ctx, userID, bookID)
}

// UserShelf returns the user's bookshelf, most recently updated first.
func (s *Service) UserShelf(ctx context.Context, userID string) ([]ShelfEntry, error) {
	records, err := s.db.ListShelfByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	shelf := make([]ShelfEntry, 0, len(records))
	for _, r := range records {
		shelf = append(shelf, ShelfEntry{
			ID:        r.ShelfID,
			Book:      bookFromRecord(r.Book),
			Status:    r.Status,
			UpdatedAt: time.Unix(r.UpdatedAt, 0),
		})
	}
	return shelf, nil
}

// SetBookCover records the stored cover object key for a book.
func (s *Service) SetBookCover(ctx context.Context, bookID, coverKey string) error {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}
	return s.db.SetBookCover(ctx, bookID, coverKey)
}

// Record conversions

func bookFromRecord(r db.BookRecord) Book {
	return Book{
		ID:              r.BookID,
		Title:           r.Title,
		Author:          r.Author,
		PublicationYear: int(r.PublicationYear.Int64),
		ISBN:            r.ISBN.String,
		GenreID:         r.GenreID.String,
		Synopsis:        r.Synopsis.String,
		CoverImage:      r.CoverImage.String,
		CreatedAt:       time.Unix(r.CreatedAt, 0),
	}
}

func booksFromRecords(records []db.BookRecord) []Book {
	books := make([]Book, 0, len(records))
	for _, r := range records {
		books = append(books, bookFromRecord(r))
	}
	return books
}

func genreFromRecord(r db.GenreRecord) *Genre {
	return &Genre{
		ID:          r.GenreID,
		Name:        r.Name,
		Description: r.Description.String,
	}
}

func reviewFromRecord(r db.ReviewRecord) Review {
	return Review{
		ID:        r.ReviewID,
		UserID:    r.UserID,
		Username:  r.Username,
		BookID:    r.BookID,
		Rating:    int(r.Rating),
		Text:      r.ReviewText.String,
		CreatedAt: time.Unix(r.CreatedAt, 0),
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
