package db

import (
	"context"
	"database/sql"
	"fmt"
)

// GenreRecord is a row of the genres table.
type GenreRecord struct {
	GenreID     string
	Name        string
	Description sql.NullString
}

// BookRecord is a row of the books table.
type BookRecord struct {
	BookID          string
	Title           string
	Author          string
	PublicationYear sql.NullInt64
	ISBN            sql.NullString
	GenreID         sql.NullString
	Synopsis        sql.NullString
	CoverImage      sql.NullString
	CreatedAt       int64
}

// ReviewRecord is a row of the reviews table joined with the reviewer's
// username for display.
type ReviewRecord struct {
	ReviewID   string
	UserID     string
	Username   string
	BookID     string
	Rating     int64
	ReviewText sql.NullString
	CreatedAt  int64
}

// ShelfRecord is a row of user_bookshelf joined with the book for display.
type ShelfRecord struct {
	ShelfID   string
	UserID    string
	Book      BookRecord
	Status    string
	UpdatedAt int64
}

const bookColumns = `book_id, title, author, publication_year, isbn, genre_id, synopsis, cover_image, created_at`

// InsertGenre inserts a genre row.
func (c *CatalogDB) InsertGenre(ctx context.Context, g GenreRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO genres (genre_id, name, description) VALUES (?, ?, ?)
	`, g.GenreID, g.Name, g.Description)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert genre: %w", err)
	}
	return nil
}

// ListGenres returns all genres ordered by name.
func (c *CatalogDB) ListGenres(ctx context.Context) ([]GenreRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT genre_id, name, description FROM genres ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	var genres []GenreRecord
	for rows.Next() {
		var g GenreRecord
		if err := rows.Scan(&g.GenreID, &g.Name, &g.Description); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// GetGenre returns the genre with the given id.
func (c *CatalogDB) GetGenre(ctx context.Context, genreID string) (*GenreRecord, error) {
	var g GenreRecord
	err := c.db.QueryRowContext(ctx, `
		SELECT genre_id, name, description FROM genres WHERE genre_id = ?
	`, genreID).Scan(&g.GenreID, &g.Name, &g.Description)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// InsertBook inserts a book row. A UNIQUE violation on ISBN surfaces as-is;
// detect it with IsUniqueViolation.
func (c *CatalogDB) InsertBook(ctx context.Context, b BookRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO books (book_id, title, author, publication_year, isbn, genre_id, synopsis, cover_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.BookID, b.Title, b.Author, b.PublicationYear, b.ISBN, b.GenreID, b.Synopsis, b.CoverImage, b.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook returns the book with the given id.
func (c *CatalogDB) GetBook(ctx context.Context, bookID string) (*BookRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+bookColumns+` FROM books WHERE book_id = ?
	`, bookID)
	var b BookRecord
	if err := scanBook(row.Scan, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBooks returns books ordered by title, paginated.
func (c *CatalogDB) ListBooks(ctx context.Context, limit, offset int64) ([]BookRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books ORDER BY title LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListAllBooks returns every book, ordered by title. Used for featured
// sampling on small catalogs.
func (c *CatalogDB) ListAllBooks(ctx context.Context) ([]BookRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("list all books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// CountBooks returns the total number of books.
func (c *CatalogDB) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}

// SetBookCover updates the stored cover image key for a book.
func (c *CatalogDB) SetBookCover(ctx context.Context, bookID, coverKey string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE books SET cover_image = ? WHERE book_id = ?
	`, coverKey, bookID)
	if err != nil {
		return fmt.Errorf("set book cover: %w", err)
	}
	return nil
}

// UpsertReview stores a review, replacing the user's previous review of the
// same book.
func (c *CatalogDB) UpsertReview(ctx context.Context, r ReviewRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO reviews (review_id, user_id, book_id, rating, review_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, book_id) DO UPDATE SET
			rating = excluded.rating,
			review_text = excluded.review_text,
			created_at = excluded.created_at
	`, r.ReviewID, r.UserID, r.BookID, r.Rating, r.ReviewText, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// ListReviewsByBook returns a book's reviews, newest first, with usernames.
func (c *CatalogDB) ListReviewsByBook(ctx context.Context, bookID string) ([]ReviewRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT r.review_id, r.user_id, u.username, r.book_id, r.rating, r.review_text, r.created_at
		FROM reviews r
		JOIN users u ON u.user_id = r.user_id
		WHERE r.book_id = ?
		ORDER BY r.created_at DESC
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []ReviewRecord
	for rows.Next() {
		var r ReviewRecord
		if err := rows.Scan(&r.ReviewID, &r.UserID, &r.Username, &r.BookID, &r.Rating, &r.ReviewText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// AverageRating returns the mean rating for a book and the review count.
func (c *CatalogDB) AverageRating(ctx context.Context, bookID string) (float64, int64, error) {
	var avg sql.NullFloat64
	var count int64
	err := c.db.QueryRowContext(ctx, `
		SELECT AVG(rating), COUNT(*) FROM reviews WHERE book_id = ?
	`, bookID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("average rating: %w", err)
	}
	return avg.Float64, count, nil
}

// UpsertShelf stores a bookshelf entry, replacing the user's previous status
// for the same book.
func (c *CatalogDB) UpsertShelf(ctx context.Context, shelfID, userID, bookID, status string, updatedAt int64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO user_bookshelf (shelf_id, user_id, book_id, status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, book_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, shelfID, userID, bookID, status, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert shelf: %w", err)
	}
	return nil
}

// DeleteShelf removes a user's bookshelf entry for a book.
func (c *CatalogDB) DeleteShelf(ctx context.Context, userID, bookID string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM user_bookshelf WHERE user_id = ? AND book_id = ?
	`, userID, bookID)
	if err != nil {
		return fmt.Errorf("delete shelf: %w", err)
	}
	return nil
}

// ListShelfByUser returns a user's bookshelf, most recently updated first.
func (c *CatalogDB) ListShelfByUser(ctx context.Context, userID string) ([]ShelfRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT s.shelf_id, s.user_id, s.status, s.updated_at, `+prefixedBookColumns("b")+`
		FROM user_bookshelf s
		JOIN books b ON b.book_id = s.book_id
		WHERE s.user_id = ?
		ORDER BY s.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shelf: %w", err)
	}
	defer rows.Close()

	var shelf []ShelfRecord
	for rows.Next() {
		var s ShelfRecord
		err := rows.Scan(&s.ShelfID, &s.UserID, &s.Status, &s.UpdatedAt,
			&s.Book.BookID, &s.Book.Title, &s.Book.Author, &s.Book.PublicationYear,
			&s.Book.ISBN, &s.Book.GenreID, &s.Book.Synopsis, &s.Book.CoverImage, &s.Book.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan shelf: %w", err)
		}
		shelf = append(shelf, s)
	}
	return shelf, rows.Err()
}

func prefixedBookColumns(alias string) string {
	return alias + ".book_id, " + alias + ".title, " + alias + ".author, " +
		alias + ".publication_year, " + alias + ".isbn, " + alias + ".genre_id, " +
		alias + ".synopsis, " + alias + ".cover_image, " + alias + ".created_at"
}

func scanBook(scan func(dest ...any) error, b *BookRecord) error {
	return scan(&b.BookID, &b.Title, &b.Author, &b.PublicationYear, &b.ISBN,
		&b.GenreID, &b.Synopsis, &b.CoverImage, &b.CreatedAt)
}

func collectBooks(rows *sql.Rows) ([]BookRecord, error) {
	var books []BookRecord
	for rows.Next() {
		var b BookRecord
		if err := scanBook(rows.Scan, &b); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}
