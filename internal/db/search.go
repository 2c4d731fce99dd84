package db

import (
	"context"
	"fmt"
	"strings"
)

// BookSearchResult is a single FTS search hit.
type BookSearchResult struct {
	Book BookRecord
	Rank float64 // bm25 score, lower is better
}

// EscapeFTS5Query converts human search-bar input into safe FTS5 MATCH
// syntax. Bare words become prefix matches (pub → pub*), quoted phrases are
// passed through, and adjacent terms are implicitly ANDed. Anything that
// could be FTS5 syntax is stripped so user input can never produce a syntax
// error.
func EscapeFTS5Query(query string) string {
	query = strings.ReplaceAll(query, "\x00", "")

	var terms []string
	for _, tok := range tokenizeSearch(query) {
		if tok.isPhrase {
			if sanitizeFTS5Word(tok.text) != "" {
				terms = append(terms, `"`+strings.ReplaceAll(tok.text, `"`, `""`)+`"`)
			}
			continue
		}
		if clean := sanitizeFTS5Word(tok.text); clean != "" {
			terms = append(terms, clean+"*")
		}
	}
	return strings.Join(terms, " ")
}

// searchToken is a parsed token from search input.
type searchToken struct {
	text     string // token text, without surrounding quotes for phrases
	isPhrase bool
}

// tokenizeSearch splits search input into tokens, preserving quoted phrases.
func tokenizeSearch(input string) []searchToken {
	var tokens []searchToken
	i := 0
	for i < len(input) {
		if input[i] == ' ' || input[i] == '\t' {
			i++
			continue
		}
		if input[i] == '"' {
			end := strings.IndexByte(input[i+1:], '"')
			if end >= 0 {
				tokens = append(tokens, searchToken{text: input[i+1 : i+1+end], isPhrase: true})
				i = i + 1 + end + 1
			} else {
				// Unclosed quote: treat rest as phrase
				tokens = append(tokens, searchToken{text: input[i+1:], isPhrase: true})
				break
			}
			continue
		}
		end := i + 1
		for end < len(input) && input[end] != ' ' && input[end] != '\t' && input[end] != '"' {
			end++
		}
		tokens = append(tokens, searchToken{text: input[i:end]})
		i = end
	}
	return tokens
}

// sanitizeFTS5Word strips characters that cause FTS5 syntax errors.
// Keeps letters, digits, and underscore.
func sanitizeFTS5Word(word string) string {
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r > 127 {
			return r
		}
		return -1
	}, word)
	return strings.ToLower(clean)
}

// SearchBooks performs a full-text search over title, author, and synopsis.
// Title matches are weighted highest, then author (bm25 weights 5.0, 3.0, 1.0).
// The query is user-provided input and is escaped before matching.
func (c *CatalogDB) SearchBooks(ctx context.Context, query string, limit, offset int64) ([]BookSearchResult, error) {
	escaped := EscapeFTS5Query(query)
	if escaped == "" {
		return nil, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT `+prefixedBookColumns("b")+`, bm25(fts_books, 5.0, 3.0, 1.0) AS rank
		FROM books b
		JOIN fts_books f ON b.rowid = f.rowid
		WHERE fts_books MATCH ?
		ORDER BY rank
		LIMIT ? OFFSET ?
	`, escaped, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("FTS search failed: %w", err)
	}
	defer rows.Close()

	var results []BookSearchResult
	for rows.Next() {
		var r BookSearchResult
		err := rows.Scan(&r.Book.BookID, &r.Book.Title, &r.Book.Author, &r.Book.PublicationYear,
			&r.Book.ISBN, &r.Book.GenreID, &r.Book.Synopsis, &r.Book.CoverImage, &r.Book.CreatedAt, &r.Rank)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
