package db

// SQL schema for the catalog database. A single shared SQLite file holds the
// catalog entities, user accounts, and server-side sessions.

// CatalogDBSchema contains all the SQL statements for the catalog database.
const CatalogDBSchema = `
-- Users table: account records. The stored credential is the canonical
-- bcrypt modular-crypt text; legacy rows may still carry the escaped-hex
-- form, which the auth layer decodes on read and rewrites on next login.
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    profile_picture TEXT,
    role TEXT NOT NULL DEFAULT 'user',
    created_at INTEGER NOT NULL
);

-- Sessions table: server-side authentication state. There is deliberately
-- no "authenticated" column on users; a user is authenticated exactly when
-- they hold an unexpired row here.
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

-- Genres table
CREATE TABLE IF NOT EXISTS genres (
    genre_id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    description TEXT
);

-- Books table
CREATE TABLE IF NOT EXISTS books (
    book_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    author TEXT NOT NULL,
    publication_year INTEGER,
    isbn TEXT UNIQUE,
    genre_id TEXT REFERENCES genres(genre_id),
    synopsis TEXT,
    cover_image TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_genre_id ON books(genre_id);

-- Reviews table: one review per user per book
CREATE TABLE IF NOT EXISTS reviews (
    review_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    book_id TEXT NOT NULL REFERENCES books(book_id),
    rating INTEGER NOT NULL CHECK(rating BETWEEN 1 AND 5),
    review_text TEXT,
    created_at INTEGER NOT NULL,
    UNIQUE(user_id, book_id)
);
CREATE INDEX IF NOT EXISTS idx_reviews_book_id ON reviews(book_id);

-- Bookshelf table: per-user reading status
CREATE TABLE IF NOT EXISTS user_bookshelf (
    shelf_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    book_id TEXT NOT NULL REFERENCES books(book_id),
    status TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE(user_id, book_id)
);
CREATE INDEX IF NOT EXISTS idx_bookshelf_user_id ON user_bookshelf(user_id);

-- FTS5 virtual table for book search
CREATE VIRTUAL TABLE IF NOT EXISTS fts_books USING fts5(
    title,
    author,
    synopsis,
    content='books',
    content_rowid='rowid'
);

-- Trigger: sync FTS index on INSERT
CREATE TRIGGER IF NOT EXISTS books_ai AFTER INSERT ON books BEGIN
    INSERT INTO fts_books(rowid, title, author, synopsis)
    VALUES (new.rowid, new.title, new.author, new.synopsis);
END;

-- Trigger: sync FTS index on DELETE. External-content FTS5 tables require
-- the special 'delete' insert carrying the old column values.
CREATE TRIGGER IF NOT EXISTS books_ad AFTER DELETE ON books BEGIN
    INSERT INTO fts_books(fts_books, rowid, title, author, synopsis)
    VALUES ('delete', old.rowid, old.title, old.author, old.synopsis);
END;

-- Trigger: sync FTS index on UPDATE
CREATE TRIGGER IF NOT EXISTS books_au AFTER UPDATE ON books BEGIN
    INSERT INTO fts_books(fts_books, rowid, title, author, synopsis)
    VALUES ('delete', old.rowid, old.title, old.author, old.synopsis);
    INSERT INTO fts_books(rowid, title, author, synopsis)
    VALUES (new.rowid, new.title, new.author, new.synopsis);
END;
`

// CatalogDBMigrations contains idempotent ALTER TABLE statements for schema
// evolution. SQLite ADD COLUMN errors if the column exists, so duplicate
// column errors are caught and ignored by MigrateCatalogDB.
const CatalogDBMigrations = `
ALTER TABLE users ADD COLUMN profile_picture TEXT;
`
