package catalog

// SchemaStatements create an empty catalog with the layout the repository reads.
// Existing catalogs are used as they are; only a brand new file is built from this.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		title         TEXT NOT NULL DEFAULT 'Unknown' COLLATE NOCASE,
		sort          TEXT COLLATE NOCASE,
		timestamp     TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		pubdate       TIMESTAMP,
		series_index  REAL NOT NULL DEFAULT 1.0,
		author_sort   TEXT COLLATE NOCASE,
		path          TEXT NOT NULL DEFAULT '',
		uuid          TEXT,
		has_cover     BOOL DEFAULT 0,
		last_modified TIMESTAMP NOT NULL DEFAULT '2000-01-01 00:00:00+00:00'
	)`,
	`CREATE TABLE IF NOT EXISTS authors (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE,
		sort TEXT COLLATE NOCASE,
		link TEXT NOT NULL DEFAULT '',
		UNIQUE(name)
	)`,
	`CREATE TABLE IF NOT EXISTS books_authors_link (
		id     INTEGER PRIMARY KEY,
		book   INTEGER NOT NULL,
		author INTEGER NOT NULL,
		UNIQUE(book, author)
	)`,
	`CREATE TABLE IF NOT EXISTS publishers (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE,
		sort TEXT COLLATE NOCASE,
		UNIQUE(name)
	)`,
	`CREATE TABLE IF NOT EXISTS books_publishers_link (
		id        INTEGER PRIMARY KEY,
		book      INTEGER NOT NULL,
		publisher INTEGER NOT NULL,
		UNIQUE(book)
	)`,
	`CREATE TABLE IF NOT EXISTS languages (
		id        INTEGER PRIMARY KEY,
		lang_code TEXT NOT NULL COLLATE NOCASE,
		UNIQUE(lang_code)
	)`,
	`CREATE TABLE IF NOT EXISTS books_languages_link (
		id          INTEGER PRIMARY KEY,
		book        INTEGER NOT NULL,
		lang_code   INTEGER NOT NULL,
		item_order  INTEGER NOT NULL DEFAULT 0,
		UNIQUE(book, lang_code)
	)`,
	`CREATE TABLE IF NOT EXISTS series (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE,
		sort TEXT COLLATE NOCASE,
		UNIQUE(name)
	)`,
	`CREATE TABLE IF NOT EXISTS books_series_link (
		id     INTEGER PRIMARY KEY,
		book   INTEGER NOT NULL,
		series INTEGER NOT NULL,
		UNIQUE(book)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE,
		UNIQUE(name)
	)`,
	`CREATE TABLE IF NOT EXISTS books_tags_link (
		id   INTEGER PRIMARY KEY,
		book INTEGER NOT NULL,
		tag  INTEGER NOT NULL,
		UNIQUE(book, tag)
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id     INTEGER PRIMARY KEY,
		rating INTEGER CHECK(rating > -1 AND rating < 11),
		UNIQUE(rating)
	)`,
	`CREATE TABLE IF NOT EXISTS books_ratings_link (
		id     INTEGER PRIMARY KEY,
		book   INTEGER NOT NULL,
		rating INTEGER NOT NULL,
		UNIQUE(book, rating)
	)`,
	`CREATE TABLE IF NOT EXISTS identifiers (
		id   INTEGER PRIMARY KEY,
		book INTEGER NOT NULL,
		type TEXT NOT NULL DEFAULT 'isbn' COLLATE NOCASE,
		val  TEXT NOT NULL COLLATE NOCASE,
		UNIQUE(book, type)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id   INTEGER PRIMARY KEY,
		book INTEGER NOT NULL,
		text TEXT NOT NULL COLLATE NOCASE,
		UNIQUE(book)
	)`,
	`CREATE INDEX IF NOT EXISTS books_idx_sort ON books (sort COLLATE NOCASE)`,
	`CREATE INDEX IF NOT EXISTS books_authors_link_bidx ON books_authors_link (book)`,
	`CREATE INDEX IF NOT EXISTS books_tags_link_bidx ON books_tags_link (book)`,
	`CREATE TRIGGER IF NOT EXISTS books_insert_trg AFTER INSERT ON books
	BEGIN
		UPDATE books SET sort = title_sort(NEW.title),
			uuid = CASE WHEN NEW.uuid IS NULL OR NEW.uuid = '' THEN uuid4() ELSE NEW.uuid END
		WHERE id = NEW.id;
	END`,
	`CREATE TRIGGER IF NOT EXISTS books_update_trg AFTER UPDATE OF title ON books
	BEGIN
		UPDATE books SET sort = title_sort(NEW.title) WHERE id = NEW.id;
	END`,
}

// linkTables lists every table that references books by a "book" column.
var linkTables = []string{
	"books_authors_link",
	"books_publishers_link",
	"books_languages_link",
	"books_series_link",
	"books_tags_link",
	"books_ratings_link",
	"identifiers",
	"comments",
}
