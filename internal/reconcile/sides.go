package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/database/catalog"
	"github.com/mrlokans/shelfsync/internal/database/extensions"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/library"
)

const (
	sideCatalog   = "catalog"
	sideLibrary   = "library"
	sideExtension = "extension"
)

// side is one store as seen by a store pair.
type side interface {
	name() string
	records(ctx context.Context) (map[string]Record, error)
	// create makes this side hold a record that so far only the other side has.
	create(ctx context.Context, from Record) error
	// write brings this side's existing record to the resolved state.
	write(ctx context.Context, own, resolved Record) error
}

// catalogByPath exposes catalog books keyed by library path.
type catalogByPath struct {
	db  *gorm.DB
	lib *library.Library
}

func (c *catalogByPath) name() string { return sideCatalog }

func (c *catalogByPath) records(_ context.Context) (map[string]Record, error) {
	books, err := catalog.NewRepository(c.db).ListBooks(entities.BookFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(books))
	for _, b := range books {
		out[b.Path] = Record{
			Key:          b.Path,
			BookID:       b.ID,
			Path:         b.Path,
			Fields:       map[string]any{FieldHasCover: b.HasCover},
			LastModified: Stamp(b.LastModified),
		}
	}
	return out, nil
}

// create adds a catalog book for a directory found only in the library. If the
// sanitized path differs from the directory name the directory follows the
// catalog. The move runs inside the catalog transaction so a failed move leaves
// no book behind and a retry starts from the same state.
func (c *catalogByPath) create(_ context.Context, from Record) error {
	author, title, err := library.SplitBookPath(from.Path)
	if err != nil {
		return entities.NewValidationError("path", "%v", err)
	}
	hasCover, _ := from.Fields[FieldHasCover].(bool)

	var movedTo string
	err = c.db.Transaction(func(tx *gorm.DB) error {
		repo := catalog.NewRepository(tx)
		book, err := repo.CreateBook(entities.BookFields{Title: &title, Authors: []string{author}}, "", from.LastModified)
		if err != nil {
			return err
		}
		if hasCover {
			if err := repo.SetCover(book.ID, true, from.LastModified); err != nil {
				return err
			}
		}
		if book.Path != from.Path {
			if err := c.lib.MoveBook(from.Path, book.Path, from.LastModified); err != nil {
				return err
			}
			movedTo = book.Path
		}
		return nil
	})
	if err != nil && movedTo != "" {
		// Commit failed after the directory moved; put it back.
		if mvErr := c.lib.MoveBook(movedTo, from.Path, from.LastModified); mvErr != nil {
			return fmt.Errorf("%w (restore %s: %v)", err, from.Path, mvErr)
		}
	}
	return err
}

func (c *catalogByPath) write(_ context.Context, own, resolved Record) error {
	hasCover, _ := resolved.Fields[FieldHasCover].(bool)
	return catalog.NewRepository(c.db).SetCover(own.BookID, hasCover, resolved.LastModified)
}

// librarySide is the directory tree. Its timestamp is the book directory mtime.
type librarySide struct {
	lib *library.Library
}

func (l *librarySide) name() string { return sideLibrary }

func (l *librarySide) records(ctx context.Context) (map[string]Record, error) {
	entries, err := l.lib.Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(entries))
	for _, e := range entries {
		out[e.Path] = Record{
			Key:          e.Path,
			Path:         e.Path,
			Fields:       map[string]any{FieldHasCover: e.HasCover},
			LastModified: Stamp(e.ModTime),
		}
	}
	return out, nil
}

func (l *librarySide) create(_ context.Context, from Record) error {
	return l.lib.EnsureBookDir(from.Path, from.LastModified)
}

// write stamps the directory. Cover bytes are never created or removed here;
// the resolved cover flag is already pinned to what the directory holds.
func (l *librarySide) write(_ context.Context, own, resolved Record) error {
	return l.lib.EnsureBookDir(own.Path, resolved.LastModified)
}

// catalogByID exposes catalog books keyed by id with the fields the extension
// store mirrors.
type catalogByID struct {
	db  *gorm.DB
	lib *library.Library
}

func (c *catalogByID) name() string { return sideCatalog }

func (c *catalogByID) records(_ context.Context) (map[string]Record, error) {
	books, err := catalog.NewRepository(c.db).ListBooks(entities.BookFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(books))
	for i := range books {
		rec := catalogRecord(&books[i])
		out[rec.Key] = rec
	}
	return out, nil
}

func catalogRecord(b *entities.Book) Record {
	return Record{
		Key:    idKey(b.ID),
		BookID: b.ID,
		Path:   b.Path,
		Fields: map[string]any{
			FieldTitle:     b.Title,
			FieldAuthor:    b.PrimaryAuthor(),
			FieldISBN:      b.ISBN(),
			FieldPublisher: b.Publisher,
			FieldLanguage:  b.Language,
			FieldRating:    b.Rating,
			FieldHasCover:  b.HasCover,
		},
		LastModified: Stamp(b.LastModified),
	}
}

// create is never used: the extension store does not create catalog books.
func (c *catalogByID) create(_ context.Context, from Record) error {
	return fmt.Errorf("catalog books are not created from the extension store (book %d)", from.BookID)
}

// write applies resolved mirror fields to the catalog. A title or primary author
// change moves the library directory; otherwise the directory is restamped so
// the library pair stays aligned.
func (c *catalogByID) write(_ context.Context, own, resolved Record) error {
	var book *entities.Book
	var oldPath string
	err := c.db.Transaction(func(tx *gorm.DB) error {
		repo := catalog.NewRepository(tx)
		current, err := repo.GetBook(own.BookID)
		if err != nil {
			return err
		}
		fields := mirrorFields(current, resolved)
		if err := fields.ValidateUpdate(); err != nil {
			return err
		}
		book, oldPath, err = repo.UpdateBook(own.BookID, fields, resolved.LastModified)
		return err
	})
	if err != nil {
		return err
	}

	switch {
	case oldPath != book.Path:
		return c.lib.MoveBook(oldPath, book.Path, resolved.LastModified)
	case c.lib.Exists(book.Path):
		return c.lib.Touch(book.Path, resolved.LastModified)
	}
	return nil
}

func mirrorFields(current *entities.Book, resolved Record) entities.BookFields {
	str := func(name string) string {
		v, _ := resolved.Fields[name].(string)
		return v
	}
	title := str(FieldTitle)
	publisher := str(FieldPublisher)
	language := str(FieldLanguage)
	rating, _ := resolved.Fields[FieldRating].(int)

	authors := []string{str(FieldAuthor)}
	for _, a := range current.Authors {
		if !strings.EqualFold(a, authors[0]) {
			authors = append(authors, a)
		}
	}

	identifiers := make(map[string]string, len(current.Identifiers)+1)
	for k, v := range current.Identifiers {
		identifiers[k] = v
	}
	delete(identifiers, entities.IdentifierISBN)
	if isbn := str(FieldISBN); isbn != "" {
		identifiers[entities.IdentifierISBN] = entities.NormalizeISBN(isbn)
	}

	return entities.BookFields{
		Title:       &title,
		Authors:     authors,
		Identifiers: identifiers,
		Publisher:   &publisher,
		Language:    &language,
		Rating:      &rating,
	}
}

// extensionSide is the mirror kept in book_extensions.
type extensionSide struct {
	db *gorm.DB
}

func (e *extensionSide) name() string { return sideExtension }

func (e *extensionSide) records(_ context.Context) (map[string]Record, error) {
	rows, err := extensions.NewRepository(e.db).List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(rows))
	for i := range rows {
		rec := extensionRecord(&rows[i])
		out[rec.Key] = rec
	}
	return out, nil
}

func extensionRecord(x *entities.BookExtension) Record {
	return Record{
		Key:    idKey(x.BookID),
		BookID: x.BookID,
		Fields: map[string]any{
			FieldTitle:     x.Title,
			FieldAuthor:    x.Author,
			FieldISBN:      x.ISBN,
			FieldPublisher: x.Publisher,
			FieldLanguage:  x.Language,
			FieldRating:    x.Rating,
			FieldHasCover:  x.HasCover,
		},
		LastModified: Stamp(x.LastModified),
	}
}

func (e *extensionSide) create(_ context.Context, from Record) error {
	return extensions.NewRepository(e.db).UpdateMirror(mirrorRow(from.BookID, from))
}

func (e *extensionSide) write(_ context.Context, own, resolved Record) error {
	return extensions.NewRepository(e.db).UpdateMirror(mirrorRow(own.BookID, resolved))
}

func mirrorRow(bookID int64, r Record) *entities.BookExtension {
	str := func(name string) string {
		v, _ := r.Fields[name].(string)
		return v
	}
	rating, _ := r.Fields[FieldRating].(int)
	hasCover, _ := r.Fields[FieldHasCover].(bool)
	return &entities.BookExtension{
		BookID:       bookID,
		BookType:     entities.DefaultBookType,
		Title:        str(FieldTitle),
		Author:       str(FieldAuthor),
		ISBN:         str(FieldISBN),
		Publisher:    str(FieldPublisher),
		Language:     str(FieldLanguage),
		Rating:       rating,
		HasCover:     hasCover,
		LastModified: r.LastModified,
	}
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseIDKey(key string) (int64, error) {
	return strconv.ParseInt(key, 10, 64)
}
