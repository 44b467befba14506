package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/database/batch"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/library"
)

// Repository reads and writes books in the catalog store. Write methods issue
// several statements and are meant to run on a transaction handle.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBook(id int64) (*entities.Book, error) {
	var row entities.CatalogBook
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("book %d: %w", id, entities.ErrNotFound)
		}
		return nil, err
	}
	books, err := r.hydrate([]entities.CatalogBook{row})
	if err != nil {
		return nil, err
	}
	return &books[0], nil
}

func (r *Repository) GetBookByUUID(uuid string) (*entities.Book, error) {
	var row entities.CatalogBook
	if err := r.db.Where("uuid = ?", uuid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("book uuid %s: %w", uuid, entities.ErrNotFound)
		}
		return nil, err
	}
	books, err := r.hydrate([]entities.CatalogBook{row})
	if err != nil {
		return nil, err
	}
	return &books[0], nil
}

func (r *Repository) ListBooks(filter entities.BookFilter) ([]entities.Book, error) {
	query := r.db.Model(&entities.CatalogBook{})

	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("title LIKE ? OR author_sort LIKE ?", like, like)
	}
	if filter.Tag != "" {
		query = query.Where("id IN (SELECT l.book FROM books_tags_link l JOIN tags t ON t.id = l.tag WHERE t.name = ?)", filter.Tag)
	}
	if filter.Author != "" {
		query = query.Where("id IN (SELECT l.book FROM books_authors_link l JOIN authors a ON a.id = l.author WHERE a.name LIKE ?)", "%"+filter.Author+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var rows []entities.CatalogBook
	if err := query.Order("sort, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return r.hydrate(rows)
}

func (r *Repository) CountBooks() (int64, error) {
	var n int64
	err := r.db.Model(&entities.CatalogBook{}).Count(&n).Error
	return n, err
}

// CreateBook inserts the book row and all linked rows. The library path is
// derived from the first author and the title.
func (r *Repository) CreateBook(fields entities.BookFields, uuid string, now time.Time) (*entities.Book, error) {
	authors := fields.Authors
	if len(authors) == 0 {
		authors = []string{library.UnknownAuthor}
	}
	title := strings.TrimSpace(*fields.Title)

	row := entities.CatalogBook{
		Title:        title,
		AuthorSort:   AuthorsSort(authors),
		Timestamp:    now,
		SeriesIndex:  1,
		Path:         library.BookPath(authors[0], title),
		UUID:         uuid,
		HasCover:     len(fields.Cover) > 0,
		LastModified: now,
	}
	if fields.SeriesIndex != nil {
		row.SeriesIndex = *fields.SeriesIndex
	}
	if err := r.db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	if err := r.ensureUniquePath(&row, authors[0], title); err != nil {
		return nil, err
	}
	if err := r.setAuthors(row.ID, authors); err != nil {
		return nil, err
	}
	if err := r.applyLinks(row.ID, fields); err != nil {
		return nil, err
	}
	return r.GetBook(row.ID)
}

// UpdateBook applies the supplied fields and stamps last_modified with now.
// The previous library path is returned so the caller can move the directory.
func (r *Repository) UpdateBook(id int64, fields entities.BookFields, now time.Time) (*entities.Book, string, error) {
	current, err := r.GetBook(id)
	if err != nil {
		return nil, "", err
	}
	oldPath := current.Path

	title := current.Title
	if fields.Title != nil {
		title = strings.TrimSpace(*fields.Title)
	}
	authors := current.Authors
	if fields.Authors != nil {
		authors = fields.Authors
		if len(authors) == 0 {
			authors = []string{library.UnknownAuthor}
		}
		if err := r.setAuthors(id, authors); err != nil {
			return nil, "", err
		}
	}

	updates := map[string]any{
		"title":         title,
		"author_sort":   AuthorsSort(authors),
		"last_modified": now,
	}
	if fields.SeriesIndex != nil {
		updates["series_index"] = *fields.SeriesIndex
	}
	if len(fields.Cover) > 0 {
		updates["has_cover"] = true
	}
	if err := r.db.Model(&entities.CatalogBook{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, "", fmt.Errorf("update book: %w", err)
	}

	row := entities.CatalogBook{ID: id, Path: oldPath}
	if title != current.Title || current.PrimaryAuthor() != authors[0] {
		row.Path = library.BookPath(authors[0], title)
		if err := r.ensureUniquePath(&row, authors[0], title); err != nil {
			return nil, "", err
		}
	}

	if err := r.applyLinks(id, fields); err != nil {
		return nil, "", err
	}

	book, err := r.GetBook(id)
	if err != nil {
		return nil, "", err
	}
	return book, oldPath, nil
}

// SetCover records whether a cover exists and stamps last_modified.
func (r *Repository) SetCover(id int64, hasCover bool, now time.Time) error {
	res := r.db.Model(&entities.CatalogBook{}).Where("id = ?", id).
		Updates(map[string]any{"has_cover": hasCover, "last_modified": now})
	if res.Error != nil {
		return fmt.Errorf("set cover: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book %d: %w", id, entities.ErrNotFound)
	}
	return nil
}

// Touch sets last_modified without changing anything else.
func (r *Repository) Touch(id int64, t time.Time) error {
	return r.db.Model(&entities.CatalogBook{}).Where("id = ?", id).Update("last_modified", t).Error
}

// DeleteBook removes the book row and every row linked to it.
func (r *Repository) DeleteBook(id int64) error {
	for _, table := range linkTables {
		if err := r.db.Exec("DELETE FROM "+table+" WHERE book = ?", id).Error; err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	res := r.db.Delete(&entities.CatalogBook{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book %d: %w", id, entities.ErrNotFound)
	}
	return nil
}

// ensureUniquePath suffixes the title segment with the book id when another
// book already owns the path. The path keeps its two segments.
func (r *Repository) ensureUniquePath(row *entities.CatalogBook, author, title string) error {
	var clash int64
	if err := r.db.Model(&entities.CatalogBook{}).
		Where("path = ? AND id <> ?", row.Path, row.ID).Count(&clash).Error; err != nil {
		return err
	}
	if clash > 0 {
		row.Path = library.BookPath(author, fmt.Sprintf("%s (%d)", title, row.ID))
	}
	return r.db.Model(&entities.CatalogBook{}).Where("id = ?", row.ID).Update("path", row.Path).Error
}

func (r *Repository) applyLinks(id int64, f entities.BookFields) error {
	if f.Publisher != nil {
		if err := r.setPublisher(id, strings.TrimSpace(*f.Publisher)); err != nil {
			return err
		}
	}
	if f.Language != nil {
		if err := r.setLanguage(id, strings.TrimSpace(*f.Language)); err != nil {
			return err
		}
	}
	if f.Series != nil {
		if err := r.setSeries(id, strings.TrimSpace(*f.Series)); err != nil {
			return err
		}
	}
	if f.Rating != nil {
		if err := r.setRating(id, *f.Rating); err != nil {
			return err
		}
	}
	if f.Tags != nil {
		if err := r.setTags(id, f.Tags); err != nil {
			return err
		}
	}
	if f.Identifiers != nil {
		if err := r.setIdentifiers(id, f.Identifiers); err != nil {
			return err
		}
	}
	if f.Comment != nil {
		if err := r.setComment(id, *f.Comment); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) setAuthors(bookID int64, names []string) error {
	if err := r.db.Exec("DELETE FROM books_authors_link WHERE book = ?", bookID).Error; err != nil {
		return fmt.Errorf("clear authors: %w", err)
	}
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		var author entities.CatalogAuthor
		err := r.db.Where("name = ?", name).
			Attrs(entities.CatalogAuthor{Name: name, Sort: AuthorSort(name)}).
			FirstOrCreate(&author).Error
		if err != nil {
			return fmt.Errorf("author %q: %w", name, err)
		}
		if err := r.link("books_authors_link", bookID, "author", author.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) setPublisher(bookID int64, name string) error {
	if err := r.db.Exec("DELETE FROM books_publishers_link WHERE book = ?", bookID).Error; err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	var p entities.CatalogPublisher
	if err := r.db.Where("name = ?", name).Attrs(entities.CatalogPublisher{Name: name}).FirstOrCreate(&p).Error; err != nil {
		return fmt.Errorf("publisher %q: %w", name, err)
	}
	return r.link("books_publishers_link", bookID, "publisher", p.ID)
}

func (r *Repository) setLanguage(bookID int64, code string) error {
	if err := r.db.Exec("DELETE FROM books_languages_link WHERE book = ?", bookID).Error; err != nil {
		return err
	}
	if code == "" {
		return nil
	}
	code = strings.ToLower(code)
	var l entities.CatalogLanguage
	if err := r.db.Where("lang_code = ?", code).Attrs(entities.CatalogLanguage{LangCode: code}).FirstOrCreate(&l).Error; err != nil {
		return fmt.Errorf("language %q: %w", code, err)
	}
	return r.link("books_languages_link", bookID, "lang_code", l.ID)
}

func (r *Repository) setSeries(bookID int64, name string) error {
	if err := r.db.Exec("DELETE FROM books_series_link WHERE book = ?", bookID).Error; err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	var s entities.CatalogSeries
	if err := r.db.Where("name = ?", name).Attrs(entities.CatalogSeries{Name: name}).FirstOrCreate(&s).Error; err != nil {
		return fmt.Errorf("series %q: %w", name, err)
	}
	return r.link("books_series_link", bookID, "series", s.ID)
}

func (r *Repository) setRating(bookID int64, rating int) error {
	if err := r.db.Exec("DELETE FROM books_ratings_link WHERE book = ?", bookID).Error; err != nil {
		return err
	}
	if rating <= 0 {
		return nil
	}
	var rt entities.CatalogRating
	if err := r.db.Where("rating = ?", rating).Attrs(entities.CatalogRating{Rating: rating}).FirstOrCreate(&rt).Error; err != nil {
		return fmt.Errorf("rating %d: %w", rating, err)
	}
	return r.link("books_ratings_link", bookID, "rating", rt.ID)
}

func (r *Repository) setTags(bookID int64, tags []string) error {
	if err := r.db.Exec("DELETE FROM books_tags_link WHERE book = ?", bookID).Error; err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		var tag entities.CatalogTag
		if err := r.db.Where("name = ?", name).Attrs(entities.CatalogTag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
		if err := r.link("books_tags_link", bookID, "tag", tag.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) setIdentifiers(bookID int64, ids map[string]string) error {
	if err := r.db.Exec("DELETE FROM identifiers WHERE book = ?", bookID).Error; err != nil {
		return err
	}
	for typ, val := range ids {
		val = strings.TrimSpace(val)
		if typ == entities.IdentifierISBN {
			val = entities.NormalizeISBN(val)
		}
		row := entities.CatalogIdentifier{Book: bookID, Type: strings.ToLower(typ), Val: val}
		if err := r.db.Create(&row).Error; err != nil {
			return fmt.Errorf("identifier %s: %w", typ, err)
		}
	}
	return nil
}

func (r *Repository) setComment(bookID int64, text string) error {
	if err := r.db.Exec("DELETE FROM comments WHERE book = ?", bookID).Error; err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return r.db.Create(&entities.CatalogComment{Book: bookID, Text: text}).Error
}

func (r *Repository) link(table string, bookID int64, column string, value int64) error {
	err := r.db.Exec("INSERT INTO "+table+" (book, "+column+") VALUES (?, ?)", bookID, value).Error
	if err != nil {
		return fmt.Errorf("link %s: %w", table, err)
	}
	return nil
}

type linkedName struct {
	Book int64
	Name string
}

// hydrate assembles domain books for rows, batching one query per linked table.
func (r *Repository) hydrate(rows []entities.CatalogBook) ([]entities.Book, error) {
	if len(rows) == 0 {
		return []entities.Book{}, nil
	}

	ids := make([]int64, len(rows))
	books := make([]entities.Book, len(rows))
	index := make(map[int64]*entities.Book, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		books[i] = entities.Book{
			ID:           row.ID,
			UUID:         row.UUID,
			Title:        row.Title,
			Authors:      []string{},
			Identifiers:  map[string]string{},
			Tags:         []string{},
			SeriesIndex:  row.SeriesIndex,
			Path:         row.Path,
			HasCover:     row.HasCover,
			LastModified: row.LastModified,
		}
		index[row.ID] = &books[i]
	}

	lookups := []struct {
		query string
		apply func(b *entities.Book, name string)
	}{
		{
			"SELECT l.book AS book, a.name AS name FROM books_authors_link l JOIN authors a ON a.id = l.author WHERE l.book IN ? ORDER BY l.id",
			func(b *entities.Book, name string) { b.Authors = append(b.Authors, name) },
		},
		{
			"SELECT l.book AS book, p.name AS name FROM books_publishers_link l JOIN publishers p ON p.id = l.publisher WHERE l.book IN ?",
			func(b *entities.Book, name string) { b.Publisher = name },
		},
		{
			"SELECT l.book AS book, g.lang_code AS name FROM books_languages_link l JOIN languages g ON g.id = l.lang_code WHERE l.book IN ? ORDER BY l.item_order",
			func(b *entities.Book, name string) {
				if b.Language == "" {
					b.Language = name
				}
			},
		},
		{
			"SELECT l.book AS book, s.name AS name FROM books_series_link l JOIN series s ON s.id = l.series WHERE l.book IN ?",
			func(b *entities.Book, name string) { b.Series = name },
		},
		{
			"SELECT l.book AS book, t.name AS name FROM books_tags_link l JOIN tags t ON t.id = l.tag WHERE l.book IN ?",
			func(b *entities.Book, name string) { b.Tags = append(b.Tags, name) },
		},
		{
			"SELECT book, text AS name FROM comments WHERE book IN ?",
			func(b *entities.Book, name string) { b.Comment = name },
		},
	}

	// A book's links always land in one slice, so per-book ordering holds.
	err := batch.Each(ids, batch.Size, func(chunk []int64) error {
		for _, l := range lookups {
			var linked []linkedName
			if err := r.db.Raw(l.query, chunk).Scan(&linked).Error; err != nil {
				return fmt.Errorf("hydrate books: %w", err)
			}
			for _, ln := range linked {
				if b, ok := index[ln.Book]; ok {
					l.apply(b, ln.Name)
				}
			}
		}

		var ratings []struct {
			Book   int64
			Rating int
		}
		if err := r.db.Raw("SELECT l.book AS book, r.rating AS rating FROM books_ratings_link l JOIN ratings r ON r.id = l.rating WHERE l.book IN ?", chunk).
			Scan(&ratings).Error; err != nil {
			return fmt.Errorf("hydrate ratings: %w", err)
		}
		for _, rt := range ratings {
			if b, ok := index[rt.Book]; ok {
				b.Rating = rt.Rating
			}
		}

		var idents []entities.CatalogIdentifier
		if err := r.db.Where("book IN ?", chunk).Find(&idents).Error; err != nil {
			return fmt.Errorf("hydrate identifiers: %w", err)
		}
		for _, ident := range idents {
			if b, ok := index[ident.Book]; ok {
				b.Identifiers[strings.ToLower(ident.Type)] = ident.Val
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range books {
		sort.Strings(books[i].Tags)
	}
	return books, nil
}
