// Package extensions stores the per-book application rows of the extension store
// and performs the cascading delete of everything that references a book.
package extensions

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/shelfsync/internal/database/batch"
	"github.com/mrlokans/shelfsync/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(bookID int64) (*entities.BookExtension, error) {
	var ext entities.BookExtension
	if err := r.db.Where("book_id = ?", bookID).First(&ext).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("extension %d: %w", bookID, entities.ErrNotFound)
		}
		return nil, err
	}
	return &ext, nil
}

// GetMany returns the extension rows for ids keyed by book id. Missing rows are
// simply absent from the map.
func (r *Repository) GetMany(ids []int64) (map[int64]entities.BookExtension, error) {
	out := make(map[int64]entities.BookExtension, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	err := batch.Each(ids, batch.Size, func(chunk []int64) error {
		var rows []entities.BookExtension
		if err := r.db.Where("book_id IN ?", chunk).Find(&rows).Error; err != nil {
			return fmt.Errorf("get extensions: %w", err)
		}
		for _, row := range rows {
			out[row.BookID] = row
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) List() ([]entities.BookExtension, error) {
	var rows []entities.BookExtension
	if err := r.db.Order("book_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list extensions: %w", err)
	}
	return rows, nil
}

// Upsert inserts the row or replaces every column of an existing one.
func (r *Repository) Upsert(ext *entities.BookExtension) error {
	if ext.BookType == 0 {
		ext.BookType = entities.DefaultBookType
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}},
		UpdateAll: true,
	}).Create(ext).Error
	if err != nil {
		return fmt.Errorf("upsert extension %d: %w", ext.BookID, err)
	}
	return nil
}

// UpdateMirror overwrites only the mirrored catalog fields and last_modified,
// creating the row when it does not exist yet.
func (r *Repository) UpdateMirror(ext *entities.BookExtension) error {
	if ext.BookType == 0 {
		ext.BookType = entities.DefaultBookType
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "author", "isbn", "publisher", "language", "rating", "has_cover", "last_modified",
		}),
	}).Create(ext).Error
	if err != nil {
		return fmt.Errorf("update mirror %d: %w", ext.BookID, err)
	}
	return nil
}

// MirrorOf builds an extension row carrying the catalog fields the extension
// store mirrors, stamped with the book's last_modified.
func MirrorOf(book *entities.Book) *entities.BookExtension {
	return &entities.BookExtension{
		BookID:       book.ID,
		BookType:     entities.DefaultBookType,
		Title:        book.Title,
		Author:       book.PrimaryAuthor(),
		ISBN:         book.ISBN(),
		Publisher:    book.Publisher,
		Language:     book.Language,
		Rating:       book.Rating,
		HasCover:     book.HasCover,
		LastModified: book.LastModified,
	}
}

// ApplyFields writes the application-owned columns set in f. The row must exist.
func (r *Repository) ApplyFields(bookID int64, f *entities.ExtensionFields) error {
	if f == nil {
		return nil
	}
	updates := map[string]any{}
	if f.BookType != nil {
		updates["book_type"] = *f.BookType
	}
	if f.PageCount != nil {
		updates["page_count"] = *f.PageCount
	}
	if f.StandardPrice != nil {
		updates["standard_price"] = *f.StandardPrice
	}
	if f.PurchasePrice != nil {
		updates["purchase_price"] = *f.PurchasePrice
	}
	if f.PurchaseDate != nil {
		updates["purchase_date"] = *f.PurchaseDate
	}
	if f.Binding1 != nil {
		updates["binding1"] = *f.Binding1
	}
	if f.Binding2 != nil {
		updates["binding2"] = *f.Binding2
	}
	if f.Note != nil {
		updates["note"] = *f.Note
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.Model(&entities.BookExtension{}).Where("book_id = ?", bookID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("apply extension fields %d: %w", bookID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("extension %d: %w", bookID, entities.ErrNotFound)
	}
	return nil
}

// CascadeResult counts the rows removed for one book.
type CascadeResult struct {
	BookID        int64    `json:"book_id"`
	Extension     int64    `json:"extension"`
	Memberships   int64    `json:"memberships"`
	ReadingStates int64    `json:"reading_states"`
	Sessions      int64    `json:"sessions"`
	Bookmarks     int64    `json:"bookmarks"`
	BookmarkTags  int64    `json:"bookmark_tags"`
	Readers       []string `json:"readers,omitempty"` // readers whose state rows were removed
}

func (c *CascadeResult) Total() int64 {
	return c.Extension + c.Memberships + c.ReadingStates + c.Sessions + c.Bookmarks + c.BookmarkTags
}

// DeleteCascade removes a book's extension row and all dependents. Run it on a
// transaction handle so the removal is all-or-nothing.
func (r *Repository) DeleteCascade(bookID int64) (*CascadeResult, error) {
	res := &CascadeResult{BookID: bookID}

	if err := r.db.Model(&entities.ReadingState{}).
		Where("book_id = ?", bookID).
		Distinct().Pluck("reader_id", &res.Readers).Error; err != nil {
		return nil, fmt.Errorf("collect readers: %w", err)
	}

	tagDel := r.db.Exec("DELETE FROM bookmark_tags WHERE bookmark_id IN (SELECT id FROM bookmarks WHERE book_id = ?)", bookID)
	if tagDel.Error != nil {
		return nil, fmt.Errorf("delete bookmark tags: %w", tagDel.Error)
	}
	res.BookmarkTags = tagDel.RowsAffected

	steps := []struct {
		model any
		count *int64
	}{
		{&entities.Bookmark{}, &res.Bookmarks},
		{&entities.ReadingSession{}, &res.Sessions},
		{&entities.ReadingState{}, &res.ReadingStates},
		{&entities.BookGroupMembership{}, &res.Memberships},
		{&entities.BookExtension{}, &res.Extension},
	}
	for _, step := range steps {
		del := r.db.Where("book_id = ?", bookID).Delete(step.model)
		if del.Error != nil {
			return nil, fmt.Errorf("cascade delete %d: %w", bookID, del.Error)
		}
		*step.count = del.RowsAffected
	}
	return res, nil
}

// OrphanCount returns how many rows in dependent tables still reference bookID.
func (r *Repository) OrphanCount(bookID int64) (int64, error) {
	var total int64
	for _, model := range []any{
		&entities.BookExtension{}, &entities.ReadingState{}, &entities.ReadingSession{},
		&entities.Bookmark{}, &entities.BookGroupMembership{},
	} {
		var n int64
		if err := r.db.Model(model).Where("book_id = ?", bookID).Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
