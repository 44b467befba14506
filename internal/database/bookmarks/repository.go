package bookmarks

import (
	"fmt"
	"sort"
	"strings"

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

// Create stores the bookmark and its tags together.
func (r *Repository) Create(bm *entities.Bookmark) error {
	if bm.BookID <= 0 {
		return entities.NewValidationError("book_id", "is required")
	}
	if bm.Page < 0 {
		return entities.NewValidationError("page", "must not be negative")
	}
	tags := normalizeTags(bm.Tags)

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bm).Error; err != nil {
			return fmt.Errorf("create bookmark: %w", err)
		}
		for _, tag := range tags {
			link := entities.BookmarkTag{BookmarkID: bm.ID, Tag: tag}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return fmt.Errorf("tag bookmark: %w", err)
			}
		}
		bm.Tags = tags
		return nil
	})
}

func (r *Repository) ListForBook(bookID int64, readerID string) ([]entities.Bookmark, error) {
	q := r.db.Where("book_id = ?", bookID)
	if readerID != "" {
		q = q.Where("reader_id = ?", readerID)
	}
	var rows []entities.Bookmark
	if err := q.Order("page, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return rows, r.attachTags(rows)
}

// ListByTag returns the reader's bookmarks carrying tag.
func (r *Repository) ListByTag(readerID, tag string) ([]entities.Bookmark, error) {
	var rows []entities.Bookmark
	err := r.db.Where("reader_id = ? AND id IN (SELECT bookmark_id FROM bookmark_tags WHERE tag = ?)", readerID, tag).
		Order("book_id, page").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list bookmarks by tag: %w", err)
	}
	return rows, r.attachTags(rows)
}

// Delete removes a bookmark; its tags cascade.
func (r *Repository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bookmark_id = ?", id).Delete(&entities.BookmarkTag{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&entities.Bookmark{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bookmark %d: %w", id, entities.ErrNotFound)
		}
		return nil
	})
}

func (r *Repository) attachTags(rows []entities.Bookmark) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]int64, len(rows))
	for i, bm := range rows {
		ids[i] = bm.ID
	}
	var links []entities.BookmarkTag
	err := batch.Each(ids, batch.Size, func(chunk []int64) error {
		var part []entities.BookmarkTag
		if err := r.db.Where("bookmark_id IN ?", chunk).Order("tag").Find(&part).Error; err != nil {
			return fmt.Errorf("load bookmark tags: %w", err)
		}
		links = append(links, part...)
		return nil
	})
	if err != nil {
		return err
	}
	byID := make(map[int64][]string)
	for _, l := range links {
		byID[l.BookmarkID] = append(byID[l.BookmarkID], l.Tag)
	}
	for i := range rows {
		rows[i].Tags = byID[rows[i].ID]
		if rows[i].Tags == nil {
			rows[i].Tags = []string{}
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
