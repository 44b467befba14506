// Package goals holds the small per-reader tables: yearly reading goals, the
// wishlist and the reading heatmap. All rows are upserted on their natural key.
package goals

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/shelfsync/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) UpsertGoal(goal *entities.ReadingGoal) error {
	if goal.Year < 1000 || goal.Year > 9999 {
		return entities.NewValidationError("year", "out of range: %d", goal.Year)
	}
	if goal.TargetBooks < 0 || goal.TargetPages < 0 {
		return entities.NewValidationError("target", "must not be negative")
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reader_id"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"target_books", "target_pages", "updated_at"}),
	}).Create(goal).Error
}

func (r *Repository) GetGoal(readerID string, year int) (*entities.ReadingGoal, error) {
	var g entities.ReadingGoal
	err := r.db.Where("reader_id = ? AND year = ?", readerID, year).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("goal %s/%d: %w", readerID, year, entities.ErrNotFound)
	}
	return &g, err
}

func (r *Repository) UpsertWishlistItem(item *entities.WishlistItem) error {
	item.ISBN = entities.NormalizeISBN(item.ISBN)
	if !entities.ValidISBN(item.ISBN) {
		return entities.NewValidationError("isbn", "malformed isbn %q", item.ISBN)
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reader_id"}, {Name: "isbn"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "note"}),
	}).Create(item).Error
}

func (r *Repository) ListWishlist(readerID string) ([]entities.WishlistItem, error) {
	var rows []entities.WishlistItem
	err := r.db.Where("reader_id = ?", readerID).Order("created_at").Find(&rows).Error
	return rows, err
}

func (r *Repository) DeleteWishlistItem(readerID, isbn string) error {
	return r.db.Where("reader_id = ? AND isbn = ?", readerID, entities.NormalizeISBN(isbn)).
		Delete(&entities.WishlistItem{}).Error
}

// Heatmap returns the reader's cells for one calendar year.
func (r *Repository) Heatmap(readerID string, year int) ([]entities.HeatmapCell, error) {
	prefix := strconv.Itoa(year) + "-"
	var rows []entities.HeatmapCell
	err := r.db.Where("reader_id = ? AND date LIKE ?", readerID, prefix+"%").Order("date").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}
	return rows, nil
}

// UpsertHeatmapCell sets a cell to the given totals, replacing what was there.
func (r *Repository) UpsertHeatmapCell(cell *entities.HeatmapCell) error {
	if len(strings.Split(cell.Date, "-")) != 3 {
		return entities.NewValidationError("date", "want YYYY-MM-DD, got %q", cell.Date)
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reader_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"seconds", "pages"}),
	}).Create(cell).Error
}
