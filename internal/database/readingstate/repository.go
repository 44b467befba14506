package readingstate

import (
	"errors"
	"fmt"
	"time"

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

func (r *Repository) Get(bookID int64, readerID string) (*entities.ReadingState, error) {
	var state entities.ReadingState
	err := r.db.Where("book_id = ? AND reader_id = ?", bookID, readerID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading state %d/%s: %w", bookID, readerID, entities.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListForReader returns the reader's states for the given books keyed by book id.
func (r *Repository) ListForReader(readerID string, bookIDs []int64) (map[int64]entities.ReadingState, error) {
	out := make(map[int64]entities.ReadingState, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}
	err := batch.Each(bookIDs, batch.Size, func(chunk []int64) error {
		var rows []entities.ReadingState
		if err := r.db.Where("reader_id = ? AND book_id IN ?", readerID, chunk).Find(&rows).Error; err != nil {
			return fmt.Errorf("list reading states: %w", err)
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

// Upsert writes the full state row for (book, reader).
func (r *Repository) Upsert(state *entities.ReadingState) error {
	if state.ReadState == "" {
		state.ReadState = entities.ReadStateUnread
	}
	if !state.ReadState.Valid() {
		return entities.NewValidationError("read_state", "unknown state %q", state.ReadState)
	}
	if state.ReaderID == "" {
		return entities.NewValidationError("reader_id", "is required")
	}
	state.UpdatedAt = time.Now().UTC()
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "reader_id"}},
		UpdateAll: true,
	}).Create(state).Error
	if err != nil {
		return fmt.Errorf("upsert reading state: %w", err)
	}
	return nil
}

func (r *Repository) Delete(bookID int64, readerID string) error {
	return r.db.Where("book_id = ? AND reader_id = ?", bookID, readerID).Delete(&entities.ReadingState{}).Error
}
