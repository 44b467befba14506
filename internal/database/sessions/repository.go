// Package sessions records reading sessions. Each session also updates the
// book's extension counters and the reader's daily and heatmap aggregates in the
// same transaction; the store has no triggers for this.
package sessions

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/entities"
)

const dateLayout = "2006-01-02"

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Normalize fills derived values and checks the session is well formed.
func Normalize(s *entities.ReadingSession) error {
	if s.BookID <= 0 {
		return entities.NewValidationError("book_id", "is required")
	}
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return entities.NewValidationError("start_time", "start and end time are required")
	}
	if s.EndTime.Before(s.StartTime) {
		return entities.NewValidationError("end_time", "is before start_time")
	}
	if s.StartPage < 0 || s.EndPage < 0 || s.PagesRead < 0 {
		return entities.NewValidationError("pages", "must not be negative")
	}
	if s.Duration == 0 {
		s.Duration = int64(s.EndTime.Sub(s.StartTime) / time.Second)
	}
	if s.PagesRead == 0 && s.EndPage > s.StartPage {
		s.PagesRead = s.EndPage - s.StartPage
	}
	s.StartTime = s.StartTime.UTC()
	s.EndTime = s.EndTime.UTC()
	return nil
}

// Record appends the session and updates counters and aggregates.
func (r *Repository) Record(s *entities.ReadingSession) error {
	if err := Normalize(s); err != nil {
		return err
	}
	day := s.StartTime.Format(dateLayout)

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if err := tx.Exec("INSERT OR IGNORE INTO book_extensions (book_id, book_type) VALUES (?, ?)",
			s.BookID, entities.DefaultBookType).Error; err != nil {
			return fmt.Errorf("ensure extension row: %w", err)
		}
		if err := tx.Exec(`UPDATE book_extensions SET
				total_reading_time = total_reading_time + ?,
				read_pages = read_pages + ?,
				reading_count = reading_count + 1,
				last_read_date = ?,
				last_read_duration = ?
			WHERE book_id = ?`,
			s.Duration, s.PagesRead, s.EndTime, s.Duration, s.BookID).Error; err != nil {
			return fmt.Errorf("update counters: %w", err)
		}

		if err := tx.Exec(`INSERT INTO daily_reading_stats (reader_id, date, total_seconds, pages_read, sessions)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(reader_id, date) DO UPDATE SET
				total_seconds = total_seconds + excluded.total_seconds,
				pages_read = pages_read + excluded.pages_read,
				sessions = sessions + 1`,
			s.ReaderID, day, s.Duration, s.PagesRead).Error; err != nil {
			return fmt.Errorf("update daily stats: %w", err)
		}

		if err := tx.Exec(`INSERT INTO heatmap_cells (reader_id, date, seconds, pages)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(reader_id, date) DO UPDATE SET
				seconds = seconds + excluded.seconds,
				pages = pages + excluded.pages`,
			s.ReaderID, day, s.Duration, s.PagesRead).Error; err != nil {
			return fmt.Errorf("update heatmap: %w", err)
		}
		return nil
	})
}

func (r *Repository) ListForBook(bookID int64, readerID string) ([]entities.ReadingSession, error) {
	var rows []entities.ReadingSession
	q := r.db.Where("book_id = ?", bookID)
	if readerID != "" {
		q = q.Where("reader_id = ?", readerID)
	}
	if err := q.Order("start_time").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

// DailyStats returns aggregates for the reader between from and to inclusive.
func (r *Repository) DailyStats(readerID string, from, to time.Time) ([]entities.DailyReadingStat, error) {
	var rows []entities.DailyReadingStat
	err := r.db.Where("reader_id = ? AND date BETWEEN ? AND ?", readerID, from.Format(dateLayout), to.Format(dateLayout)).
		Order("date").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return rows, nil
}
