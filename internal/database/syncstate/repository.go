// Package syncstate persists reconciliation bookkeeping in the extension store:
// live progress per sync type, the history of finished passes, and the intent
// log that lets an interrupted multi-store write be finished later.
//
//	repo := syncstate.NewRepository(db, entities.SyncTypeReconcile)
//	if err := repo.StartSync(len(books)); err != nil { ... }
package syncstate

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// StaleAfter is how long a running sync may go without an update before it is
// treated as interrupted.
const StaleAfter = 10 * time.Minute

type Repository struct {
	db       *gorm.DB
	syncType entities.SyncType
}

func NewRepository(db *gorm.DB, syncType entities.SyncType) *Repository {
	return &Repository{db: db, syncType: syncType}
}

func (r *Repository) GetSyncProgress() (*entities.SyncProgress, error) {
	var progress entities.SyncProgress
	err := r.db.Where("sync_type = ?", r.syncType).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entities.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// StartSync creates or resets the progress row for this sync type.
func (r *Repository) StartSync(totalItems int) error {
	now := time.Now().UTC()
	progress := entities.SyncProgress{
		SyncType:   r.syncType,
		Status:     entities.SyncStatusRunning,
		TotalItems: totalItems,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sync_type"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":       entities.SyncStatusRunning,
			"total_items":  totalItems,
			"processed":    0,
			"succeeded":    0,
			"failed":       0,
			"skipped":      0,
			"current_item": "",
			"error":        "",
			"started_at":   now,
			"updated_at":   now,
			"completed_at": nil,
		}),
	}).Create(&progress).Error
}

func (r *Repository) UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error {
	return r.db.Model(&entities.SyncProgress{}).
		Where("sync_type = ?", r.syncType).
		Updates(map[string]any{
			"processed":    processed,
			"succeeded":    succeeded,
			"failed":       failed,
			"skipped":      skipped,
			"current_item": currentItem,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *Repository) CompleteSync(succeeded bool, errorMsg string) error {
	now := time.Now().UTC()
	status := entities.SyncStatusCompleted
	if !succeeded {
		status = entities.SyncStatusFailed
	}

	updates := map[string]any{
		"status":       status,
		"current_item": "",
		"updated_at":   now,
		"completed_at": now,
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	return r.db.Model(&entities.SyncProgress{}).
		Where("sync_type = ?", r.syncType).
		Updates(updates).Error
}

// IsSyncRunning reports whether a sync of this type is in progress. A stale
// running row is marked failed and reported as not running.
func (r *Repository) IsSyncRunning() (bool, error) {
	var progress entities.SyncProgress
	err := r.db.Where("sync_type = ? AND status = ?", r.syncType, entities.SyncStatusRunning).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if progress.UpdatedAt.Before(time.Now().Add(-StaleAfter)) {
		_ = r.CompleteSync(false, "sync was interrupted")
		return false, nil
	}
	return true, nil
}

func (r *Repository) SaveRun(run *entities.SyncRun) error {
	return r.db.Create(run).Error
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(limit int) ([]entities.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []entities.SyncRun
	err := r.db.Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func (r *Repository) LastRun() (*entities.SyncRun, error) {
	runs, err := r.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, entities.ErrNotFound
	}
	return &runs[0], nil
}

// RecordIntent notes a multi-store write before its first commit. The assigned
// id is passed to CompleteIntent once every store has been written.
func (r *Repository) RecordIntent(intent *entities.SyncIntent) error {
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}
	return r.db.Create(intent).Error
}

// SetIntentBook fills in the catalog id and path once a create has been assigned them.
func (r *Repository) SetIntentBook(id, bookID int64, path string) error {
	return r.db.Model(&entities.SyncIntent{}).Where("id = ?", id).
		Updates(map[string]any{"book_id": bookID, "book_path": path}).Error
}

func (r *Repository) CompleteIntent(id int64) error {
	return r.db.Delete(&entities.SyncIntent{}, id).Error
}

// PendingIntents returns unfinished intents oldest first.
func (r *Repository) PendingIntents() ([]entities.SyncIntent, error) {
	var intents []entities.SyncIntent
	err := r.db.Order("id").Find(&intents).Error
	return intents, err
}
