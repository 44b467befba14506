package entities

import (
	"time"
)

type SyncType string

const (
	SyncTypeReconcile SyncType = "reconcile"
	SyncTypeCovers    SyncType = "covers"
)

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

type SyncProgress struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SyncType    SyncType   `gorm:"column:sync_type" json:"sync_type"`
	Status      SyncStatus `gorm:"column:status" json:"status"`
	TotalItems  int        `gorm:"column:total_items" json:"total_items"`
	Processed   int        `gorm:"column:processed" json:"processed"`
	Succeeded   int        `gorm:"column:succeeded" json:"succeeded"`
	Failed      int        `gorm:"column:failed" json:"failed"`
	Skipped     int        `gorm:"column:skipped" json:"skipped"`
	CurrentItem string     `gorm:"column:current_item" json:"current_item,omitempty"`
	Error       string     `gorm:"column:error" json:"error,omitempty"`
	StartedAt   time.Time  `gorm:"column:started_at" json:"started_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (SyncProgress) TableName() string {
	return "sync_progress"
}

// SyncRun is one finished reconciliation pass as stored in the extension store.
type SyncRun struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Direction       string    `gorm:"column:direction" json:"direction"`
	Policy          string    `gorm:"column:policy" json:"policy"`
	Synced          int       `gorm:"column:synced" json:"synced"`
	Failed          int       `gorm:"column:failed" json:"failed"`
	Conflicted      int       `gorm:"column:conflicted" json:"conflicted"`
	Skipped         int       `gorm:"column:skipped" json:"skipped"`
	Deleted         int       `gorm:"column:deleted" json:"deleted"`
	IntentsReplayed int       `gorm:"column:intents_replayed" json:"intents_replayed"`
	Errors          string    `gorm:"column:errors" json:"errors,omitempty"` // JSON array
	StartedAt       time.Time `gorm:"column:started_at" json:"started_at"`
	FinishedAt      time.Time `gorm:"column:finished_at" json:"finished_at"`
}

func (SyncRun) TableName() string { return "sync_runs" }

type IntentOperation string

const (
	IntentCreate IntentOperation = "create"
	IntentUpdate IntentOperation = "update"
	IntentDelete IntentOperation = "delete"
)

// SyncIntent records a pending multi-store write before the catalog commits, so a
// crash between the two transactions can be found and finished later.
type SyncIntent struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BookUUID  string          `gorm:"column:book_uuid" json:"book_uuid"`
	BookID    int64           `gorm:"column:book_id" json:"book_id"`
	BookPath  string          `gorm:"column:book_path" json:"book_path,omitempty"`
	Operation IntentOperation `gorm:"column:operation" json:"operation"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (SyncIntent) TableName() string { return "sync_intents" }
