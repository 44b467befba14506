package services

import (
	"context"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// SyncTrigger requests a background reconciliation pass after a write.
// Implementations must return immediately.
type SyncTrigger interface {
	Trigger()
}

// BookReader provides read-only access to enriched books.
// Use this interface when you only need to query books.
type BookReader interface {
	GetBook(ctx context.Context, id int64, readerID string) (*entities.EnrichedBook, error)
	ListBooks(ctx context.Context, filter entities.BookFilter, readerID string) ([]entities.EnrichedBook, error)
}

// BookWriter performs the multi-store book writes.
type BookWriter interface {
	CreateBook(ctx context.Context, fields entities.BookFields) (*entities.EnrichedBook, error)
	UpdateBook(ctx context.Context, id int64, fields entities.BookFields) (*entities.EnrichedBook, error)
	DeleteBook(ctx context.Context, id int64) (*DeleteResult, error)
	SetCover(ctx context.Context, id int64, data []byte) error
}

// DeleteResult identifies the book a delete removed.
type DeleteResult struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}
