package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// CoverProvider finds and downloads cover images.
type CoverProvider interface {
	CoverURLForISBN(isbn string) string
	SearchByTitle(ctx context.Context, title, author string) (*CoverMatch, error)
	FetchCover(ctx context.Context, coverURL string) ([]byte, error)
}

// BookSource lists the catalog books enrichment may work on.
type BookSource interface {
	GetBook(ctx context.Context, id int64, readerID string) (*entities.EnrichedBook, error)
	ListBooks(ctx context.Context, filter entities.BookFilter, readerID string) ([]entities.EnrichedBook, error)
}

// CoverWriter stores cover bytes for a book in every store that tracks them.
type CoverWriter interface {
	SetCover(ctx context.Context, id int64, data []byte) error
}

// ProgressReporter reports sync progress updates.
type ProgressReporter interface {
	StartSync(totalItems int) error
	UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error
	CompleteSync(succeeded bool, errorMsg string) error
	IsSyncRunning() (bool, error)
}

// EnrichmentResult contains the result of enriching one book.
type EnrichmentResult struct {
	BookID       int64  `json:"book_id"`
	Updated      bool   `json:"updated"`
	CoverURL     string `json:"cover_url,omitempty"`
	SearchMethod string `json:"search_method,omitempty"` // "isbn" or "title"
}

// Enricher fills missing covers from an external provider.
type Enricher struct {
	provider         CoverProvider
	books            BookSource
	covers           CoverWriter
	progressReporter ProgressReporter
}

func NewEnricher(provider CoverProvider, books BookSource, covers CoverWriter) *Enricher {
	return &Enricher{provider: provider, books: books, covers: covers}
}

// SetProgressReporter sets the progress reporter for bulk operations (optional).
func (e *Enricher) SetProgressReporter(reporter ProgressReporter) {
	e.progressReporter = reporter
}

// EnrichBook fetches a cover for a book that has none. It tries the ISBN first
// and falls back to a title and author search. Books that already have a cover
// in the library are left alone.
func (e *Enricher) EnrichBook(ctx context.Context, bookID int64) (*EnrichmentResult, error) {
	book, err := e.books.GetBook(ctx, bookID, "")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	result := &EnrichmentResult{BookID: bookID}
	if book.CoverExists {
		return result, nil
	}

	var data []byte
	if u := e.provider.CoverURLForISBN(book.ISBN()); u != "" {
		data, err = e.provider.FetchCover(ctx, u)
		if err == nil {
			result.CoverURL, result.SearchMethod = u, "isbn"
		}
	}
	if data == nil {
		match, err := e.provider.SearchByTitle(ctx, book.Title, book.PrimaryAuthor())
		if err != nil {
			return nil, fmt.Errorf("cover search failed: %w", err)
		}
		data, err = e.provider.FetchCover(ctx, match.CoverURL)
		if err != nil {
			return nil, fmt.Errorf("cover download failed: %w", err)
		}
		result.CoverURL, result.SearchMethod = match.CoverURL, "title"
	}

	if err := e.covers.SetCover(ctx, bookID, data); err != nil {
		return nil, fmt.Errorf("store cover: %w", err)
	}
	result.Updated = true
	log.Printf("Covers: book %d enriched via %s", bookID, result.SearchMethod)
	return result, nil
}

// BulkEnrichmentResult contains the summary of a bulk enrichment operation.
type BulkEnrichmentResult struct {
	TotalBooks int      `json:"total_books"`
	Enriched   int      `json:"enriched"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// EnrichAllMissing enriches every book without a cover. A book for which no
// cover exists upstream counts as skipped, not failed.
func (e *Enricher) EnrichAllMissing(ctx context.Context) (*BulkEnrichmentResult, error) {
	if e.progressReporter != nil {
		running, err := e.progressReporter.IsSyncRunning()
		if err != nil {
			return nil, fmt.Errorf("check sync status: %w", err)
		}
		if running {
			return nil, fmt.Errorf("cover enrichment is already in progress")
		}
	}

	all, err := e.books.ListBooks(ctx, entities.BookFilter{}, "")
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	var books []entities.EnrichedBook
	for _, b := range all {
		if !b.CoverExists {
			books = append(books, b)
		}
	}

	result := &BulkEnrichmentResult{TotalBooks: len(books)}
	if e.progressReporter != nil {
		if err := e.progressReporter.StartSync(len(books)); err != nil {
			return nil, fmt.Errorf("start sync progress: %w", err)
		}
	}

	for i, book := range books {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, "operation cancelled")
			if e.progressReporter != nil {
				_ = e.progressReporter.CompleteSync(false, "operation cancelled")
			}
			return result, ctx.Err()
		default:
		}

		if e.progressReporter != nil {
			_ = e.progressReporter.UpdateProgress(i, result.Enriched, result.Failed, result.Skipped, book.Title)
		}

		res, err := e.EnrichBook(ctx, book.ID)
		switch {
		case errors.Is(err, ErrNoCover):
			result.Skipped++
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", book.Title, err))
		case res.Updated:
			result.Enriched++
		default:
			result.Skipped++
		}
	}

	if e.progressReporter != nil {
		errorMsg := ""
		if len(result.Errors) > 0 {
			errorMsg = fmt.Sprintf("%d errors occurred", len(result.Errors))
		}
		_ = e.progressReporter.CompleteSync(result.Failed == 0, errorMsg)
	}
	return result, nil
}
