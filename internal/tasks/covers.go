package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/shelfsync/internal/metadata"
)

// EnrichCoverTask fetches a missing cover for one book.
type EnrichCoverTask struct {
	BookID int64 `json:"book_id"`
}

func (t EnrichCoverTask) Config() backlite.QueueConfig {
	return enrichCoverQueueConfig(DefaultConfig())
}

func enrichCoverQueueConfig(s Config) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_cover",
		MaxAttempts: s.MaxRetries,
		Backoff:     s.RetryDelay,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   s.RetentionDuration,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// EnrichCoverProcessor treats "no cover upstream" as success so the task is
// not retried.
func EnrichCoverProcessor(enricher *metadata.Enricher) backlite.QueueProcessor[EnrichCoverTask] {
	return func(ctx context.Context, task EnrichCoverTask) error {
		if enricher == nil {
			return fmt.Errorf("enricher not configured")
		}
		res, err := enricher.EnrichBook(ctx, task.BookID)
		switch {
		case errors.Is(err, metadata.ErrNoCover):
			log.Printf("Tasks: no cover found for book %d", task.BookID)
			return nil
		case err != nil:
			return fmt.Errorf("enrich cover %d: %w", task.BookID, err)
		case res.Updated:
			log.Printf("Tasks: cover stored for book %d via %s", task.BookID, res.SearchMethod)
		}
		return nil
	}
}

func NewEnrichCoverQueue(enricher *metadata.Enricher, cfg Config) backlite.Queue {
	return configure(backlite.NewQueue(EnrichCoverProcessor(enricher)), enrichCoverQueueConfig(cfg.withDefaults()))
}

// EnrichAllCoversTask walks every book without a cover.
type EnrichAllCoversTask struct{}

func (t EnrichAllCoversTask) Config() backlite.QueueConfig {
	return enrichAllCoversQueueConfig(DefaultConfig())
}

// enrichAllCoversQueueConfig never retries; a failed walk is rerun on demand.
func enrichAllCoversQueueConfig(s Config) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_all_covers",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     60 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   s.RetentionDuration,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func EnrichAllCoversProcessor(enricher *metadata.Enricher) backlite.QueueProcessor[EnrichAllCoversTask] {
	return func(ctx context.Context, _ EnrichAllCoversTask) error {
		if enricher == nil {
			return fmt.Errorf("enricher not configured")
		}
		res, err := enricher.EnrichAllMissing(ctx)
		if err != nil {
			return fmt.Errorf("enrich all covers: %w", err)
		}
		log.Printf("Tasks: cover enrichment complete: %d total, %d enriched, %d skipped, %d failed",
			res.TotalBooks, res.Enriched, res.Skipped, res.Failed)
		return nil
	}
}

func NewEnrichAllCoversQueue(enricher *metadata.Enricher, cfg Config) backlite.Queue {
	return configure(backlite.NewQueue(EnrichAllCoversProcessor(enricher)), enrichAllCoversQueueConfig(cfg.withDefaults()))
}
