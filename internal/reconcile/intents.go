package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/database/catalog"
	"github.com/mrlokans/shelfsync/internal/database/extensions"
	"github.com/mrlokans/shelfsync/internal/database/syncstate"
	"github.com/mrlokans/shelfsync/internal/entities"
)

var errNoIntentBook = errors.New("intent has neither book id nor uuid")

// replayIntents finishes multi-store writes that were interrupted after the
// catalog committed. An intent whose catalog change never landed is dropped.
func (e *Engine) replayIntents(ctx context.Context, res *PassResult, catDB, extDB *gorm.DB, repo *syncstate.Repository) {
	intents, err := repo.PendingIntents()
	if err != nil {
		res.addError(ErrorSystem, err.Error(), "load intents")
		return
	}
	for i := range intents {
		if ctx.Err() != nil {
			return
		}
		intent := &intents[i]
		if err := e.replayIntent(catDB, extDB, intent); err != nil {
			res.addError(classify(err), err.Error(), fmt.Sprintf("intent %d (%s)", intent.ID, intent.Operation))
			continue
		}
		if err := repo.CompleteIntent(intent.ID); err != nil {
			res.addError(ErrorSystem, err.Error(), fmt.Sprintf("intent %d", intent.ID))
			continue
		}
		res.IntentsReplayed++
	}
	if res.IntentsReplayed > 0 {
		log.Printf("Reconcile: replayed %d pending write(s)", res.IntentsReplayed)
	}
}

func (e *Engine) replayIntent(catDB, extDB *gorm.DB, intent *entities.SyncIntent) error {
	book, err := lookupIntentBook(catDB, intent)
	missing := errors.Is(err, entities.ErrNotFound) || errors.Is(err, errNoIntentBook)
	if err != nil && !missing {
		return err
	}

	switch intent.Operation {
	case entities.IntentDelete:
		if !missing {
			return nil
		}
		err := extDB.Transaction(func(tx *gorm.DB) error {
			_, err := extensions.NewRepository(tx).DeleteCascade(intent.BookID)
			return err
		})
		if err != nil {
			return err
		}
		if intent.BookPath != "" {
			return e.library.RemoveBook(intent.BookPath)
		}
		return nil

	default:
		if missing {
			return nil
		}
		if err := extensions.NewRepository(extDB).UpdateMirror(mirrorRow(book.ID, catalogRecord(book))); err != nil {
			return err
		}
		if intent.BookPath != "" && intent.BookPath != book.Path && e.library.Exists(intent.BookPath) {
			return e.library.MoveBook(intent.BookPath, book.Path, book.LastModified)
		}
		return e.library.EnsureBookDir(book.Path, book.LastModified)
	}
}

func lookupIntentBook(db *gorm.DB, intent *entities.SyncIntent) (*entities.Book, error) {
	repo := catalog.NewRepository(db)
	switch {
	case intent.BookID != 0:
		return repo.GetBook(intent.BookID)
	case intent.BookUUID != "":
		return repo.GetBookByUUID(intent.BookUUID)
	}
	return nil, errNoIntentBook
}
