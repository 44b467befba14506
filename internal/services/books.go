package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/catalog"
	"github.com/mrlokans/shelfsync/internal/database/extensions"
	"github.com/mrlokans/shelfsync/internal/database/groups"
	"github.com/mrlokans/shelfsync/internal/database/readingstate"
	"github.com/mrlokans/shelfsync/internal/database/syncstate"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/library"
	"github.com/mrlokans/shelfsync/internal/metrics"
)

// BookService performs book writes across the three stores in a fixed order:
// catalog transaction, extension transaction, library files, cache
// invalidation, sync trigger. The two transactions are independent; an intent
// row recorded before the catalog commit lets reconciliation finish a write
// that stopped halfway.
type BookService struct {
	manager *database.Manager
	library *library.Library
	cache   cache.Cache
	metrics *metrics.Metrics
	trigger SyncTrigger

	now func() time.Time
}

func NewBookService(manager *database.Manager, lib *library.Library, c cache.Cache) *BookService {
	return &BookService{
		manager: manager,
		library: lib,
		cache:   c,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// SetMetrics sets the metrics recorder (optional).
func (s *BookService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetTrigger sets the reconciliation trigger fired after writes (optional).
func (s *BookService) SetTrigger(t SyncTrigger) {
	s.trigger = t
}

// CreateBook validates fields, creates the catalog book and then its extension
// row, group memberships and library directory. When a step after the catalog
// commit fails the created book is still returned together with an error
// wrapping entities.ErrPartialWrite.
func (s *BookService) CreateBook(ctx context.Context, fields entities.BookFields) (*entities.EnrichedBook, error) {
	if err := fields.ValidateCreate(); err != nil {
		return nil, err
	}
	catDB, err := s.manager.Catalog()
	if err != nil {
		return nil, err
	}

	now := s.now()
	intent := s.recordIntent(&entities.SyncIntent{BookUUID: uuid.NewString(), Operation: entities.IntentCreate})

	var book *entities.Book
	err = catDB.Transaction(func(tx *gorm.DB) error {
		book, err = catalog.NewRepository(tx).CreateBook(fields, intent.BookUUID, now)
		return err
	})
	s.metrics.Write("create", err)
	if err != nil {
		s.dropIntent(intent)
		return nil, err
	}
	log.Printf("Created book %d %q at %s", book.ID, book.Title, book.Path)
	s.setIntentBook(intent, book)

	partial := s.finishWrite(ctx, intent, book, "", fields)
	enriched, err := s.enrichOne(ctx, book, "")
	if err != nil {
		return nil, err
	}
	return enriched, partial
}

// UpdateBook applies the supplied fields. Title or first author changes move
// the library directory.
func (s *BookService) UpdateBook(ctx context.Context, id int64, fields entities.BookFields) (*entities.EnrichedBook, error) {
	if err := fields.ValidateUpdate(); err != nil {
		return nil, err
	}
	catDB, err := s.manager.Catalog()
	if err != nil {
		return nil, err
	}

	now := s.now()
	intent := s.recordIntent(&entities.SyncIntent{BookID: id, Operation: entities.IntentUpdate})

	var book *entities.Book
	var oldPath string
	err = catDB.Transaction(func(tx *gorm.DB) error {
		repo := catalog.NewRepository(tx)
		book, oldPath, err = repo.UpdateBook(id, fields, now)
		if err != nil {
			return err
		}
		if len(fields.Cover) > 0 && !book.HasCover {
			if err := repo.SetCover(id, true, now); err != nil {
				return err
			}
			book.HasCover = true
		}
		return nil
	})
	s.metrics.Write("update", err)
	if err != nil {
		s.dropIntent(intent)
		return nil, err
	}
	s.setIntentPath(intent, oldPath)

	partial := s.finishWrite(ctx, intent, book, oldPath, fields)
	enriched, err := s.enrichOne(ctx, book, "")
	if err != nil {
		return nil, err
	}
	return enriched, partial
}

// finishWrite runs every step after the catalog commit. Each step is attempted
// even if an earlier one failed; the intent stays pending unless all succeed.
func (s *BookService) finishWrite(ctx context.Context, intent *entities.SyncIntent, book *entities.Book, oldPath string, fields entities.BookFields) error {
	var errs []error

	if err := s.writeExtension(book, fields); err != nil {
		errs = append(errs, fmt.Errorf("extension store: %w", err))
	}
	if err := s.writeLibrary(book, oldPath, fields.Cover); err != nil {
		errs = append(errs, fmt.Errorf("library: %w", err))
	}

	s.invalidate(ctx, false)
	if len(errs) == 0 {
		s.completeIntent(intent)
	}
	s.fireTrigger()

	if len(errs) > 0 {
		err := fmt.Errorf("%w: book %d: %v", entities.ErrPartialWrite, book.ID, errors.Join(errs...))
		log.Printf("Book %d: %v", book.ID, err)
		return err
	}
	return nil
}

func (s *BookService) writeExtension(book *entities.Book, fields entities.BookFields) error {
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	return extDB.Transaction(func(tx *gorm.DB) error {
		repo := extensions.NewRepository(tx)
		if err := repo.UpdateMirror(extensions.MirrorOf(book)); err != nil {
			return err
		}
		if err := repo.ApplyFields(book.ID, fields.Extension); err != nil {
			return err
		}
		if fields.Groups != nil {
			return groups.NewRepository(tx).SetBookGroups(book.ID, fields.Groups)
		}
		return nil
	})
}

func (s *BookService) writeLibrary(book *entities.Book, oldPath string, cover []byte) error {
	if oldPath != "" && oldPath != book.Path {
		if err := s.library.MoveBook(oldPath, book.Path, book.LastModified); err != nil {
			return err
		}
	}
	if len(cover) > 0 {
		return s.library.WriteCover(book.Path, cover, book.LastModified)
	}
	return s.library.EnsureBookDir(book.Path, book.LastModified)
}

// DeleteBook removes the book from the catalog, then its extension rows and
// dependents, then its library directory.
func (s *BookService) DeleteBook(ctx context.Context, id int64) (*DeleteResult, error) {
	catDB, err := s.manager.Catalog()
	if err != nil {
		return nil, err
	}
	book, err := catalog.NewRepository(catDB).GetBook(id)
	if err != nil {
		return nil, err
	}

	intent := s.recordIntent(&entities.SyncIntent{BookID: id, BookUUID: book.UUID, BookPath: book.Path, Operation: entities.IntentDelete})

	err = catDB.Transaction(func(tx *gorm.DB) error {
		return catalog.NewRepository(tx).DeleteBook(id)
	})
	s.metrics.Write("delete", err)
	if err != nil {
		s.dropIntent(intent)
		return nil, err
	}
	log.Printf("Deleted book %d %q", id, book.Title)

	var errs []error
	extDB, err := s.manager.Extension()
	if err == nil {
		err = extDB.Transaction(func(tx *gorm.DB) error {
			res, err := extensions.NewRepository(tx).DeleteCascade(id)
			if err == nil && res.Total() > 0 {
				log.Printf("Book %d: removed %d dependent extension rows", id, res.Total())
			}
			return err
		})
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("extension store: %w", err))
	}
	if err := s.library.RemoveBook(book.Path); err != nil {
		errs = append(errs, fmt.Errorf("library: %w", err))
	}

	s.invalidate(ctx, true)
	if len(errs) == 0 {
		s.completeIntent(intent)
	}
	s.fireTrigger()

	result := &DeleteResult{ID: id, Title: book.Title}
	if len(errs) > 0 {
		return result, fmt.Errorf("%w: book %d: %v", entities.ErrPartialWrite, id, errors.Join(errs...))
	}
	return result, nil
}

// SetCover stores or, with empty data, removes the cover of a book.
func (s *BookService) SetCover(ctx context.Context, id int64, data []byte) error {
	catDB, err := s.manager.Catalog()
	if err != nil {
		return err
	}
	repo := catalog.NewRepository(catDB)
	book, err := repo.GetBook(id)
	if err != nil {
		return err
	}

	now := s.now()
	hasCover := len(data) > 0
	if hasCover {
		err = s.library.WriteCover(book.Path, data, now)
	} else {
		err = s.library.RemoveCover(book.Path, now)
	}
	if err != nil {
		return fmt.Errorf("cover for book %d: %w", id, err)
	}
	err = repo.SetCover(id, hasCover, now)
	s.metrics.Write("cover", err)
	if err != nil {
		return err
	}
	book.HasCover = hasCover
	book.LastModified = now

	if extDB, err := s.manager.Extension(); err == nil {
		if err := extensions.NewRepository(extDB).UpdateMirror(extensions.MirrorOf(book)); err != nil {
			log.Printf("Book %d: mirror update after cover change failed: %v", id, err)
		}
	}
	s.invalidate(ctx, false)
	return nil
}

// GetBook returns the enriched book. Catalog data is served from the cache;
// extension and reader data are joined on every call.
func (s *BookService) GetBook(ctx context.Context, id int64, readerID string) (*entities.EnrichedBook, error) {
	key := fmt.Sprintf("book:%d", id)
	var book entities.Book
	if !s.cacheGet(ctx, key, &book) {
		gen, cacheable := s.cacheGeneration(ctx)
		catDB, err := s.manager.Catalog()
		if err != nil {
			return nil, err
		}
		b, err := catalog.NewRepository(catDB).GetBook(id)
		if err != nil {
			return nil, err
		}
		book = *b
		if cacheable {
			s.cacheSet(ctx, key, book, gen)
		}
	}
	return s.enrichOne(ctx, &book, readerID)
}

func (s *BookService) ListBooks(ctx context.Context, filter entities.BookFilter, readerID string) ([]entities.EnrichedBook, error) {
	key := fmt.Sprintf("list:%s|%s|%s|%d|%d", filter.Query, filter.Tag, filter.Author, filter.Limit, filter.Offset)
	var books []entities.Book
	if !s.cacheGet(ctx, key, &books) {
		gen, cacheable := s.cacheGeneration(ctx)
		catDB, err := s.manager.Catalog()
		if err != nil {
			return nil, err
		}
		books, err = catalog.NewRepository(catDB).ListBooks(filter)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.cacheSet(ctx, key, books, gen)
		}
	}
	return s.enrich(books, readerID), nil
}

func (s *BookService) enrichOne(_ context.Context, book *entities.Book, readerID string) (*entities.EnrichedBook, error) {
	out := s.enrich([]entities.Book{*book}, readerID)
	return &out[0], nil
}

// enrich joins catalog books with extension rows, groups, reading state and
// library facts. An unavailable extension store leaves those parts empty.
func (s *BookService) enrich(books []entities.Book, readerID string) []entities.EnrichedBook {
	out := make([]entities.EnrichedBook, len(books))
	ids := make([]int64, len(books))
	for i, b := range books {
		ids[i] = b.ID
		out[i] = entities.EnrichedBook{
			Book:        b,
			BookType:    entities.DefaultBookType,
			Groups:      []entities.Group{},
			CoverExists: s.library.HasCover(b.Path),
		}
		if out[i].CoverExists {
			out[i].CoverURL = fmt.Sprintf("/api/books/%d/cover", b.ID)
		}
	}

	extDB, err := s.manager.Extension()
	if err != nil || len(books) == 0 {
		return out
	}
	exts, err := extensions.NewRepository(extDB).GetMany(ids)
	if err != nil {
		log.Printf("Enrich: extension rows unavailable: %v", err)
		exts = nil
	}
	memberships, err := groups.NewRepository(extDB).GroupsForBooks(ids)
	if err != nil {
		log.Printf("Enrich: groups unavailable: %v", err)
		memberships = nil
	}
	var states map[int64]entities.ReadingState
	if strings.TrimSpace(readerID) != "" {
		states, err = readingstate.NewRepository(extDB).ListForReader(readerID, ids)
		if err != nil {
			log.Printf("Enrich: reading state unavailable: %v", err)
			states = nil
		}
	}

	for i := range out {
		id := out[i].ID
		if ext, ok := exts[id]; ok {
			ext := ext
			out[i].Extension = &ext
			out[i].BookType = ext.BookType
		}
		if gs, ok := memberships[id]; ok {
			out[i].Groups = gs
		}
		if st, ok := states[id]; ok {
			st := st
			out[i].ReadingState = &st
		}
	}
	return out
}

func (s *BookService) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, cache.NamespaceCatalog, key, dest)
	if err != nil {
		log.Printf("Cache: get %s failed: %v", key, err)
		return false
	}
	return ok
}

// cacheGeneration is taken before a store read; the read result is only cached
// if no invalidation happened since.
func (s *BookService) cacheGeneration(ctx context.Context) (uint64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		log.Printf("Cache: generation failed: %v", err)
		return 0, false
	}
	return gen, true
}

func (s *BookService) cacheSet(ctx context.Context, key string, value any, gen uint64) {
	if err := s.cache.SetAt(ctx, cache.NamespaceCatalog, key, value, gen); err != nil {
		log.Printf("Cache: set %s failed: %v", key, err)
	}
}

// invalidate drops cached catalog reads, and every reader's state when a
// delete removed reading state rows.
func (s *BookService) invalidate(ctx context.Context, readerState bool) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx, cache.NamespaceCatalog); err != nil {
		log.Printf("Cache: invalidation failed: %v", err)
	}
	if readerState {
		if err := s.cache.InvalidatePrefix(ctx, "state:"); err != nil {
			log.Printf("Cache: invalidation failed: %v", err)
		}
	}
}

func (s *BookService) fireTrigger() {
	if s.trigger != nil {
		s.trigger.Trigger()
	}
}

// recordIntent writes the intent row when the extension store is up. The
// returned intent has ID 0 when nothing was recorded.
func (s *BookService) recordIntent(intent *entities.SyncIntent) *entities.SyncIntent {
	repo, ok := s.intents()
	if !ok {
		return intent
	}
	if err := repo.RecordIntent(intent); err != nil {
		log.Printf("Intent log: record failed: %v", err)
		intent.ID = 0
	}
	return intent
}

func (s *BookService) setIntentBook(intent *entities.SyncIntent, book *entities.Book) {
	intent.BookID = book.ID
	s.setIntentPath(intent, book.Path)
}

func (s *BookService) setIntentPath(intent *entities.SyncIntent, path string) {
	intent.BookPath = path
	if intent.ID == 0 {
		return
	}
	if repo, ok := s.intents(); ok {
		if err := repo.SetIntentBook(intent.ID, intent.BookID, path); err != nil {
			log.Printf("Intent log: update %d failed: %v", intent.ID, err)
		}
	}
}

func (s *BookService) completeIntent(intent *entities.SyncIntent) {
	if intent.ID == 0 {
		return
	}
	if repo, ok := s.intents(); ok {
		if err := repo.CompleteIntent(intent.ID); err != nil {
			log.Printf("Intent log: complete %d failed: %v", intent.ID, err)
		}
	}
}

// dropIntent discards the intent of a write whose catalog transaction failed.
func (s *BookService) dropIntent(intent *entities.SyncIntent) {
	s.completeIntent(intent)
}

func (s *BookService) intents() (*syncstate.Repository, bool) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, false
	}
	return syncstate.NewRepository(extDB, entities.SyncTypeReconcile), true
}
