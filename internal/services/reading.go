package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/bookmarks"
	"github.com/mrlokans/shelfsync/internal/database/catalog"
	"github.com/mrlokans/shelfsync/internal/database/goals"
	"github.com/mrlokans/shelfsync/internal/database/groups"
	"github.com/mrlokans/shelfsync/internal/database/readingstate"
	"github.com/mrlokans/shelfsync/internal/database/sessions"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/metrics"
)

// StateUpdate changes a reader's state for one book. Nil fields are left as they are.
type StateUpdate struct {
	Favorite  *bool               `json:"favorite"`
	Wants     *bool               `json:"wants"`
	ReadState *entities.ReadState `json:"read_state"`
}

// ReadingService serves the reader-scoped data of the extension store. Reads
// for a reader are cached in that reader's namespace and every write clears it.
type ReadingService struct {
	manager *database.Manager
	cache   cache.Cache
	metrics *metrics.Metrics
}

func NewReadingService(manager *database.Manager, c cache.Cache) *ReadingService {
	return &ReadingService{manager: manager, cache: c}
}

// SetMetrics sets the metrics recorder (optional).
func (s *ReadingService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func requireReader(readerID string) error {
	if strings.TrimSpace(readerID) == "" {
		return entities.NewValidationError("reader_id", "is required")
	}
	return nil
}

// GetReadingState returns the reader's state for the book, or an unread state
// if none was stored yet.
func (s *ReadingService) GetReadingState(ctx context.Context, bookID int64, readerID string) (*entities.ReadingState, error) {
	if err := requireReader(readerID); err != nil {
		return nil, err
	}
	ns := cache.StateNamespace(readerID)
	key := fmt.Sprintf("book:%d", bookID)

	var state entities.ReadingState
	if s.cacheGet(ctx, ns, key, &state) {
		return &state, nil
	}
	gen, cacheable := s.cacheGeneration(ctx)
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	st, err := readingstate.NewRepository(extDB).Get(bookID, readerID)
	if isNotFound(err) {
		st = &entities.ReadingState{BookID: bookID, ReaderID: readerID, ReadState: entities.ReadStateUnread}
	} else if err != nil {
		return nil, err
	}
	if cacheable {
		s.cacheSet(ctx, ns, key, st, gen)
	}
	return st, nil
}

// UpdateReadingState merges the update into the stored state. The book must
// exist in the catalog. Flag and read-state transitions stamp their dates.
func (s *ReadingService) UpdateReadingState(ctx context.Context, bookID int64, update StateUpdate, readerID string) (*entities.ReadingState, error) {
	if err := requireReader(readerID); err != nil {
		return nil, err
	}
	if update.ReadState != nil && !update.ReadState.Valid() {
		return nil, entities.NewValidationError("read_state", "unknown state %q", *update.ReadState)
	}
	if err := s.requireBook(bookID); err != nil {
		return nil, err
	}
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}

	var state *entities.ReadingState
	err = extDB.Transaction(func(tx *gorm.DB) error {
		repo := readingstate.NewRepository(tx)
		current, err := repo.Get(bookID, readerID)
		if isNotFound(err) {
			current = &entities.ReadingState{BookID: bookID, ReaderID: readerID, ReadState: entities.ReadStateUnread}
		} else if err != nil {
			return err
		}
		applyStateUpdate(current, update, time.Now().UTC())
		state = current
		return repo.Upsert(current)
	})
	s.metrics.Write("reading_state", err)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, readerID)
	return state, nil
}

func applyStateUpdate(st *entities.ReadingState, u StateUpdate, now time.Time) {
	if u.Favorite != nil && *u.Favorite != st.Favorite {
		st.Favorite = *u.Favorite
		st.FavoriteDate = stampIf(st.Favorite, now)
	}
	if u.Wants != nil && *u.Wants != st.Wants {
		st.Wants = *u.Wants
		st.WantsDate = stampIf(st.Wants, now)
	}
	if u.ReadState != nil && *u.ReadState != st.ReadState {
		st.ReadState = *u.ReadState
		st.ReadDate = stampIf(st.ReadState == entities.ReadStateFinished, now)
	}
}

func stampIf(set bool, now time.Time) *time.Time {
	if !set {
		return nil
	}
	return &now
}

// RecordSession appends a reading session and updates the derived counters.
func (s *ReadingService) RecordSession(ctx context.Context, session *entities.ReadingSession) error {
	if err := requireReader(session.ReaderID); err != nil {
		return err
	}
	if err := sessions.Normalize(session); err != nil {
		return err
	}
	if err := s.requireBook(session.BookID); err != nil {
		return err
	}
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	err = sessions.NewRepository(extDB).Record(session)
	s.metrics.Write("session", err)
	if err != nil {
		return err
	}
	s.invalidate(ctx, session.ReaderID)
	return nil
}

func (s *ReadingService) ListSessions(_ context.Context, bookID int64, readerID string) ([]entities.ReadingSession, error) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	return sessions.NewRepository(extDB).ListForBook(bookID, readerID)
}

// Heatmap returns the reader's daily cells for a year, cached per reader.
func (s *ReadingService) Heatmap(ctx context.Context, readerID string, year int) ([]entities.HeatmapCell, error) {
	if err := requireReader(readerID); err != nil {
		return nil, err
	}
	ns := cache.StateNamespace(readerID)
	key := fmt.Sprintf("heatmap:%d", year)
	var cells []entities.HeatmapCell
	if s.cacheGet(ctx, ns, key, &cells) {
		return cells, nil
	}
	gen, cacheable := s.cacheGeneration(ctx)
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	cells, err = goals.NewRepository(extDB).Heatmap(readerID, year)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cacheSet(ctx, ns, key, cells, gen)
	}
	return cells, nil
}

// AddBookmark stores a bookmark with the book's current title and first author.
func (s *ReadingService) AddBookmark(ctx context.Context, bm *entities.Bookmark) error {
	if err := requireReader(bm.ReaderID); err != nil {
		return err
	}
	catDB, err := s.manager.Catalog()
	if err != nil {
		return err
	}
	book, err := catalog.NewRepository(catDB).GetBook(bm.BookID)
	if err != nil {
		return err
	}
	bm.BookTitle = book.Title
	bm.BookAuthor = book.PrimaryAuthor()

	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	err = bookmarks.NewRepository(extDB).Create(bm)
	s.metrics.Write("bookmark", err)
	if err != nil {
		return err
	}
	s.invalidate(ctx, bm.ReaderID)
	return nil
}

func (s *ReadingService) ListBookmarks(_ context.Context, bookID int64, readerID string) ([]entities.Bookmark, error) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	return bookmarks.NewRepository(extDB).ListForBook(bookID, readerID)
}

func (s *ReadingService) BookmarksByTag(_ context.Context, readerID, tag string) ([]entities.Bookmark, error) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	return bookmarks.NewRepository(extDB).ListByTag(readerID, tag)
}

func (s *ReadingService) DeleteBookmark(ctx context.Context, id int64, readerID string) error {
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	if err := bookmarks.NewRepository(extDB).Delete(id); err != nil {
		return err
	}
	s.invalidate(ctx, readerID)
	return nil
}

func (s *ReadingService) CreateGroup(_ context.Context, name, description string) (*entities.Group, error) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	return groups.NewRepository(extDB).Create(name, description)
}

func (s *ReadingService) ListGroups(_ context.Context) ([]entities.Group, error) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	return groups.NewRepository(extDB).List()
}

func (s *ReadingService) DeleteGroup(_ context.Context, id int64) error {
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	return groups.NewRepository(extDB).Delete(id)
}

// AddToGroup adds a catalog book to a group. Adding twice is a no-op.
func (s *ReadingService) AddToGroup(_ context.Context, bookID, groupID int64) error {
	if err := s.requireBook(bookID); err != nil {
		return err
	}
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	repo := groups.NewRepository(extDB)
	if _, err := repo.Get(groupID); err != nil {
		return err
	}
	return repo.AddBook(bookID, groupID)
}

func (s *ReadingService) RemoveFromGroup(_ context.Context, bookID, groupID int64) error {
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	return groups.NewRepository(extDB).RemoveBook(bookID, groupID)
}

func (s *ReadingService) SetGoal(ctx context.Context, goal *entities.ReadingGoal) error {
	if err := requireReader(goal.ReaderID); err != nil {
		return err
	}
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	goal.UpdatedAt = time.Now().UTC()
	if err := goals.NewRepository(extDB).UpsertGoal(goal); err != nil {
		return err
	}
	s.invalidate(ctx, goal.ReaderID)
	return nil
}

func (s *ReadingService) GetGoal(_ context.Context, readerID string, year int) (*entities.ReadingGoal, error) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	return goals.NewRepository(extDB).GetGoal(readerID, year)
}

func (s *ReadingService) AddWishlistItem(ctx context.Context, item *entities.WishlistItem) error {
	if err := requireReader(item.ReaderID); err != nil {
		return err
	}
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if err := goals.NewRepository(extDB).UpsertWishlistItem(item); err != nil {
		return err
	}
	s.invalidate(ctx, item.ReaderID)
	return nil
}

func (s *ReadingService) ListWishlist(_ context.Context, readerID string) ([]entities.WishlistItem, error) {
	extDB, err := s.manager.Extension()
	if err != nil {
		return nil, err
	}
	return goals.NewRepository(extDB).ListWishlist(readerID)
}

func (s *ReadingService) RemoveWishlistItem(ctx context.Context, readerID, isbn string) error {
	extDB, err := s.manager.Extension()
	if err != nil {
		return err
	}
	if err := goals.NewRepository(extDB).DeleteWishlistItem(readerID, isbn); err != nil {
		return err
	}
	s.invalidate(ctx, readerID)
	return nil
}

// requireBook checks the catalog for bookID. Extension rows for unknown books
// would only be removed again by the next reconciliation pass.
func (s *ReadingService) requireBook(bookID int64) error {
	catDB, err := s.manager.Catalog()
	if err != nil {
		return err
	}
	_, err = catalog.NewRepository(catDB).GetBook(bookID)
	return err
}

func (s *ReadingService) cacheGet(ctx context.Context, ns, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, ns, key, dest)
	if err != nil {
		log.Printf("Cache: get %s/%s failed: %v", ns, key, err)
		return false
	}
	return ok
}

func (s *ReadingService) cacheGeneration(ctx context.Context) (uint64, bool) {
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

func (s *ReadingService) cacheSet(ctx context.Context, ns, key string, value any, gen uint64) {
	if err := s.cache.SetAt(ctx, ns, key, value, gen); err != nil {
		log.Printf("Cache: set %s/%s failed: %v", ns, key, err)
	}
}

func (s *ReadingService) invalidate(ctx context.Context, readerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx, cache.StateNamespace(readerID)); err != nil {
		log.Printf("Cache: invalidation failed: %v", err)
	}
}
