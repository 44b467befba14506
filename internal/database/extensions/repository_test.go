package extensions_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/bookmarks"
	"github.com/mrlokans/shelfsync/internal/database/extensions"
	"github.com/mrlokans/shelfsync/internal/database/groups"
	"github.com/mrlokans/shelfsync/internal/database/readingstate"
	"github.com/mrlokans/shelfsync/internal/database/sessions"
	"github.com/mrlokans/shelfsync/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	m := database.NewManager()
	require.NoError(t, m.Open(database.StoreExtension, filepath.Join(t.TempDir(), "shelfsync.db")))
	t.Cleanup(func() { m.Close() })
	db, err := m.Extension()
	require.NoError(t, err)
	return db
}

func TestRepository_UpsertAndGet(t *testing.T) {
	repo := extensions.NewRepository(setupTestDB(t))

	_, err := repo.Get(1)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	ext := entities.BookExtension{BookID: 1, PageCount: 320, Title: "Dune", Author: "Frank Herbert"}
	require.NoError(t, repo.Upsert(&ext))

	got, err := repo.Get(1)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultBookType, got.BookType)
	assert.Equal(t, 320, got.PageCount)
	assert.Equal(t, "Dune", got.Title)

	ext.PageCount = 400
	require.NoError(t, repo.Upsert(&ext))
	got, err = repo.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 400, got.PageCount)
}

func TestRepository_UpdateMirrorKeepsLocalFields(t *testing.T) {
	repo := extensions.NewRepository(setupTestDB(t))

	require.NoError(t, repo.Upsert(&entities.BookExtension{BookID: 5, PageCount: 200, Note: "signed copy", Title: "Old"}))

	modified := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateMirror(&entities.BookExtension{BookID: 5, Title: "New", HasCover: true, LastModified: modified}))

	got, err := repo.Get(5)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.True(t, got.HasCover)
	assert.Equal(t, 200, got.PageCount)
	assert.Equal(t, "signed copy", got.Note)
	assert.True(t, modified.Equal(got.LastModified))
}

func TestRepository_GetMany(t *testing.T) {
	repo := extensions.NewRepository(setupTestDB(t))
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, repo.Upsert(&entities.BookExtension{BookID: id}))
	}

	got, err := repo.GetMany([]int64{2, 3, 9})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, int64(2))
	assert.NotContains(t, got, int64(9))

	empty, err := repo.GetMany(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_DeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	repo := extensions.NewRepository(db)
	const bookID = int64(17)

	require.NoError(t, repo.Upsert(&entities.BookExtension{BookID: bookID}))
	require.NoError(t, readingstate.NewRepository(db).Upsert(&entities.ReadingState{BookID: bookID, ReaderID: "alice", ReadState: entities.ReadStateReading}))

	marks := bookmarks.NewRepository(db)
	require.NoError(t, marks.Create(&entities.Bookmark{BookID: bookID, ReaderID: "alice", Page: 10, Tags: []string{"quote"}}))
	require.NoError(t, marks.Create(&entities.Bookmark{BookID: bookID, ReaderID: "alice", Page: 42}))

	g, err := groups.NewRepository(db).Create("Shelf", "")
	require.NoError(t, err)
	require.NoError(t, groups.NewRepository(db).AddBook(bookID, g.ID))

	start := time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s := entities.ReadingSession{
			BookID:    bookID,
			ReaderID:  "alice",
			StartTime: start.Add(time.Duration(i) * 24 * time.Hour),
			EndTime:   start.Add(time.Duration(i)*24*time.Hour + 30*time.Minute),
		}
		require.NoError(t, sessions.NewRepository(db).Record(&s))
	}

	// an unrelated book must survive
	require.NoError(t, repo.Upsert(&entities.BookExtension{BookID: 18}))

	before, err := repo.OrphanCount(bookID)
	require.NoError(t, err)
	assert.Equal(t, int64(1+1+3+2+1), before)

	var res *extensions.CascadeResult
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = extensions.NewRepository(tx).DeleteCascade(bookID)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Bookmarks)
	assert.Equal(t, int64(1), res.BookmarkTags)
	assert.Equal(t, int64(3), res.Sessions)
	assert.Equal(t, int64(1), res.Memberships)
	assert.Equal(t, int64(1), res.ReadingStates)
	assert.Equal(t, int64(1), res.Extension)
	assert.Equal(t, []string{"alice"}, res.Readers)
	assert.Equal(t, int64(9), res.Total())

	after, err := repo.OrphanCount(bookID)
	require.NoError(t, err)
	assert.Zero(t, after)

	_, err = repo.Get(18)
	assert.NoError(t, err)
}

func TestRepository_GetMany_BeyondSQLiteVariableLimit(t *testing.T) {
	repo := extensions.NewRepository(setupTestDB(t))
	require.NoError(t, repo.Upsert(&entities.BookExtension{BookID: 1, Title: "First"}))
	require.NoError(t, repo.Upsert(&entities.BookExtension{BookID: 33000, Title: "Last"}))

	ids := make([]int64, 33000)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	got, err := repo.GetMany(ids)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First", got[1].Title)
	assert.Equal(t, "Last", got[33000].Title)

	states, err := readingstate.NewRepository(setupTestDB(t)).ListForReader("r1", ids)
	require.NoError(t, err)
	assert.Empty(t, states)

	memberships, err := groups.NewRepository(setupTestDB(t)).GroupsForBooks(ids)
	require.NoError(t, err)
	assert.Empty(t, memberships)
}
