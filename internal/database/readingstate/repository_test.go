package readingstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	m := database.NewManager()
	require.NoError(t, m.Open(database.StoreExtension, filepath.Join(t.TempDir(), "shelfsync.db")))
	t.Cleanup(func() { m.Close() })
	db, err := m.Extension()
	require.NoError(t, err)
	return NewRepository(db)
}

func TestRepository_UpsertDefaultsToUnread(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Upsert(&entities.ReadingState{BookID: 1, ReaderID: "alice"}))

	got, err := repo.Get(1, "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.ReadStateUnread, got.ReadState)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestRepository_UpsertReplaces(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Upsert(&entities.ReadingState{BookID: 1, ReaderID: "alice", Favorite: true}))
	require.NoError(t, repo.Upsert(&entities.ReadingState{BookID: 1, ReaderID: "alice", ReadState: entities.ReadStateFinished}))

	got, err := repo.Get(1, "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.ReadStateFinished, got.ReadState)
	assert.False(t, got.Favorite)
}

func TestRepository_PerReader(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Upsert(&entities.ReadingState{BookID: 1, ReaderID: "alice", ReadState: entities.ReadStateReading}))
	require.NoError(t, repo.Upsert(&entities.ReadingState{BookID: 2, ReaderID: "alice", Wants: true}))
	require.NoError(t, repo.Upsert(&entities.ReadingState{BookID: 1, ReaderID: "bob", ReadState: entities.ReadStateFinished}))

	states, err := repo.ListForReader("alice", []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, states, 2)
	assert.Equal(t, entities.ReadStateReading, states[1].ReadState)
	assert.True(t, states[2].Wants)

	_, err = repo.Get(2, "bob")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRepository_UpsertRejectsUnknownState(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.Upsert(&entities.ReadingState{BookID: 1, ReaderID: "alice", ReadState: "skimmed"})
	assert.True(t, entities.IsValidationError(err))
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Upsert(&entities.ReadingState{BookID: 1, ReaderID: "alice"}))
	require.NoError(t, repo.Delete(1, "alice"))

	_, err := repo.Get(1, "alice")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}
