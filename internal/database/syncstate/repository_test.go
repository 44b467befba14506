package syncstate

import (
	"path/filepath"
	"testing"
	"time"

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
	return NewRepository(db, entities.SyncTypeReconcile)
}

func TestRepository_StartSync(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.StartSync(100))

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncTypeReconcile, progress.SyncType)
	assert.Equal(t, entities.SyncStatusRunning, progress.Status)
	assert.Equal(t, 100, progress.TotalItems)
	assert.Equal(t, 0, progress.Processed)
}

func TestRepository_StartSync_Reset(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.StartSync(50))
	require.NoError(t, repo.UpdateProgress(25, 20, 5, 0, "Book A"))
	require.NoError(t, repo.StartSync(100))

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, 100, progress.TotalItems)
	assert.Equal(t, 0, progress.Processed)
	assert.Equal(t, "", progress.CurrentItem)
}

func TestRepository_GetSyncProgress_Missing(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetSyncProgress()
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRepository_CompleteSync_Failure(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.StartSync(10))
	require.NoError(t, repo.CompleteSync(false, "some error occurred"))

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, progress.Status)
	assert.Equal(t, "some error occurred", progress.Error)
	assert.NotNil(t, progress.CompletedAt)
}

func TestRepository_IsSyncRunning(t *testing.T) {
	repo := setupTestRepo(t)

	running, err := repo.IsSyncRunning()
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, repo.StartSync(10))
	running, err = repo.IsSyncRunning()
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, repo.CompleteSync(true, ""))
	running, err = repo.IsSyncRunning()
	require.NoError(t, err)
	assert.False(t, running)
}

func TestRepository_IsSyncRunning_StaleSync(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.StartSync(10))
	repo.db.Model(&entities.SyncProgress{}).
		Where("sync_type = ?", entities.SyncTypeReconcile).
		Update("updated_at", time.Now().Add(-15*time.Minute))

	running, err := repo.IsSyncRunning()
	require.NoError(t, err)
	assert.False(t, running)

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, progress.Status)
}

func TestRepository_Runs(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.LastRun()
	assert.ErrorIs(t, err, entities.ErrNotFound)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := entities.SyncRun{Direction: "bidirectional", Policy: "newest", Synced: i, StartedAt: base.Add(time.Duration(i) * time.Hour), FinishedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.SaveRun(&run))
	}

	last, err := repo.LastRun()
	require.NoError(t, err)
	assert.Equal(t, 2, last.Synced)

	runs, err := repo.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Synced)
	assert.Equal(t, 1, runs[1].Synced)
}

func TestRepository_Intents(t *testing.T) {
	repo := setupTestRepo(t)

	first := entities.SyncIntent{BookUUID: "uuid-1", Operation: entities.IntentCreate}
	require.NoError(t, repo.RecordIntent(&first))
	second := entities.SyncIntent{BookUUID: "uuid-2", BookID: 7, BookPath: "Author/Title", Operation: entities.IntentDelete}
	require.NoError(t, repo.RecordIntent(&second))
	require.NoError(t, repo.SetIntentBook(first.ID, 42, "A/B"))

	pending, err := repo.PendingIntents()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(42), pending[0].BookID)
	assert.Equal(t, "A/B", pending[0].BookPath)
	assert.Equal(t, entities.IntentDelete, pending[1].Operation)
	assert.Equal(t, "Author/Title", pending[1].BookPath)

	require.NoError(t, repo.CompleteIntent(first.ID))
	require.NoError(t, repo.CompleteIntent(second.ID))
	pending, err = repo.PendingIntents()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
