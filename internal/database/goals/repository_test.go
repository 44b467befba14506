package goals

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

func TestRepository_Goals(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.UpsertGoal(&entities.ReadingGoal{ReaderID: "alice", Year: 2025, TargetBooks: 20}))
	require.NoError(t, repo.UpsertGoal(&entities.ReadingGoal{ReaderID: "alice", Year: 2025, TargetBooks: 30, TargetPages: 9000}))

	g, err := repo.GetGoal("alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, 30, g.TargetBooks)
	assert.Equal(t, 9000, g.TargetPages)

	_, err = repo.GetGoal("alice", 2024)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	assert.True(t, entities.IsValidationError(repo.UpsertGoal(&entities.ReadingGoal{ReaderID: "alice", Year: 25})))
}

func TestRepository_Wishlist(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.UpsertWishlistItem(&entities.WishlistItem{ReaderID: "alice", ISBN: "978-0-441-47812-5", Title: "Left Hand"}))
	require.NoError(t, repo.UpsertWishlistItem(&entities.WishlistItem{ReaderID: "alice", ISBN: "9780441478125", Title: "The Left Hand of Darkness"}))

	items, err := repo.ListWishlist("alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "The Left Hand of Darkness", items[0].Title)

	assert.True(t, entities.IsValidationError(repo.UpsertWishlistItem(&entities.WishlistItem{ReaderID: "alice", ISBN: "123"})))

	require.NoError(t, repo.DeleteWishlistItem("alice", "978-0441478125"))
	items, err = repo.ListWishlist("alice")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRepository_Heatmap(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.UpsertHeatmapCell(&entities.HeatmapCell{ReaderID: "alice", Date: "2025-03-01", Seconds: 600}))
	require.NoError(t, repo.UpsertHeatmapCell(&entities.HeatmapCell{ReaderID: "alice", Date: "2025-03-01", Seconds: 900}))
	require.NoError(t, repo.UpsertHeatmapCell(&entities.HeatmapCell{ReaderID: "alice", Date: "2024-12-31", Seconds: 60}))

	cells, err := repo.Heatmap("alice", 2025)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, int64(900), cells[0].Seconds)

	assert.True(t, entities.IsValidationError(repo.UpsertHeatmapCell(&entities.HeatmapCell{ReaderID: "alice", Date: "yesterday"})))
}
