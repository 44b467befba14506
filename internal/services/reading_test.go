package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/database/extensions"
	"github.com/mrlokans/shelfsync/internal/entities"
)

func TestReadingService_StateDefaultsToUnread(t *testing.T) {
	e := newEnv(t)
	st, err := e.reading.GetReadingState(ctx, 1, "r1")
	require.NoError(t, err)
	assert.Equal(t, entities.ReadStateUnread, st.ReadState)

	_, err = e.reading.GetReadingState(ctx, 1, " ")
	assert.True(t, entities.IsValidationError(err))
}

func TestReadingService_UpdateInvalidatesReaderCache(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Cached"), Authors: []string{"Ann"}})
	require.NoError(t, err)

	before, err := e.reading.GetReadingState(ctx, book.ID, "r1")
	require.NoError(t, err)
	assert.False(t, before.Favorite)

	finished := entities.ReadStateFinished
	fav := true
	updated, err := e.reading.UpdateReadingState(ctx, book.ID, StateUpdate{Favorite: &fav, ReadState: &finished}, "r1")
	require.NoError(t, err)
	assert.True(t, updated.Favorite)
	assert.NotNil(t, updated.FavoriteDate)
	assert.NotNil(t, updated.ReadDate)

	after, err := e.reading.GetReadingState(ctx, book.ID, "r1")
	require.NoError(t, err)
	assert.True(t, after.Favorite)
	assert.Equal(t, entities.ReadStateFinished, after.ReadState)

	other, err := e.reading.GetReadingState(ctx, book.ID, "r2")
	require.NoError(t, err)
	assert.False(t, other.Favorite)

	enriched, err := e.books.GetBook(ctx, book.ID, "r1")
	require.NoError(t, err)
	require.NotNil(t, enriched.ReadingState)
	assert.True(t, enriched.ReadingState.Favorite)
}

func TestReadingService_UpdateRejectsUnknownBookAndState(t *testing.T) {
	e := newEnv(t)
	_, err := e.reading.UpdateReadingState(ctx, 77, StateUpdate{}, "r1")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	bogus := entities.ReadState("skimmed")
	_, err = e.reading.UpdateReadingState(ctx, 77, StateUpdate{ReadState: &bogus}, "r1")
	assert.True(t, entities.IsValidationError(err))
}

func TestReadingService_SessionsFeedCountersAndHeatmap(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Long Read"), Authors: []string{"Ann"}})
	require.NoError(t, err)

	cells, err := e.reading.Heatmap(ctx, "r1", 2024)
	require.NoError(t, err)
	assert.Empty(t, cells)

	require.NoError(t, e.reading.RecordSession(ctx, &entities.ReadingSession{
		BookID: book.ID, ReaderID: "r1",
		StartTime: testTime, EndTime: testTime.Add(30 * time.Minute),
		StartPage: 10, EndPage: 40,
	}))

	cells, err = e.reading.Heatmap(ctx, "r1", 2024)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, "2024-03-10", cells[0].Date)
	assert.Equal(t, int64(1800), cells[0].Seconds)
	assert.Equal(t, 30, cells[0].Pages)

	ext, err := extensions.NewRepository(e.extDB(t)).Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), ext.TotalReadingTime)
	assert.Equal(t, 1, ext.ReadingCount)

	list, err := e.reading.ListSessions(ctx, book.ID, "r1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReadingService_BookmarksCarryBookDetails(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Marked"), Authors: []string{"Ann", "Bob"}})
	require.NoError(t, err)

	bm := &entities.Bookmark{BookID: book.ID, ReaderID: "r1", Page: 12, Note: "good bit", Tags: []string{"quote"}}
	require.NoError(t, e.reading.AddBookmark(ctx, bm))
	assert.Equal(t, "Marked", bm.BookTitle)
	assert.Equal(t, "Ann", bm.BookAuthor)

	tagged, err := e.reading.BookmarksByTag(ctx, "r1", "quote")
	require.NoError(t, err)
	require.Len(t, tagged, 1)

	require.NoError(t, e.reading.DeleteBookmark(ctx, bm.ID, "r1"))
	list, err := e.reading.ListBookmarks(ctx, book.ID, "r1")
	require.NoError(t, err)
	assert.Empty(t, list)

	err = e.reading.AddBookmark(ctx, &entities.Bookmark{BookID: 999, ReaderID: "r1", Page: 1})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestReadingService_GroupsAndGoals(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Grouped"), Authors: []string{"Ann"}})
	require.NoError(t, err)

	g, err := e.reading.CreateGroup(ctx, "Favourites", "best ones")
	require.NoError(t, err)
	require.NoError(t, e.reading.AddToGroup(ctx, book.ID, g.ID))
	require.NoError(t, e.reading.AddToGroup(ctx, book.ID, g.ID))
	assert.ErrorIs(t, e.reading.AddToGroup(ctx, book.ID, 999), entities.ErrNotFound)

	enriched, err := e.books.GetBook(ctx, book.ID, "")
	require.NoError(t, err)
	require.Len(t, enriched.Groups, 1)
	assert.Equal(t, "Favourites", enriched.Groups[0].Name)

	require.NoError(t, e.reading.RemoveFromGroup(ctx, book.ID, g.ID))
	enriched, err = e.books.GetBook(ctx, book.ID, "")
	require.NoError(t, err)
	assert.Empty(t, enriched.Groups)

	require.NoError(t, e.reading.SetGoal(ctx, &entities.ReadingGoal{ReaderID: "r1", Year: 2024, TargetBooks: 20}))
	require.NoError(t, e.reading.SetGoal(ctx, &entities.ReadingGoal{ReaderID: "r1", Year: 2024, TargetBooks: 25}))
	goal, err := e.reading.GetGoal(ctx, "r1", 2024)
	require.NoError(t, err)
	assert.Equal(t, 25, goal.TargetBooks)

	require.NoError(t, e.reading.AddWishlistItem(ctx, &entities.WishlistItem{ReaderID: "r1", ISBN: "0-306-40615-2", Title: "Wanted"}))
	wish, err := e.reading.ListWishlist(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, wish, 1)
	assert.Equal(t, "0306406152", wish[0].ISBN)
	require.NoError(t, e.reading.RemoveWishlistItem(ctx, "r1", "0306406152"))
}
