package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/database/extensions"
	"github.com/mrlokans/shelfsync/internal/database/syncstate"
	"github.com/mrlokans/shelfsync/internal/entities"
)

func TestBookService_CreateWritesAllStores(t *testing.T) {
	e := newEnv(t)
	trigger := &countingTrigger{}
	e.books.SetTrigger(trigger)

	book, err := e.books.CreateBook(ctx, entities.BookFields{
		Title:       strPtr("The Left Hand of Darkness"),
		Authors:     []string{"Ursula K. Le Guin"},
		Identifiers: map[string]string{"isbn": "978-0-441-47812-5"},
		Rating:      intPtr(9),
		Cover:       []byte("jpeg"),
		Extension:   &entities.ExtensionFields{PageCount: intPtr(304)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ursula K. Le Guin/The Left Hand of Darkness", book.Path)
	assert.True(t, book.HasCover)
	assert.True(t, book.CoverExists)
	assert.NotEmpty(t, book.UUID)
	require.NotNil(t, book.Extension)
	assert.Equal(t, 304, book.Extension.PageCount)
	assert.Equal(t, entities.DefaultBookType, book.BookType)
	assert.Equal(t, 1, trigger.n)

	ext, err := extensions.NewRepository(e.extDB(t)).Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "9780441478125", ext.ISBN)
	assert.True(t, ext.LastModified.Equal(book.LastModified))

	pending, err := syncstate.NewRepository(e.extDB(t), entities.SyncTypeReconcile).PendingIntents()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBookService_ValidationRejectsBeforeWrite(t *testing.T) {
	e := newEnv(t)

	_, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Bad"), Rating: intPtr(42)})
	require.Error(t, err)
	assert.True(t, entities.IsValidationError(err))

	_, err = e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Bad"), Identifiers: map[string]string{"isbn": "nope"}})
	assert.True(t, entities.IsValidationError(err))

	books, err := e.books.ListBooks(ctx, entities.BookFilter{}, "")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestBookService_UpdateMovesLibraryDirectory(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Draft"), Authors: []string{"Ann"}})
	require.NoError(t, err)
	require.True(t, e.lib.Exists("Ann/Draft"))

	updated, err := e.books.UpdateBook(ctx, book.ID, entities.BookFields{Title: strPtr("Final")})
	require.NoError(t, err)
	assert.Equal(t, "Ann/Final", updated.Path)
	assert.True(t, e.lib.Exists("Ann/Final"))
	assert.False(t, e.lib.Exists("Ann/Draft"))

	ext, err := extensions.NewRepository(e.extDB(t)).Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", ext.Title)
}

func TestBookService_UpdateMissingBook(t *testing.T) {
	e := newEnv(t)
	_, err := e.books.UpdateBook(ctx, 404, entities.BookFields{Title: strPtr("x")})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestBookService_ReadAfterWriteIsFresh(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Before"), Authors: []string{"Ann"}})
	require.NoError(t, err)

	got, err := e.books.GetBook(ctx, book.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Before", got.Title)
	list, err := e.books.ListBooks(ctx, entities.BookFilter{}, "")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = e.books.UpdateBook(ctx, book.ID, entities.BookFields{Title: strPtr("After")})
	require.NoError(t, err)

	got, err = e.books.GetBook(ctx, book.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	list, err = e.books.ListBooks(ctx, entities.BookFilter{}, "")
	require.NoError(t, err)
	assert.Equal(t, "After", list[0].Title)
}

func TestBookService_FillRacingAnUpdateIsNotCached(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Before"), Authors: []string{"Ann"}})
	require.NoError(t, err)

	// A reader loads the old row, then an update lands before it stores it.
	gen, ok := e.books.cacheGeneration(ctx)
	require.True(t, ok)
	stale := book.Book
	_, err = e.books.UpdateBook(ctx, book.ID, entities.BookFields{Title: strPtr("After")})
	require.NoError(t, err)
	e.books.cacheSet(ctx, fmt.Sprintf("book:%d", book.ID), stale, gen)

	got, err := e.books.GetBook(ctx, book.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
}

func TestBookService_DeleteCascades(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Doomed"), Authors: []string{"Ann"}})
	require.NoError(t, err)
	other, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Survivor"), Authors: []string{"Ann"}})
	require.NoError(t, err)

	for _, page := range []int{10, 20} {
		require.NoError(t, e.reading.AddBookmark(ctx, &entities.Bookmark{BookID: book.ID, ReaderID: "r1", Page: page}))
	}
	group, err := e.reading.CreateGroup(ctx, "Shelf", "")
	require.NoError(t, err)
	require.NoError(t, e.reading.AddToGroup(ctx, book.ID, group.ID))
	for i := 0; i < 3; i++ {
		start := testTime.Add(time.Duration(i) * time.Hour)
		require.NoError(t, e.reading.RecordSession(ctx, &entities.ReadingSession{
			BookID: book.ID, ReaderID: "r1", StartTime: start, EndTime: start.Add(20 * time.Minute),
		}))
	}

	res, err := e.books.DeleteBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, &DeleteResult{ID: book.ID, Title: "Doomed"}, res)

	ext := extensions.NewRepository(e.extDB(t))
	n, err := ext.OrphanCount(book.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, e.lib.Exists("Ann/Doomed"))

	_, err = e.books.GetBook(ctx, book.ID, "")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	_, err = ext.Get(other.ID)
	assert.NoError(t, err)
	assert.True(t, e.lib.Exists("Ann/Survivor"))
}

func TestBookService_ExtensionDownIsPartialWrite(t *testing.T) {
	e := newEnv(t)
	res := e.manager.Repoint("extension", "/dev/null/nope/shelfsync.db")
	require.False(t, res.Success)

	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Lonely"), Authors: []string{"Ann"}})
	assert.ErrorIs(t, err, entities.ErrPartialWrite)
	require.NotNil(t, book)
	assert.Nil(t, book.Extension)
	assert.True(t, e.lib.Exists(book.Path))

	got, err := e.books.GetBook(ctx, book.ID, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Lonely", got.Title)
	assert.Nil(t, got.ReadingState)
}

func TestBookService_SetCover(t *testing.T) {
	e := newEnv(t)
	book, err := e.books.CreateBook(ctx, entities.BookFields{Title: strPtr("Plain"), Authors: []string{"Ann"}})
	require.NoError(t, err)
	assert.False(t, book.CoverExists)

	require.NoError(t, e.books.SetCover(ctx, book.ID, []byte("img")))
	got, err := e.books.GetBook(ctx, book.ID, "")
	require.NoError(t, err)
	assert.True(t, got.HasCover)
	assert.True(t, got.CoverExists)
	assert.Equal(t, "/api/books/1/cover", got.CoverURL)

	require.NoError(t, e.books.SetCover(ctx, book.ID, nil))
	got, err = e.books.GetBook(ctx, book.ID, "")
	require.NoError(t, err)
	assert.False(t, got.HasCover)
	assert.False(t, got.CoverExists)
}
