package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/library"
)

type env struct {
	manager *database.Manager
	lib     *library.Library
	cache   cache.Cache
	books   *BookService
	reading *ReadingService
	dir     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	catPath := filepath.Join(dir, "metadata.db")
	require.NoError(t, database.BootstrapCatalog(catPath))

	m := database.NewManager()
	require.NoError(t, m.Open(database.StoreCatalog, catPath))
	require.NoError(t, m.Open(database.StoreExtension, filepath.Join(dir, "shelfsync.db")))
	t.Cleanup(func() { m.Close() })

	lib, err := library.New(filepath.Join(dir, "library"), library.Options{})
	require.NoError(t, err)

	c := cache.NewMemory(128, time.Minute)
	t.Cleanup(func() { c.Close() })

	return &env{
		manager: m,
		lib:     lib,
		cache:   c,
		books:   NewBookService(m, lib, c),
		reading: NewReadingService(m, c),
		dir:     dir,
	}
}

func (e *env) extDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := e.manager.Extension()
	require.NoError(t, err)
	return db
}

func (e *env) catDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := e.manager.Catalog()
	require.NoError(t, err)
	return db
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

var (
	ctx      = context.Background()
	testTime = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
)

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }
