package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/settingsstore"
)

func TestStoreService_RepointPersistsAndFlushes(t *testing.T) {
	e := newEnv(t)
	settings := settingsstore.New(filepath.Join(e.dir, "settings.json"), settingsstore.Document{})
	svc := NewStoreService(e.manager, settings, e.cache)

	require.NoError(t, e.cache.Set(ctx, cache.NamespaceCatalog, "k", "v"))
	require.NoError(t, e.cache.Set(ctx, cache.StateNamespace("r1"), "k", "v"))

	newPath := filepath.Join(e.dir, "moved", "shelfsync.db")
	res := svc.RepointStore(ctx, "extension", newPath)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, newPath, e.manager.Path("extension"))

	doc, err := settings.Load()
	require.NoError(t, err)
	assert.Equal(t, newPath, doc.ExtensionPath)
	assert.False(t, doc.LastUpdated.IsZero())

	var v string
	ok, err := e.cache.Get(ctx, cache.NamespaceCatalog, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = e.cache.Get(ctx, cache.StateNamespace("r1"), "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreService_RepointRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	svc := NewStoreService(e.manager, nil, e.cache)

	assert.False(t, svc.RepointStore(ctx, "library", "/tmp/x.db").Success)
	assert.False(t, svc.RepointStore(ctx, "catalog", "  ").Success)
}

func TestStoreService_RepointBusyDuringPass(t *testing.T) {
	e := newEnv(t)
	svc := NewStoreService(e.manager, nil, e.cache)

	release, err := e.manager.BeginPass()
	require.NoError(t, err)
	res := svc.RepointStore(ctx, "extension", filepath.Join(e.dir, "other.db"))
	release()

	assert.False(t, res.Success)
	assert.True(t, res.Busy)
	assert.True(t, e.manager.IsAvailable("extension"))
}

func TestStoreService_MissingCatalogStaysUnavailable(t *testing.T) {
	e := newEnv(t)
	svc := NewStoreService(e.manager, nil, e.cache)

	res := svc.RepointStore(ctx, "catalog", filepath.Join(e.dir, "absent.db"))
	assert.False(t, res.Success)
	assert.False(t, e.manager.IsAvailable("catalog"))

	_, err := e.books.ListBooks(ctx, entities.BookFilter{}, "")
	assert.Error(t, err)
}
