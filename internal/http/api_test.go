package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/library"
	"github.com/mrlokans/shelfsync/internal/metrics"
	"github.com/mrlokans/shelfsync/internal/reconcile"
	"github.com/mrlokans/shelfsync/internal/services"
	"github.com/mrlokans/shelfsync/internal/settingsstore"
)

type testAPI struct {
	router  *gin.Engine
	manager *database.Manager
	dir     string
}

func setupAPI(t *testing.T) *testAPI {
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

	engine := reconcile.NewEngine(m, lib, reconcile.Options{})
	engine.SetCache(c)
	settings := settingsstore.New(filepath.Join(dir, "settings.json"), settingsstore.Document{})

	router := NewRouter(RouterConfig{
		Manager:          m,
		Library:          lib,
		Books:            services.NewBookService(m, lib, c),
		Reading:          services.NewReadingService(m, c),
		Stores:           services.NewStoreService(m, settings, c),
		Engine:           engine,
		DefaultDirection: reconcile.Bidirectional,
		DefaultPolicy:    reconcile.UseLatestModified,
		Metrics:          metrics.New(),
		Version:          "test",
	})
	return &testAPI{router: router, manager: m, dir: dir}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case []byte:
			buf.Write(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type bookResponse struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Path        string   `json:"path"`
	HasCover    bool     `json:"has_cover"`
	CoverExists bool     `json:"cover_exists"`
}

func (a *testAPI) createBook(t *testing.T, title, author string) bookResponse {
	t.Helper()
	w := a.do(t, "POST", "/api/books", gin.H{"title": title, "authors": []string{author}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[bookResponse](t, w)
}

func TestHealth(t *testing.T) {
	api := setupAPI(t)

	w := api.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ready", resp.Checks["catalog"])
	assert.Equal(t, "ready", resp.Checks["extension"])
}

func TestHealth_DegradedWithoutExtension(t *testing.T) {
	api := setupAPI(t)
	res := api.manager.Repoint(database.StoreExtension, "/dev/null/nope/shelfsync.db")
	require.False(t, res.Success)

	w := api.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", decode[HealthResponse](t, w).Status)
}

func TestHealth_NoManager(t *testing.T) {
	router := gin.New()
	router.GET("/health", NewHealthController(nil, "1").Status)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestBooksCRUD(t *testing.T) {
	api := setupAPI(t)

	created := api.createBook(t, "Dune", "Frank Herbert")
	assert.Equal(t, "Frank Herbert/Dune", created.Path)

	w := api.do(t, "GET", "/api/books", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Books []bookResponse `json:"books"`
		Count int            `json:"count"`
	}](t, w)
	assert.Equal(t, 1, list.Count)

	w = api.do(t, "PUT", "/api/books/"+itoa(created.ID), gin.H{"title": "Dune Messiah"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Frank Herbert/Dune Messiah", decode[bookResponse](t, w).Path)

	w = api.do(t, "GET", "/api/books/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dune Messiah", decode[bookResponse](t, w).Title)

	w = api.do(t, "DELETE", "/api/books/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dune Messiah")

	w = api.do(t, "GET", "/api/books/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBook_Validation(t *testing.T) {
	api := setupAPI(t)

	w := api.do(t, "POST", "/api/books", gin.H{"authors": []string{"Nobody"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")

	w = api.do(t, "POST", "/api/books", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBook_PartialWrite(t *testing.T) {
	api := setupAPI(t)
	require.False(t, api.manager.Repoint(database.StoreExtension, "/dev/null/nope/shelfsync.db").Success)

	w := api.do(t, "POST", "/api/books", gin.H{"title": "Solaris", "authors": []string{"Stanislaw Lem"}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	resp := decode[struct {
		Warning string       `json:"warning"`
		Data    bookResponse `json:"data"`
	}](t, w)
	assert.NotEmpty(t, resp.Warning)
	assert.Equal(t, "Solaris", resp.Data.Title)
}

func TestCovers(t *testing.T) {
	api := setupAPI(t)
	book := api.createBook(t, "Dune", "Frank Herbert")
	coverURL := "/api/books/" + itoa(book.ID) + "/cover"

	w := api.do(t, "GET", coverURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, "PUT", coverURL, []byte("jpeg-bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, "GET", coverURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg-bytes", w.Body.String())

	w = api.do(t, "DELETE", coverURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, "GET", coverURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReadingState(t *testing.T) {
	api := setupAPI(t)
	book := api.createBook(t, "Dune", "Frank Herbert")
	stateURL := "/api/books/" + itoa(book.ID) + "/state"

	w := api.do(t, "GET", stateURL, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "reader is required")

	w = api.do(t, "PUT", stateURL, gin.H{"read_state": "finished", "favorite": true}, ReaderHeader, "ann")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, "GET", stateURL, nil, ReaderHeader, "ann")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"favorite":true`)

	w = api.do(t, "PUT", "/api/books/9999/state", gin.H{"favorite": true}, ReaderHeader, "ann")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookmarksAndGroups(t *testing.T) {
	api := setupAPI(t)
	book := api.createBook(t, "Dune", "Frank Herbert")

	w := api.do(t, "POST", "/api/books/"+itoa(book.ID)+"/bookmarks",
		gin.H{"page": 42, "note": "spice", "tags": []string{"quotes"}}, ReaderHeader, "ann")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"book_title":"Dune"`)

	w = api.do(t, "GET", "/api/bookmarks?tag=quotes", nil, ReaderHeader, "ann")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = api.do(t, "POST", "/api/groups", gin.H{"name": "Sci-fi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	group := decode[struct {
		ID int64 `json:"id"`
	}](t, w)

	w = api.do(t, "PUT", "/api/groups/"+itoa(group.ID)+"/books/"+itoa(book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, "GET", "/api/books/"+itoa(book.ID), nil)
	assert.Contains(t, w.Body.String(), "Sci-fi")
}

func TestReconcileAndStatus(t *testing.T) {
	api := setupAPI(t)
	api.createBook(t, "Dune", "Frank Herbert")

	w := api.do(t, "POST", "/api/sync/reconcile", gin.H{"direction": "bidirectional", "policy": "keep_source"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[reconcile.PassResult](t, w)
	assert.Equal(t, reconcile.Bidirectional, res.Direction)
	assert.Zero(t, res.Failed)

	w = api.do(t, "POST", "/api/sync/reconcile", gin.H{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, "POST", "/api/sync/reconcile", gin.H{"async": true})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no task queue configured")

	w = api.do(t, "GET", "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[SyncStatusResponse](t, w)
	assert.Equal(t, reconcile.StateIdle, status.State)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "bidirectional", status.LastRun.Direction)

	w = api.do(t, "GET", "/api/sync/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestReconcile_Busy(t *testing.T) {
	api := setupAPI(t)
	release, err := api.manager.BeginPass()
	require.NoError(t, err)
	defer release()

	w := api.do(t, "POST", "/api/sync/reconcile", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStoresRepoint(t *testing.T) {
	api := setupAPI(t)

	newPath := filepath.Join(api.dir, "moved", "shelfsync.db")
	w := api.do(t, "POST", "/api/stores/extension/repoint", gin.H{"path": newPath})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, "GET", "/api/stores", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), newPath)

	w = api.do(t, "POST", "/api/stores/library/repoint", gin.H{"path": newPath})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(t, "POST", "/api/stores/catalog/repoint", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := setupAPI(t)
	w := api.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
