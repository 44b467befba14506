package services

import (
	"context"
	"log"
	"strings"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/metrics"
	"github.com/mrlokans/shelfsync/internal/settingsstore"
)

// StoreService moves the catalog or extension store to another file while the
// process runs.
type StoreService struct {
	manager  *database.Manager
	settings *settingsstore.SettingsStore
	cache    cache.Cache
	metrics  *metrics.Metrics
}

// NewStoreService registers a repoint hook on manager that persists the new
// path and flushes the cache.
func NewStoreService(manager *database.Manager, settings *settingsstore.SettingsStore, c cache.Cache) *StoreService {
	s := &StoreService{manager: manager, settings: settings, cache: c}
	manager.OnRepoint(s.afterRepoint)
	return s
}

// SetMetrics sets the metrics recorder (optional).
func (s *StoreService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// RepointStore switches the store of the given kind to path. Failures are
// reported in the result; a store whose new file cannot be opened stays
// unavailable until the next successful repoint.
func (s *StoreService) RepointStore(ctx context.Context, kind, path string) database.RepointResult {
	storeKind, err := database.ParseStoreKind(kind)
	if err != nil {
		return database.RepointResult{Success: false, Message: err.Error()}
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return database.RepointResult{Success: false, Message: "path is required"}
	}

	res := s.manager.Repoint(storeKind, path)
	s.metrics.Repoint(string(storeKind), res.Success)
	s.metrics.StoreAvailable(string(storeKind), s.manager.IsAvailable(storeKind))
	if !res.Success {
		log.Printf("Repoint %s to %s failed: %s", storeKind, path, res.Message)
		// the old connection is gone either way
		s.flush(ctx)
	}
	return res
}

func (s *StoreService) afterRepoint(kind database.StoreKind, path string) {
	if s.settings != nil {
		var err error
		switch kind {
		case database.StoreCatalog:
			err = s.settings.SetCatalogPath(path)
		case database.StoreExtension:
			err = s.settings.SetExtensionPath(path)
		}
		if err != nil {
			log.Printf("Repoint %s: failed to persist path: %v", kind, err)
		}
	}
	s.flush(context.Background())
	log.Printf("Store %s repointed to %s", kind, path)
}

func (s *StoreService) flush(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		log.Printf("Cache: flush failed: %v", err)
	}
}

// Status reports every store with its path and lifecycle state.
func (s *StoreService) Status() []database.StoreStatus {
	return s.manager.Status()
}
