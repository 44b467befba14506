package entrypoint

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/syncstate"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/library"
	"github.com/mrlokans/shelfsync/internal/metadata"
	"github.com/mrlokans/shelfsync/internal/metrics"
	"github.com/mrlokans/shelfsync/internal/reconcile"
	"github.com/mrlokans/shelfsync/internal/services"
	"github.com/mrlokans/shelfsync/internal/settingsstore"
)

// App holds every long-lived component of one process.
type App struct {
	Config   *config.Config
	Manager  *database.Manager
	Library  *library.Library
	Cache    cache.Cache
	Metrics  *metrics.Metrics
	Settings *settingsstore.SettingsStore

	Books   *services.BookService
	Reading *services.ReadingService
	Stores  *services.StoreService
	Engine  *reconcile.Engine

	// Enricher is nil unless cover enrichment is enabled.
	Enricher *metadata.Enricher

	Direction reconcile.Direction
	Policy    reconcile.Policy
}

// Build opens the stores at their persisted or configured paths and wires the
// services. An unavailable store is logged, not fatal: reads degrade and a
// repoint can fix it at runtime.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	direction, err := reconcile.ParseDirection(cfg.Sync.Direction)
	if err != nil {
		return nil, fmt.Errorf("sync direction: %w", err)
	}
	policy, err := reconcile.ParsePolicy(cfg.Sync.Policy)
	if err != nil {
		return nil, fmt.Errorf("sync policy: %w", err)
	}

	m := metrics.New()
	settings := settingsstore.New(cfg.Stores.SettingsPath, settingsstore.Document{
		CatalogPath:   cfg.Stores.CatalogPath,
		ExtensionPath: cfg.Stores.ExtensionPath,
	})

	manager := database.NewManager()
	for _, kind := range []database.StoreKind{database.StoreCatalog, database.StoreExtension} {
		var info settingsstore.PathInfo
		if kind == database.StoreCatalog {
			info = settings.CatalogPath(config.DefaultCatalogPath)
		} else {
			info = settings.ExtensionPath(config.DefaultExtensionPath)
		}
		log.Printf("Store %s path %s (from %s)", kind, info.Path, info.Source)
		err := manager.Open(kind, info.Path)
		m.StoreAvailable(string(kind), err == nil)
	}
	if heal := manager.HealReport(); heal != nil && heal.Changed() {
		log.Printf("Extension store schema repaired: created=%v rebuilt=%v columns=%v", heal.Created, heal.Rebuilt, heal.ColumnsAdded)
	}

	lib, err := library.New(cfg.Library.Root, library.Options{
		CoverFileName: cfg.Library.CoverFileName,
		ScanWorkers:   cfg.Library.ScanWorkers,
	})
	if err != nil {
		manager.Close()
		return nil, err
	}

	c, err := cache.New(ctx, cfg.Cache, cfg.Redis, m)
	if err != nil {
		manager.Close()
		return nil, err
	}

	engine := reconcile.NewEngine(manager, lib, reconcile.Options{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffStep: cfg.Sync.BackoffStep,
		MaxErrors:   cfg.Sync.MaxErrors,
	})
	engine.SetCache(c)
	engine.SetMetrics(m)

	books := services.NewBookService(manager, lib, c)
	books.SetMetrics(m)
	reading := services.NewReadingService(manager, c)
	reading.SetMetrics(m)
	stores := services.NewStoreService(manager, settings, c)
	stores.SetMetrics(m)

	app := &App{
		Config:    cfg,
		Manager:   manager,
		Library:   lib,
		Cache:     c,
		Metrics:   m,
		Settings:  settings,
		Books:     books,
		Reading:   reading,
		Stores:    stores,
		Engine:    engine,
		Direction: direction,
		Policy:    policy,
	}

	if cfg.Metadata.CoverEnrichment {
		client := metadata.NewOpenLibraryClient(metadata.ClientOptions{
			BaseURL:      cfg.Metadata.OpenLibraryURL,
			CoversURL:    cfg.Metadata.CoversURL,
			Timeout:      cfg.Library.FetchTimeout,
			MaxRedirects: cfg.Library.MaxRedirects,
		})
		app.Enricher = metadata.NewEnricher(client, books, books)
		app.Enricher.SetProgressReporter(&coverProgress{manager: manager})
		log.Printf("Cover enrichment enabled (%s)", cfg.Metadata.OpenLibraryURL)
	}
	return app, nil
}

func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		log.Printf("Error closing cache: %v", err)
	}
	if err := a.Manager.Close(); err != nil {
		log.Printf("Error closing stores: %v", err)
	}
}

// coverProgress resolves the extension store on every call so progress keeps
// working across repoints.
type coverProgress struct {
	manager *database.Manager
}

func (p *coverProgress) repo() (*syncstate.Repository, error) {
	db, err := p.manager.Extension()
	if err != nil {
		return nil, err
	}
	return syncstate.NewRepository(db, entities.SyncTypeCovers), nil
}

func (p *coverProgress) StartSync(total int) error {
	r, err := p.repo()
	if err != nil {
		return err
	}
	return r.StartSync(total)
}

func (p *coverProgress) UpdateProgress(processed, succeeded, failed, skipped int, item string) error {
	r, err := p.repo()
	if err != nil {
		return err
	}
	return r.UpdateProgress(processed, succeeded, failed, skipped, item)
}

func (p *coverProgress) CompleteSync(ok bool, msg string) error {
	r, err := p.repo()
	if err != nil {
		return err
	}
	return r.CompleteSync(ok, msg)
}

func (p *coverProgress) IsSyncRunning() (bool, error) {
	r, err := p.repo()
	if err != nil {
		return false, err
	}
	return r.IsSyncRunning()
}
