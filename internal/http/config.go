package http

import (
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/library"
	"github.com/mrlokans/shelfsync/internal/metrics"
	"github.com/mrlokans/shelfsync/internal/reconcile"
	"github.com/mrlokans/shelfsync/internal/services"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Manager *database.Manager
	Library *library.Library

	Books   *services.BookService
	Reading *services.ReadingService
	Stores  *services.StoreService

	// Reconciliation
	Engine           *reconcile.Engine
	DefaultDirection reconcile.Direction
	DefaultPolicy    reconcile.Policy

	// Task queue client (optional)
	TaskClient *tasks.Client

	// Metrics exposed on /metrics (optional)
	Metrics *metrics.Metrics

	Version string
}
