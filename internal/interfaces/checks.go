package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/database/syncstate"
	"github.com/mrlokans/shelfsync/internal/http"
	"github.com/mrlokans/shelfsync/internal/library"
	"github.com/mrlokans/shelfsync/internal/metadata"
	"github.com/mrlokans/shelfsync/internal/reconcile"
	"github.com/mrlokans/shelfsync/internal/services"
)

// =============================================================================
// Services
// =============================================================================

var _ services.BookReader = (*services.BookService)(nil)
var _ services.BookWriter = (*services.BookService)(nil)
var _ services.SyncTrigger = (*reconcile.AsyncTrigger)(nil)

// =============================================================================
// Caching
// =============================================================================

var _ cache.Cache = (*cache.Memory)(nil)
var _ cache.Cache = (*cache.Redis)(nil)

// =============================================================================
// Reconciliation
// =============================================================================

var _ reconcile.Runner = (*reconcile.Engine)(nil)
var _ http.CoverLocator = (*library.Library)(nil)

// =============================================================================
// External Services
// =============================================================================

var _ metadata.CoverProvider = (*metadata.OpenLibraryClient)(nil)
var _ metadata.BookSource = (*services.BookService)(nil)
var _ metadata.CoverWriter = (*services.BookService)(nil)

// =============================================================================
// Progress Tracking
// =============================================================================

var _ metadata.ProgressReporter = (*syncstate.Repository)(nil)
var _ reconcile.ProgressReporter = (*syncstate.Repository)(nil)
