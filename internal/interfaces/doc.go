// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Service Interfaces
//
//   - BookReader: Enriched book reads (internal/services/interfaces.go)
//   - BookWriter: Multi-store book writes (internal/services/interfaces.go)
//   - SyncTrigger: Post-write reconciliation hook (internal/services/interfaces.go)
//
// ## Storage Interfaces
//
//   - Cache: Namespaced read cache, in-memory LRU or Redis (internal/cache/cache.go)
//   - CoverLocator: Resolves cover files in the library tree (internal/http/books.go)
//
// ## Reconciliation Interfaces
//
//   - Runner: Anything that can run a pass (internal/reconcile/trigger.go)
//   - ProgressReporter: Live pass progress (internal/reconcile/engine.go)
//
// ## External Service Interfaces
//
//   - CoverProvider: Cover search and download (internal/metadata/enricher.go)
//   - BookSource, CoverWriter: What the enricher needs from the book service
//   - ProgressReporter: Bulk enrichment progress (internal/metadata/enricher.go)
//
// # Adding a New Cover Provider
//
//  1. Implement CoverProvider in internal/metadata/
//
//     type GoogleBooksClient struct {
//         apiKey     string
//         httpClient *http.Client
//     }
//
//     func (c *GoogleBooksClient) CoverURLForISBN(isbn string) string
//     func (c *GoogleBooksClient) SearchByTitle(ctx context.Context, title, author string) (*CoverMatch, error)
//     func (c *GoogleBooksClient) FetchCover(ctx context.Context, url string) ([]byte, error)
//
//     var _ CoverProvider = (*GoogleBooksClient)(nil)
//
//  2. Pass it to metadata.NewEnricher in entrypoint/app.go
//
// # Adding a New Extension Table
//
//  1. Add the model to internal/entities and the table to the self-heal list
//     in internal/database/schema.go
//
//  2. Create a sub-package under internal/database/ with a Repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Resolve the *gorm.DB through Manager.Extension() on every call so the
//     repository follows repoints.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
