// Package database owns the two store connections and their schemas.
//
// # Architecture
//
//	database/
//	├── manager.go      # Connection Manager: open, repoint, availability, pass guard
//	├── driver.go       # sqlite3 driver with title_sort/uuid4, DSN pragmas
//	├── selfheal.go     # Extension store schema verification and repair
//	├── schema.go       # Declared extension store tables
//	├── bootstrap.go    # Explicit creation of an empty catalog
//	├── catalog/        # Catalog books with authors, tags, identifiers, ...
//	├── extensions/     # Book extension rows and cascading deletes
//	├── readingstate/   # Per-reader reading state
//	├── sessions/       # Reading sessions and their aggregates
//	├── groups/         # Groups and memberships
//	├── bookmarks/      # Bookmarks and bookmark tags
//	├── goals/          # Reading goals, wishlist, heatmap
//	└── syncstate/      # Pass progress, pass history, write intents
//
// # Using Sub-packages
//
// Repositories wrap a *gorm.DB obtained from the manager. Pass a transaction
// handle to group several writes:
//
//	mgr := database.NewManager()
//	_ = mgr.Open(database.StoreCatalog, "./library/metadata.db")
//	_ = mgr.Open(database.StoreExtension, "./data/shelfsync.db")
//
//	catDB, err := mgr.Catalog()
//	err = catDB.Transaction(func(tx *gorm.DB) error {
//		_, err := catalog.NewRepository(tx).CreateBook(fields, uuid, now)
//		return err
//	})
//
// The catalog and extension stores commit independently. Nothing here spans
// both; the reconcile package repairs what a crash between them leaves behind.
package database
