package config

// Default locations for the stores and the file library
const (
	// DefaultCatalogPath is the primary bibliographic catalog. It is never created implicitly.
	DefaultCatalogPath = "./library/metadata.db"

	// DefaultExtensionPath is the application store, created with its schema on first open
	DefaultExtensionPath = "./data/shelfsync.db"

	// DefaultSettingsPath holds the persisted store locations after a repoint
	DefaultSettingsPath = "./data/settings.json"

	DefaultLibraryRoot   = "./library"
	DefaultCoverFileName = "cover.jpg"
)
