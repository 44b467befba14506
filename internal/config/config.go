package config

import (
	"time"

	"github.com/spf13/viper"
)

type CacheBackend string

const (
	CacheBackendMemory CacheBackend = "memory" // In-process LRU (default)
	CacheBackendRedis  CacheBackend = "redis"  // Shared Redis instance
)

type (
	Config struct {
		HTTP
		Global
		Stores
		Library
		Sync
		Cache
		Redis
		Tasks
		Metadata
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Stores struct {
		CatalogPath   string
		ExtensionPath string
		SettingsPath  string // JSON document persisting repointed store paths
	}
	Library struct {
		Root          string
		ScanWorkers   int
		FetchTimeout  time.Duration
		MaxRedirects  int
		CoverFileName string
	}
	Sync struct {
		Enabled        bool
		Schedule       string // Cron format: "*/30 * * * *" = every 30 minutes
		Direction      string
		Policy         string
		MaxAttempts    int           // Total attempts per item, including the first
		BackoffStep    time.Duration // Linear: attempt n waits n*BackoffStep
		MaxErrors      int           // Cap on error entries kept per pass
		TriggerOnWrite bool
	}
	Cache struct {
		Backend CacheBackend
		TTL     time.Duration
		Size    int
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Metadata struct {
		CoverEnrichment bool
		OpenLibraryURL  string
		CoversURL       string
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)

	v.SetDefault("catalog_path", DefaultCatalogPath)
	v.SetDefault("extension_path", DefaultExtensionPath)
	v.SetDefault("settings_path", DefaultSettingsPath)

	v.SetDefault("library_root", DefaultLibraryRoot)
	v.SetDefault("library_scan_workers", 8)
	v.SetDefault("library_fetch_timeout", "10s")
	v.SetDefault("library_max_redirects", 3)
	v.SetDefault("library_cover_file", DefaultCoverFileName)

	// Reconciliation defaults
	v.SetDefault("sync_enabled", false)
	v.SetDefault("sync_schedule", "*/30 * * * *")
	v.SetDefault("sync_direction", "bidirectional")
	v.SetDefault("sync_policy", "use_latest_modified")
	v.SetDefault("sync_max_attempts", 3)
	v.SetDefault("sync_backoff_step", "200ms")
	v.SetDefault("sync_max_errors", 100)
	v.SetDefault("sync_trigger_on_write", true)

	// Cache defaults
	v.SetDefault("cache_backend", "memory")
	v.SetDefault("cache_ttl", "30s")
	v.SetDefault("cache_size", 1024)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "shelfsync")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "30m")
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("cover_enrichment", false)
	v.SetDefault("openlibrary_url", "https://openlibrary.org")
	v.SetDefault("openlibrary_covers_url", "https://covers.openlibrary.org")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Stores: Stores{
			CatalogPath:   v.GetString("CATALOG_PATH"),
			ExtensionPath: v.GetString("EXTENSION_PATH"),
			SettingsPath:  v.GetString("SETTINGS_PATH"),
		},
		Library: Library{
			Root:          v.GetString("LIBRARY_ROOT"),
			ScanWorkers:   v.GetInt("LIBRARY_SCAN_WORKERS"),
			FetchTimeout:  v.GetDuration("LIBRARY_FETCH_TIMEOUT"),
			MaxRedirects:  v.GetInt("LIBRARY_MAX_REDIRECTS"),
			CoverFileName: v.GetString("LIBRARY_COVER_FILE"),
		},
		Sync: Sync{
			Enabled:        v.GetBool("SYNC_ENABLED"),
			Schedule:       v.GetString("SYNC_SCHEDULE"),
			Direction:      v.GetString("SYNC_DIRECTION"),
			Policy:         v.GetString("SYNC_POLICY"),
			MaxAttempts:    v.GetInt("SYNC_MAX_ATTEMPTS"),
			BackoffStep:    v.GetDuration("SYNC_BACKOFF_STEP"),
			MaxErrors:      v.GetInt("SYNC_MAX_ERRORS"),
			TriggerOnWrite: v.GetBool("SYNC_TRIGGER_ON_WRITE"),
		},
		Cache: Cache{
			Backend: CacheBackend(v.GetString("CACHE_BACKEND")),
			TTL:     v.GetDuration("CACHE_TTL"),
			Size:    v.GetInt("CACHE_SIZE"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Metadata: Metadata{
			CoverEnrichment: v.GetBool("COVER_ENRICHMENT"),
			OpenLibraryURL:  v.GetString("OPENLIBRARY_URL"),
			CoversURL:       v.GetString("OPENLIBRARY_COVERS_URL"),
		},
	}
}
