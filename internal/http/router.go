package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	router.Use(StrictTransportSecurityMiddleware(31536000))

	health := NewHealthController(cfg.Manager, cfg.Version)
	router.GET("/health", health.Status)

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api")

	if cfg.Books != nil {
		var covers CoverLocator
		if cfg.Library != nil {
			covers = cfg.Library
		}
		books := NewBooksController(cfg.Books, cfg.Books, covers)
		api.GET("/books", books.ListBooks)
		api.POST("/books", books.CreateBook)
		api.GET("/books/:id", books.GetBook)
		api.PUT("/books/:id", books.UpdateBook)
		api.DELETE("/books/:id", books.DeleteBook)
		api.GET("/books/:id/cover", books.GetCover)
		api.PUT("/books/:id/cover", books.PutCover)
		api.DELETE("/books/:id/cover", books.DeleteCover)
	}

	if cfg.Reading != nil {
		reading := NewReadingController(cfg.Reading)
		api.GET("/books/:id/state", reading.GetState)
		api.PUT("/books/:id/state", reading.UpdateState)
		api.GET("/books/:id/sessions", reading.ListSessions)
		api.POST("/books/:id/sessions", reading.RecordSession)
		api.GET("/books/:id/bookmarks", reading.ListBookmarks)
		api.POST("/books/:id/bookmarks", reading.AddBookmark)
		api.GET("/bookmarks", reading.BookmarksByTag)
		api.DELETE("/bookmarks/:id", reading.DeleteBookmark)
		api.GET("/heatmap", reading.Heatmap)
		api.GET("/groups", reading.ListGroups)
		api.POST("/groups", reading.CreateGroup)
		api.DELETE("/groups/:id", reading.DeleteGroup)
		api.PUT("/groups/:id/books/:bookId", reading.AddToGroup)
		api.DELETE("/groups/:id/books/:bookId", reading.RemoveFromGroup)
		api.GET("/goals/:year", reading.GetGoal)
		api.PUT("/goals/:year", reading.SetGoal)
		api.GET("/wishlist", reading.ListWishlist)
		api.POST("/wishlist", reading.AddWishlistItem)
		api.DELETE("/wishlist/:isbn", reading.RemoveWishlistItem)
	}

	if cfg.Engine != nil {
		sync := NewSyncController(cfg.Engine, cfg.Manager, cfg.DefaultDirection, cfg.DefaultPolicy)
		if cfg.TaskClient != nil {
			sync.SetTaskClient(cfg.TaskClient)
		}
		api.POST("/sync/reconcile", sync.Reconcile)
		api.GET("/sync/status", sync.Status)
		api.GET("/sync/runs", sync.Runs)
	}

	if cfg.Stores != nil {
		stores := NewStoresController(cfg.Stores)
		api.GET("/stores", stores.List)
		api.POST("/stores/:kind/repoint", stores.Repoint)
	}

	if cfg.TaskClient != nil {
		tc := NewTasksController(cfg.TaskClient)
		api.GET("/tasks/types", tc.ListTaskTypes)
		api.GET("/tasks/:id", tc.GetTaskStatus)
		api.POST("/tasks/:type/run", tc.RunTask)
	}

	return router
}
