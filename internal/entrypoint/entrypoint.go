package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/database"
	http_controllers "github.com/mrlokans/shelfsync/internal/http"
	"github.com/mrlokans/shelfsync/internal/reconcile"
	"github.com/mrlokans/shelfsync/internal/scheduler"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work first so no pass starts against closing stores.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting shelfsync v%s", version)

	app, err := Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	// Write-triggered passes run in the background and coalesce.
	var trigger *reconcile.AsyncTrigger
	if cfg.Sync.TriggerOnWrite {
		trigger = reconcile.NewAsyncTrigger(app.Engine, app.Direction, app.Policy)
		app.Books.SetTrigger(trigger)
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(app.Manager.Path(database.StoreExtension), tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(tasks.NewReconcileQueue(app.Engine, tasks.ReconcileTask{
			Direction: string(app.Direction),
			Policy:    string(app.Policy),
		}, taskClient.Config()))
		if app.Enricher != nil {
			taskClient.Register(
				tasks.NewEnrichCoverQueue(app.Enricher, taskClient.Config()),
				tasks.NewEnrichAllCoversQueue(app.Enricher, taskClient.Config()),
			)
		}

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	var sched *scheduler.ReconcileScheduler
	if cfg.Sync.Enabled {
		sched = scheduler.NewReconcileScheduler(cfg.Sync.Schedule, scheduledJob(app, taskClient))
		if err := sched.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start reconcile scheduler: %v", err)
		}
		if next := sched.NextRunTime(); next != nil {
			log.Printf("Reconciliation scheduled (%s), next run at %s", cfg.Sync.Schedule, next.Format(time.RFC3339))
		}
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Manager:          app.Manager,
		Library:          app.Library,
		Books:            app.Books,
		Reading:          app.Reading,
		Stores:           app.Stores,
		Engine:           app.Engine,
		DefaultDirection: app.Direction,
		DefaultPolicy:    app.Policy,
		TaskClient:       taskClient,
		Metrics:          app.Metrics,
		Version:          version,
	})

	onShutdown := func(ctx context.Context) {
		if sched != nil {
			sched.Stop()
		}
		if trigger != nil {
			trigger.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// scheduledJob enqueues a pass when the task queue is running so retries and
// history come from the queue. Without it the pass runs inline.
func scheduledJob(app *App, taskClient *tasks.Client) scheduler.Job {
	return func(ctx context.Context) error {
		if taskClient != nil {
			id, err := taskClient.Enqueue(tasks.ReconcileTask{})
			if err != nil {
				return err
			}
			log.Printf("Scheduler: queued reconcile task %s", id)
			return nil
		}
		result, err := app.Engine.Run(ctx, app.Direction, app.Policy)
		if err != nil {
			return err
		}
		log.Printf("Scheduler: reconcile finished, synced=%d failed=%d conflicted=%d skipped=%d",
			result.Synced, result.Failed, result.Conflicted, result.Skipped)
		return nil
	}
}
