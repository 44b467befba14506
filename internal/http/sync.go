package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/syncstate"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/reconcile"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

// SyncController starts reconciliation passes and reports on them.
type SyncController struct {
	engine    *reconcile.Engine
	manager   *database.Manager
	tasks     *tasks.Client
	direction reconcile.Direction
	policy    reconcile.Policy
}

func NewSyncController(engine *reconcile.Engine, manager *database.Manager, direction reconcile.Direction, policy reconcile.Policy) *SyncController {
	return &SyncController{engine: engine, manager: manager, direction: direction, policy: policy}
}

// SetTaskClient enables async passes through the task queue (optional).
func (sc *SyncController) SetTaskClient(client *tasks.Client) {
	sc.tasks = client
}

type ReconcileRequest struct {
	Direction string `json:"direction" form:"direction"`
	Policy    string `json:"policy" form:"policy"`
	Async     bool   `json:"async" form:"async"`
}

// Reconcile handles POST /api/sync/reconcile
func (sc *SyncController) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body: "+err.Error())
			return
		}
	} else {
		_ = c.ShouldBindQuery(&req)
	}

	direction, policy := sc.direction, sc.policy
	var err error
	if req.Direction != "" {
		if direction, err = reconcile.ParseDirection(req.Direction); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}
	if req.Policy != "" {
		if policy, err = reconcile.ParsePolicy(req.Policy); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}

	if req.Async {
		if sc.tasks == nil {
			respondBadRequest(c, "task queue is disabled")
			return
		}
		id, err := sc.tasks.Enqueue(tasks.ReconcileTask{Direction: string(direction), Policy: string(policy)})
		if err != nil {
			respondInternalError(c, err, "enqueue reconcile")
			return
		}
		respondAccepted(c, "reconcile enqueued", gin.H{"task_id": id})
		return
	}

	res, err := sc.engine.Run(c.Request.Context(), direction, policy)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, entities.ErrStoreUnavailable) && res != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "result": res})
	default:
		respondServiceError(c, err, "store", "reconcile")
	}
}

type SyncStatusResponse struct {
	State    reconcile.State        `json:"state"`
	Status   *reconcile.SyncStatus  `json:"status,omitempty"`
	LastRun  *entities.SyncRun      `json:"last_run,omitempty"`
	Progress *entities.SyncProgress `json:"progress,omitempty"`
}

// Status handles GET /api/sync/status
func (sc *SyncController) Status(c *gin.Context) {
	st, err := sc.engine.SyncStatus(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "store", "sync status")
		return
	}
	resp := SyncStatusResponse{State: sc.engine.State(), Status: st}
	if extDB, err := sc.manager.Extension(); err == nil {
		repo := syncstate.NewRepository(extDB, entities.SyncTypeReconcile)
		if run, err := repo.LastRun(); err == nil {
			resp.LastRun = run
		}
		if p, err := repo.GetSyncProgress(); err == nil {
			resp.Progress = p
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Runs handles GET /api/sync/runs?limit=
func (sc *SyncController) Runs(c *gin.Context) {
	limit, ok := parseQueryInt(c, "limit", 20)
	if !ok {
		return
	}
	extDB, err := sc.manager.Extension()
	if err != nil {
		respondServiceError(c, err, "store", "sync runs")
		return
	}
	runs, err := syncstate.NewRepository(extDB, entities.SyncTypeReconcile).ListRuns(limit)
	if err != nil {
		respondInternalError(c, err, "sync runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
