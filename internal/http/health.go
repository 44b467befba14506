package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	manager *database.Manager
	version string
}

func NewHealthController(manager *database.Manager, version string) *HealthController {
	return &HealthController{manager: manager, version: version}
}

// Status reports each store. The catalog is required; a missing extension
// store only degrades the service.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.manager == nil {
		checks["stores"] = "not configured"
	} else {
		for _, st := range h.manager.Status() {
			check := string(st.State)
			if st.Error != "" {
				check += ": " + st.Error
			}
			checks[string(st.Kind)] = check
			if st.State == database.StateReady {
				continue
			}
			if st.Kind == database.StoreCatalog {
				status = "unhealthy"
			} else if status == "healthy" {
				status = "degraded"
			}
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.IndentedJSON(statusCode, health)
}
