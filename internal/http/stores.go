package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/services"
)

type StoresController struct {
	stores *services.StoreService
}

func NewStoresController(stores *services.StoreService) *StoresController {
	return &StoresController{stores: stores}
}

// List handles GET /api/stores
func (sc *StoresController) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stores": sc.stores.Status()})
}

type RepointRequest struct {
	Path string `json:"path" binding:"required"`
}

// Repoint handles POST /api/stores/:kind/repoint. A failed repoint leaves the
// store unavailable and answers 422; an overlapping pass answers 409.
func (sc *StoresController) Repoint(c *gin.Context) {
	var req RepointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "path is required")
		return
	}
	res := sc.stores.RepointStore(c.Request.Context(), c.Param("kind"), req.Path)
	switch {
	case res.Success:
		c.JSON(http.StatusOK, res)
	case res.Busy:
		c.JSON(http.StatusConflict, res)
	default:
		c.JSON(http.StatusUnprocessableEntity, res)
	}
}
