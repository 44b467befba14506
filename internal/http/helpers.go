package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// ReaderHeader names the request header carrying the reader id. The "reader"
// query parameter is accepted as a fallback.
const ReaderHeader = "X-Reader-ID"

func readerID(c *gin.Context) string {
	if r := c.GetHeader(ReaderHeader); r != "" {
		return r
	}
	return c.Query("reader")
}

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PartialWriteResponse carries the committed book when a later store failed.
type PartialWriteResponse struct {
	Warning string `json:"warning"`
	Data    any    `json:"data"`
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondServiceError maps store and validation errors to status codes:
// validation 400, missing 404, busy 409, store down 503, anything else 500.
func respondServiceError(c *gin.Context, err error, resource, context string) {
	var ve *entities.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   ve.Error(),
			Code:    "validation_failed",
			Details: gin.H{"field": ve.Field},
		})
	case errors.Is(err, entities.ErrNotFound):
		respondNotFound(c, resource)
	case errors.Is(err, entities.ErrBusy):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "busy"})
	case errors.Is(err, entities.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "store_unavailable"})
	default:
		respondInternalError(c, err, context)
	}
}

// respondWrite answers a multi-store write. A partial write still returns the
// committed data, with 202 and a warning.
func respondWrite(c *gin.Context, status int, data any, err error, context string) {
	if errors.Is(err, entities.ErrPartialWrite) && data != nil {
		log.Printf("Partial write (%s): %v", context, err)
		c.JSON(http.StatusAccepted, PartialWriteResponse{Warning: err.Error(), Data: data})
		return
	}
	if err != nil {
		respondServiceError(c, err, "book", context)
		return
	}
	c.JSON(status, data)
}

func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// parseIDParam extracts a positive int64 id from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return id, true
}

// parseQueryInt reads an optional integer query parameter.
func parseQueryInt(c *gin.Context, name string, fallback int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		respondBadRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}
