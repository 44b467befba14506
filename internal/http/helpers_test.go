package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/shelfsync/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseIDParam_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "123"}}

	id, ok := parseIDParam(c, "id")

	assert.True(t, ok)
	assert.Equal(t, int64(123), id)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIDParam_Invalid(t *testing.T) {
	for _, v := range []string{"abc", "-1", "0"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: v}}

		id, ok := parseIDParam(c, "id")

		assert.False(t, ok, v)
		assert.Equal(t, int64(0), id)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid id")
	}
}

func TestReaderID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?reader=query-reader", nil)
	assert.Equal(t, "query-reader", readerID(c))

	c.Request.Header.Set(ReaderHeader, "header-reader")
	assert.Equal(t, "header-reader", readerID(c))
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", entities.NewValidationError("title", "is required"), http.StatusBadRequest},
		{"not found", fmt.Errorf("get: %w", entities.ErrNotFound), http.StatusNotFound},
		{"busy", entities.ErrBusy, http.StatusConflict},
		{"unavailable", fmt.Errorf("open: %w", entities.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondServiceError(c, tt.err, "book", "test")

			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestRespondServiceError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondServiceError(c, errors.New("secret path /var/x"), "book", "test")

	assert.NotContains(t, w.Body.String(), "secret")
}

func TestRespondWrite_PartialWrite(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	err := fmt.Errorf("extension store: %w", entities.ErrPartialWrite)
	respondWrite(c, http.StatusCreated, gin.H{"id": 1}, err, "test")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"warning"`)
	assert.Contains(t, w.Body.String(), `"id":1`)
}

func TestParseQueryInt(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?year=2023&bad=x", nil)

	v, ok := parseQueryInt(c, "year", 1)
	assert.True(t, ok)
	assert.Equal(t, 2023, v)

	v, ok = parseQueryInt(c, "missing", 7)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = parseQueryInt(c, "bad", 0)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(id int64) string { return fmt.Sprint(id) }
