package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
	"github.com/noah-isme/timesheet-api/pkg/middleware/requestid"
)

func TestErrorRecordsServerFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, c.Errors, 1)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["error"]["code"])
}

func TestErrorKeepsClientFailuresOutOfLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.ErrLockedResource.WithDetails(map[string]interface{}{"status": "approved"}))

	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Empty(t, c.Errors)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)
}

func TestJSONDropsEmptyMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSON(c, http.StatusOK, gin.H{"ok": true}, nil, map[string]interface{}{})

	assert.NotContains(t, w.Body.String(), "meta")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/timesheets/:ref", func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrNotFound, "time sheet not found"))
	})

	req := httptest.NewRequest(http.MethodGet, "/timesheets/missing", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body.Meta["request_id"])
	assert.Equal(t, "time sheet not found", body.Error.Message)
}
