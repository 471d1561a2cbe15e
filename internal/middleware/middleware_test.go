package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timesheet-api/internal/models"
	"github.com/noah-isme/timesheet-api/internal/service"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
	"github.com/noah-isme/timesheet-api/pkg/logger"
)

type tokenStub map[string]*models.JWTClaims

func (t tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := t[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tokens := tokenStub{
		"employee": {UserID: "u-alice", Role: models.RoleEmployee},
		"hr":       {UserID: "u-hr", Role: models.RoleHR},
	}
	handlers := []gin.HandlerFunc{JWT(tokens)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/protected", handlers...)
	return r
}

func doRequest(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWT(t *testing.T) {
	r := newProtectedRouter()

	rec := doRequest(r, "Bearer employee")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-alice", rec.Body.String())

	for _, header := range []string{"", "Basic employee", "Bearer ", "Bearer unknown"} {
		rec := doRequest(r, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.True(t, strings.Contains(rec.Body.String(), "UNAUTHORIZED"), header)
	}
}

func TestRequireRoles(t *testing.T) {
	r := newProtectedRouter(models.RoleAdmin, models.RoleHR)

	assert.Equal(t, http.StatusOK, doRequest(r, "bearer hr").Code)

	rec := doRequest(r, "Bearer employee")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"required":["ADMIN","HR"]`)
	assert.Contains(t, rec.Body.String(), `"role":"EMPLOYEE"`)
}

func TestJWTExposesUserToLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var userID string
	r.GET("/protected", JWT(tokenStub{"employee": {UserID: "u-alice", Role: models.RoleEmployee}}), func(c *gin.Context) {
		userID = c.GetString(logger.UserIDKey)
		c.Status(http.StatusOK)
	})
	require.Equal(t, http.StatusOK, doRequest(r, "Bearer employee").Code)
	assert.Equal(t, "u-alice", userID)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireAdministrative(), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
}

func TestResponseMetaCollectsWarnings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/protected", func(c *gin.Context) {
		AddWarnings(c)
		AddWarnings(c, "first")
		AddWarnings(c, "second")
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	doRequest(r, "")

	require.NotNil(t, meta)
	assert.Equal(t, []string{"first", "second"}, meta["warnings"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsMiddlewareObservesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/metrics"))
	r.GET("/protected", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusTeapot)
	})
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	doRequest(r, "")
	for _, path := range []string{"/metrics", "/timesheets/6f1c/status"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	seen := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			seen[labels["path"]+" "+labels["status"]] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"/protected 418": 1,
		"unmatched 404":  1,
	}, seen)
}
