package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timesheet-api/internal/middleware"
	"github.com/noah-isme/timesheet-api/internal/models"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
	"github.com/noah-isme/timesheet-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes a 401 and returns false when the request carries no claims.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, key+" must be an integer")
	}
	return value, nil
}
