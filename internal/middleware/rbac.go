package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timesheet-api/internal/models"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
	"github.com/noah-isme/timesheet-api/pkg/response"
)

// RequireRoles admits callers whose token carries one of roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	required := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
		required = append(required, string(role))
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role not permitted for this route").
				WithDetails(map[string]interface{}{"required": required, "role": claims.Role}))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdministrative admits the HR administration roles.
func RequireAdministrative() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleHR)
}
