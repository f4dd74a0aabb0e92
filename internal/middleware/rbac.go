package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/lukehurtiu/community-classes-api/internal/models"
	appErrors "github.com/lukehurtiu/community-classes-api/pkg/errors"
	"github.com/lukehurtiu/community-classes-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. The caller's
// role must be one of the allowed values; anything outside the closed role
// enum is rejected.
func RequireRoles(allowed ...models.Role) gin.HandlerFunc {
	allowedRoles := make(map[models.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !claims.Role.Valid() {
			response.Error(c, appErrors.ErrUnknownRole)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
