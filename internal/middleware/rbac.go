package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya/vidyalaya-api/pkg/response"
)

// RBAC enforces role-based access control for routes. Developers pass every
// check since they administer all tenants.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
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
		claims := claimsValue.(*models.JWTClaims)

		if claims.Role == models.RoleDeveloper {
			c.Next()
			return
		}
		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// SchoolScope pins non-developer users to their own school. The resolved
// school ID is stored in the context for handlers; developers may select any
// school through the school_id query parameter.
func SchoolScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		schoolID := claims.SchoolID
		if claims.Role == models.RoleDeveloper {
			if requested := c.Query("school_id"); requested != "" {
				schoolID = requested
			}
		}
		if schoolID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no school context"))
			c.Abort()
			return
		}

		c.Set(ContextSchoolKey, schoolID)
		c.Next()
	}
}

// ContextSchoolKey is the gin context key storing the resolved school ID.
const ContextSchoolKey = "currentSchool"
