package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/middleware"
	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func schoolFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextSchoolKey)
	if !exists {
		return ""
	}
	schoolID, ok := value.(string)
	if !ok {
		return ""
	}
	return schoolID
}

func userIDFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// sessionIDFromRequest resolves the session the caller wants to browse: the
// session_id query parameter when present, otherwise the school's current
// session.
func sessionIDFromRequest(c *gin.Context, sessions *service.SessionService) (string, error) {
	if sessionID := c.Query("session_id"); sessionID != "" {
		return sessionID, nil
	}
	current, err := sessions.Current(c.Request.Context(), schoolFromContext(c))
	if err != nil {
		return "", err
	}
	return current.ID, nil
}
