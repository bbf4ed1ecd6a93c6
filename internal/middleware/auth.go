package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/internal/utils"
)

const (
	ContextSession = "session"
	ContextUserID  = "user_id"
	ContextRole    = "role"
)

// AuthRequired resolves the session from a bearer token.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "invalid authorization header format"})
			return
		}

		claims, err := utils.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "invalid or expired token"})
			return
		}

		session := services.SessionFromClaims(claims)
		c.Set(ContextSession, session)
		c.Set(ContextUserID, session.UserID)
		c.Set(ContextRole, session.Role)

		c.Next()
	}
}

// RoleRequired lets the request through only when the session role equals one
// of roles. There is no hierarchy: ADMIN passes only where it is listed.
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := services.RequireRole(GetSession(c), roles...); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": 403, "message": err.Error()})
			return
		}
		c.Next()
	}
}

// GetSession returns the session set by AuthRequired, or nil.
func GetSession(c *gin.Context) *services.Session {
	if v, exists := c.Get(ContextSession); exists {
		if s, ok := v.(*services.Session); ok {
			return s
		}
	}
	return nil
}

// GetUserID returns the signed-in user's id, or "".
func GetUserID(c *gin.Context) string {
	if s := GetSession(c); s != nil {
		return s.UserID
	}
	return ""
}

// GetRole returns the signed-in user's role, or "".
func GetRole(c *gin.Context) models.Role {
	if s := GetSession(c); s != nil {
		return s.Role
	}
	return ""
}
