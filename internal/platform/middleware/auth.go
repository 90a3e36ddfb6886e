package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/platform/auth"
	"github.com/thairide/service-booking/internal/platform/domain"
	"github.com/thairide/service-booking/internal/platform/response"
)

const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
)

// AuthMiddleware verifies the bearer token and stores the caller's id and role.
func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		claims, err := jwtManager.Verify(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "invalid subject")
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			response.Unauthorized(c, "unauthorized")
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		response.Error(c, domain.NewForbiddenError("role "+role+" may not perform this action"))
		c.Abort()
	}
}

// GetUserID returns the authenticated caller's id.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetUserRole returns the authenticated caller's role.
func GetUserRole(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
