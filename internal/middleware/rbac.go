package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// RequireRole rejects callers whose role is not allowed. A wrong role is reported as
// Unauthorized with the given message, matching the rejection of a missing session.
func RequireRole(message string, roles ...models.UserRole) gin.HandlerFunc {
	if message == "" {
		message = "Unauthorized"
	}
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok || claims == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, message))
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, message))
			c.Abort()
			return
		}
		c.Next()
	}
}

// TeacherOnly admits teachers.
func TeacherOnly() gin.HandlerFunc {
	return RequireRole("Unauthorized", models.RoleTeacher)
}

// StudentOnly admits students.
func StudentOnly() gin.HandlerFunc {
	return RequireRole("Unauthorized - Student only", models.RoleStudent)
}
