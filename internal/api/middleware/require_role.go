package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qiranapp/qiran/internal/utils"
)

// RequireRole gates a route group on the app-level role set by JWTAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get("role")
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "role missing",
			})
			return
		}
		if s, _ := v.(string); s != role {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "insufficient role",
			})
			return
		}
		c.Next()
	}
}
