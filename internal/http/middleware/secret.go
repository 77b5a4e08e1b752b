package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platewatch/platewatch-backend/internal/http/response"
)

// RequireUpdateSecret guards the admin trigger endpoints. The comparison is
// constant time; an empty configured secret disables the surface entirely
// rather than leaving it open.
func RequireUpdateSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.RespondError(c, http.StatusServiceUnavailable, "admin_disabled", fmt.Errorf("update secret not configured"))
			c.Abort()
			return
		}
		provided := c.GetHeader("X-Update-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			response.RespondError(c, http.StatusUnauthorized, "bad_secret", fmt.Errorf("missing or invalid update secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}
