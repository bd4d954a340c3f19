package middleware

import (
	"strings"

	"coursechat-backend/internal/auth"
	"coursechat-backend/internal/config"

	"github.com/gin-gonic/gin"
)

// IdentifyUser extracts the user identity from a bearer token when one
// is present. Identity only attributes activity in stats and history;
// anonymous requests pass through untouched, and so do requests with
// invalid tokens.
func IdentifyUser(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" || cfg.JWTSecret == "" {
			c.Next()
			return
		}

		if sub, err := auth.ParseSubject(tokenString, cfg.JWTSecret); err == nil {
			c.Set("user_id", sub)
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" for anonymous
// requests.
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		if str, ok := id.(string); ok {
			return str
		}
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}
