package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"promptchat/internal/app"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextTokenKey    = "session_token"
)

// RequireSession gates protected routes. The token comes from the session
// cookie or a Bearer header; anything short of a live, validly signed session
// sends the caller back to the login entry point.
func RequireSession(authService *app.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c, cookieName)
		if token == "" {
			redirectToLogin(c)
			return
		}

		claims, err := authService.ValidateSession(c.Request.Context(), token)
		if err != nil {
			redirectToLogin(c)
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "Bearer "
	if strings.HasPrefix(authHeader, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	}
	return ""
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, "/login")
	c.Abort()
}
