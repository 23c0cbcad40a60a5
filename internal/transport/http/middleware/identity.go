package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aria-chat/internal/identity"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/transport/http/response"
)

const ContextProfileKey = "identity_profile"

// TokenFromRequest prefers the Authorization bearer token and falls back
// to the session cookie.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "Bearer "
	if strings.HasPrefix(authHeader, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	}
	if cookieName == "" {
		return ""
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

// RequireIdentity rejects requests the gate cannot authenticate.
func RequireIdentity(gate *identity.Gate, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing credentials")
			c.Abort()
			return
		}

		profile, err := gate.Authenticate(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextProfileKey, profile)
		c.Set(logger.FieldAdmin, profile.Email)
		c.Next()
	}
}

func ProfileFromContext(c *gin.Context) (*identity.Profile, bool) {
	v, ok := c.Get(ContextProfileKey)
	if !ok {
		return nil, false
	}
	profile, ok := v.(*identity.Profile)
	return profile, ok
}
