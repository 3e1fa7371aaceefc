// README: Auth middleware verifying Firebase ID tokens.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lookout/internal/infra"
)

// AnonymousUID is the caller id used when authentication is disabled.
const AnonymousUID = "anonymous"

const (
	uidKey  = "auth.uid"
	roleKey = "auth.role"
)

// Auth verifies "Authorization: Bearer <id token>" on every request and
// stores the caller's uid and role on the context. The token may also be
// passed as ?token= for clients that cannot set headers (EventSource).
// A nil verifier disables authentication and every caller is AnonymousUID.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Set(uidKey, AnonymousUID)
			c.Next()
			return
		}

		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(uidKey, token.UID)
		c.Set(roleKey, token.Role())
		c.Next()
	}
}

// CallerUID returns the authenticated uid, or "" outside Auth.
func CallerUID(c *gin.Context) string {
	return c.GetString(uidKey)
}

// CallerRole returns the caller's role claim, if any.
func CallerRole(c *gin.Context) string {
	return c.GetString(roleKey)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
