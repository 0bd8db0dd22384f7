package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKey is the gin context key holding the caller's Session.
const ContextKey = "session"

// Revocations reports tokens invalidated by sign-out.
type Revocations interface {
	Revoked(tokenID string) bool
}

// Bearer resolves the caller's session from an optional bearer JWT. Requests
// without a token continue as anonymous; a bad or revoked token is rejected.
func Bearer(signingKey, issuer string, revoked Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" {
			setSession(c, Session{})
			c.Next()
			return
		}
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if revoked != nil && revoked.Revoked(claims.ID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session ended"})
			return
		}
		setSession(c, claims.Session())
		c.Next()
	}
}

func setSession(c *gin.Context, s Session) {
	c.Set(ContextKey, s)
	c.Request = c.Request.WithContext(WithSession(c.Request.Context(), s))
}

// SessionOf returns the session Bearer stored on c.
func SessionOf(c *gin.Context) Session {
	if v, ok := c.Get(ContextKey); ok {
		if s, ok := v.(Session); ok {
			return s
		}
	}
	return Session{}
}
