package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
	"github.com/layer-3/beacon/service"
)

const sessionKey = "session"

// AuthMiddleware validates bearer tokens and attaches the session to
// the request context. Expired and unknown tokens are indistinguishable
// to the caller; both require re-authentication.
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) < 8 || header[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		sess, err := auth.Authenticate(c.Request.Context(), header[7:])
		if err != nil {
			if errors.Is(err, core.ErrInvalidSession) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RateLimitMiddleware applies sliding-window admission control. The key
// is the authenticated DID when a session is present, otherwise the
// client IP. Denials are 429, distinct from authorization failures, so
// clients know to back off rather than re-authenticate.
func RateLimitMiddleware(limiter ports.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if sess := sessionFrom(c); sess != nil {
			key = sess.DID
		}

		allowed, err := limiter.Check(c.Request.Context(), key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// sessionFrom returns the authenticated session, or nil.
func sessionFrom(c *gin.Context) *core.Session {
	val, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := val.(*core.Session)
	return sess
}
