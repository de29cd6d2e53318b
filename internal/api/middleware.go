package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wayback-news/internal/observability"
)

const accessDeniedMessage = "Direct access to the API not allowed"

// proxySecretMiddleware rejects requests that do not carry the shared secret
// in header. An empty secret disables the check. Paths in open bypass it.
func proxySecretMiddleware(header, secret string, open ...string) gin.HandlerFunc {
	bypass := make(map[string]struct{}, len(open))
	for _, p := range open {
		bypass[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if _, ok := bypass[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		got := c.GetHeader(header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.String(http.StatusForbidden, accessDeniedMessage)
			c.Abort()
			return
		}

		c.Next()
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"client_ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Info("Request handled", fields...)
	}
}
