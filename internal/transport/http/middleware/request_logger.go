package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"buildscope/internal/logger"
)

// RequestLogger writes one line per request. Query strings are left out
// since they can carry tokens.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if userID, ok := c.Get(ContextUserIDKey); ok {
			kv = append(kv, "user_id", userID)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request completed", kv...)
		case status >= 400:
			log.Warn("request completed", kv...)
		default:
			log.Info("request completed", kv...)
		}
	}
}
