package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"stockkeeper/pkg/logger"
)

// Logger logs every request with timing and status.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.WithContext(c.Request.Context()).Infow("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_id", c.GetString(KeyUserID),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
