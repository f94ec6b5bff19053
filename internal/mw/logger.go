package mw

import (
	"time"

	"github.com/gin-gonic/gin"

	applog "requisition-sync/pkg/logger"
)

// Logger logs every request with its status and latency, and stores the
// logger in the request context.
func Logger(log *applog.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(applog.WithLogger(c.Request.Context(), log))

		c.Next()

		log.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
