package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haukened/geoblock/internal/geoblock/common/log"
)

// requestLogger logs one line per request at debug level, or warn for 5xx.
func requestLogger(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"client":      c.ClientIP(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if c.Writer.Status() >= 500 {
			if len(c.Errors) > 0 {
				fields["error"] = c.Errors.String()
			}
			logger.Warn(fields, "request failed")
			return
		}
		logger.Debug(fields, "request handled")
	}
}

// recovery converts a handler panic into a 500 envelope.
func recovery(logger log.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		logger.Error(map[string]any{
			"path":  c.Request.URL.Path,
			"panic": err,
		}, "handler panicked")
		fail(c, http.StatusInternalServerError, "internal server error")
	})
}
