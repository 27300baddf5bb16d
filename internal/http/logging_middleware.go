package http

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request with sensitive query values masked.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if raw := util.MaskSensitiveQuery(c.Request.URL.RawQuery); raw != "" {
			path += "?" + raw
		}
		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if userID, ok := c.Get(ContextUserID); ok {
			entry = entry.WithField("user_id", userID)
		}
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// Recovery turns a panic into an INTERNAL_SERVER_ERROR envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.WithField("stack", string(debug.Stack())).Errorf("panic: %v", recovered)
				respond.Error(c, apierror.Internal("internal server error", fmt.Errorf("panic: %v", recovered)))
			}
		}()
		c.Next()
	}
}
