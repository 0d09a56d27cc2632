package middleware

import (
	"time"

	"github.com/waste3d/coursemarket-api/internal/metrics"
	"github.com/waste3d/coursemarket-api/internal/obs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDKey = "requestId"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(RequestIDKey, reqID)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

// Logging пишет одну строку на запрос и, если метрики заданы, обновляет их.
func Logging(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lat := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		obs.Logger.Info("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"latency_ms", float64(lat.Microseconds())/1000.0,
			"request_id", c.GetString(RequestIDKey),
			"user_id", c.GetString(UserIDKey),
		)
		if m != nil {
			m.Requests.WithLabelValues(route, statusClass(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(lat.Microseconds()) / 1000.0)
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
