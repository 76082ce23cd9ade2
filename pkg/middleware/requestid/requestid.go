// Package requestid tags every request with an id that is echoed to the client and
// attached to the request log line.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Header carries the id in both directions.
	Header     = "X-Request-ID"
	contextKey = "request_id"
	maxLength  = 64
)

// Middleware reuses a well-formed inbound X-Request-ID, so ids survive a proxy hop, and
// mints a uuid otherwise.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(Header)
		if !acceptable(reqID) {
			reqID = uuid.NewString()
		}
		c.Set(contextKey, reqID)
		c.Writer.Header().Set(Header, reqID)
		c.Next()
	}
}

// Value returns the request id stored in the gin context.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}

// Field returns the request id as a zap field, or zap.Skip when none was assigned.
func Field(c *gin.Context) zap.Field {
	if id := Value(c); id != "" {
		return zap.String(contextKey, id)
	}
	return zap.Skip()
}

// acceptable rejects empty, oversized and non-printable ids so client input cannot
// forge log lines.
func acceptable(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
