package ctxmanage

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIdKey is the gin context key under which the request trace id is stored.
const TraceIdKey = "trace_id"

// GetTraceIdOfRequest returns the trace id set by the logger middleware.
// A fresh id is generated if the middleware did not run (e.g. in tests).
func GetTraceIdOfRequest(c *gin.Context) string {
	traceId, ok := c.Get(TraceIdKey)
	if !ok {
		return uuid.NewString()
	}
	id, ok := traceId.(string)
	if !ok || id == "" {
		return uuid.NewString()
	}
	return id
}
