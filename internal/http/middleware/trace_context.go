package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderTraceID = "X-Trace-Id"
	ctxKeyTraceID = "trace_id"
)

// AttachTraceContext exposes the active span's trace id so a response can be
// matched to its exported trace. It runs after otelgin; without a sampled
// span no header is set.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		spanCtx := trace.SpanContextFromContext(c.Request.Context())
		if spanCtx.HasTraceID() {
			traceID := spanCtx.TraceID().String()
			c.Set(ctxKeyTraceID, traceID)
			c.Writer.Header().Set(HeaderTraceID, traceID)
		}
		c.Next()
	}
}

func TraceID(c *gin.Context) string {
	return c.GetString(ctxKeyTraceID)
}
