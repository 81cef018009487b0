package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-Id"

// ctxLoggerKey is where the request-scoped logger lives in Gin's context.
const ctxLoggerKey = "famline/logger"

// callScopeParams are route params that, when present, scope a request to a
// specific call. They are attached to the request logger so every line a
// handler emits is traceable to the call it served.
var callScopeParams = []string{"group_id", "call_type", "call_id", "participant_id"}

// Middleware injects a request-scoped logger and writes one summary line per
// request. The request id is taken from X-Request-Id when the caller sends
// one, minted otherwise, and echoed back on the response.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		for _, p := range callScopeParams {
			if v := c.Param(p); v != "" {
				reqLogger = reqLogger.With(p, v)
			}
		}
		c.Set(ctxLoggerKey, reqLogger)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		if len(c.Errors) > 0 {
			reqLogger.Error("request", append(attrs, "errors", c.Errors.String())...)
			return
		}
		reqLogger.Info("request", attrs...)
	}
}

// FromGin pulls the request-scoped logger out of Gin's context. Handlers get
// the call-scoped logger set up by Middleware; anything running outside a
// request falls back to the process default.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ctxLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
