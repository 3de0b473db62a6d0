package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID carries the per-request correlation id.
	HeaderRequestID = "X-Request-ID"

	contextKeyRequestID = "httpapi_request_id"
	logEventHTTP        = "http"
	requestIDMaxLength  = 128
)

// RequestLogger assigns a request id and logs one line per request once the handler chain returns.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(context.GetHeader(HeaderRequestID))
		if requestID == "" || len(requestID) > requestIDMaxLength {
			requestID = uuid.NewString()
		}
		context.Set(contextKeyRequestID, requestID)
		context.Header(HeaderRequestID, requestID)

		context.Next()

		logger.Info(logEventHTTP,
			zap.String("request_id", requestID),
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// RequestIDFromContext returns the id assigned by RequestLogger, if any.
func RequestIDFromContext(context *gin.Context) string {
	return context.GetString(contextKeyRequestID)
}
