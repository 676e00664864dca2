package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/auth"
	"github.com/example/face-liveness/internal/liveness"
	"github.com/example/face-liveness/internal/logging"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const (
	errorBackend       = "Backend API Error"
	errorRouteNotFound = "Route not found"
)

var errRouteNotFound = errors.New(errorRouteNotFound)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
	Stack   string `json:"stack,omitempty"`
}

// RequestID reuses the caller's X-Request-ID or mints a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// RequestLogger writes one structured line per inbound call.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", logging.RequestIDFromContext(c.Request.Context())),
		}
		if subject, ok := auth.SubjectFromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("subject", subject))
		}
		logger.Info("request", fields...)
	}
}

// CORS allows the capture page and shell to call the broker from other origins.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// ErrorEnvelope renders the last error attached by a handler and logs it once.
func ErrorEnvelope(logger *zap.Logger, production bool) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, logger, production, c.Errors.Last().Err, nil)
	}
}

// Recovery turns panics into the same 500 envelope as any other unhandled error.
func Recovery(logger *zap.Logger, production bool) gin.HandlerFunc {
	logger = logger.Named("http")
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		writeError(c, logger, production, fmt.Errorf("panic: %v", recovered), debug.Stack())
	})
}

func writeError(c *gin.Context, logger *zap.Logger, production bool, err error, stack []byte) {
	status := statusFor(err)
	resp := errorResponse{
		Error:   errorLabel(status, err),
		Message: liveness.PublicMessage(err),
		Path:    c.Request.URL.Path,
	}

	fields := append(logging.ErrorFields(err),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("message", resp.Message),
		zap.String("request_id", logging.RequestIDFromContext(c.Request.Context())),
	)
	if !isRejection(status, err) || stack != nil {
		if stack == nil {
			stack = debug.Stack()
		}
		fields = append(fields, zap.ByteString("stack", stack))
		if !production {
			resp.Stack = string(stack)
		}
		logger.Error("request failed", fields...)
	} else {
		logger.Warn("request rejected", fields...)
	}

	c.AbortWithStatusJSON(status, resp)
}

// isRejection reports caller mistakes, which are logged without a stack.
func isRejection(status int, err error) bool {
	var upstream *liveness.UpstreamError
	return status < http.StatusInternalServerError && !errors.As(err, &upstream)
}

func statusFor(err error) int {
	if errors.Is(err, errRouteNotFound) {
		return http.StatusNotFound
	}
	return liveness.StatusCode(err)
}

func errorLabel(status int, err error) string {
	if isRejection(status, err) {
		return liveness.PublicMessage(err)
	}
	return errorBackend
}
