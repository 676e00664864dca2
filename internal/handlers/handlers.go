package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/auth"
	"github.com/example/face-liveness/internal/capture"
	"github.com/example/face-liveness/internal/liveness"
	"github.com/example/face-liveness/internal/usecase"
)

// Options configures the HTTP surface beyond the broker operations.
type Options struct {
	Logger      *zap.Logger
	Production  bool
	CORSOrigins []string
	Capture     capture.Settings
	// CaptureTokens scopes capture page events to one session. Nil leaves events open.
	CaptureTokens *auth.CaptureTokens
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

var bannerEndpoints = []string{
	"POST /api/create-session",
	"GET /api/get-session-results/:sessionId",
	"POST /api/validate-liveness",
}

type validateRequest struct {
	SessionID string `json:"sessionId"`
}

// NewRouter builds a gin engine with the broker's middleware chain and routes.
func NewRouter(uc *usecase.LivenessUseCase, authMiddleware gin.HandlerFunc, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(
		RequestID(),
		RequestLogger(opts.Logger),
		Recovery(opts.Logger, opts.Production),
		CORS(opts.CORSOrigins),
		ErrorEnvelope(opts.Logger, opts.Production),
	)
	RegisterRoutes(router, uc, authMiddleware, opts)
	return router
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.LivenessUseCase, authMiddleware gin.HandlerFunc, opts Options) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "AWS Face Liveness Backend is running!",
			"endpoints": bannerEndpoints,
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}

	api.POST("/create-session", func(c *gin.Context) {
		sessionID, err := uc.CreateSession(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionId": sessionID})
	})

	api.GET("/get-session-results/:sessionId", func(c *gin.Context) {
		results, err := uc.GetSessionResults(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, results)
	})

	api.POST("/validate-liveness", func(c *gin.Context) {
		var req validateRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			_ = c.Error(err)
			return
		}

		verdict, err := uc.ValidateLiveness(c.Request.Context(), req.SessionID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, verdict)
	})

	registerCaptureRoutes(router, uc, authMiddleware, opts)

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(errRouteNotFound)
	})
}

// bindOptionalJSON decodes the request body; an empty body leaves dst untouched.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &liveness.ValidationError{Field: "body", Message: "Request body must be valid JSON: " + strings.TrimSpace(err.Error())}
	}
	return nil
}
