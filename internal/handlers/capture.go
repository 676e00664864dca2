package handlers

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/capture"
	"github.com/example/face-liveness/internal/usecase"
)

//go:embed web/capture.html
var webFS embed.FS

var captureTemplate = template.Must(template.ParseFS(webFS, "web/capture.html"))

type capturePage struct {
	Config capture.WidgetConfig
	// Token authorizes the page's widget events when the API is guarded.
	Token string
	Error string
	// Relay is the message posted to the shell when the page cannot start a capture.
	Relay string
}

type captureEventRequest struct {
	SessionID string `json:"sessionId"`
	Event     string `json:"event"`
	Error     string `json:"error"`
}

// newCaptureFlow builds a flow whose relayed payload lands in payload.
func newCaptureFlow(uc *usecase.LivenessUseCase, opts Options, payload *string) *capture.Flow {
	sink := capture.SinkFunc(func(_ context.Context, p string) error {
		*payload = p
		return nil
	})
	flow := capture.NewFlow(opts.Capture, uc, sink, opts.Logger)
	logger := opts.Logger.Named("capture")
	flow.OnTransition(func(from, to capture.State) {
		if to.Terminal() {
			logger.Info("capture finished",
				zap.String("session_id", flow.Config().SessionID),
				zap.String("from", string(from)),
				zap.String("state", string(to)),
			)
		}
	})
	return flow
}

// registerCaptureRoutes serves the capture page behind the same guard as the API. The
// page's widget events carry a capture token scoped to its session instead.
func registerCaptureRoutes(router *gin.Engine, uc *usecase.LivenessUseCase, authMiddleware gin.HandlerFunc, opts Options) {
	router.SetHTMLTemplate(captureTemplate)

	page := router.Group("/capture")
	if authMiddleware != nil {
		page.Use(authMiddleware)
	}

	page.GET("", func(c *gin.Context) {
		var payload string
		flow := newCaptureFlow(uc, opts, &payload)
		if err := flow.Start(c.Request.Context(), c.Request.URL.Query()); err != nil {
			c.HTML(http.StatusBadRequest, "capture.html", capturePage{Error: err.Error(), Relay: payload})
			return
		}
		token, err := opts.CaptureTokens.Issue(flow.Config().SessionID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.HTML(http.StatusOK, "capture.html", capturePage{Config: flow.Config(), Token: token})
	})

	page.GET("/config", func(c *gin.Context) {
		cfg, err := opts.Capture.WidgetConfig(c.Request.URL.Query())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	})

	// Each widget callback is handled statelessly: the flow is rebuilt for the session
	// and run over the single event.
	router.POST("/capture/events", func(c *gin.Context) {
		var req captureEventRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			_ = c.Error(err)
			return
		}
		kind, err := capture.ParseEventKind(req.Event)
		if err != nil {
			_ = c.Error(err)
			return
		}

		query := url.Values{}
		if req.SessionID != "" {
			query.Set(capture.SessionIDParam, req.SessionID)
		}
		if sessionID, err := capture.ResolveSessionID(query, opts.Capture.FallbackSessionID); err == nil {
			if err := opts.CaptureTokens.Authorize(c.GetHeader("Authorization"), sessionID); err != nil {
				_ = c.Error(err)
				return
			}
		}

		events := make(chan capture.Event, 1)
		events <- capture.Event{Kind: kind, Error: req.Error}
		close(events)

		var payload string
		flow := newCaptureFlow(uc, opts, &payload)
		if _, err := flow.Run(c.Request.Context(), query, events); err != nil && payload == "" {
			_ = c.Error(err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
	})
}
