package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/liveness"
	"github.com/example/face-liveness/internal/logging"
)

// LivenessUseCase forwards broker operations to the liveness service.
// It holds no per-session state; every call re-queries the service.
type LivenessUseCase struct {
	client    liveness.Client
	metrics   *Metrics
	logger    *zap.Logger
	threshold float64
}

// Option customises a LivenessUseCase.
type Option func(*LivenessUseCase)

// WithThreshold overrides the confidence a session must exceed.
func WithThreshold(threshold float64) Option {
	return func(uc *LivenessUseCase) {
		uc.threshold = threshold
	}
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(uc *LivenessUseCase) {
		uc.metrics = m
	}
}

// NewLivenessUseCase constructs a new use case instance.
func NewLivenessUseCase(client liveness.Client, logger *zap.Logger, opts ...Option) *LivenessUseCase {
	uc := &LivenessUseCase{
		client:    client,
		logger:    logger.Named("liveness_usecase"),
		threshold: liveness.DefaultConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Threshold returns the confidence a session must exceed to pass.
func (uc *LivenessUseCase) Threshold() float64 {
	return uc.threshold
}

// CreateSession requests a new session from the liveness service.
func (uc *LivenessUseCase) CreateSession(ctx context.Context) (string, error) {
	const operation = "usecase.create_session"
	opLogger := logging.WithOperation(uc.logger, operation, logging.RequestIDFromContext(ctx))

	start := time.Now()
	sessionID, err := uc.client.CreateSession(ctx)
	uc.metrics.observeUpstream("create_session", start, err)
	if err != nil {
		wrapped := logging.NewOperationError(operation, logging.RequestIDFromContext(ctx), err)
		opLogger.Debug("create session failed", zap.Error(err))
		return "", wrapped
	}

	uc.metrics.sessionCreated()
	opLogger.Info("session created", zap.String("session_id", sessionID))
	return sessionID, nil
}

// GetSessionResults returns the service's results for sessionID unchanged.
func (uc *LivenessUseCase) GetSessionResults(ctx context.Context, sessionID string) (*liveness.SessionResults, error) {
	const operation = "usecase.get_session_results"
	if strings.TrimSpace(sessionID) == "" {
		return nil, liveness.ErrSessionIDRequired
	}
	opLogger := logging.WithOperation(uc.logger, operation, logging.RequestIDFromContext(ctx))

	start := time.Now()
	results, err := uc.client.GetSessionResults(ctx, sessionID)
	uc.metrics.observeUpstream("get_session_results", start, err)
	if err != nil {
		wrapped := logging.NewOperationError(operation, logging.RequestIDFromContext(ctx), err)
		opLogger.Debug("get session results failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, wrapped
	}

	opLogger.Info("session results fetched", zap.String("session_id", sessionID), zap.String("status", string(results.Status)))
	return results, nil
}

// ValidateLiveness fetches results for sessionID and applies the pass/fail rule.
func (uc *LivenessUseCase) ValidateLiveness(ctx context.Context, sessionID string) (liveness.Verdict, error) {
	results, err := uc.GetSessionResults(ctx, sessionID)
	if err != nil {
		return liveness.Verdict{}, err
	}

	verdict := liveness.Evaluate(results, uc.threshold)
	uc.metrics.verdict(verdict)
	logging.WithOperation(uc.logger, "usecase.validate_liveness", logging.RequestIDFromContext(ctx)).Info(
		"liveness evaluated",
		zap.String("session_id", sessionID),
		zap.Bool("success", verdict.Success),
		zap.String("status", string(verdict.Status)),
		zap.Float64("threshold", uc.threshold),
	)
	return verdict, nil
}
