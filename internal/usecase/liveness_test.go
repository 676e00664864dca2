package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/liveness"
	"github.com/example/face-liveness/internal/logging"
)

type stubClient struct {
	sessionID   string
	createErr   error
	results     *liveness.SessionResults
	resultsErr  error
	createCalls int
	resultCalls []string
}

func (s *stubClient) CreateSession(ctx context.Context) (string, error) {
	s.createCalls++
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.sessionID, nil
}

func (s *stubClient) GetSessionResults(ctx context.Context, sessionID string) (*liveness.SessionResults, error) {
	s.resultCalls = append(s.resultCalls, sessionID)
	if s.resultsErr != nil {
		return nil, s.resultsErr
	}
	return s.results, nil
}

func score(v float32) *float32 { return &v }

func TestCreateSessionReturnsServiceID(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := &stubClient{sessionID: "7c4aa9e1-37c6"}
	uc := NewLivenessUseCase(client, zap.NewNop(), WithMetrics(metrics))

	id, err := uc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if id != "7c4aa9e1-37c6" {
		t.Fatalf("unexpected session id: %s", id)
	}
	if got := testutil.ToFloat64(metrics.sessionsCreated); got != 1 {
		t.Fatalf("expected 1 created session, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.upstreamCalls.WithLabelValues("create_session", "success")); got != 1 {
		t.Fatalf("expected 1 successful upstream call, got %v", got)
	}
}

func TestCreateSessionWrapsUpstreamError(t *testing.T) {
	upstream := &liveness.UpstreamError{Operation: "rekognition.create", Message: "AccessDenied", StatusCode: http.StatusForbidden}
	uc := NewLivenessUseCase(&stubClient{createErr: upstream}, zap.NewNop())

	ctx := logging.ContextWithRequestID(context.Background(), "req-9")
	_, err := uc.CreateSession(ctx)

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "usecase.create_session" || opErr.RequestID != "req-9" {
		t.Fatalf("unexpected operation metadata: %+v", opErr)
	}
	if liveness.StatusCode(err) != http.StatusForbidden {
		t.Fatalf("expected upstream status to survive wrapping, got %d", liveness.StatusCode(err))
	}
	if liveness.PublicMessage(err) != "AccessDenied" {
		t.Fatalf("unexpected public message: %s", liveness.PublicMessage(err))
	}
}

func TestEmptySessionIDNeverReachesUpstream(t *testing.T) {
	client := &stubClient{results: &liveness.SessionResults{Status: liveness.StatusSucceeded}}
	uc := NewLivenessUseCase(client, zap.NewNop())

	for _, id := range []string{"", "   "} {
		if _, err := uc.GetSessionResults(context.Background(), id); !errors.Is(err, liveness.ErrSessionIDRequired) {
			t.Fatalf("GetSessionResults(%q): expected ErrSessionIDRequired, got %v", id, err)
		}
		if _, err := uc.ValidateLiveness(context.Background(), id); liveness.StatusCode(err) != http.StatusBadRequest {
			t.Fatalf("ValidateLiveness(%q): expected 400, got %v", id, err)
		}
	}
	if len(client.resultCalls) != 0 {
		t.Fatalf("expected no upstream calls, got %d", len(client.resultCalls))
	}
}

func TestGetSessionResultsPassesThrough(t *testing.T) {
	expected := &liveness.SessionResults{
		Status:         liveness.StatusSucceeded,
		Confidence:     score(95),
		ReferenceImage: &liveness.AuditImage{Bytes: []byte("ref")},
		AuditImages:    []liveness.AuditImage{{Bytes: []byte("a1")}},
	}
	client := &stubClient{results: expected}
	uc := NewLivenessUseCase(client, zap.NewNop())

	results, err := uc.GetSessionResults(context.Background(), "abc")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if results != expected {
		t.Fatalf("expected results to be relayed unchanged")
	}
	if client.resultCalls[0] != "abc" {
		t.Fatalf("session id was modified: %q", client.resultCalls[0])
	}
}

func TestValidateLiveness(t *testing.T) {
	cases := []struct {
		name    string
		results *liveness.SessionResults
		want    liveness.Verdict
	}{
		{
			name:    "real person",
			results: &liveness.SessionResults{Status: liveness.StatusSucceeded, Confidence: score(95)},
			want:    liveness.Verdict{Success: true, Status: liveness.StatusSucceeded, Message: "Real person detected"},
		},
		{
			name:    "failed session",
			results: &liveness.SessionResults{Status: liveness.StatusFailed, Confidence: score(40)},
			want:    liveness.Verdict{Success: false, Status: liveness.StatusFailed, Message: "Liveness check failed"},
		},
		{
			name:    "confidence at threshold",
			results: &liveness.SessionResults{Status: liveness.StatusSucceeded, Confidence: score(90)},
			want:    liveness.Verdict{Success: false, Status: liveness.StatusSucceeded, Message: "Liveness check failed"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics := NewMetrics(reg)
			uc := NewLivenessUseCase(&stubClient{results: tc.results}, zap.NewNop(), WithMetrics(metrics))

			verdict, err := uc.ValidateLiveness(context.Background(), "abc")
			if err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if verdict.Success != tc.want.Success || verdict.Status != tc.want.Status || verdict.Message != tc.want.Message {
				t.Fatalf("unexpected verdict: %+v", verdict)
			}
			if verdict.Confidence != tc.results.Confidence {
				t.Fatalf("expected confidence to be relayed unchanged")
			}
			result := "fail"
			if tc.want.Success {
				result = "pass"
			}
			if got := testutil.ToFloat64(metrics.verdicts.WithLabelValues(result, string(tc.want.Status))); got != 1 {
				t.Fatalf("expected verdict to be counted, got %v", got)
			}
		})
	}
}

func TestValidateLivenessUsesConfiguredThreshold(t *testing.T) {
	client := &stubClient{results: &liveness.SessionResults{Status: liveness.StatusSucceeded, Confidence: score(82)}}
	uc := NewLivenessUseCase(client, zap.NewNop(), WithThreshold(80))

	verdict, err := uc.ValidateLiveness(context.Background(), "abc")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !verdict.Success {
		t.Fatalf("expected 82 to pass a threshold of 80")
	}
	if uc.Threshold() != 80 {
		t.Fatalf("unexpected threshold: %v", uc.Threshold())
	}
}

func TestValidateLivenessPropagatesUpstreamFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	uc := NewLivenessUseCase(&stubClient{resultsErr: errors.New("timeout")}, zap.NewNop(), WithMetrics(metrics))

	if _, err := uc.ValidateLiveness(context.Background(), "abc"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := testutil.ToFloat64(metrics.upstreamCalls.WithLabelValues("get_session_results", "error")); got != 1 {
		t.Fatalf("expected failed upstream call to be counted, got %v", got)
	}
}
