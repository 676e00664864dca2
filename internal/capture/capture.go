// Package capture drives the client side of a liveness capture: it resolves the
// session to capture, configures the vendor widget, verifies completion with the
// broker and relays one terminal message to the embedding shell.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/example/face-liveness/internal/liveness"
)

// SessionIDParam is the query parameter carrying the session id.
const SessionIDParam = "sessionId"

const missingSessionMessage = "No Session ID provided. Please pass ?sessionId=... in the URL."

// ErrMissingSessionID is returned when neither the URL nor the configuration supplies a session id.
var ErrMissingSessionID = &ConfigurationError{Message: missingSessionMessage}

// ConfigurationError is terminal: the capture cannot start and offers no retry.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// HTTPStatus maps configuration failures to 400.
func (e *ConfigurationError) HTTPStatus() int {
	return 400
}

// Settings are the operator-provided widget parameters.
type Settings struct {
	Region         string
	IdentityPoolID string
	// FallbackSessionID is used when the URL carries no session id. Empty means fail closed.
	FallbackSessionID string
}

// WidgetConfig is everything the vendor widget needs to start a capture.
type WidgetConfig struct {
	SessionID        string `json:"sessionId"`
	Region           string `json:"region"`
	IdentityPoolID   string `json:"identityPoolId"`
	AllowGuestAccess bool   `json:"allowGuestAccess"`
}

// ResolveSessionID picks the session id from query, then from fallback.
func ResolveSessionID(query url.Values, fallback string) (string, error) {
	if id := strings.TrimSpace(query.Get(SessionIDParam)); id != "" {
		return id, nil
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback, nil
	}
	return "", ErrMissingSessionID
}

// WidgetConfig resolves the session id and combines it with the guest federation settings.
func (s Settings) WidgetConfig(query url.Values) (WidgetConfig, error) {
	id, err := ResolveSessionID(query, s.FallbackSessionID)
	if err != nil {
		return WidgetConfig{}, err
	}
	return WidgetConfig{
		SessionID:        id,
		Region:           s.Region,
		IdentityPoolID:   s.IdentityPoolID,
		AllowGuestAccess: true,
	}, nil
}

// Relay statuses understood by the embedding shell.
const (
	RelaySuccess = "success"
	RelayError   = "error"
	RelayExit    = "exit"
)

// Message is the payload posted to the embedding shell on every terminal transition.
type Message struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Encode renders m as a single-line JSON string.
func (m Message) Encode() (string, error) {
	// json.Marshal escapes control characters inside strings, so the output never contains a raw newline.
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Sink is the host shell's message channel.
type Sink interface {
	Post(ctx context.Context, payload string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, payload string) error

// Post calls f.
func (f SinkFunc) Post(ctx context.Context, payload string) error {
	return f(ctx, payload)
}

// Verifier asks the broker for the authoritative liveness verdict.
type Verifier interface {
	ValidateLiveness(ctx context.Context, sessionID string) (liveness.Verdict, error)
}

// EventKind tags what the vendor widget reported.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventExited    EventKind = "exited"
)

// ParseEventKind validates a wire event name.
func ParseEventKind(value string) (EventKind, error) {
	switch kind := EventKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case EventCompleted, EventFailed, EventExited:
		return kind, nil
	default:
		return "", &liveness.ValidationError{Field: "event", Message: "event must be one of completed, failed, exited"}
	}
}

// Event is a single widget callback.
type Event struct {
	Kind  EventKind
	Error string
}

var errNilSink = errors.New("capture: nil sink")
