package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/example/face-liveness/internal/liveness"
)

// State is a step of the capture lifecycle.
type State string

const (
	StateInitializing       State = "initializing"
	StateCapturing          State = "capturing"
	StateVerifying          State = "verifying"
	StateDone               State = "done"
	StateError              State = "error"
	StateExited             State = "exited"
	StateConfigurationError State = "configuration_error"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateError, StateExited, StateConfigurationError:
		return true
	}
	return false
}

const defaultWidgetError = "An error occurred during liveness detection."

// ErrInvalidTransition is returned for widget events that arrive outside the capturing state.
var ErrInvalidTransition = errors.New("capture: event not accepted in current state")

// Flow is a single capture attempt. It is not safe for concurrent use; events for
// one capture arrive sequentially from one widget.
type Flow struct {
	settings Settings
	verifier Verifier
	sink     Sink
	logger   *zap.Logger

	state        State
	config       WidgetConfig
	onTransition func(from, to State)
}

// NewFlow builds a flow in the initializing state.
func NewFlow(settings Settings, verifier Verifier, sink Sink, logger *zap.Logger) *Flow {
	return &Flow{
		settings: settings,
		verifier: verifier,
		sink:     sink,
		logger:   logger.Named("capture"),
		state:    StateInitializing,
	}
}

// OnTransition registers a callback invoked after each state change.
func (f *Flow) OnTransition(fn func(from, to State)) {
	f.onTransition = fn
}

// State returns the current state.
func (f *Flow) State() State {
	return f.state
}

// Config returns the resolved widget configuration. It is zero until Start succeeds.
func (f *Flow) Config() WidgetConfig {
	return f.config
}

// Start resolves the session id from query. On failure the flow moves to the terminal
// configuration error state and relays the error to the shell.
func (f *Flow) Start(ctx context.Context, query url.Values) error {
	if f.state != StateInitializing {
		return ErrInvalidTransition
	}
	cfg, err := f.settings.WidgetConfig(query)
	if err != nil {
		f.transition(StateConfigurationError)
		f.logger.Warn("capture configuration error", zap.Error(err))
		if relayErr := f.relay(ctx, Message{Status: RelayError, Error: err.Error()}); relayErr != nil {
			return errors.Join(err, relayErr)
		}
		return err
	}
	f.config = cfg
	f.transition(StateCapturing)
	return nil
}

// Handle applies a widget event and returns the message relayed to the shell.
func (f *Flow) Handle(ctx context.Context, ev Event) (Message, error) {
	if f.state != StateCapturing {
		return Message{}, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.Kind, f.state)
	}

	sessionID := f.config.SessionID
	var msg Message
	switch ev.Kind {
	case EventCompleted:
		msg = f.verify(ctx, sessionID)
	case EventFailed:
		errText := ev.Error
		if errText == "" {
			errText = defaultWidgetError
		}
		f.logger.Warn("widget reported error", zap.String("session_id", sessionID), zap.String("error", errText))
		f.transition(StateError)
		msg = Message{Status: RelayError, SessionID: sessionID, Error: errText}
	case EventExited:
		f.logger.Info("user exited capture", zap.String("session_id", sessionID))
		f.transition(StateExited)
		msg = Message{Status: RelayExit, SessionID: sessionID}
	default:
		return Message{}, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev.Kind)
	}

	return msg, f.relay(ctx, msg)
}

// Run starts the flow and consumes widget events until a terminal state is reached,
// the events channel closes, or ctx is done.
func (f *Flow) Run(ctx context.Context, query url.Values, events <-chan Event) (State, error) {
	if err := f.Start(ctx, query); err != nil {
		return f.state, err
	}
	for !f.state.Terminal() {
		select {
		case <-ctx.Done():
			return f.state, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return f.state, errors.New("capture: widget closed before a terminal event")
			}
			if _, err := f.Handle(ctx, ev); err != nil {
				return f.state, err
			}
		}
	}
	return f.state, nil
}

// verify awaits the broker's verdict; the client-side completion alone is not trusted.
func (f *Flow) verify(ctx context.Context, sessionID string) Message {
	f.transition(StateVerifying)
	verdict, err := f.verifier.ValidateLiveness(ctx, sessionID)
	if err != nil {
		f.logger.Error("liveness verification failed", zap.String("session_id", sessionID), zap.Error(err))
		f.transition(StateError)
		return Message{Status: RelayError, SessionID: sessionID, Error: liveness.PublicMessage(err)}
	}
	if !verdict.Success {
		f.logger.Info("liveness not confirmed", zap.String("session_id", sessionID), zap.String("status", string(verdict.Status)))
		f.transition(StateError)
		return Message{Status: RelayError, SessionID: sessionID, Error: verdict.Message}
	}
	f.transition(StateDone)
	return Message{Status: RelaySuccess, SessionID: sessionID, Message: verdict.Message}
}

func (f *Flow) relay(ctx context.Context, msg Message) error {
	if f.sink == nil {
		return errNilSink
	}
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return f.sink.Post(ctx, payload)
}

func (f *Flow) transition(to State) {
	from := f.state
	f.state = to
	if f.onTransition != nil {
		f.onTransition(from, to)
	}
}
