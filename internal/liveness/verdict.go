package liveness

// DefaultConfidenceThreshold is the score a session must exceed to count as live.
const DefaultConfidenceThreshold = 90.0

const (
	MessageLive    = "Real person detected"
	MessageNotLive = "Liveness check failed"
)

// Verdict is the pass/fail view derived from a session's results.
type Verdict struct {
	Success    bool          `json:"success"`
	Status     SessionStatus `json:"status"`
	Confidence *float32      `json:"confidence,omitempty"`
	Message    string        `json:"message"`
}

// Evaluate applies the liveness rule: the session succeeded and its confidence is
// strictly above threshold. A missing confidence never passes.
func Evaluate(results *SessionResults, threshold float64) Verdict {
	if results == nil {
		return Verdict{Message: MessageNotLive}
	}
	live := results.Status == StatusSucceeded &&
		results.Confidence != nil &&
		float64(*results.Confidence) > threshold

	verdict := Verdict{
		Success:    live,
		Status:     results.Status,
		Confidence: results.Confidence,
		Message:    MessageNotLive,
	}
	if live {
		verdict.Message = MessageLive
	}
	return verdict
}
