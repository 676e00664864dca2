package liveness

import "context"

// SessionStatus is the lifecycle state reported by the liveness service.
type SessionStatus string

// Session statuses as defined by the liveness service.
const (
	StatusCreated    SessionStatus = "CREATED"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusSucceeded  SessionStatus = "SUCCEEDED"
	StatusFailed     SessionStatus = "FAILED"
	StatusExpired    SessionStatus = "EXPIRED"
)

// BoundingBox locates the face inside an audit image, as ratios of the frame.
type BoundingBox struct {
	Width  *float32 `json:"Width,omitempty"`
	Height *float32 `json:"Height,omitempty"`
	Left   *float32 `json:"Left,omitempty"`
	Top    *float32 `json:"Top,omitempty"`
}

// S3Object points at an image the service wrote to the configured bucket.
type S3Object struct {
	Bucket  *string `json:"Bucket,omitempty"`
	Name    *string `json:"Name,omitempty"`
	Version *string `json:"Version,omitempty"`
}

// AuditImage is a frame captured during the session. Bytes are base64 encoded on the wire.
type AuditImage struct {
	Bytes       []byte       `json:"Bytes,omitempty"`
	S3Object    *S3Object    `json:"S3Object,omitempty"`
	BoundingBox *BoundingBox `json:"BoundingBox,omitempty"`
}

// SessionResults mirrors the subset of the service's result payload the broker relays.
type SessionResults struct {
	SessionID      string        `json:"-"`
	Status         SessionStatus `json:"status"`
	Confidence     *float32      `json:"confidence,omitempty"`
	ReferenceImage *AuditImage   `json:"referenceImage,omitempty"`
	AuditImages    []AuditImage  `json:"auditImages,omitempty"`
}

// Client exposes the two liveness service operations the broker forwards to.
type Client interface {
	CreateSession(ctx context.Context) (string, error)
	GetSessionResults(ctx context.Context, sessionID string) (*SessionResults, error)
}
