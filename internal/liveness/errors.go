package liveness

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionIDRequired is returned before any upstream call when no session id was supplied.
var ErrSessionIDRequired = &ValidationError{Field: "sessionId", Message: "SessionId is required"}

// ValidationError reports a malformed caller request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// HTTPStatus maps validation failures to 400.
func (e *ValidationError) HTTPStatus() int {
	return http.StatusBadRequest
}

// UpstreamError reports a failed call to the liveness service.
type UpstreamError struct {
	Operation  string
	SessionID  string
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Operation)
}

// Unwrap returns the transport or SDK error.
func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus propagates the upstream status when it is an error status, otherwise 500.
func (e *UpstreamError) HTTPStatus() int {
	if e == nil || e.StatusCode < http.StatusBadRequest || e.StatusCode > 599 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

// StatusCode returns the HTTP status carried by err, or 500 when none is found.
func StatusCode(err error) int {
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message of the innermost status-bearing error so callers
// see the upstream text rather than the internal wrapping chain.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var coded interface {
		error
		HTTPStatus() int
	}
	if errors.As(err, &coded) {
		return coded.Error()
	}
	return err.Error()
}
