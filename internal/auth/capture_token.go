package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CaptureAudience marks tokens minted for a capture page.
const CaptureAudience = "liveness-capture"

// UnauthorizedError rejects a widget event that carries no valid capture token.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// HTTPStatus maps capture token failures to 401.
func (e *UnauthorizedError) HTTPStatus() int {
	return http.StatusUnauthorized
}

// CaptureTokens signs short-lived tokens that let one rendered capture page report
// widget events for the session it was rendered for, and nothing else.
// A nil *CaptureTokens issues empty tokens and authorizes every event.
type CaptureTokens struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewCaptureTokens returns nil when secret is empty.
func NewCaptureTokens(secret string, ttl time.Duration) *CaptureTokens {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &CaptureTokens{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a token whose subject is sessionID.
func (t *CaptureTokens) Issue(sessionID string) (string, error) {
	if t == nil {
		return "", nil
	}
	now := t.now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionID,
		Audience:  jwt.ClaimStrings{CaptureAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}).SignedString([]byte(t.secret))
}

// Authorize checks that header carries a capture token issued for sessionID.
func (t *CaptureTokens) Authorize(header, sessionID string) error {
	if t == nil {
		return nil
	}
	raw, err := extractBearerToken(header)
	if err != nil {
		return &UnauthorizedError{Message: err.Error()}
	}
	claims, err := parseClaims(t.secret, raw, CaptureAudience, jwt.WithTimeFunc(t.now))
	if err != nil {
		return &UnauthorizedError{Message: err.Error()}
	}
	if claims.Subject != sessionID {
		return &UnauthorizedError{Message: "capture token was issued for another session"}
	}
	return nil
}
