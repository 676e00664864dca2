// Package brokerclient calls a running broker over HTTP on behalf of a shell.
package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/face-liveness/internal/capture"
	"github.com/example/face-liveness/internal/liveness"
)

// Client talks to the broker's /api endpoints.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

var _ capture.Verifier = (*Client)(nil)

// New returns a client for the broker at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx broker response.
type APIError struct {
	StatusCode int
	Label      string `json:"error"`
	Message    string `json:"message"`
	Path       string `json:"path"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Label
	}
	return fmt.Sprintf("broker returned %d: %s", e.StatusCode, msg)
}

// HTTPStatus returns the broker's status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// CreateSession calls POST /api/create-session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/create-session", nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// GetSessionResults calls GET /api/get-session-results/:sessionId.
func (c *Client) GetSessionResults(ctx context.Context, sessionID string) (*liveness.SessionResults, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, liveness.ErrSessionIDRequired
	}
	var out liveness.SessionResults
	if err := c.do(ctx, http.MethodGet, "/api/get-session-results/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	out.SessionID = sessionID
	return &out, nil
}

// ValidateLiveness calls POST /api/validate-liveness.
func (c *Client) ValidateLiveness(ctx context.Context, sessionID string) (liveness.Verdict, error) {
	if strings.TrimSpace(sessionID) == "" {
		return liveness.Verdict{}, liveness.ErrSessionIDRequired
	}
	var out liveness.Verdict
	body := map[string]string{"sessionId": sessionID}
	if err := c.do(ctx, http.MethodPost, "/api/validate-liveness", body, &out); err != nil {
		return liveness.Verdict{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
