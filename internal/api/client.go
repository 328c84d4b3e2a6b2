// Package api talks to the registration backend: multipart registration
// submissions and approve/reject decisions on pending registrations.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// RegisterPath receives multipart registration submissions.
	RegisterPath = "/user/register"
	// ApprovePathPrefix is followed by the path-escaped approval token.
	ApprovePathPrefix = "/user/approve/"
	// RequestIDHeader carries a per-call correlation id.
	RequestIDHeader = "X-Request-ID"
	// FallbackMessage is shown when the server provides no message.
	FallbackMessage = "Error please try again"

	maxResponseBytes int64 = 1 << 20
)

// Logger is the subset of logbook used by the client.
type Logger interface {
	Printf(format string, args ...any)
}

// Response is the decoded success body of an API call.
type Response struct {
	Status    int    `json:"-"`
	Message   string `json:"message"`
	RequestID string `json:"-"`
}

// Client issues requests against an API base URL.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	logger Logger
	newID  func() string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient swaps the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.HTTP = h
		}
	}
}

// WithTimeout bounds each request. Non-positive values disable the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTP = &http.Client{Timeout: d, Transport: c.HTTP.Transport}
		}
	}
}

// WithLogger records one line per request.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestIDs overrides request id generation.
func WithRequestIDs(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient prepares a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{},
		logger:  nopLogger{},
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Register posts a registration payload. Only 201 Created counts as success.
func (c *Client) Register(ctx context.Context, payload *Payload) (Response, error) {
	if payload == nil {
		return Response{}, fmt.Errorf("api: payload is nil")
	}
	body, contentType, err := payload.Encode()
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+RegisterPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("api: build register request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, func(status int) bool { return status == http.StatusCreated })
}

// Decide posts an approve or reject decision for token. Any 2xx counts as success.
func (c *Client) Decide(ctx context.Context, token string, decision Decision) (Response, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Response{}, fmt.Errorf("api: token is required")
	}
	if err := decision.Validate(); err != nil {
		return Response{}, err
	}
	data, err := json.Marshal(decision)
	if err != nil {
		return Response{}, fmt.Errorf("api: encode decision: %w", err)
	}
	target := c.BaseURL + ApprovePathPrefix + url.PathEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("api: build decision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, func(status int) bool { return status >= 200 && status < 300 })
}

func (c *Client) do(req *http.Request, ok func(int) bool) (Response, error) {
	id := c.newID()
	req.Header.Set(RequestIDHeader, id)
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger.Printf("api: %s %s [%s] failed: %v", req.Method, req.URL.Path, id, err)
		return Response{RequestID: id}, &APIError{RequestID: id, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{Status: resp.StatusCode, RequestID: id}, &APIError{Status: resp.StatusCode, RequestID: id, Err: err}
	}
	message := decodeMessage(raw)
	c.logger.Printf("api: %s %s [%s] -> %d", req.Method, req.URL.Path, id, resp.StatusCode)
	out := Response{Status: resp.StatusCode, Message: message, RequestID: id}
	if !ok(resp.StatusCode) {
		return out, &APIError{Status: resp.StatusCode, Message: message, RequestID: id}
	}
	return out, nil
}

// decodeMessage extracts {message} and falls back to {error} bodies.
func decodeMessage(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(body.Error)
}

// APIError describes a failed call. Status is 0 for transport failures.
type APIError struct {
	Status    int
	Message   string
	RequestID string
	Err       error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("api: request failed: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("api: status %d", e.Status)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// MessageFor returns the text to show the user for err: the server-provided
// message when one exists, otherwise FallbackMessage.
func MessageFor(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return FallbackMessage
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
