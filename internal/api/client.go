// Package api is the single choke point for calls to the billing backend.
//
// Every request carries the stored bearer token; every failure comes back
// as an *Error in one of three classes (see errors.go). A 401 clears the
// stored token before the error propagates, so a stale token is never
// silently retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/traces"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

const basePath = "/api/v1"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20 // 1MB

// TokenSource supplies the bearer token and absorbs the 401 side effect.
// Implemented by auth.MemoryStore and auth.FileStore.
type TokenSource interface {
	Token() string
	Clear() error
}

// errorBody is the backend's error envelope. Some endpoints use "error",
// others "message"; both are accepted.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client wraps http.Client with token injection and error translation.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpc.Timeout = d
	}
}

// WithHTTPClient substitutes the underlying http.Client (for tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpc = h
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the backend at baseURL. tokens may not be nil;
// use auth.NewMemoryStore() when no login is involved.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH request with an optional JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	group := endpointGroup(path)
	ctx, span := traces.StartSpan(ctx, "api."+method,
		traces.Endpoint(path),
		attribute.String("http.method", method),
	)
	defer span.End()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			metrics.BackendRequestsTotal.WithLabelValues(group, "request_error").Inc()
			return &Error{Kind: KindRequest, Message: "could not encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+basePath+path, reader)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(group, "request_error").Inc()
		return &Error{Kind: KindRequest, Message: "could not build request", Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(group, "network_error").Inc()
		netErr := c.classifyTransport(err)
		logging.L(ctx).Warn("backend request failed",
			"method", method, "path", path, "error", err)
		return netErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(group, "network_error").Inc()
		return &Error{Kind: KindNetwork, Message: "connection lost while reading response", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Stale or invalid token. Drop it so nothing retries it silently;
		// the UI reacts by redirecting to login.
		if cerr := c.tokens.Clear(); cerr != nil {
			logging.L(ctx).Error("failed to clear auth token", "error", cerr)
		}
		metrics.BackendRequestsTotal.WithLabelValues(group, "api_error").Inc()
		return &Error{
			Kind:    KindAPI,
			Status:  resp.StatusCode,
			Message: messageFromBody(data, "session expired, please log in again"),
		}
	}

	if resp.StatusCode >= 400 {
		metrics.BackendRequestsTotal.WithLabelValues(group, "api_error").Inc()
		return &Error{
			Kind:    KindAPI,
			Status:  resp.StatusCode,
			Message: messageFromBody(data, fmt.Sprintf("backend returned %s", resp.Status)),
		}
	}

	metrics.BackendRequestsTotal.WithLabelValues(group, "ok").Inc()

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Kind:    KindAPI,
			Status:  resp.StatusCode,
			Message: "invalid response from backend",
			Err:     err,
		}
	}
	return nil
}

// classifyTransport maps a transport failure onto the network error class,
// with a message specific enough for the UI to be useful.
func (c *Client) classifyTransport(err error) *Error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindNetwork, Message: "request timed out, check your connection", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindNetwork, Message: "request cancelled", Err: err}
	default:
		return &Error{Kind: KindNetwork, Message: "cannot reach the billing backend", Err: err}
	}
}

// messageFromBody extracts the backend's error message, falling back when
// the payload is empty or not the expected envelope.
func messageFromBody(data []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return fallback
}

// endpointGroup reduces a request path to its first segment for metric
// labels, avoiding per-ID cardinality.
func endpointGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}
