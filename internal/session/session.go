// Package session issues RADIUS Change-of-Authorization commands
// against the backend proxy: disconnects, bandwidth updates, and
// session extensions for a given username.
//
// A username may map to several concurrent RADIUS sessions (one per
// device on multi-device plans), so every command affects all matching
// sessions and the result reports how many were touched. CoA commands
// are not idempotent on the backend side, so this client never retries
// them; failures surface once, through the gateway's error type.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/traces"
)

// DefaultDisconnectReason is sent when the caller gives no reason.
const DefaultDisconnectReason = "Admin-Request"

var (
	ErrEmptyUsername  = errors.New("session: username is required")
	ErrEmptyBandwidth = errors.New("session: bandwidth spec is required")
	ErrBadTimeout     = errors.New("session: timeout must be a positive number of seconds")
	ErrNoUsernames    = errors.New("session: at least one username is required")
)

// Result is the normalized outcome of a single CoA command.
type Result struct {
	Success              bool   `json:"success"`
	DisconnectedSessions int    `json:"disconnected_sessions,omitempty"`
	UpdatedSessions      int    `json:"updated_sessions,omitempty"`
	Message              string `json:"message,omitempty"`
}

// BulkResult aggregates a best-effort fan-out of disconnects. Success
// is true when at least one username was disconnected; partial failure
// is visible through SuccessCount versus TotalCount.
type BulkResult struct {
	Success      bool                `json:"success"`
	SuccessCount int                 `json:"success_count"`
	TotalCount   int                 `json:"total_count"`
	Results      map[string]*Outcome `json:"results"`
}

// Outcome is one username's slice of a bulk operation.
type Outcome struct {
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// Client drives session-control commands through the API gateway.
type Client struct {
	api    *api.Client
	logger *slog.Logger
}

func NewClient(apiClient *api.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: apiClient, logger: logger}
}

// Disconnect kicks every RADIUS session for username. An empty reason
// falls back to DefaultDisconnectReason.
func (c *Client) Disconnect(ctx context.Context, username, reason string) (*Result, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if reason == "" {
		reason = DefaultDisconnectReason
	}

	ctx, span := traces.StartSpan(ctx, "session.Disconnect", traces.Username(username))
	defer span.End()

	var res Result
	err := c.api.Post(ctx, "/radius/disconnect/"+url.PathEscape(username),
		map[string]string{"reason": reason}, &res)
	c.observe("disconnect", err)
	if err != nil {
		return nil, err
	}

	c.logger.Info("sessions disconnected",
		"username", username,
		"reason", reason,
		"count", res.DisconnectedSessions)
	return &res, nil
}

// UpdateBandwidth applies a new bandwidth spec ("<upload>/<download>",
// e.g. "1M/2M") to all of username's sessions. The backend validates
// the format; only emptiness is rejected here, before any request is
// sent.
func (c *Client) UpdateBandwidth(ctx context.Context, username, spec string) (*Result, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if spec == "" {
		return nil, ErrEmptyBandwidth
	}

	ctx, span := traces.StartSpan(ctx, "session.UpdateBandwidth", traces.Username(username))
	defer span.End()

	var res Result
	err := c.api.Post(ctx, "/radius/bandwidth/"+url.PathEscape(username),
		map[string]string{"bandwidth": spec}, &res)
	c.observe("bandwidth", err)
	if err != nil {
		return nil, err
	}

	c.logger.Info("bandwidth updated",
		"username", username,
		"bandwidth", spec,
		"count", res.UpdatedSessions)
	return &res, nil
}

// ExtendSession pushes the session timeout for all of username's
// sessions. timeoutSeconds must be positive; anything else is rejected
// before any request is sent.
func (c *Client) ExtendSession(ctx context.Context, username string, timeoutSeconds int) (*Result, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if timeoutSeconds <= 0 {
		return nil, ErrBadTimeout
	}

	ctx, span := traces.StartSpan(ctx, "session.ExtendSession", traces.Username(username))
	defer span.End()

	var res Result
	err := c.api.Post(ctx, "/radius/extend/"+url.PathEscape(username),
		map[string]int{"timeoutSeconds": timeoutSeconds}, &res)
	c.observe("extend", err)
	if err != nil {
		return nil, err
	}

	c.logger.Info("session extended",
		"username", username,
		"timeout_seconds", timeoutSeconds,
		"count", res.UpdatedSessions)
	return &res, nil
}

// BulkDisconnect issues one disconnect per username concurrently and
// waits for all of them. The aggregate succeeds when ANY individual
// disconnect succeeded; per-username outcomes carry the detail.
func (c *Client) BulkDisconnect(ctx context.Context, usernames []string, reason string) (*BulkResult, error) {
	if len(usernames) == 0 {
		return nil, ErrNoUsernames
	}

	ctx, span := traces.StartSpan(ctx, "session.BulkDisconnect")
	defer span.End()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make(map[string]*Outcome, len(usernames))
	)

	for _, username := range usernames {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			res, err := c.Disconnect(ctx, username, reason)
			mu.Lock()
			outcomes[username] = &Outcome{Result: res, Err: err}
			mu.Unlock()
		}(username)
	}
	wg.Wait()

	agg := &BulkResult{TotalCount: len(usernames), Results: outcomes}
	for _, o := range outcomes {
		if o.Err == nil {
			agg.SuccessCount++
		}
	}
	agg.Success = agg.SuccessCount > 0

	c.logger.Info("bulk disconnect finished",
		"total", agg.TotalCount,
		"succeeded", agg.SuccessCount)
	return agg, nil
}

func (c *Client) observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CoARequestsTotal.WithLabelValues(operation, result).Inc()
}
