// Package sms sends WiFi credentials to customers over SMS and lists
// the delivery log for the admin console. Delivery itself happens on
// the backend; this is a thin client over the gateway.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/msisdn"
)

var ErrEmptyMessage = errors.New("sms: message is required")

// Message is one entry in the backend's SMS log.
type Message struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Body        string    `json:"message"`
	Status      string    `json:"status"` // queued | sent | delivered | failed
	CreatedAt   time.Time `json:"created_at"`
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
}

// ListFilter narrows the log listing. Zero value lists everything.
type ListFilter struct {
	PhoneNumber string
	Status      string
	Limit       int
}

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

// Send queues an SMS to the given number. The number is normalized and
// validated locally first; a bad number never reaches the backend.
func (c *Client) Send(ctx context.Context, to, message string) (*Message, error) {
	phone, err := msisdn.NormalizeValid(to)
	if err != nil {
		return nil, err
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}

	var out Message
	body := map[string]string{"phone_number": phone, "message": message}
	if err := c.api.Post(ctx, "/sms/send", body, &out); err != nil {
		return nil, err
	}

	c.logger.Info("sms queued", "to", phone, "id", out.ID)
	return &out, nil
}

// List fetches the SMS log, newest first.
func (c *Client) List(ctx context.Context, filter ListFilter) ([]Message, error) {
	q := url.Values{}
	if filter.PhoneNumber != "" {
		q.Set("phone", msisdn.Normalize(filter.PhoneNumber))
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", filter.Limit))
	}

	path := "/sms/logs"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var out []Message
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}
