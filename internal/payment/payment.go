// Package payment drives payment initiation and status tracking against
// the billing backend's payment rails.
package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("payment: not found")
	ErrMissingPhone  = errors.New("payment: phone number is required")
	ErrMissingPlan   = errors.New("payment: plan is required")
	ErrInvalidAmount = errors.New("payment: amount must be positive")
)

// Status is the server-driven payment lifecycle. The client only
// observes; it never sets a status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payment mirrors the backend's payment record.
type Payment struct {
	ID                 string     `json:"id"`
	PhoneNumber        string     `json:"phoneNumber"`
	PlanName           string     `json:"planName"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency"`
	Status             Status     `json:"status"`
	MpesaReceiptNumber string     `json:"mpesaReceiptNumber,omitempty"`
	WifiPassword       string     `json:"wifiPassword,omitempty"` // Issued on completion
	CreatedAt          time.Time  `json:"createdAt"`
	PaidAt             *time.Time `json:"paidAt,omitempty"`
}

// InitiateRequest is what a gateway needs to start a payment.
type InitiateRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	PlanID      string `json:"planId"`
	PlanName    string `json:"planName"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	DeviceCount int    `json:"deviceCount"`
}

func (r *InitiateRequest) validate() error {
	if r.PhoneNumber == "" {
		return ErrMissingPhone
	}
	if r.PlanID == "" {
		return ErrMissingPlan
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Gateway is a payment rail. Implementations: RESTGateway (M-Pesa STK
// push through the billing backend) and StripeGateway (card).
type Gateway interface {
	// Name identifies the rail in logs and metrics.
	Name() string
	// Initiate starts a payment and returns the pending record.
	Initiate(ctx context.Context, req InitiateRequest) (*Payment, error)
	// Status fetches the current state of a payment.
	Status(ctx context.Context, id string) (*Payment, error)
}
