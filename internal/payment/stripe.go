package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/traces"
)

// StripeGateway is the card rail, used for admin-side top-ups and venues
// that prefer card checkout over STK push. Amounts cross into Stripe's
// minor units (cents) at this boundary and nowhere else.
type StripeGateway struct {
	sc       *client.API
	currency string
}

// NewStripeGateway creates a card gateway with the given secret key.
func NewStripeGateway(secretKey, currency string) *StripeGateway {
	return &StripeGateway{
		sc:       client.New(secretKey, nil),
		currency: strings.ToLower(currency),
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

// Initiate creates a PaymentIntent for the plan purchase.
func (g *StripeGateway) Initiate(ctx context.Context, req InitiateRequest) (*Payment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	_, span := traces.StartSpan(ctx, "payment.stripe.Initiate", traces.PlanID(req.PlanID))
	defer span.End()

	currency := g.currency
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount * 100),
		Currency: stripe.String(currency),
		Params: stripe.Params{
			Context: ctx,
			Metadata: map[string]string{
				"plan_id":      req.PlanID,
				"plan_name":    req.PlanName,
				"phone_number": req.PhoneNumber,
				"device_count": fmt.Sprintf("%d", req.DeviceCount),
			},
		},
	}

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: stripe initiate: %w", err)
	}

	metrics.PaymentsInitiatedTotal.WithLabelValues(g.Name()).Inc()
	return fromIntent(pi, req), nil
}

// Status fetches the PaymentIntent and maps it back to a Payment.
func (g *StripeGateway) Status(ctx context.Context, id string) (*Payment, error) {
	_, span := traces.StartSpan(ctx, "payment.stripe.Status", traces.PaymentID(id))
	defer span.End()

	pi, err := g.sc.PaymentIntents.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("payment: stripe status: %w", err)
	}
	return fromIntent(pi, InitiateRequest{
		PhoneNumber: pi.Metadata["phone_number"],
		PlanName:    pi.Metadata["plan_name"],
	}), nil
}

func fromIntent(pi *stripe.PaymentIntent, req InitiateRequest) *Payment {
	p := &Payment{
		ID:          pi.ID,
		PhoneNumber: req.PhoneNumber,
		PlanName:    req.PlanName,
		Amount:      pi.Amount / 100,
		Currency:    strings.ToUpper(string(pi.Currency)),
		Status:      mapIntentStatus(pi.Status),
		CreatedAt:   time.Unix(pi.Created, 0),
	}
	if p.Status == StatusCompleted {
		paid := time.Now()
		p.PaidAt = &paid
	}
	return p
}

func mapIntentStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCompleted
	case stripe.PaymentIntentStatusProcessing:
		return StatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		// requires_payment_method, requires_confirmation, requires_action
		return StatusPending
	}
}
