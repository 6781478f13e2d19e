package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/traces"
)

// RESTGateway initiates payments through the billing backend, which in
// turn drives the M-Pesa STK push. Initiation is not retried: the backend
// deduplicates on the idempotency key, but a second push to the customer's
// phone is still confusing.
type RESTGateway struct {
	client *api.Client
}

// NewRESTGateway creates the backend-driven payment gateway.
func NewRESTGateway(client *api.Client) *RESTGateway {
	return &RESTGateway{client: client}
}

func (g *RESTGateway) Name() string { return "mpesa" }

type initiateBody struct {
	InitiateRequest
	IdempotencyKey string `json:"idempotencyKey"`
}

// Initiate starts an STK push for the given phone and amount.
func (g *RESTGateway) Initiate(ctx context.Context, req InitiateRequest) (*Payment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, span := traces.StartSpan(ctx, "payment.Initiate", traces.PlanID(req.PlanID))
	defer span.End()

	body := initiateBody{InitiateRequest: req, IdempotencyKey: uuid.NewString()}
	var p Payment
	if err := g.client.Post(ctx, "/payments/initiate", body, &p); err != nil {
		return nil, err
	}

	metrics.PaymentsInitiatedTotal.WithLabelValues(g.Name()).Inc()
	return &p, nil
}

// Status polls the backend for the payment's current state.
func (g *RESTGateway) Status(ctx context.Context, id string) (*Payment, error) {
	ctx, span := traces.StartSpan(ctx, "payment.Status", traces.PaymentID(id))
	defer span.End()

	var p Payment
	if err := g.client.Get(ctx, "/payments/"+id+"/status", &p); err != nil {
		if apiErr, ok := api.AsError(err); ok && apiErr.Status == 404 {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
