// Package checkout drives the captive-portal purchase flow:
// plans → payment → processing → success, with an explicit failed step.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/msisdn"
	"github.com/mkutano/hotspot/internal/payment"
	"github.com/mkutano/hotspot/internal/plan"
	"github.com/mkutano/hotspot/internal/pricing"
	"github.com/mkutano/hotspot/internal/traces"
)

var (
	ErrNoPlanSelected = errors.New("checkout: no plan selected")
	ErrWrongStep      = errors.New("checkout: operation not valid in current step")
	ErrMissingPhone   = errors.New("checkout: phone number is required")
	ErrNotFinished    = errors.New("checkout: purchase not completed")
)

// Step is the purchase flow position. Failed is a real step with a
// transition back to Payment, not an error message bolted onto another
// step.
type Step string

const (
	StepPlans      Step = "plans"
	StepPayment    Step = "payment"
	StepProcessing Step = "processing"
	StepSuccess    Step = "success"
	StepFailed     Step = "failed"
)

// Credentials are the WiFi login details exposed on success. The
// username is the paying phone number; the password is issued by the
// backend with the completed payment.
type Credentials struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Config tunes flow behaviour.
type Config struct {
	// Optimistic moves the flow to Processing before the initiate call
	// resolves, so the customer sees progress immediately. A failed
	// initiation then lands in Failed rather than bouncing back to
	// Payment.
	Optimistic bool
}

// Flow is one customer's checkout. It is driven from a single UI
// session; methods are mutex-guarded only because the payment poller
// completes the flow from its own goroutine.
type Flow struct {
	mu sync.Mutex

	cfg     Config
	source  *plan.FallbackSource
	gateway payment.Gateway
	poller  *payment.Poller
	logger  *slog.Logger
	now     func() time.Time

	step        Step
	failReason  string
	plans       plan.Catalogue
	selected    *plan.Plan
	deviceCount int
	phone       string // Normalized MSISDN once Submit validates it
	pay         *payment.Payment
	creds       *Credentials
}

// New creates a flow positioned at the plans step.
func New(source *plan.FallbackSource, gateway payment.Gateway, poller *payment.Poller, cfg Config, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		cfg:         cfg,
		source:      source,
		gateway:     gateway,
		poller:      poller,
		logger:      logger,
		now:         time.Now,
		step:        StepPlans,
		deviceCount: 1,
	}
}

// Step returns the current position.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// FailReason returns why the flow landed in Failed, if it did.
func (f *Flow) FailReason() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failReason
}

// LoadPlans fetches the catalogue. Never fails hard: backend outages
// degrade to the bundled demo set (labeled as such) so the funnel stays
// open.
func (f *Flow) LoadPlans(ctx context.Context, activeOnly bool) (plan.Catalogue, error) {
	cat, err := f.source.ListLabeled(ctx, activeOnly)
	if err != nil {
		return plan.Catalogue{}, err
	}
	f.mu.Lock()
	f.plans = cat
	f.mu.Unlock()
	return cat, nil
}

// SelectPlan picks a plan and moves plans → payment. The device count
// is clamped to the plan's limit.
func (f *Flow) SelectPlan(p *plan.Plan, deviceCount int) error {
	if p == nil {
		return ErrNoPlanSelected
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepPlans && f.step != StepPayment {
		return fmt.Errorf("%w: cannot select a plan from %s", ErrWrongStep, f.step)
	}

	f.selected = p
	f.deviceCount = pricing.ClampDevices(p, deviceCount)
	f.transition(StepPayment)
	return nil
}

// Back returns payment → plans. Selection is retained so the customer
// can come straight back.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepPayment {
		return fmt.Errorf("%w: back is only valid from payment", ErrWrongStep)
	}
	f.transition(StepPlans)
	return nil
}

// Retry moves failed → payment for another attempt. Plan, devices, and
// phone are all retained.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepFailed {
		return fmt.Errorf("%w: retry is only valid from failed", ErrWrongStep)
	}
	f.failReason = ""
	f.pay = nil
	f.transition(StepPayment)
	return nil
}

// Quote returns the price for the current selection.
func (f *Flow) Quote() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected == nil {
		return 0, ErrNoPlanSelected
	}
	return pricing.Price(f.selected, f.deviceCount), nil
}

// Submit validates the phone number, initiates payment, and moves to
// processing. Validation failures stay local: no request leaves until
// the number is a full MSISDN.
func (f *Flow) Submit(ctx context.Context, rawPhone string) error {
	f.mu.Lock()
	if f.step != StepPayment {
		f.mu.Unlock()
		return fmt.Errorf("%w: submit is only valid from payment", ErrWrongStep)
	}
	if f.selected == nil {
		f.mu.Unlock()
		return ErrNoPlanSelected
	}
	if rawPhone == "" {
		f.mu.Unlock()
		return ErrMissingPhone
	}
	phone, err := msisdn.NormalizeValid(rawPhone)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.phone = phone

	selected := f.selected
	devices := f.deviceCount
	amount := pricing.Price(selected, devices)

	if f.cfg.Optimistic {
		// Show progress immediately; a failed initiation lands in Failed.
		f.transition(StepProcessing)
	}
	f.mu.Unlock()

	ctx, span := traces.StartSpan(ctx, "checkout.Submit",
		traces.PlanID(selected.ID), traces.DeviceCount(devices))
	defer span.End()

	pay, err := f.gateway.Initiate(ctx, payment.InitiateRequest{
		PhoneNumber: phone,
		PlanID:      selected.ID,
		PlanName:    selected.Name,
		Amount:      amount,
		DeviceCount: devices,
	})

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.logger.Warn("payment initiation failed", "plan", selected.ID, "error", err)
		if f.cfg.Optimistic {
			f.fail(displayMessage(err))
		}
		return err
	}

	f.pay = pay
	if !f.cfg.Optimistic {
		f.transition(StepProcessing)
	}
	return nil
}

// AwaitPayment blocks until the payment reaches a terminal status or
// polling gives up, then moves the flow to success or failed. Call
// after a successful Submit.
func (f *Flow) AwaitPayment(ctx context.Context) error {
	f.mu.Lock()
	if f.step != StepProcessing || f.pay == nil {
		f.mu.Unlock()
		return fmt.Errorf("%w: no payment in flight", ErrWrongStep)
	}
	paymentID := f.pay.ID
	f.mu.Unlock()

	outcome := <-f.poller.Watch(ctx, paymentID)
	return f.Complete(outcome)
}

// Complete applies a poll outcome to the flow. Exposed separately so
// the portal can run the poller itself and deliver the result.
func (f *Flow) Complete(outcome payment.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepProcessing {
		// A stale poller result after the customer retried or left;
		// ignore rather than corrupt the flow.
		return nil
	}

	if outcome.Err != nil {
		f.fail("payment confirmation timed out")
		return outcome.Err
	}

	pay := outcome.Payment
	f.pay = pay

	switch pay.Status {
	case payment.StatusCompleted:
		f.creds = &Credentials{
			Username:  f.phone,
			Password:  pay.WifiPassword,
			ExpiresAt: f.now().Add(f.selected.Duration()),
		}
		f.transition(StepSuccess)
		return nil
	case payment.StatusFailed:
		f.fail("payment failed or was cancelled")
		return nil
	default:
		f.fail("payment ended in unexpected state " + string(pay.Status))
		return nil
	}
}

// Credentials returns the WiFi login details once the flow succeeded.
func (f *Flow) Credentials() (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepSuccess || f.creds == nil {
		return nil, ErrNotFinished
	}
	c := *f.creds
	return &c, nil
}

// Payment returns the current payment record, if any.
func (f *Flow) Payment() *payment.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pay
}

// Selection returns the chosen plan and device count.
func (f *Flow) Selection() (*plan.Plan, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected, f.deviceCount
}

// transition moves to a new step. Caller holds f.mu.
func (f *Flow) transition(to Step) {
	if f.step == to {
		return
	}
	metrics.CheckoutTransitionsTotal.WithLabelValues(string(f.step), string(to)).Inc()
	f.logger.Debug("checkout step", "from", f.step, "to", to)
	f.step = to
}

// fail records the reason and moves to Failed. Caller holds f.mu.
func (f *Flow) fail(reason string) {
	f.failReason = reason
	f.transition(StepFailed)
}

// displayMessage extracts a user-facing message from an error.
func displayMessage(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := api.AsError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}
