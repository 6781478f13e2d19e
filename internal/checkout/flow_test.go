package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkutano/hotspot/internal/circuitbreaker"
	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/msisdn"
	"github.com/mkutano/hotspot/internal/payment"
	"github.com/mkutano/hotspot/internal/plan"
)

// fakeGateway scripts initiation and status results.
type fakeGateway struct {
	mu           sync.Mutex
	initiateErr  error
	status       payment.Status
	wifiPassword string
	initiated    []payment.InitiateRequest
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	g.initiated = append(g.initiated, req)
	return &payment.Payment{
		ID:          "pay-1",
		PhoneNumber: req.PhoneNumber,
		PlanName:    req.PlanName,
		Amount:      req.Amount,
		Status:      payment.StatusPending,
		CreatedAt:   time.Now(),
	}, nil
}

func (g *fakeGateway) Status(ctx context.Context, id string) (*payment.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &payment.Payment{ID: id, Status: g.status, WifiPassword: g.wifiPassword}, nil
}

type stubRemote struct {
	plans []plan.Plan
	err   error
}

func (s *stubRemote) List(ctx context.Context, activeOnly bool) ([]plan.Plan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plans, nil
}

func dailyPlan() *plan.Plan {
	return &plan.Plan{
		ID: "p1", Name: "Daily", DurationHours: 24,
		BasePrice: 50, MaxDevices: 3, IsActive: true,
	}
}

func newTestFlow(g *fakeGateway, cfg Config) *Flow {
	source := plan.NewFallbackSource(
		&stubRemote{plans: []plan.Plan{*dailyPlan()}},
		circuitbreaker.New(3, time.Minute),
		logging.Nop(),
	)
	poller := payment.NewPoller(g, 5*time.Millisecond, time.Second, logging.Nop())
	return New(source, g, poller, cfg, logging.Nop())
}

func TestFlow_StartsAtPlans(t *testing.T) {
	f := newTestFlow(&fakeGateway{}, Config{})
	assert.Equal(t, StepPlans, f.Step())
}

func TestFlow_SelectPlanMovesToPayment(t *testing.T) {
	f := newTestFlow(&fakeGateway{}, Config{})

	require.NoError(t, f.SelectPlan(dailyPlan(), 2))
	assert.Equal(t, StepPayment, f.Step())

	selected, devices := f.Selection()
	assert.Equal(t, "p1", selected.ID)
	assert.Equal(t, 2, devices)
}

func TestFlow_SelectPlanClampsDevices(t *testing.T) {
	f := newTestFlow(&fakeGateway{}, Config{})

	require.NoError(t, f.SelectPlan(dailyPlan(), 99))
	_, devices := f.Selection()
	assert.Equal(t, 3, devices) // MaxDevices

	price, err := f.Quote()
	require.NoError(t, err)
	assert.Equal(t, int64(110), price) // 50 * 2.2
}

func TestFlow_BackRetainsSelection(t *testing.T) {
	f := newTestFlow(&fakeGateway{}, Config{})

	require.NoError(t, f.SelectPlan(dailyPlan(), 2))
	require.NoError(t, f.Back())
	assert.Equal(t, StepPlans, f.Step())

	selected, devices := f.Selection()
	assert.NotNil(t, selected)
	assert.Equal(t, 2, devices)
}

func TestFlow_SubmitRejectsEmptyPhone(t *testing.T) {
	g := &fakeGateway{}
	f := newTestFlow(g, Config{})
	require.NoError(t, f.SelectPlan(dailyPlan(), 1))

	err := f.Submit(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingPhone)
	assert.Equal(t, StepPayment, f.Step(), "must not leave payment")
	assert.Empty(t, g.initiated, "no request may be sent")
}

func TestFlow_SubmitRejectsInvalidPhone(t *testing.T) {
	g := &fakeGateway{}
	f := newTestFlow(g, Config{})
	require.NoError(t, f.SelectPlan(dailyPlan(), 1))

	err := f.Submit(context.Background(), "12345")
	assert.ErrorIs(t, err, msisdn.ErrInvalid)
	assert.Equal(t, StepPayment, f.Step())
	assert.Empty(t, g.initiated)
}

func TestFlow_SubmitNormalizesPhoneAndInitiates(t *testing.T) {
	g := &fakeGateway{status: payment.StatusPending}
	f := newTestFlow(g, Config{})
	require.NoError(t, f.SelectPlan(dailyPlan(), 2))

	require.NoError(t, f.Submit(context.Background(), "0712 345 678"))
	assert.Equal(t, StepProcessing, f.Step())

	require.Len(t, g.initiated, 1)
	req := g.initiated[0]
	assert.Equal(t, "254712345678", req.PhoneNumber)
	assert.Equal(t, int64(80), req.Amount) // 50 * 1.6
	assert.Equal(t, 2, req.DeviceCount)
}

func TestFlow_FullPurchaseSucceeds(t *testing.T) {
	g := &fakeGateway{status: payment.StatusCompleted, wifiPassword: "wifi-pass"}
	f := newTestFlow(g, Config{})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return start }

	require.NoError(t, f.SelectPlan(dailyPlan(), 1))
	require.NoError(t, f.Submit(context.Background(), "0712345678"))
	require.NoError(t, f.AwaitPayment(context.Background()))

	assert.Equal(t, StepSuccess, f.Step())

	creds, err := f.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "254712345678", creds.Username)
	assert.Equal(t, "wifi-pass", creds.Password)
	assert.Equal(t, start.Add(24*time.Hour), creds.ExpiresAt)
}

func TestFlow_PaymentFailureLandsInFailed(t *testing.T) {
	g := &fakeGateway{status: payment.StatusFailed}
	f := newTestFlow(g, Config{})

	require.NoError(t, f.SelectPlan(dailyPlan(), 1))
	require.NoError(t, f.Submit(context.Background(), "0712345678"))
	require.NoError(t, f.AwaitPayment(context.Background()))

	assert.Equal(t, StepFailed, f.Step())
	assert.NotEmpty(t, f.FailReason())

	_, err := f.Credentials()
	assert.ErrorIs(t, err, ErrNotFinished)
}

func TestFlow_RetryFromFailed(t *testing.T) {
	g := &fakeGateway{status: payment.StatusFailed}
	f := newTestFlow(g, Config{})

	require.NoError(t, f.SelectPlan(dailyPlan(), 2))
	require.NoError(t, f.Submit(context.Background(), "0712345678"))
	require.NoError(t, f.AwaitPayment(context.Background()))
	require.Equal(t, StepFailed, f.Step())

	require.NoError(t, f.Retry())
	assert.Equal(t, StepPayment, f.Step())
	assert.Empty(t, f.FailReason())

	// Selection survives the retry.
	selected, devices := f.Selection()
	assert.Equal(t, "p1", selected.ID)
	assert.Equal(t, 2, devices)
}

func TestFlow_OptimisticInitiateFailure(t *testing.T) {
	g := &fakeGateway{initiateErr: errors.New("gateway exploded")}
	f := newTestFlow(g, Config{Optimistic: true})

	require.NoError(t, f.SelectPlan(dailyPlan(), 1))
	err := f.Submit(context.Background(), "0712345678")
	require.Error(t, err)

	// Optimistic flows show processing first, then land in failed.
	assert.Equal(t, StepFailed, f.Step())
	assert.Contains(t, f.FailReason(), "gateway exploded")
}

func TestFlow_NonOptimisticInitiateFailureStaysInPayment(t *testing.T) {
	g := &fakeGateway{initiateErr: errors.New("gateway exploded")}
	f := newTestFlow(g, Config{Optimistic: false})

	require.NoError(t, f.SelectPlan(dailyPlan(), 1))
	err := f.Submit(context.Background(), "0712345678")
	require.Error(t, err)
	assert.Equal(t, StepPayment, f.Step())
}

func TestFlow_StaleCompletionIgnored(t *testing.T) {
	g := &fakeGateway{status: payment.StatusFailed}
	f := newTestFlow(g, Config{})

	require.NoError(t, f.SelectPlan(dailyPlan(), 1))
	require.NoError(t, f.Submit(context.Background(), "0712345678"))
	require.NoError(t, f.AwaitPayment(context.Background()))
	require.NoError(t, f.Retry())

	// A late poller result must not move the flow from payment.
	require.NoError(t, f.Complete(payment.Outcome{
		Payment: &payment.Payment{ID: "pay-1", Status: payment.StatusCompleted},
	}))
	assert.Equal(t, StepPayment, f.Step())
}

func TestFlow_LoadPlansDegradesToDemo(t *testing.T) {
	source := plan.NewFallbackSource(
		&stubRemote{err: errors.New("backend down")},
		circuitbreaker.New(3, time.Minute),
		logging.Nop(),
	)
	g := &fakeGateway{status: payment.StatusCompleted, wifiPassword: "pw"}
	poller := payment.NewPoller(g, 5*time.Millisecond, time.Second, logging.Nop())
	f := New(source, g, poller, Config{}, logging.Nop())

	cat, err := f.LoadPlans(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, cat.Demo)
	require.NotEmpty(t, cat.Plans)

	// The flow stays fully usable on demo data.
	demo := cat.Plans[0]
	require.NoError(t, f.SelectPlan(&demo, 1))
	require.NoError(t, f.Submit(context.Background(), "0712345678"))
	require.NoError(t, f.AwaitPayment(context.Background()))
	assert.Equal(t, StepSuccess, f.Step())
}

func TestFlow_WrongStepOperations(t *testing.T) {
	f := newTestFlow(&fakeGateway{}, Config{})

	assert.ErrorIs(t, f.Back(), ErrWrongStep)
	assert.ErrorIs(t, f.Retry(), ErrWrongStep)
	assert.ErrorIs(t, f.Submit(context.Background(), "0712345678"), ErrWrongStep)

	_, err := f.Quote()
	assert.ErrorIs(t, err, ErrNoPlanSelected)
}
