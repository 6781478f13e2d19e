package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkutano/hotspot/internal/circuitbreaker"
	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/payment"
	"github.com/mkutano/hotspot/internal/plan"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	g := &fakeGateway{status: payment.StatusCompleted}
	source := plan.NewFallbackSource(
		&stubRemote{plans: []plan.Plan{*dailyPlan()}},
		circuitbreaker.New(3, time.Minute),
		logging.Nop(),
	)
	poller := payment.NewPoller(g, 5*time.Millisecond, time.Second, logging.Nop())
	m := NewManager(source, g, poller, Config{}, ttl, logging.Nop())
	t.Cleanup(m.Close)
	return m
}

func TestManager_BeginAndGet(t *testing.T) {
	m := newTestManager(t, time.Minute)

	id, f := m.Begin()
	require.NotEmpty(t, id)
	require.NotNil(t, f)
	assert.Equal(t, StepPlans, f.Step())

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, f, got)
}

func TestManager_UnknownID(t *testing.T) {
	m := newTestManager(t, time.Minute)

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestManager_End(t *testing.T) {
	m := newTestManager(t, time.Minute)

	id, _ := m.Begin()
	m.End(id)

	_, err := m.Get(id)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestManager_ExpiredFlowNotReturned(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond)

	id, _ := m.Begin()
	time.Sleep(25 * time.Millisecond)

	_, err := m.Get(id)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestManager_GetRefreshesTTL(t *testing.T) {
	m := newTestManager(t, 40*time.Millisecond)

	id, _ := m.Begin()
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		_, err := m.Get(id)
		require.NoError(t, err, "active session must outlive its initial TTL")
	}
}

func TestManager_IndependentFlows(t *testing.T) {
	m := newTestManager(t, time.Minute)

	_, a := m.Begin()
	_, b := m.Begin()

	require.NoError(t, a.SelectPlan(dailyPlan(), 1))
	assert.Equal(t, StepPayment, a.Step())
	assert.Equal(t, StepPlans, b.Step())
}
