package plan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/auth"
	"github.com/mkutano/hotspot/internal/circuitbreaker"
	"github.com/mkutano/hotspot/internal/logging"
)

func TestPlanValidate(t *testing.T) {
	good := Plan{Name: "Daily", DurationHours: 24, BasePrice: 50, MaxDevices: 2}
	require.NoError(t, good.Validate())

	cases := []struct {
		name string
		mut  func(*Plan)
	}{
		{"empty name", func(p *Plan) { p.Name = " " }},
		{"zero duration", func(p *Plan) { p.DurationHours = 0 }},
		{"negative price", func(p *Plan) { p.BasePrice = -1 }},
		{"zero price", func(p *Plan) { p.BasePrice = 0 }},
		{"zero devices", func(p *Plan) { p.MaxDevices = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := good
			tc.mut(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPlan)
		})
	}
}

func TestRemoteSource_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/plans", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("activeOnly"))
		json.NewEncoder(w).Encode([]Plan{
			{ID: "p1", Name: "Daily", DurationHours: 24, BasePrice: 50, MaxDevices: 2, IsActive: true},
		})
	}))
	defer srv.Close()

	src := NewRemoteSource(api.New(srv.URL, auth.NewMemoryStore()))
	plans, err := src.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "p1", plans[0].ID)
}

func TestRemoteSource_RetriesNetworkFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Kill the connection so the client sees a transport error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode([]Plan{{ID: "p1", Name: "Daily", DurationHours: 24, BasePrice: 50, MaxDevices: 1, IsActive: true}})
	}))
	defer srv.Close()

	src := NewRemoteSource(api.New(srv.URL, auth.NewMemoryStore()))
	plans, err := src.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteSource_DoesNotRetryAPIErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"not allowed"}`))
	}))
	defer srv.Close()

	src := NewRemoteSource(api.New(srv.URL, auth.NewMemoryStore()))
	_, err := src.List(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.KindAPI, apiErr.Kind)
}

type stubSource struct {
	plans []Plan
	err   error
	calls int
}

func (s *stubSource) List(ctx context.Context, activeOnly bool) ([]Plan, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.plans, nil
}

func TestFallbackSource_RemoteHealthy(t *testing.T) {
	remote := &stubSource{plans: []Plan{{ID: "p1", Name: "Daily", DurationHours: 24, BasePrice: 50, MaxDevices: 1, IsActive: true}}}
	f := NewFallbackSource(remote, circuitbreaker.New(3, time.Minute), logging.Nop())

	cat, err := f.ListLabeled(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, cat.Demo)
	require.Len(t, cat.Plans, 1)
	assert.Equal(t, "p1", cat.Plans[0].ID)
}

func TestFallbackSource_DegradesToDemo(t *testing.T) {
	remote := &stubSource{err: errors.New("backend down")}
	f := NewFallbackSource(remote, circuitbreaker.New(3, time.Minute), logging.Nop())

	cat, err := f.ListLabeled(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, cat.Demo)
	assert.Len(t, cat.Plans, 4) // The four bundled demo plans.
	for _, p := range cat.Plans {
		assert.NoError(t, p.Validate())
	}
}

func TestFallbackSource_OpenCircuitSkipsRemote(t *testing.T) {
	remote := &stubSource{err: errors.New("backend down")}
	f := NewFallbackSource(remote, circuitbreaker.New(2, time.Minute), logging.Nop())

	for i := 0; i < 3; i++ {
		cat, err := f.ListLabeled(context.Background(), true)
		require.NoError(t, err)
		assert.True(t, cat.Demo)
	}

	// Two failures tripped the breaker; the third call must not hit remote.
	assert.Equal(t, 2, remote.calls)
}

func TestFallbackSource_RecoversAfterProbe(t *testing.T) {
	remote := &stubSource{err: errors.New("backend down")}
	f := NewFallbackSource(remote, circuitbreaker.New(1, 10*time.Millisecond), logging.Nop())

	cat, _ := f.ListLabeled(context.Background(), true)
	assert.True(t, cat.Demo)

	// Backend comes back; wait out the open window so the probe goes through.
	remote.err = nil
	remote.plans = []Plan{{ID: "p1", Name: "Daily", DurationHours: 24, BasePrice: 50, MaxDevices: 1, IsActive: true}}
	time.Sleep(20 * time.Millisecond)

	cat, err := f.ListLabeled(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, cat.Demo)
}

func TestBundledPlans_AllValid(t *testing.T) {
	for _, p := range BundledPlans() {
		assert.NoError(t, p.Validate(), p.ID)
		assert.True(t, p.IsActive, p.ID)
	}
}
