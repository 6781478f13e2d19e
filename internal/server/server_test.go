package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkutano/hotspot/internal/auth"
	"github.com/mkutano/hotspot/internal/config"
	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/plan"
)

func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Port:             "0",
		Env:              "development",
		LogLevel:         "error",
		BackendURL:       backendURL,
		RequestTimeout:   2 * time.Second,
		Currency:         "KES",
		PollInterval:     10 * time.Millisecond,
		PollTimeout:      time.Second,
		CheckoutTTL:      time.Minute,
		BreakerThreshold: 3,
		BreakerOpenFor:   time.Minute,
		AdminToken:       "test-admin-token",
		StateFile:        filepath.Join(t.TempDir(), "state.json"),
	}
}

func newTestServer(t *testing.T, backend http.Handler) *Server {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	s, err := New(testConfig(t, srv.URL),
		WithLogger(logging.Nop()),
		WithTokenStore(auth.NewMemoryStore()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.checkouts.Close() })
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := get(s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessBeforeRun(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Run was never called, so the server must not be ready
	w := get(s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Run flips the ready flag shortly after the listener starts.
	require.Eventually(t, func() bool {
		return get(s, "/readyz").Code == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	// Shutdown drops readiness again.
	assert.Equal(t, http.StatusServiceUnavailable, get(s, "/readyz").Code)
}

func TestHealthDegradedWhenBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	s, err := New(testConfig(t, srv.URL),
		WithLogger(logging.Nop()),
		WithTokenStore(auth.NewMemoryStore()),
	)
	require.NoError(t, err)
	defer s.checkouts.Close()

	w := get(s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Generate one request first so counters have children
	get(s, "/healthz")

	w := get(s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hotspot_")
}

func TestInfoEndpoint(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := get(s, "/")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Name    string `json:"name"`
		Gateway string `json:"gateway"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "hotspot-portal", body.Name)
	assert.Equal(t, "mpesa", body.Gateway, "no Stripe key means the M-Pesa rail")
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := get(s, "/healthz")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestPortalPlansDemoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	s, err := New(testConfig(t, srv.URL),
		WithLogger(logging.Nop()),
		WithTokenStore(auth.NewMemoryStore()),
	)
	require.NoError(t, err)
	defer s.checkouts.Close()
	srv.Close() // backend goes away after startup

	w := get(s, "/portal/plans")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Plans []plan.Plan `json:"plans"`
		Demo  bool        `json:"demo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Demo)
	assert.NotEmpty(t, body.Plans)
}

func TestPortalPlansFromBackend(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/plans" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode([]plan.Plan{{
			ID: "p1", Name: "Daily", DurationHours: 24,
			BasePrice: 50, MaxDevices: 3, IsActive: true,
		}})
	}))

	w := get(s, "/portal/plans")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Plans []plan.Plan `json:"plans"`
		Demo  bool        `json:"demo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Demo)
	require.Len(t, body.Plans, 1)
	assert.Equal(t, "Daily", body.Plans[0].Name)
}

func TestAdminGuarded(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/radius/disconnect/254712345678", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
