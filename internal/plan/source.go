package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/circuitbreaker"
	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/retry"
)

// Source lists available plans.
type Source interface {
	List(ctx context.Context, activeOnly bool) ([]Plan, error)
}

// Catalogue is what the captive portal renders: the plans plus whether
// they came from the bundled demo set rather than the backend.
type Catalogue struct {
	Plans []Plan `json:"plans"`
	Demo  bool   `json:"demo"` // true = non-authoritative fallback data
}

// RemoteSource fetches plans from the billing backend. GETs are safe to
// repeat, so transient failures are retried a couple of times before the
// error surfaces.
type RemoteSource struct {
	client      *api.Client
	maxAttempts int
}

// NewRemoteSource creates a backend-backed source.
func NewRemoteSource(client *api.Client) *RemoteSource {
	return &RemoteSource{client: client, maxAttempts: 2}
}

func (s *RemoteSource) List(ctx context.Context, activeOnly bool) ([]Plan, error) {
	path := fmt.Sprintf("/plans?activeOnly=%t", activeOnly)

	var plans []Plan
	err := retry.Do(ctx, s.maxAttempts, 200*time.Millisecond, func() error {
		plans = nil
		err := s.client.Get(ctx, path, &plans)
		if err != nil && !api.IsNetwork(err) {
			// Application-level errors won't heal on retry.
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// FallbackSource serves plans from the backend while it is healthy and
// degrades to the bundled demo catalogue when it is not. Degrading keeps
// the payment funnel usable during backend outages; the Demo flag tells
// the UI to label the data as non-authoritative.
//
// A circuit breaker decides when to stop hammering a failing backend and
// when to probe it again.
type FallbackSource struct {
	remote  Source
	bundled []Plan
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewFallbackSource wires the remote source behind a circuit breaker.
func NewFallbackSource(remote Source, breaker *circuitbreaker.Breaker, logger *slog.Logger) *FallbackSource {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FallbackSource{
		remote:  remote,
		bundled: BundledPlans(),
		breaker: breaker,
		logger:  logger,
	}
	breaker.OnTransition(func(from, to circuitbreaker.State) {
		logger.Warn("plan source circuit state changed",
			"from", from.String(), "to", to.String())
	})
	return f
}

// List satisfies Source; fallback data is indistinguishable here. Callers
// that need the demo flag use ListLabeled.
func (f *FallbackSource) List(ctx context.Context, activeOnly bool) ([]Plan, error) {
	cat, err := f.ListLabeled(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return cat.Plans, nil
}

// ListLabeled returns the catalogue with its provenance. It never fails:
// when the backend is unreachable (or the circuit is open) it returns the
// bundled demo plans with Demo set.
func (f *FallbackSource) ListLabeled(ctx context.Context, activeOnly bool) (Catalogue, error) {
	if !f.breaker.Allow() {
		metrics.PlanFallbacksTotal.Inc()
		return f.demo(activeOnly), nil
	}

	plans, err := f.remote.List(ctx, activeOnly)
	if err != nil {
		f.breaker.RecordFailure()
		f.logger.Warn("plan fetch failed, serving bundled demo plans", "error", err)
		metrics.PlanFallbacksTotal.Inc()
		return f.demo(activeOnly), nil
	}

	f.breaker.RecordSuccess()
	return Catalogue{Plans: plans}, nil
}

func (f *FallbackSource) demo(activeOnly bool) Catalogue {
	plans := make([]Plan, 0, len(f.bundled))
	for _, p := range f.bundled {
		if activeOnly && !p.IsActive {
			continue
		}
		plans = append(plans, p)
	}
	return Catalogue{Plans: plans, Demo: true}
}
