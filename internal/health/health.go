// Package health provides a registry of named subsystem health checkers.
package health

import (
	"context"
	"sync"

	"github.com/mkutano/hotspot/internal/api"
)

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker is a function that checks the health of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs all registered checkers and returns the aggregate health
// status plus individual subsystem results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}

// Backend returns a checker that pings the billing backend's health
// endpoint through the gateway client. The portal stays healthy on its
// own even when the backend is down (plans degrade to demo data), so
// this checker feeds readiness detail rather than liveness.
func Backend(client *api.Client) Checker {
	return func(ctx context.Context) Status {
		var body struct {
			Status string `json:"status"`
		}
		if err := client.Get(ctx, "/health", &body); err != nil {
			return Status{Name: "backend", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "backend", Healthy: true, Detail: body.Status}
	}
}
