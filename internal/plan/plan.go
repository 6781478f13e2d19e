// Package plan holds the hotspot plan catalogue: the model, the remote and
// bundled data sources, and the admin CRUD operations.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("plan: not found")
	ErrInvalidPlan = errors.New("plan: invalid plan")
)

// Plan is a purchasable hotspot package. Read-only to the purchase flow;
// created and edited only through admin actions.
type Plan struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	DurationHours  int      `json:"durationHours"`
	BasePrice      float64  `json:"basePrice"`
	BandwidthLimit string   `json:"bandwidthLimit"` // "download/upload", e.g. "5M/2M"
	MaxDevices     int      `json:"maxDevices"`
	IsActive       bool     `json:"isActive"`
	IsPopular      bool     `json:"isPopular"`
	Features       []string `json:"features"`
	Subscribers    int      `json:"subscribers"`
}

// Validate checks the plan invariants.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if p.DurationHours <= 0 {
		return fmt.Errorf("%w: durationHours must be positive", ErrInvalidPlan)
	}
	if p.BasePrice <= 0 {
		return fmt.Errorf("%w: basePrice must be positive", ErrInvalidPlan)
	}
	if p.MaxDevices < 1 {
		return fmt.Errorf("%w: maxDevices must be at least 1", ErrInvalidPlan)
	}
	return nil
}

// Duration returns the plan's validity window.
func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationHours) * time.Hour
}
