package plan

import (
	"context"
	"fmt"

	"github.com/mkutano/hotspot/internal/api"
)

// Admin performs plan CRUD against the backend. Mutations are never
// retried; the backend owns idempotency for them.
type Admin struct {
	client *api.Client
}

// NewAdmin creates the admin plan client.
func NewAdmin(client *api.Client) *Admin {
	return &Admin{client: client}
}

// Create validates locally, then creates the plan.
func (a *Admin) Create(ctx context.Context, p *Plan) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var created Plan
	if err := a.client.Post(ctx, "/plans", p, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces an existing plan.
func (a *Admin) Update(ctx context.Context, p *Plan) (*Plan, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidPlan)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var updated Plan
	if err := a.client.Put(ctx, "/plans/"+p.ID, p, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a plan.
func (a *Admin) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPlan)
	}
	return a.client.Delete(ctx, "/plans/"+id, nil)
}

// Toggle flips a plan's active state and returns the new state.
func (a *Admin) Toggle(ctx context.Context, id string) (*Plan, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidPlan)
	}
	var toggled Plan
	if err := a.client.Patch(ctx, "/plans/"+id+"/toggle", nil, &toggled); err != nil {
		return nil, err
	}
	return &toggled, nil
}
