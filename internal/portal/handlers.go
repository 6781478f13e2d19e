// Package portal provides the HTTP handlers for the captive-portal
// checkout and the admin console.
//
// The portal side is anonymous: customers browse plans, pick a device
// count, pay, and receive WiFi credentials. The admin side is guarded
// by a bearer token and proxies plan management, session control, and
// SMS logs to the billing backend.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/checkout"
	"github.com/mkutano/hotspot/internal/health"
	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/msisdn"
	"github.com/mkutano/hotspot/internal/plan"
	"github.com/mkutano/hotspot/internal/pricing"
	"github.com/mkutano/hotspot/internal/session"
	"github.com/mkutano/hotspot/internal/sms"
	"github.com/mkutano/hotspot/internal/validation"
)

// Handler provides HTTP handlers for the portal and admin APIs.
type Handler struct {
	checkouts *checkout.Manager
	plans     *plan.FallbackSource
	planAdmin *plan.Admin
	sessions  *session.Client
	sms       *sms.Client
	health    *health.Registry
	currency  string
}

// NewHandler creates a portal handler.
func NewHandler(
	checkouts *checkout.Manager,
	plans *plan.FallbackSource,
	planAdmin *plan.Admin,
	sessions *session.Client,
	smsClient *sms.Client,
	healthReg *health.Registry,
	currency string,
) *Handler {
	return &Handler{
		checkouts: checkouts,
		plans:     plans,
		planAdmin: planAdmin,
		sessions:  sessions,
		sms:       smsClient,
		health:    healthReg,
		currency:  currency,
	}
}

// RegisterPortalRoutes sets up the anonymous customer-facing routes.
func (h *Handler) RegisterPortalRoutes(r *gin.RouterGroup) {
	r.GET("/plans", h.ListPlans)
	r.GET("/quote", h.Quote)
	r.POST("/checkout", h.BeginCheckout)
	r.GET("/checkout/:id", h.GetCheckout)
	r.POST("/checkout/:id/select", h.SelectPlan)
	r.POST("/checkout/:id/back", h.Back)
	r.POST("/checkout/:id/submit", h.Submit)
	r.POST("/checkout/:id/retry", h.Retry)
	r.DELETE("/checkout/:id", h.EndCheckout)
}

// RegisterAdminRoutes sets up the bearer-guarded admin routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/plans", h.CreatePlan)
	r.PUT("/plans/:id", h.UpdatePlan)
	r.DELETE("/plans/:id", h.DeletePlan)
	r.PATCH("/plans/:id/toggle", h.TogglePlan)

	radius := r.Group("/radius")
	radius.Use(validation.UsernameParamMiddleware())
	radius.POST("/disconnect/:username", h.Disconnect)
	radius.POST("/bandwidth/:username", h.UpdateBandwidth)
	radius.POST("/extend/:username", h.ExtendSession)
	radius.POST("/bulk-disconnect", h.BulkDisconnect)

	r.GET("/sms/logs", h.ListSMSLogs)
}

// -----------------------------------------------------------------------------
// Plans & pricing
// -----------------------------------------------------------------------------

// ListPlans handles GET /portal/plans. When the backend is unreachable
// the response carries the bundled demo catalogue with demo=true so the
// portal can label the data as non-authoritative.
func (h *Handler) ListPlans(c *gin.Context) {
	ctx := c.Request.Context()

	activeOnly := c.DefaultQuery("activeOnly", "true") == "true"
	cat, err := h.plans.ListLabeled(ctx, activeOnly)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "backend_error",
			"message": "Failed to load plans",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plans": cat.Plans,
		"demo":  cat.Demo,
		"count": len(cat.Plans),
	})
}

// Quote handles GET /portal/quote?plan_id=...&devices=N.
func (h *Handler) Quote(c *gin.Context) {
	ctx := c.Request.Context()

	planID := c.Query("plan_id")
	if planID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "plan_id is required",
		})
		return
	}
	devices, err := strconv.Atoi(c.DefaultQuery("devices", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "devices must be an integer",
		})
		return
	}

	p, demo, err := h.findPlan(ctx, planID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Plan not found",
		})
		return
	}

	devices = pricing.ClampDevices(p, devices)
	c.JSON(http.StatusOK, gin.H{
		"plan_id":  p.ID,
		"devices":  devices,
		"price":    pricing.Price(p, devices),
		"currency": h.currency,
		"demo":     demo,
	})
}

func (h *Handler) findPlan(ctx context.Context, id string) (*plan.Plan, bool, error) {
	cat, err := h.plans.ListLabeled(ctx, false)
	if err != nil {
		return nil, false, err
	}
	for i := range cat.Plans {
		if cat.Plans[i].ID == id {
			return &cat.Plans[i], cat.Demo, nil
		}
	}
	return nil, cat.Demo, plan.ErrNotFound
}

// -----------------------------------------------------------------------------
// Checkout
// -----------------------------------------------------------------------------

// SelectPlanRequest is the payload for choosing a plan.
type SelectPlanRequest struct {
	PlanID  string `json:"plan_id" binding:"required"`
	Devices int    `json:"devices"`
}

// SubmitRequest is the payload for submitting payment details.
type SubmitRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// BeginCheckout handles POST /portal/checkout. An optional body selects
// a plan in the same call.
func (h *Handler) BeginCheckout(c *gin.Context) {
	ctx := c.Request.Context()

	id, flow := h.checkouts.Begin()

	var req SelectPlanRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.PlanID != "" {
		p, _, err := h.findPlan(ctx, req.PlanID)
		if err != nil {
			h.checkouts.End(id)
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Plan not found",
			})
			return
		}
		if err := flow.SelectPlan(p, req.Devices); err != nil {
			h.checkouts.End(id)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"checkout_id": id,
		"state":       h.stateView(flow),
	})
}

// GetCheckout handles GET /portal/checkout/:id.
func (h *Handler) GetCheckout(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.stateView(flow))
}

// SelectPlan handles POST /portal/checkout/:id/select.
func (h *Handler) SelectPlan(c *gin.Context) {
	ctx := c.Request.Context()

	flow, ok := h.flow(c)
	if !ok {
		return
	}

	var req SelectPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "plan_id is required",
		})
		return
	}

	p, _, err := h.findPlan(ctx, req.PlanID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Plan not found",
		})
		return
	}

	if err := flow.SelectPlan(p, req.Devices); err != nil {
		h.flowError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateView(flow))
}

// Back handles POST /portal/checkout/:id/back.
func (h *Handler) Back(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if err := flow.Back(); err != nil {
		h.flowError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateView(flow))
}

// Submit handles POST /portal/checkout/:id/submit. On success the flow
// enters processing and a background poll drives it to success or
// failed; the caller follows along via GET /portal/checkout/:id.
func (h *Handler) Submit(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "phone_number is required",
		})
		return
	}

	if err := flow.Submit(c.Request.Context(), req.PhoneNumber); err != nil {
		h.flowError(c, err)
		return
	}

	// Poll beyond this request's lifetime; the poller carries its own
	// timeout and a stale result is ignored by the flow.
	logger := logging.L(c.Request.Context())
	go func() {
		if err := flow.AwaitPayment(context.Background()); err != nil {
			logger.Warn("payment wait ended with error", "error", err)
			return
		}
		h.deliverCredentials(flow, logger)
	}()

	c.JSON(http.StatusAccepted, h.stateView(flow))
}

// Retry handles POST /portal/checkout/:id/retry.
func (h *Handler) Retry(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if err := flow.Retry(); err != nil {
		h.flowError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateView(flow))
}

// EndCheckout handles DELETE /portal/checkout/:id.
func (h *Handler) EndCheckout(c *gin.Context) {
	h.checkouts.End(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// deliverCredentials texts the WiFi login to the paying phone. Best
// effort: the customer also sees the credentials on the success page,
// so a send failure is logged, not surfaced.
func (h *Handler) deliverCredentials(flow *checkout.Flow, logger *slog.Logger) {
	creds, err := flow.Credentials()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body := "Your WiFi password is " + creds.Password +
		". Valid until " + creds.ExpiresAt.Format("02 Jan 15:04") + "."
	if _, err := h.sms.Send(ctx, creds.Username, body); err != nil {
		logger.Warn("credential sms failed",
			"username", creds.Username,
			"error", err)
	}
}

func (h *Handler) flow(c *gin.Context) (*checkout.Flow, bool) {
	flow, err := h.checkouts.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Checkout session not found or expired",
		})
		return nil, false
	}
	return flow, true
}

// stateView is the render-only snapshot handed to the portal UI.
func (h *Handler) stateView(f *checkout.Flow) gin.H {
	view := gin.H{"step": string(f.Step())}

	if p, devices := f.Selection(); p != nil {
		view["plan"] = p
		view["devices"] = devices
		if price, err := f.Quote(); err == nil {
			view["price"] = price
			view["currency"] = h.currency
		}
	}
	if reason := f.FailReason(); reason != "" {
		view["error"] = reason
	}
	if creds, err := f.Credentials(); err == nil {
		view["credentials"] = gin.H{
			"username":   creds.Username,
			"password":   creds.Password,
			"expires_at": creds.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}
	return view
}

func (h *Handler) flowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrWrongStep):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "wrong_step",
			"message": err.Error(),
		})
	case errors.Is(err, checkout.ErrNoPlanSelected),
		errors.Is(err, checkout.ErrMissingPhone),
		errors.Is(err, msisdn.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	default:
		if apiErr, ok := api.AsError(err); ok {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "payment_error",
				"message": apiErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}
}
