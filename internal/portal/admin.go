package portal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/plan"
	"github.com/mkutano/hotspot/internal/session"
	"github.com/mkutano/hotspot/internal/sms"
	"github.com/mkutano/hotspot/internal/validation"
)

// AdminAuthMiddleware guards the admin routes with a static bearer
// token. An empty configured token disables the whole admin surface.
func AdminAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "admin_disabled",
				"message": "Admin API is not enabled on this portal",
			})
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Missing or invalid admin token",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Plan CRUD
// -----------------------------------------------------------------------------

// CreatePlan handles POST /admin/plans.
func (h *Handler) CreatePlan(c *gin.Context) {
	ctx := c.Request.Context()

	var p plan.Plan
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	created, err := h.planAdmin.Create(ctx, &p)
	if err != nil {
		h.adminError(c, err)
		return
	}

	logging.L(ctx).Info("plan created", "id", created.ID, "name", created.Name)
	c.JSON(http.StatusCreated, created)
}

// UpdatePlan handles PUT /admin/plans/:id.
func (h *Handler) UpdatePlan(c *gin.Context) {
	ctx := c.Request.Context()

	var p plan.Plan
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	p.ID = c.Param("id")

	updated, err := h.planAdmin.Update(ctx, &p)
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeletePlan handles DELETE /admin/plans/:id.
func (h *Handler) DeletePlan(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.planAdmin.Delete(ctx, c.Param("id")); err != nil {
		h.adminError(c, err)
		return
	}
	logging.L(ctx).Info("plan deleted", "id", c.Param("id"))
	c.Status(http.StatusNoContent)
}

// TogglePlan handles PATCH /admin/plans/:id/toggle.
func (h *Handler) TogglePlan(c *gin.Context) {
	ctx := c.Request.Context()

	toggled, err := h.planAdmin.Toggle(ctx, c.Param("id"))
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, toggled)
}

// -----------------------------------------------------------------------------
// RADIUS session control
// -----------------------------------------------------------------------------

// DisconnectRequest carries the optional disconnect reason.
type DisconnectRequest struct {
	Reason string `json:"reason"`
}

// BandwidthRequest carries the new bandwidth spec.
type BandwidthRequest struct {
	Bandwidth string `json:"bandwidth" binding:"required"`
}

// ExtendRequest carries the new session timeout.
type ExtendRequest struct {
	TimeoutSeconds int `json:"timeoutSeconds" binding:"required"`
}

// BulkDisconnectRequest carries the usernames for a bulk disconnect.
type BulkDisconnectRequest struct {
	Usernames []string `json:"usernames" binding:"required"`
	Reason    string   `json:"reason"`
}

// Disconnect handles POST /admin/radius/disconnect/:username.
func (h *Handler) Disconnect(c *gin.Context) {
	ctx := c.Request.Context()

	var req DisconnectRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	res, err := h.sessions.Disconnect(ctx, c.Param("username"), req.Reason)
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateBandwidth handles POST /admin/radius/bandwidth/:username.
func (h *Handler) UpdateBandwidth(c *gin.Context) {
	ctx := c.Request.Context()

	var req BandwidthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "bandwidth is required",
		})
		return
	}
	if !validation.IsValidBandwidth(req.Bandwidth) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "bandwidth must look like \"1M/2M\"",
		})
		return
	}

	res, err := h.sessions.UpdateBandwidth(ctx, c.Param("username"), req.Bandwidth)
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ExtendSession handles POST /admin/radius/extend/:username.
func (h *Handler) ExtendSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "timeoutSeconds is required",
		})
		return
	}

	res, err := h.sessions.ExtendSession(ctx, c.Param("username"), req.TimeoutSeconds)
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// BulkDisconnect handles POST /admin/radius/bulk-disconnect.
func (h *Handler) BulkDisconnect(c *gin.Context) {
	ctx := c.Request.Context()

	var req BulkDisconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "usernames is required",
		})
		return
	}

	agg, err := h.sessions.BulkDisconnect(ctx, req.Usernames, req.Reason)
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

// -----------------------------------------------------------------------------
// SMS log
// -----------------------------------------------------------------------------

// ListSMSLogs handles GET /admin/sms/logs.
func (h *Handler) ListSMSLogs(c *gin.Context) {
	ctx := c.Request.Context()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.sms.List(ctx, sms.ListFilter{
		PhoneNumber: c.Query("phone"),
		Status:      c.Query("status"),
		Limit:       limit,
	})
	if err != nil {
		h.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// adminError maps local validation errors to 400 and backend errors to
// their original status where known.
func (h *Handler) adminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, plan.ErrInvalidPlan),
		errors.Is(err, session.ErrEmptyUsername),
		errors.Is(err, session.ErrEmptyBandwidth),
		errors.Is(err, session.ErrBadTimeout),
		errors.Is(err, session.ErrNoUsernames):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.Is(err, plan.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	default:
		if apiErr, ok := api.AsError(err); ok {
			status := http.StatusBadGateway
			if apiErr.Kind == api.KindAPI && apiErr.Status > 0 {
				status = apiErr.Status
			}
			c.JSON(status, gin.H{
				"error":   "backend_error",
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
