// Package admin is the operations surface: the dispute queue, companion
// moderation, platform fee control, the audit trail, and manual sweeps.
// Every route requires the admin role.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zenofund/companion/internal/adminlog"
	"github.com/zenofund/companion/internal/auth"
	"github.com/zenofund/companion/internal/booking"
	"github.com/zenofund/companion/internal/companion"
	"github.com/zenofund/companion/internal/payment"
)

// Sweeper forces a sweep pass outside the ticker.
type Sweeper interface {
	Sweep(ctx context.Context) (expired, completed int)
}

// Handler provides the admin HTTP endpoints.
type Handler struct {
	bookings   *booking.Service
	companions companion.Store
	audit      adminlog.Store
	fees       *payment.FeePolicy
	sweeper    Sweeper
}

// NewHandler creates a new admin handler.
func NewHandler(bookings *booking.Service, companions companion.Store, audit adminlog.Store, fees *payment.FeePolicy, sweeper Sweeper) *Handler {
	return &Handler{
		bookings:   bookings,
		companions: companions,
		audit:      audit,
		fees:       fees,
		sweeper:    sweeper,
	}
}

// RegisterRoutes sets up admin routes on a group already guarded by
// auth.RequireRole(auth.RoleAdmin).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/admin/disputes", h.ListDisputes)
	r.POST("/admin/disputes/:id/resolve", h.ResolveDispute)
	r.POST("/admin/companions/:id/moderate", h.ModerateCompanion)
	r.GET("/admin/fee", h.GetPlatformFee)
	r.PUT("/admin/fee", h.SetPlatformFee)
	r.GET("/admin/logs", h.ListLogs)
	r.POST("/admin/sweep", h.TriggerSweep)
	r.GET("/admin/stats", h.Stats)
}

// ListDisputes handles GET /v1/admin/disputes
func (h *Handler) ListDisputes(c *gin.Context) {
	disputes, err := h.bookings.ListByStatus(c.Request.Context(), booking.StatusDisputed, parseLimit(c, 50))
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": disputes, "count": len(disputes)})
}

// ResolveDispute handles POST /v1/admin/disputes/:id/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	var req struct {
		Resolution string `json:"resolution" binding:"required"`
		Notes      string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "resolution is required (complete or revoke)",
		})
		return
	}
	if req.Resolution != booking.ResolutionComplete && req.Resolution != booking.ResolutionRevoke {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "resolution must be complete or revoke",
		})
		return
	}

	b, err := h.bookings.ResolveDispute(c.Request.Context(), c.Param("id"), auth.UserID(c), req.Resolution, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Booking not found",
			})
		case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "invalid_state",
				"message": err.Error(),
			})
		default:
			internalError(c)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// ModerateCompanion handles POST /v1/admin/companions/:id/moderate
func (h *Handler) ModerateCompanion(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "status is required",
		})
		return
	}
	status := companion.ModerationStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "status must be pending, approved, or rejected",
		})
		return
	}

	ctx := c.Request.Context()
	cmp, err := h.companions.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, companion.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Companion not found",
			})
			return
		}
		internalError(c)
		return
	}

	previous := cmp.ModerationStatus
	cmp.ModerationStatus = status
	if err := h.companions.Update(ctx, cmp); err != nil {
		internalError(c)
		return
	}

	entry := adminlog.New(auth.UserID(c), adminlog.ActionModerateCompanion,
		adminlog.TargetCompanion, cmp.ID, map[string]any{
			"from": string(previous),
			"to":   string(status),
			"note": req.Note,
		})
	_ = h.audit.Append(ctx, entry)

	c.JSON(http.StatusOK, gin.H{"companion": cmp})
}

// GetPlatformFee handles GET /v1/admin/fee
func (h *Handler) GetPlatformFee(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feePercent": h.fees.Percent()})
}

// SetPlatformFee handles PUT /v1/admin/fee
//
// Changes apply to payments initialized after the call; splits already
// computed are never rewritten.
func (h *Handler) SetPlatformFee(c *gin.Context) {
	var req struct {
		FeePercent *int `json:"feePercent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FeePercent == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "feePercent is required",
		})
		return
	}

	previous := h.fees.Percent()
	if err := h.fees.Set(*req.FeePercent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	entry := adminlog.New(auth.UserID(c), adminlog.ActionSetPlatformFee,
		adminlog.TargetPlatform, "fee", map[string]any{
			"from": previous,
			"to":   *req.FeePercent,
		})
	_ = h.audit.Append(c.Request.Context(), entry)

	c.JSON(http.StatusOK, gin.H{"feePercent": h.fees.Percent()})
}

// ListLogs handles GET /v1/admin/logs
func (h *Handler) ListLogs(c *gin.Context) {
	ctx := c.Request.Context()
	limit := parseLimit(c, 100)

	var (
		entries []*adminlog.Entry
		err     error
	)
	if targetType := c.Query("targetType"); targetType != "" {
		entries, err = h.audit.ListByTarget(ctx, targetType, c.Query("targetId"), limit)
	} else {
		entries, err = h.audit.List(ctx, limit)
	}
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries, "count": len(entries)})
}

// TriggerSweep handles POST /v1/admin/sweep
func (h *Handler) TriggerSweep(c *gin.Context) {
	expired, completed := h.sweeper.Sweep(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"expired":       expired,
		"autoCompleted": completed,
	})
}

// Stats handles GET /v1/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.bookings.CountByStatus(c.Request.Context())
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookingsByStatus": counts,
		"feePercent":       h.fees.Percent(),
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Something went wrong",
	})
}

func parseLimit(c *gin.Context, fallback int) int {
	limit := fallback
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	return limit
}
