package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenofund/companion/internal/auth"
	"github.com/zenofund/companion/internal/payment"
	"github.com/zenofund/companion/internal/validation"
)

// Handler provides HTTP endpoints for booking operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new booking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up booking routes. All of them require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/bookings", h.CreateBooking)
	r.GET("/bookings", h.ListBookings)
	r.GET("/bookings/:id", h.GetBooking)
	r.POST("/bookings/:id/pay", h.RetryCheckout)
	r.POST("/bookings/:id/accept", h.AcceptBooking)
	r.POST("/bookings/:id/reject", h.RejectBooking)
	r.POST("/bookings/:id/cancel", h.CancelBooking)
	r.POST("/bookings/:id/start", h.StartBooking)
	r.POST("/bookings/:id/complete-request", h.RequestCompletion)
	r.POST("/bookings/:id/confirm", h.ConfirmCompletion)
	r.POST("/bookings/:id/dispute", h.DisputeBooking)
}

// CreateBooking handles POST /v1/bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("companionId", req.CompanionID),
		validation.PositiveHours("durationHours", req.DurationHours),
		validation.FutureDate("startTime", req.StartTime, time.Now()),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}
	req.Notes = validation.SanitizeString(req.Notes, 2000)
	req.Location = validation.SanitizeString(req.Location, 500)

	b, pay, err := h.service.Create(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": b, "payment": pay})
}

// GetBooking handles GET /v1/bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"), auth.UserID(c), auth.Role(c) == auth.RoleAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// ListBookings handles GET /v1/bookings
func (h *Handler) ListBookings(c *gin.Context) {
	limit := parseLimit(c, 50)

	var (
		bookings []*Booking
		err      error
	)
	if auth.Role(c) == auth.RoleCompanion {
		bookings, err = h.service.ListForCompanionUser(c.Request.Context(), auth.UserID(c), limit)
	} else {
		bookings, err = h.service.ListForClient(c.Request.Context(), auth.UserID(c), limit)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// RetryCheckout handles POST /v1/bookings/:id/pay
func (h *Handler) RetryCheckout(c *gin.Context) {
	pay, err := h.service.RetryCheckout(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": pay})
}

// AcceptBooking handles POST /v1/bookings/:id/accept
func (h *Handler) AcceptBooking(c *gin.Context) {
	h.transition(c, func() (*Booking, error) {
		return h.service.Accept(c.Request.Context(), c.Param("id"), auth.UserID(c))
	})
}

// RejectBooking handles POST /v1/bookings/:id/reject
func (h *Handler) RejectBooking(c *gin.Context) {
	h.transition(c, func() (*Booking, error) {
		return h.service.Reject(c.Request.Context(), c.Param("id"), auth.UserID(c))
	})
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	h.transition(c, func() (*Booking, error) {
		return h.service.Cancel(c.Request.Context(), c.Param("id"), auth.UserID(c))
	})
}

// StartBooking handles POST /v1/bookings/:id/start
func (h *Handler) StartBooking(c *gin.Context) {
	h.transition(c, func() (*Booking, error) {
		return h.service.Start(c.Request.Context(), c.Param("id"), auth.UserID(c))
	})
}

// RequestCompletion handles POST /v1/bookings/:id/complete-request
func (h *Handler) RequestCompletion(c *gin.Context) {
	h.transition(c, func() (*Booking, error) {
		return h.service.RequestCompletion(c.Request.Context(), c.Param("id"), auth.UserID(c))
	})
}

// ConfirmCompletion handles POST /v1/bookings/:id/confirm
func (h *Handler) ConfirmCompletion(c *gin.Context) {
	h.transition(c, func() (*Booking, error) {
		return h.service.ConfirmCompletion(c.Request.Context(), c.Param("id"), auth.UserID(c))
	})
}

// DisputeBooking handles POST /v1/bookings/:id/dispute
func (h *Handler) DisputeBooking(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	req.Reason = validation.SanitizeString(req.Reason, 2000)
	if req.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Dispute reason is required",
		})
		return
	}

	h.transition(c, func() (*Booking, error) {
		return h.service.Dispute(c.Request.Context(), c.Param("id"), auth.UserID(c), req.Reason)
	})
}

func (h *Handler) transition(c *gin.Context, op func() (*Booking, error)) {
	b, err := op()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, payment.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Booking not found",
		})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "unauthorized",
			"message": "You may not perform this operation",
		})
	case errors.Is(err, ErrExpired):
		c.JSON(http.StatusGone, gin.H{
			"error":   "expired",
			"message": "The booking request has expired",
		})
	case errors.Is(err, ErrCompanionUnavailable):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "companion_unavailable",
			"message": "The companion is not available for new bookings",
		})
	case errors.Is(err, ErrCompanionNotApproved):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "companion_not_approved",
			"message": "The companion listing has not been approved",
		})
	case errors.Is(err, ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "payment_required",
			"message": "Payment has not been confirmed for this booking",
		})
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict), errors.Is(err, payment.ErrInvalidStatus):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": err.Error(),
		})
	case errors.Is(err, payment.ErrGateway):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "gateway_error",
			"message": "The payment provider is unavailable, try again",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong",
		})
	}
}

func parseLimit(c *gin.Context, fallback int) int {
	limit := fallback
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}
	return limit
}
