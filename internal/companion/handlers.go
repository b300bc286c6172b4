package companion

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenofund/companion/internal/auth"
	"github.com/zenofund/companion/internal/idgen"
	"github.com/zenofund/companion/internal/logging"
	"github.com/zenofund/companion/internal/validation"
)

// SubaccountCreator registers a payout destination with the gateway and
// returns its code. Nil when the configured gateway has no split API.
type SubaccountCreator interface {
	CreateSubaccount(ctx context.Context, businessName, bankCode, accountNumber string) (string, error)
}

// Handler provides HTTP endpoints for companion listings.
type Handler struct {
	store       Store
	subaccounts SubaccountCreator
}

// NewHandler creates a new companion handler.
func NewHandler(store Store, subaccounts SubaccountCreator) *Handler {
	return &Handler{store: store, subaccounts: subaccounts}
}

// RegisterRoutes sets up public (read-only) companion routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/companions", h.ListCompanions)
	r.GET("/companions/:id", h.GetCompanion)
}

// RegisterProtectedRoutes sets up routes for companions managing their
// own listing.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/companions", h.CreateListing)
	r.GET("/companions/me", h.GetOwnListing)
	r.PATCH("/companions/me", h.UpdateListing)
	r.PATCH("/companions/me/availability", h.SetAvailability)
}

// ListCompanions handles GET /v1/companions
func (h *Handler) ListCompanions(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	onlyAvailable := c.Query("available") == "true"

	companions, err := h.store.ListApproved(c.Request.Context(), onlyAvailable, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list companions",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"companions": companions, "count": len(companions)})
}

// GetCompanion handles GET /v1/companions/:id
func (h *Handler) GetCompanion(c *gin.Context) {
	cmp, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	// Unapproved listings are only visible to their owner and admins.
	if cmp.ModerationStatus != ModerationApproved &&
		cmp.UserID != auth.UserID(c) && auth.Role(c) != auth.RoleAdmin {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Companion not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"companion": cmp})
}

// CreateRequest registers a new listing.
type CreateRequest struct {
	DisplayName   string `json:"displayName" binding:"required"`
	City          string `json:"city"`
	HourlyRate    int64  `json:"hourlyRate" binding:"required"`
	Currency      string `json:"currency"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
}

// CreateListing handles POST /v1/companions
func (h *Handler) CreateListing(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if errs := validation.Validate(
		validation.Required("displayName", req.DisplayName),
		validation.NonNegativeAmount("hourlyRate", req.HourlyRate),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}
	if req.Currency == "" {
		req.Currency = "NGN"
	}

	ctx := c.Request.Context()
	subaccountCode := ""
	if h.subaccounts != nil && req.BankCode != "" && req.AccountNumber != "" {
		code, err := h.subaccounts.CreateSubaccount(ctx, req.DisplayName, req.BankCode, req.AccountNumber)
		if err != nil {
			// Payouts can be wired later; the listing still registers.
			logging.FromContext(ctx).Warn("subaccount creation failed", "error", err)
		} else {
			subaccountCode = code
		}
	}

	now := time.Now().UTC()
	cmp := &Companion{
		ID:               idgen.WithPrefix(idgen.PrefixCompanion),
		UserID:           auth.UserID(c),
		DisplayName:      validation.SanitizeString(req.DisplayName, 200),
		City:             validation.SanitizeString(req.City, 200),
		HourlyRate:       req.HourlyRate,
		Currency:         req.Currency,
		IsAvailable:      true,
		ModerationStatus: ModerationPending,
		SubaccountCode:   subaccountCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.store.Create(ctx, cmp); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"companion": cmp})
}

// GetOwnListing handles GET /v1/companions/me
func (h *Handler) GetOwnListing(c *gin.Context) {
	cmp, err := h.store.GetByUserID(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companion": cmp})
}

// UpdateRequest changes mutable listing fields.
type UpdateRequest struct {
	DisplayName *string `json:"displayName"`
	City        *string `json:"city"`
	HourlyRate  *int64  `json:"hourlyRate"`
}

// UpdateListing handles PATCH /v1/companions/me
func (h *Handler) UpdateListing(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	ctx := c.Request.Context()
	cmp, err := h.store.GetByUserID(ctx, auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if req.DisplayName != nil {
		cmp.DisplayName = validation.SanitizeString(*req.DisplayName, 200)
	}
	if req.City != nil {
		cmp.City = validation.SanitizeString(*req.City, 200)
	}
	if req.HourlyRate != nil {
		if *req.HourlyRate < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "hourlyRate must not be negative",
			})
			return
		}
		cmp.HourlyRate = *req.HourlyRate
	}
	if err := h.store.Update(ctx, cmp); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companion": cmp})
}

// SetAvailability handles PATCH /v1/companions/me/availability
func (h *Handler) SetAvailability(c *gin.Context) {
	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "available is required",
		})
		return
	}

	ctx := c.Request.Context()
	cmp, err := h.store.GetByUserID(ctx, auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.SetAvailability(ctx, cmp.ID, *req.Available); err != nil {
		respondError(c, err)
		return
	}
	cmp.IsAvailable = *req.Available
	c.JSON(http.StatusOK, gin.H{"companion": cmp})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Companion not found",
		})
	case errors.Is(err, ErrExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_exists",
			"message": "A listing already exists for this user",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong",
		})
	}
}
