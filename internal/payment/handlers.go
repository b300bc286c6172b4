package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zenofund/companion/internal/events"
	"github.com/zenofund/companion/internal/logging"
)

// WebhookValidator checks the provider's signature over the raw body.
type WebhookValidator func(body []byte, signature string) bool

// WebhookParser extracts the charge reference from a provider webhook.
// ok is false for event types the platform ignores.
type WebhookParser func(body []byte) (reference string, ok bool)

// Handler provides HTTP endpoints for payment verification.
type Handler struct {
	service         *Service
	emitter         events.Emitter
	validator       WebhookValidator
	parser          WebhookParser
	signatureHeader string
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service, emitter events.Emitter, validator WebhookValidator, parser WebhookParser, signatureHeader string) *Handler {
	if emitter == nil {
		emitter = events.Discard{}
	}
	return &Handler{
		service:         service,
		emitter:         emitter,
		validator:       validator,
		parser:          parser,
		signatureHeader: signatureHeader,
	}
}

// RegisterRoutes sets up authenticated payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/payments/verify/:reference", h.VerifyPayment)
}

// RegisterWebhookRoutes sets up the provider-facing webhook route. It
// is unauthenticated; the signature check is the auth.
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.POST("/payments/webhook", h.Webhook)
}

// VerifyPayment handles GET /v1/payments/verify/:reference
//
// Clients land here after the gateway redirect. It is safe to call any
// number of times.
func (h *Handler) VerifyPayment(c *gin.Context) {
	pay, err := h.service.Verify(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	if pay.Status == StatusPaid {
		h.emitPaymentVerified(c, pay)
	}
	c.JSON(http.StatusOK, gin.H{"payment": pay})
}

// Webhook handles POST /v1/payments/webhook
func (h *Handler) Webhook(c *gin.Context) {
	log := logging.FromContext(c.Request.Context())

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if h.validator == nil || !h.validator(body, c.GetHeader(h.signatureHeader)) {
		log.Warn("webhook signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}

	reference, ok := h.parser(body)
	if !ok {
		// Unhandled event type: acknowledge so the provider stops retrying.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	pay, err := h.service.Verify(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": "unknown_reference"})
			return
		}
		// Non-2xx makes the provider retry later.
		log.Error("webhook verification failed", "reference", reference, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification_failed"})
		return
	}
	if pay.Status == StatusPaid {
		h.emitPaymentVerified(c, pay)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) emitPaymentVerified(c *gin.Context, pay *Payment) {
	h.emitter.Emit(c.Request.Context(), events.New(events.TypePaymentVerified, map[string]any{
		"bookingId": pay.BookingID,
		"reference": pay.Reference,
		"amount":    pay.Amount,
	}))
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Payment not found",
		})
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": err.Error(),
		})
	case errors.Is(err, ErrGateway):
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
