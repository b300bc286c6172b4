// Package validation provides input validation for the Companion API.
package validation

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for free-text fields
const MaxStringLength = 2000

// MaxBookingHours bounds a single engagement. Anything longer is a data-entry
// mistake, not a booking.
const MaxBookingHours = 72

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs validators and collects their errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// PositiveHours checks that a booking duration is a positive integer within bounds
func PositiveHours(field string, hours int) func() *ValidationError {
	return func() *ValidationError {
		if hours <= 0 {
			return &ValidationError{Field: field, Message: "must be a positive integer"}
		}
		if hours > MaxBookingHours {
			return &ValidationError{Field: field, Message: "exceeds maximum booking length"}
		}
		return nil
	}
}

// FutureDate checks that a booking date is not in the past
func FutureDate(field string, t time.Time, now time.Time) func() *ValidationError {
	return func() *ValidationError {
		if t.IsZero() {
			return &ValidationError{Field: field, Message: "is required"}
		}
		// Same-day bookings are fine; reject dates before today.
		if t.Before(now.Truncate(24 * time.Hour)) {
			return &ValidationError{Field: field, Message: "must not be in the past"}
		}
		return nil
	}
}

// NonNegativeAmount checks a minor-unit amount
func NonNegativeAmount(field string, amount int64) func() *ValidationError {
	return func() *ValidationError {
		if amount < 0 {
			return &ValidationError{Field: field, Message: "must not be negative"}
		}
		return nil
	}
}
