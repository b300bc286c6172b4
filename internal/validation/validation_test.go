package validation

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 100, "hello"},
		{"  padded  ", 100, "padded"},
		{"null\x00byte", 100, "nullbyte"},
		{strings.Repeat("a", 50), 10, strings.Repeat("a", 10)},
		{"", 100, ""},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestRequired(t *testing.T) {
	if err := Required("name", "Ada")(); err != nil {
		t.Errorf("non-empty value should pass, got %v", err)
	}
	if err := Required("name", "")(); err == nil {
		t.Error("empty value should fail")
	}
	if err := Required("name", "   ")(); err == nil {
		t.Error("whitespace-only value should fail")
	}
}

func TestPositiveHours(t *testing.T) {
	tests := []struct {
		hours int
		valid bool
	}{
		{1, true},
		{MaxBookingHours, true},
		{0, false},
		{-3, false},
		{MaxBookingHours + 1, false},
	}
	for _, tc := range tests {
		err := PositiveHours("durationHours", tc.hours)()
		if (err == nil) != tc.valid {
			t.Errorf("PositiveHours(%d) valid = %v, want %v", tc.hours, err == nil, tc.valid)
		}
	}
}

func TestFutureDate(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)

	// Earlier the same day is still accepted.
	if err := FutureDate("startTime", now.Add(-2*time.Hour), now)(); err != nil {
		t.Errorf("same-day booking should pass, got %v", err)
	}
	if err := FutureDate("startTime", now.Add(72*time.Hour), now)(); err != nil {
		t.Errorf("future booking should pass, got %v", err)
	}
	if err := FutureDate("startTime", now.Add(-48*time.Hour), now)(); err == nil {
		t.Error("past date should fail")
	}
	if err := FutureDate("startTime", time.Time{}, now)(); err == nil {
		t.Error("zero time should fail")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	errs := Validate(
		Required("companionId", ""),
		PositiveHours("durationHours", 0),
		NonNegativeAmount("hourlyRate", 100),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs.Error() != "companionId: is required" {
		t.Errorf("Error() = %q", errs.Error())
	}
}

func TestNonNegativeAmount(t *testing.T) {
	if err := NonNegativeAmount("amount", 0)(); err != nil {
		t.Errorf("zero should pass, got %v", err)
	}
	if err := NonNegativeAmount("amount", -1)(); err == nil {
		t.Error("negative should fail")
	}
}
