package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"WARN", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"verbose", slog.LevelInfo, slog.LevelDebug}, // unknown falls back to info
	}

	for _, tc := range cases {
		logger := New(tc.level, "text")
		ctx := context.Background()
		if !logger.Enabled(ctx, tc.enabled) {
			t.Errorf("level %q: expected %v to be enabled", tc.level, tc.enabled)
		}
		if logger.Enabled(ctx, tc.muted) {
			t.Errorf("level %q: expected %v to be muted", tc.level, tc.muted)
		}
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if RequestID(ctx) != "" {
		t.Error("expected empty request id on fresh context")
	}

	ctx = WithRequestID(ctx, "req_123")
	if RequestID(ctx) != "req_123" {
		t.Errorf("RequestID = %q, want req_123", RequestID(ctx))
	}
}

func TestFromContext_Fallback(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger when none attached")
	}

	logger := New("info", "json")
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("expected attached logger")
	}
}
