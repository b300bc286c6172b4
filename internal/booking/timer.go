package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timer runs the two background sweeps: expiring stale requests and
// auto-completing bookings whose confirmation window closed.
type Timer struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates a sweep timer.
func NewTimer(service *Service, interval time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Timer{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the sweep loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeSweep(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in booking sweep", "panic", fmt.Sprint(r))
		}
	}()
	t.Sweep(ctx)
}

// Sweep runs both sweeps once. Exposed so the admin endpoint can force
// a pass outside the ticker.
func (t *Timer) Sweep(ctx context.Context) (expired, completed int) {
	expired, err := t.service.RunExpirySweep(ctx)
	if err != nil {
		t.logger.Warn("expiry sweep failed", "error", err)
	} else if expired > 0 {
		t.logger.Info("expired stale booking requests", "count", expired)
	}

	completed, err = t.service.RunAutoCompletionSweep(ctx)
	if err != nil {
		t.logger.Warn("auto-completion sweep failed", "error", err)
	} else if completed > 0 {
		t.logger.Info("auto-completed unconfirmed bookings", "count", completed)
	}
	return expired, completed
}
