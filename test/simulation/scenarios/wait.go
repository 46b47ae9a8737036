package scenarios

import (
	"context"
	"time"
)

func waitUntil(ctx context.Context, timeout time.Duration, condition func() bool) error {
	if condition() {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return context.DeadlineExceeded
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// hold keeps a fault active for d or until ctx ends.
func hold(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
