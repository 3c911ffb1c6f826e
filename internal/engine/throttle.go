package engine

import (
	"time"

	"golang.org/x/time/rate"
)

// ProgressInterval is the minimum gap between forwarded non-final progress
// events for a single slot.
const ProgressInterval = 250 * time.Millisecond

// throttle gates progress updates for one job attempt. It is owned by one
// worker goroutine and needs no locking.
type throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func newThrottle(interval time.Duration, now func() time.Time) *throttle {
	return &throttle{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     now,
	}
}

// Allow reports whether an event should be forwarded now. Final events
// always pass and do not consume the window.
func (t *throttle) Allow(final bool) bool {
	if final {
		return true
	}
	return t.limiter.AllowN(t.now(), 1)
}
