package engine

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestThrottle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	th := newThrottle(ProgressInterval, clock.Now)

	steps := []struct {
		advance time.Duration
		final   bool
		want    bool
	}{
		{0, false, true},
		{10 * time.Millisecond, false, false},
		{100 * time.Millisecond, false, false},
		{0, true, true},
		{140 * time.Millisecond, false, true},
		{249 * time.Millisecond, false, false},
		{1 * time.Millisecond, false, true},
		{time.Second, false, true},
		{0, false, false},
	}

	for i, s := range steps {
		clock.Advance(s.advance)
		if got := th.Allow(s.final); got != s.want {
			t.Errorf("step %d: Allow(final=%v) = %v, want %v", i, s.final, got, s.want)
		}
	}
}

func TestThrottleBoundsChattyOutput(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	th := newThrottle(ProgressInterval, clock.Now)

	// 1000 lines over 1 second
	forwarded := 0
	for i := 0; i < 1000; i++ {
		if th.Allow(false) {
			forwarded++
		}
		clock.Advance(time.Millisecond)
	}

	if forwarded < 4 || forwarded > 5 {
		t.Errorf("expected 4-5 forwarded updates, got %d", forwarded)
	}
}
