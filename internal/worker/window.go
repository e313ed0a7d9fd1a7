package worker

import (
	"context"
	"sync"
	"time"
)

const (
	defaultWindowCalls = 50
	defaultWindow      = 60 * time.Second
)

// WindowLimiter admits at most maxCalls calls within any trailing window.
// It is shared by every rate-limited classifier and the explainer.
type WindowLimiter struct {
	mu       sync.Mutex
	calls    []time.Time // FIFO of admitted call times, oldest first
	maxCalls int
	window   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// OnWait observes how long an admitted call waited (metrics hook)
	OnWait func(d time.Duration)
}

// NewWindowLimiter creates a sliding-window limiter
func NewWindowLimiter(maxCalls int, window time.Duration) *WindowLimiter {
	if maxCalls <= 0 {
		maxCalls = defaultWindowCalls
	}
	if window <= 0 {
		window = defaultWindow
	}

	return &WindowLimiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Acquire blocks until a call is admitted
func (l *WindowLimiter) Acquire() {
	_ = l.AcquireContext(context.Background())
}

// AcquireContext blocks until a call is admitted or ctx is done.
// Nothing is recorded when it gives up.
func (l *WindowLimiter) AcquireContext(ctx context.Context) error {
	start := l.now()

	for {
		wait, ok := l.tryAdmit()
		if ok {
			if l.OnWait != nil {
				l.OnWait(l.now().Sub(start))
			}
			return nil
		}

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAdmit records a call if there is room, otherwise returns how long
// until the oldest call leaves the window
func (l *WindowLimiter) tryAdmit() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Evict calls that are no longer inside the window
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	l.calls = l.calls[i:]

	if len(l.calls) < l.maxCalls {
		l.calls = append(l.calls, now)
		return 0, true
	}

	wait := l.calls[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// InWindow returns the number of calls currently counted against the window
func (l *WindowLimiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, t := range l.calls {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
