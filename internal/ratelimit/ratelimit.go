// Package ratelimit implements the sliding-window limiter that gates AI
// calls. Token-bucket limiters allow bursts that provider-side per-minute
// accounting still rejects, so the window is tracked explicitly.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most limit calls per window. Wait blocks until the call
// may proceed, then records it.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a limiter admitting limit calls per window. A non-positive
// limit disables limiting.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the next call is admitted or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.calls) < l.limit {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.calls[0])
		l.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops timestamps older than the window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.calls) && now.Sub(l.calls[cut]) >= l.window {
		cut++
	}
	if cut > 0 {
		l.calls = append(l.calls[:0], l.calls[cut:]...)
	}
}
