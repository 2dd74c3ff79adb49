package tts

import (
	"context"
	"sync"
	"time"
)

// Limiter is a process-wide token bucket for synthesis calls. Refill is
// continuous: tokens accrue proportionally to elapsed time rather than in
// per-period batches, which smooths bursts against the remote quota.
//
// The bucket only counts calls made from this process. Deployments running
// several synthesizer processes against one remote quota should scale the
// per-process capacity down accordingly.
type Limiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	refill   time.Duration
	last     time.Time

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a full bucket with the given capacity, refilled over
// the given period. Capacity 9 over 60s matches the default TTS quota.
func NewLimiter(capacity int, refill time.Duration) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if refill <= 0 {
		refill = time.Minute
	}
	return &Limiter{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		refill:   refill,
		last:     time.Now(),
		sleep:    sleepCtx,
	}
}

// Acquire blocks until a token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.accrue(time.Now())
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		// Wait exactly long enough for one token to accrue.
		need := 1 - l.tokens
		wait := time.Duration(need / l.capacity * float64(l.refill))
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Available returns the current token count. Test and status use only.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accrue(time.Now())
	return l.tokens
}

// accrue adds elapsed/refill*capacity tokens, capped at capacity.
// Caller holds l.mu.
func (l *Limiter) accrue(now time.Time) {
	elapsed := now.Sub(l.last)
	if elapsed <= 0 {
		return
	}
	l.last = now
	l.tokens += elapsed.Seconds() / l.refill.Seconds() * l.capacity
	if l.tokens > l.capacity {
		l.tokens = l.capacity
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
