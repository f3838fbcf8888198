package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProviderLimits describes the rate and concurrency limits imposed by an
// upstream chat-completion provider. Zero fields mean unlimited.
type ProviderLimits struct {
	// RPM is the maximum number of requests per minute.
	RPM int

	// TPM is the maximum number of tokens per minute.
	TPM int

	// MaxConcurrent is the maximum number of in-flight requests.
	MaxConcurrent int

	// CooldownOnRetry is an extra delay Wait imposes before a retried call,
	// independent of the RPM/TPM buckets.
	CooldownOnRetry time.Duration
}

// pollInterval is how often a blocked Allow/ConsumeTokens call re-checks its
// bucket while waiting for refill or a freed concurrency slot.
const pollInterval = time.Millisecond

// RateLimiter throttles calls to an upstream provider using independent
// token buckets for requests-per-minute and tokens-per-minute, plus a
// concurrency semaphore.
type RateLimiter struct {
	mu sync.Mutex

	limits ProviderLimits

	rpmTokens   float64
	tpmTokens   float64
	lastRPMFill time.Time
	lastTPMFill time.Time

	concurrent int
}

// NewRateLimiter creates a RateLimiter seeded with full buckets.
func NewRateLimiter(limits ProviderLimits) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		limits:      limits,
		rpmTokens:   float64(limits.RPM),
		tpmTokens:   float64(limits.TPM),
		lastRPMFill: now,
		lastTPMFill: now,
	}
}

// Allow blocks until a request slot is available under both the RPM bucket
// and the concurrency semaphore, or ctx is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		r.refillRPM()
		rpmOK := r.limits.RPM <= 0 || r.rpmTokens >= 1
		concOK := r.limits.MaxConcurrent <= 0 || r.concurrent < r.limits.MaxConcurrent
		if rpmOK && concOK {
			if r.limits.RPM > 0 {
				r.rpmTokens--
			}
			r.concurrent++
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		if err := sleepOrDone(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// Release returns a concurrency slot acquired by Allow. It is safe to call
// even without a matching Allow; the counter never goes negative.
func (r *RateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.concurrent > 0 {
		r.concurrent--
	}
}

// Wait applies the configured cooldown, if any, honouring ctx cancellation.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.limits.CooldownOnRetry <= 0 {
		return nil
	}
	return sleepOrDone(ctx, r.limits.CooldownOnRetry)
}

// ConsumeTokens blocks until n tokens are available in the TPM bucket, or
// ctx is done. A zero TPM limit means unlimited and always succeeds.
func (r *RateLimiter) ConsumeTokens(ctx context.Context, n int) error {
	if r.limits.TPM <= 0 || n <= 0 {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		r.refillTPM()
		if r.tpmTokens >= float64(n) {
			r.tpmTokens -= float64(n)
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		if err := sleepOrDone(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// refillRPM adds tokens accrued since the last refill. Caller holds r.mu.
func (r *RateLimiter) refillRPM() {
	if r.limits.RPM <= 0 {
		return
	}
	now := time.Now()
	elapsed := now.Sub(r.lastRPMFill).Seconds()
	r.lastRPMFill = now
	r.rpmTokens += elapsed * (float64(r.limits.RPM) / 60.0)
	if r.rpmTokens > float64(r.limits.RPM) {
		r.rpmTokens = float64(r.limits.RPM)
	}
}

// refillTPM adds tokens accrued since the last refill. Caller holds r.mu.
func (r *RateLimiter) refillTPM() {
	if r.limits.TPM <= 0 {
		return
	}
	now := time.Now()
	elapsed := now.Sub(r.lastTPMFill).Seconds()
	r.lastTPMFill = now
	r.tpmTokens += elapsed * (float64(r.limits.TPM) / 60.0)
	if r.tpmTokens > float64(r.limits.TPM) {
		r.tpmTokens = float64(r.limits.TPM)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("resilience: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
