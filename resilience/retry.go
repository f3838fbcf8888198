// Package resilience provides retry, backoff and related fault-tolerance
// primitives shared across the org runtime's external collaborators (the
// chat driver, the shell runner, and any future HTTP-backed dependency).
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/orgrun/org/core"
)

// RetryPolicy configures Retry's backoff behaviour.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of calls to the function, including
	// the first. Zero or negative is normalized to 3.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Zero is
	// normalized to 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed delay. Zero is normalized to 30s.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the delay after each attempt. Zero is
	// normalized to 2.0.
	BackoffFactor float64

	// Jitter replaces each computed delay with a random value between 50%
	// and 100% of it.
	Jitter bool

	// RetryableErrors extends the default retryable core.ErrorCode set
	// (rate_limit, timeout, provider_unavailable) with additional codes.
	RetryableErrors []core.ErrorCode
}

// DefaultRetryPolicy returns the package default: 3 attempts, 500ms initial
// backoff doubling up to 30s, with jitter enabled.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
	return p
}

func (p RetryPolicy) retryable(err error) bool {
	if core.IsRetryable(err) {
		return true
	}
	var e *core.Error
	if errors.As(err, &e) {
		for _, code := range p.RetryableErrors {
			if e.Code == code {
				return true
			}
		}
	}
	return false
}

// Retry calls fn up to policy.MaxAttempts times, applying exponential
// backoff between attempts. It stops early when fn succeeds, when the error
// is not retryable, or when ctx is canceled.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	p := policy.normalized()

	var zero T
	delay := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == p.MaxAttempts || !p.retryable(err) {
			return zero, err
		}

		wait := delay
		if p.Jitter {
			wait = wait/2 + time.Duration(rand.Int63n(int64(wait)/2+1))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
	return zero, errors.New("resilience: unreachable")
}
