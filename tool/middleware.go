package tool

import (
	"context"
	"time"

	"github.com/orgrun/org/resilience"
)

// Middleware wraps a Tool to add cross-cutting behaviour (a deadline, a
// retry policy) without the Tool implementation knowing about it.
type Middleware func(next Tool) Tool

// ApplyMiddleware wraps base with mw in order: the first Middleware is
// outermost, so it observes the call before and after every later one.
func ApplyMiddleware(base Tool, mw ...Middleware) Tool {
	wrapped := base
	for i := len(mw) - 1; i >= 0; i-- {
		wrapped = mw[i](wrapped)
	}
	return wrapped
}

type timeoutTool struct {
	Tool
	d time.Duration
}

// WithTimeout bounds a single Execute call with d, cancelling the context
// passed to the wrapped Tool when it elapses.
func WithTimeout(d time.Duration) Middleware {
	return func(next Tool) Tool { return &timeoutTool{Tool: next, d: d} }
}

func (t *timeoutTool) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.Tool.Execute(ctx, input)
}

type retryTool struct {
	Tool
	maxAttempts int
}

// WithRetry retries a failed Execute call up to maxAttempts times using
// the package-default exponential backoff policy, stopping early on a
// non-retryable error or context cancellation.
func WithRetry(maxAttempts int) Middleware {
	return func(next Tool) Tool { return &retryTool{Tool: next, maxAttempts: maxAttempts} }
}

func (t *retryTool) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	policy := resilience.DefaultRetryPolicy()
	policy.MaxAttempts = t.maxAttempts
	return resilience.Retry(ctx, policy, func(ctx context.Context) (*Result, error) {
		return t.Tool.Execute(ctx, input)
	})
}
