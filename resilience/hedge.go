package resilience

import (
	"context"
	"time"
)

type hedgeResult[T any] struct {
	value T
	err   error
}

// Hedge races primary against secondary. secondary starts either when
// primary fails, or after delay elapses with primary still in flight
// (delay <= 0 starts secondary immediately alongside primary). The first
// successful result wins; if both fail, primary's error is returned.
func Hedge[T any](ctx context.Context, primary, secondary func(context.Context) (T, error), delay time.Duration) (T, error) {
	var zero T

	secCtx, secCancel := context.WithCancel(ctx)
	defer secCancel()

	primaryCh := make(chan hedgeResult[T], 1)
	go func() {
		v, err := primary(ctx)
		primaryCh <- hedgeResult[T]{v, err}
	}()

	var secondaryCh chan hedgeResult[T]
	startSecondary := func() {
		if secondaryCh != nil {
			return
		}
		secondaryCh = make(chan hedgeResult[T], 1)
		go func() {
			v, err := secondary(secCtx)
			secondaryCh <- hedgeResult[T]{v, err}
		}()
	}

	var timerCh <-chan time.Time
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		timerCh = timer.C
	} else {
		startSecondary()
	}

	var primaryDone, secondaryDone bool
	var primaryErr, secondaryErr error

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()

		case r := <-primaryCh:
			primaryDone = true
			primaryCh = nil
			if r.err == nil {
				return r.value, nil
			}
			primaryErr = r.err
			if secondaryDone {
				return zero, primaryErr
			}
			startSecondary()
			timerCh = nil

		case <-timerCh:
			timerCh = nil
			startSecondary()

		case r := <-secondaryCh:
			secondaryDone = true
			secondaryCh = nil
			if r.err == nil {
				return r.value, nil
			}
			secondaryErr = r.err
			if primaryDone {
				return zero, primaryErr
			}
			_ = secondaryErr
		}
	}
}
