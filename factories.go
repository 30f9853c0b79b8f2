package streamix

import (
	"context"
	"iter"
	"time"
)

// Of emits the given values in order, then completes.
func Of[T any](values ...T) *Stream[T] {
	return NewStream("of", func(ctx context.Context, emit Emitter[T]) error {
		for _, v := range values {
			if err := emit.Send(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// From wraps a sequence into a cold stream; the sequence restarts per
// subscription.
func From[T any](seq iter.Seq[T]) *Stream[T] {
	return NewStream("from", func(ctx context.Context, emit Emitter[T]) error {
		for v := range seq {
			if err := emit.Send(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// FromSlice wraps a slice into a cold stream.
func FromSlice[T any](values []T) *Stream[T] {
	return NewStream("from", func(ctx context.Context, emit Emitter[T]) error {
		for _, v := range values {
			if err := emit.Send(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// FromChannel drains a channel until it closes. The channel is shared
// state: concurrent subscriptions split its values rather than each
// observing all of them.
func FromChannel[T any](ch <-chan T) *Stream[T] {
	return NewStream("from", func(ctx context.Context, emit Emitter[T]) error {
		for {
			select {
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				if err := emit.Send(v); err != nil {
					return err
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// FromFunc resolves fn once per subscription, emits its value and
// completes; an error becomes the stream's error. It is the
// promise-to-stream bridge.
func FromFunc[T any](fn func(ctx context.Context) (T, error)) *Stream[T] {
	return NewStream("fromPromise", func(ctx context.Context, emit Emitter[T]) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		return emit.Send(v)
	})
}

// Timer emits 0 after delay, then increments every interval (or every
// delay when no interval is given). Tick targets are absolute times on
// the monotonic clock, so slow consumers do not accumulate drift. A
// zero-period timer emits once and completes. Cancellation clears the
// pending timer.
func Timer(delay time.Duration, interval ...time.Duration) *Stream[int] {
	return NewStream("timer", func(ctx context.Context, emit Emitter[int]) error {
		delay = clampDuration(delay)
		period := delay
		if len(interval) > 0 {
			period = clampDuration(interval[0])
		}

		next := time.Now().Add(delay)
		t := time.NewTimer(delay)
		defer t.Stop()

		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
			if err := emit.Send(i); err != nil {
				return err
			}
			if period <= 0 {
				return nil
			}
			next = next.Add(period)
			t.Reset(time.Until(next))
		}
	})
}

// Interval emits 0, 1, 2, … every d. It is Timer(0, d).
func Interval(d time.Duration) *Stream[int] {
	return Timer(0, d)
}

// Retry runs factory and mirrors the resulting stream once an attempt
// succeeds: values observed during the winning attempt are buffered and
// replayed in order, followed by complete. A failed attempt is retried
// after delay, up to maxRetries times; the last error propagates when
// the budget is exhausted. Cancellation during the delay aborts future
// retries. Each attempt gets its own iterator.
func Retry[T any](factory func() Source[T], maxRetries int, delay time.Duration) *Stream[T] {
	return NewStream("retry", func(ctx context.Context, emit Emitter[T]) error {
		attempts := maxRetries + 1
		if attempts < 1 {
			attempts = 1
		}
		for attempt := 0; ; attempt++ {
			values, err := runAttempt(ctx, factory)
			if err == nil {
				for _, v := range values {
					if serr := emit.Send(v); serr != nil {
						return serr
					}
				}
				return nil
			}
			if isCancellation(err) || attempt == attempts-1 {
				return err
			}
			select {
			case <-time.After(clampDuration(delay)):
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// runAttempt drains one factory invocation to completion, collecting its
// values.
func runAttempt[T any](ctx context.Context, factory func() Source[T]) ([]T, error) {
	src, err := guarded(func() Source[T] { return factory() })
	if err != nil {
		return nil, err
	}
	it := src.Iterator(ctx)
	defer it.Stop()
	var values []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return values, nil
		}
		values = append(values, v)
	}
}
