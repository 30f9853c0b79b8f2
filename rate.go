package streamix

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// clampDuration floors negative durations at zero. Zero-duration timers
// still fire on the timer path, never synchronously.
func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Debounce holds the latest value and restarts a timer of duration d on
// every new one; the held value is emitted when the timer expires. On
// source completion the held value is flushed immediately, regardless of
// the timer. A source error propagates without flushing.
func Debounce[T any](d time.Duration) Operator[T, T] {
	return DebounceWith[T](func(context.Context) (time.Duration, error) {
		return d, nil
	})
}

// DebounceWith is Debounce with a deferred duration: resolve is called
// once, before the first timer starts.
func DebounceWith[T any](resolve func(ctx context.Context) (time.Duration, error)) Operator[T, T] {
	return NewOperator("debounce", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[T]) error {
			defer src.Stop()

			var (
				d        time.Duration
				resolved bool
				pending  T
				held     bool
				timer    *time.Timer
				timerC   <-chan time.Time
			)
			defer func() {
				if timer != nil {
					timer.Stop()
				}
			}()

			srcCh := pumpIterator(gctx, src)
			for {
				select {
				case p, ok := <-srcCh:
					if !ok {
						return nil
					}
					if p.err != nil {
						return p.err
					}
					if !p.ok {
						if held {
							if err := emit.Send(pending); err != nil {
								return err
							}
						}
						return nil
					}
					if !resolved {
						dd, err := resolve(gctx)
						if err != nil {
							return newError(KindOperator, err)
						}
						d = clampDuration(dd)
						resolved = true
					}
					pending = p.value
					held = true
					if timer == nil {
						timer = time.NewTimer(d)
					} else {
						if !timer.Stop() {
							select {
							case <-timer.C:
							default:
							}
						}
						timer.Reset(d)
					}
					timerC = timer.C
				case <-timerC:
					timerC = nil
					if held {
						held = false
						if err := emit.Send(pending); err != nil {
							return err
						}
					}
				}
			}
		})
	})
}

// Throttle emits the first value immediately and drops subsequent values
// arriving within d of the last emission (leading edge only). The gate
// is a token bucket of depth one refilling every d.
func Throttle[T any](d time.Duration) Operator[T, T] {
	return NewOperator("throttle", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		lim := rate.NewLimiter(rate.Every(clampDuration(d)), 1)
		it := &pullIterator[T, T]{source: src}
		it.next = func(ctx context.Context) (T, bool, error) {
			var zero T
			for {
				v, ok, err := src.Next(ctx)
				if err != nil || !ok {
					return zero, false, err
				}
				if lim.Allow() {
					return v, true, nil
				}
			}
		}
		it.try = func() (T, bool, bool) {
			var zero T
			for {
				v, ok, done := tryNext(src)
				if !ok {
					return zero, false, done
				}
				if lim.Allow() {
					return v, true, false
				}
			}
		}
		return it
	})
}

// Audit starts a timer of d when a value arrives and none is running;
// when it fires, the latest value seen so far is emitted. On source
// completion a held value is flushed once before completing.
func Audit[T any](d time.Duration) Operator[T, T] {
	return NewOperator("audit", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[T]) error {
			defer src.Stop()

			var (
				latest T
				held   bool
				timer  *time.Timer
				timerC <-chan time.Time
			)
			defer func() {
				if timer != nil {
					timer.Stop()
				}
			}()

			srcCh := pumpIterator(gctx, src)
			for {
				select {
				case p, ok := <-srcCh:
					if !ok {
						return nil
					}
					if p.err != nil {
						return p.err
					}
					if !p.ok {
						if held {
							if err := emit.Send(latest); err != nil {
								return err
							}
						}
						return nil
					}
					latest = p.value
					held = true
					if timerC == nil {
						if timer == nil {
							timer = time.NewTimer(clampDuration(d))
						} else {
							timer.Reset(clampDuration(d))
						}
						timerC = timer.C
					}
				case <-timerC:
					timerC = nil
					if held {
						held = false
						if err := emit.Send(latest); err != nil {
							return err
						}
					}
				}
			}
		})
	})
}

// Buffer collects values and emits the accumulated slice every period.
// Empty intervals emit nothing. On source completion a non-empty buffer
// is flushed before completing.
func Buffer[T any](period time.Duration) Operator[T, []T] {
	return NewOperator("buffer", func(ctx context.Context, src Iterator[T]) Iterator[[]T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[[]T]) error {
			defer src.Stop()

			period = clampDuration(period)
			timer := time.NewTimer(period)
			defer timer.Stop()

			var acc []T
			flush := func() error {
				if len(acc) == 0 {
					return nil
				}
				out := acc
				acc = nil
				return emit.Send(out)
			}

			srcCh := pumpIterator(gctx, src)
			for {
				select {
				case p, ok := <-srcCh:
					if !ok {
						return nil
					}
					if p.err != nil {
						return p.err
					}
					if !p.ok {
						return flush()
					}
					acc = append(acc, p.value)
				case <-timer.C:
					if err := flush(); err != nil {
						return err
					}
					timer.Reset(period)
				}
			}
		})
	})
}

// Sample emits the latest source value each time the notifier emits, and
// only when a fresh value arrived since the previous sample. It
// completes with the source; the notifier completing merely stops
// sampling.
func Sample[T, N any](notifier Source[N]) Operator[T, T] {
	return NewOperator("sample", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[T]) error {
			defer src.Stop()
			nit := notifier.Iterator(gctx)
			defer nit.Stop()

			var (
				latest T
				fresh  bool
			)
			srcCh := pumpIterator(gctx, src)
			noteCh := pumpIterator(gctx, nit)
			for {
				select {
				case p, ok := <-srcCh:
					if !ok {
						return nil
					}
					if p.err != nil {
						return p.err
					}
					if !p.ok {
						return nil
					}
					latest = p.value
					fresh = true
				case n, ok := <-noteCh:
					if !ok {
						noteCh = nil
						continue
					}
					if n.err != nil {
						return newError(KindNotifier, n.err)
					}
					if !n.ok {
						noteCh = nil
						continue
					}
					if fresh {
						fresh = false
						if err := emit.Send(latest); err != nil {
							return err
						}
					}
				}
			}
		})
	})
}
