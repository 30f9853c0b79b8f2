package streamix

import (
	"context"
)

// Take re-emits the first n values, then completes and eagerly cancels
// the upstream.
func Take[T any](n int) Operator[T, T] {
	return NewOperator("take", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		taken := 0
		done := n <= 0
		if done {
			src.Stop()
		}
		it := &pullIterator[T, T]{source: src}
		it.next = func(ctx context.Context) (T, bool, error) {
			var zero T
			if done {
				return zero, false, nil
			}
			v, ok, err := src.Next(ctx)
			if err != nil || !ok {
				done = true
				return zero, false, err
			}
			taken++
			if taken == n {
				done = true
				src.Stop()
			}
			return v, true, nil
		}
		it.try = func() (T, bool, bool) {
			var zero T
			if done {
				return zero, false, true
			}
			v, ok, d := tryNext(src)
			if !ok {
				return zero, false, d
			}
			taken++
			if taken == n {
				done = true
				src.Stop()
			}
			return v, true, false
		}
		return it
	})
}

// TakeWhile re-emits values while p holds; the first falsy value is
// dropped and the sequence completes.
func TakeWhile[T any](p func(v T) bool) Operator[T, T] {
	return NewOperator("takeWhile", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		done := false
		it := &pullIterator[T, T]{source: src}
		it.next = func(ctx context.Context) (T, bool, error) {
			var zero T
			if done {
				return zero, false, nil
			}
			v, ok, err := src.Next(ctx)
			if err != nil || !ok {
				done = true
				return zero, false, err
			}
			keep, err := guarded(func() bool { return p(v) })
			if err != nil {
				done = true
				src.Stop()
				return zero, false, err
			}
			if !keep {
				done = true
				src.Stop()
				return zero, false, nil
			}
			return v, true, nil
		}
		return it
	})
}

// Skip drops the first n values.
func Skip[T any](n int) Operator[T, T] {
	return NewOperator("skip", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		skipped := 0
		it := &pullIterator[T, T]{source: src}
		it.next = func(ctx context.Context) (T, bool, error) {
			var zero T
			for {
				v, ok, err := src.Next(ctx)
				if err != nil || !ok {
					return zero, false, err
				}
				if skipped < n {
					skipped++
					continue
				}
				return v, true, nil
			}
		}
		return it
	})
}

// SkipWhile drops values while p holds, then re-emits everything from
// the first falsy value on.
func SkipWhile[T any](p func(v T) bool) Operator[T, T] {
	return NewOperator("skipWhile", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		open := false
		it := &pullIterator[T, T]{source: src}
		it.next = func(ctx context.Context) (T, bool, error) {
			var zero T
			for {
				v, ok, err := src.Next(ctx)
				if err != nil || !ok {
					return zero, false, err
				}
				if open {
					return v, true, nil
				}
				keep, err := guarded(func() bool { return p(v) })
				if err != nil {
					src.Stop()
					return zero, false, err
				}
				if !keep {
					open = true
					return v, true, nil
				}
			}
		}
		return it
	})
}

// notifierSignal records the first thing a notifier did: emitted a value
// (at a stamp), errored, or completed empty.
type notifierSignal struct {
	stamp uint64
	err   error
	empty bool
}

// watchNotifier pulls the notifier's first emission on its own goroutine.
// The returned channel delivers exactly one signal.
func watchNotifier[N any](ctx context.Context, notifier Source[N], kind ErrorKind) (<-chan notifierSignal, func()) {
	it := notifier.Iterator(ctx)
	ch := make(chan notifierSignal, 1)
	go func() {
		defer it.Stop()
		_, ok, err := it.Next(ctx)
		switch {
		case err != nil && !isCancellation(err):
			// Wrap unconditionally: the notifier's own error already
			// carries the kind of its pipeline (usually source).
			ch <- notifierSignal{stamp: iteratorStamp(it), err: &Error{Kind: kind, Err: err}}
		case ok:
			ch <- notifierSignal{stamp: iteratorStamp(it)}
		default:
			// Completed (or canceled) without emitting.
			ch <- notifierSignal{empty: true}
		}
	}()
	return ch, it.Stop
}

// TakeUntil re-emits source values whose stamp precedes the notifier's
// first emission, then completes. The notifier completing without
// emitting is a no-op. A notifier error propagates after any source
// value already pulled.
func TakeUntil[T, N any](notifier Source[N]) Operator[T, T] {
	return NewOperator("takeUntil", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[T]) error {
			defer src.Stop()
			sig, stopNotifier := watchNotifier[N](gctx, notifier, KindNotifier)
			defer stopNotifier()

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
						return nil
					}
					if err := emit.Send(p.value); err != nil {
						return err
					}
				case s := <-sig:
					if s.empty {
						// Keep forwarding; the notifier never fires.
						sig = nil
						continue
					}
					// A source value pulled before the signal is
					// delivered first when its stamp precedes the
					// notifier's.
					select {
					case p, ok := <-srcCh:
						if ok && p.ok && p.err == nil && p.stamp < s.stamp {
							if err := emit.Send(p.value); err != nil {
								return err
							}
						}
						if ok && p.err != nil && s.err == nil {
							return p.err
						}
					default:
					}
					return s.err
				}
			}
		})
	})
}

// SkipUntil drops source values until the notifier emits, then re-emits
// the rest. If the notifier completes without emitting, the whole source
// is discarded.
func SkipUntil[T, N any](notifier Source[N]) Operator[T, T] {
	return NewOperator("skipUntil", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[T]) error {
			defer src.Stop()
			sig, stopNotifier := watchNotifier[N](gctx, notifier, KindNotifier)
			defer stopNotifier()

			open := false
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
						return nil
					}
					if !open {
						continue
					}
					if err := emit.Send(p.value); err != nil {
						return err
					}
				case s := <-sig:
					if s.err != nil {
						return s.err
					}
					if s.empty {
						// Nothing can ever be emitted.
						return nil
					}
					open = true
					sig = nil
				}
			}
		})
	})
}

// DelayUntil buffers source values until the notifier emits its first
// value, flushes them in order, and forwards subsequent values live. If
// the notifier completes without emitting, the buffered values are
// discarded and nothing is emitted.
func DelayUntil[T, N any](notifier Source[N]) Operator[T, T] {
	return NewOperator("delayUntil", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[T]) error {
			defer src.Stop()
			sig, stopNotifier := watchNotifier[N](gctx, notifier, KindNotifier)
			defer stopNotifier()

			var held []T
			open := false
			sourceDone := false
			srcCh := pumpIterator(gctx, src)
			for {
				select {
				case p, ok := <-srcCh:
					if !ok || !p.ok || p.err != nil {
						if p.err != nil {
							return p.err
						}
						if open {
							return nil
						}
						// Hold completion until the notifier decides
						// whether the buffer flushes or drops.
						sourceDone = true
						srcCh = nil
						continue
					}
					if open {
						if err := emit.Send(p.value); err != nil {
							return err
						}
						continue
					}
					held = append(held, p.value)
				case s := <-sig:
					if s.err != nil {
						return s.err
					}
					if s.empty {
						return nil
					}
					open = true
					sig = nil
					for _, v := range held {
						if err := emit.Send(v); err != nil {
							return err
						}
					}
					held = nil
					if sourceDone {
						return nil
					}
				}
			}
		})
	})
}
