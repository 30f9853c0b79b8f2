package streamix

import (
	"context"
	"fmt"
)

// guarded runs an operator callback, converting a panic into an operator
// error so a throwing callback terminalizes the iterator instead of the
// process.
func guarded[R any](fn func() R) (v R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newError(KindOperator, fmt.Errorf("operator callback panicked: %v", p))
		}
	}()
	return fn(), nil
}

// Map transforms each value with f. A panic inside f surfaces as an
// operator error on the subscription.
func Map[T, R any](f func(v T) R) Operator[T, R] {
	return NewOperator("map", func(ctx context.Context, src Iterator[T]) Iterator[R] {
		var failed error
		it := &pullIterator[T, R]{source: src}
		it.next = func(ctx context.Context) (R, bool, error) {
			var zero R
			if failed != nil {
				return zero, false, failed
			}
			v, ok, err := src.Next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}
			r, err := guarded(func() R { return f(v) })
			if err != nil {
				src.Stop()
				return zero, false, err
			}
			return r, true, nil
		}
		it.try = func() (R, bool, bool) {
			var zero R
			if failed != nil {
				return zero, false, true
			}
			v, ok, done := tryNext(src)
			if !ok {
				return zero, false, done
			}
			r, err := guarded(func() R { return f(v) })
			if err != nil {
				// Surface the error on the blocking path.
				failed = err
				src.Stop()
				return zero, false, true
			}
			return r, true, false
		}
		return it
	})
}

// Filter drops values for which p is false.
func Filter[T any](p func(v T) bool) Operator[T, T] {
	return NewOperator("filter", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		var failed error
		it := &pullIterator[T, T]{source: src}
		it.next = func(ctx context.Context) (T, bool, error) {
			var zero T
			if failed != nil {
				return zero, false, failed
			}
			for {
				v, ok, err := src.Next(ctx)
				if err != nil || !ok {
					return zero, false, err
				}
				keep, err := guarded(func() bool { return p(v) })
				if err != nil {
					src.Stop()
					return zero, false, err
				}
				if keep {
					return v, true, nil
				}
			}
		}
		it.try = func() (T, bool, bool) {
			var zero T
			if failed != nil {
				return zero, false, true
			}
			for {
				v, ok, done := tryNext(src)
				if !ok {
					return zero, false, done
				}
				keep, err := guarded(func() bool { return p(v) })
				if err != nil {
					failed = err
					src.Stop()
					return zero, false, true
				}
				if keep {
					return v, true, false
				}
			}
		}
		return it
	})
}

// Scan emits the running accumulation of f over the source, starting
// from seed: for values v1..vn it emits f(seed,v1), f(f(seed,v1),v2), …
func Scan[T, R any](f func(acc R, v T) R, seed R) Operator[T, R] {
	return NewOperator("scan", func(ctx context.Context, src Iterator[T]) Iterator[R] {
		acc := seed
		it := &pullIterator[T, R]{source: src}
		it.next = func(ctx context.Context) (R, bool, error) {
			var zero R
			v, ok, err := src.Next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}
			next, err := guarded(func() R { return f(acc, v) })
			if err != nil {
				src.Stop()
				return zero, false, err
			}
			acc = next
			return acc, true, nil
		}
		return it
	})
}

// Reduce folds the entire source into a single value emitted on
// completion.
func Reduce[T, R any](f func(acc R, v T) R, seed R) Operator[T, R] {
	return NewOperator("reduce", func(ctx context.Context, src Iterator[T]) Iterator[R] {
		acc := seed
		emitted := false
		it := &pullIterator[T, R]{source: src}
		it.next = func(ctx context.Context) (R, bool, error) {
			var zero R
			if emitted {
				return zero, false, nil
			}
			for {
				v, ok, err := src.Next(ctx)
				if err != nil {
					return zero, false, err
				}
				if !ok {
					emitted = true
					return acc, true, nil
				}
				next, err := guarded(func() R { return f(acc, v) })
				if err != nil {
					src.Stop()
					return zero, false, err
				}
				acc = next
			}
		}
		return it
	})
}

// Catch recovers from an upstream error: handler maps the error to a
// fallback source whose values continue the sequence. Cancellation is
// not caught. A panic inside handler replaces the original error.
func Catch[T any](handler func(err error) Source[T]) Operator[T, T] {
	return NewOperator("catch", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		var fallback Iterator[T]
		it := &pullIterator[T, T]{source: src}
		it.next = func(ctx context.Context) (T, bool, error) {
			var zero T
			if fallback != nil {
				return fallback.Next(ctx)
			}
			v, ok, err := src.Next(ctx)
			if err == nil || isCancellation(err) {
				return v, ok, err
			}
			alt, gerr := guarded(func() Source[T] { return handler(err) })
			if gerr != nil {
				return zero, false, gerr
			}
			src.Stop()
			fallback = alt.Iterator(ctx)
			return fallback.Next(ctx)
		}
		it.stop = func() {
			src.Stop()
			if fallback != nil {
				fallback.Stop()
			}
		}
		return it
	})
}
