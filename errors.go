package streamix

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies where in a pipeline an error originated.
type ErrorKind string

const (
	// KindSource marks errors produced by an upstream factory or producer.
	KindSource ErrorKind = "source"
	// KindOperator marks errors thrown by an operator's callback.
	KindOperator ErrorKind = "operator"
	// KindNotifier marks errors raised by the gating stream of
	// TakeUntil, SkipUntil or DelayUntil.
	KindNotifier ErrorKind = "notifier"
	// KindBackpressure marks writes rejected because the buffer was
	// closed underneath the producer.
	KindBackpressure ErrorKind = "backpressure"
)

// ErrStreamClosed is returned by Emitter.Send and buffer writes when the
// consumer side has gone away. Producers should return when they see it;
// it is cleanup, not a failure, and never reaches a receiver's Error
// channel.
var ErrStreamClosed = errors.New("stream closed")

// ErrEmpty is returned by First when the source completes without
// emitting a value.
var ErrEmpty = errors.New("stream completed without a value")

// ErrCancelled is the cancellation class observed by pending writes when a
// subscription is torn down. Callers may inspect it but must not propagate
// it to unrelated subscribers.
var ErrCancelled = errors.New("operation cancelled")

// Error is the error envelope carried through a pipeline. It records the
// kind boundary the original error crossed so recovery operators can
// distinguish source failures from their own callbacks.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps err with a kind, unless it already carries one.
func newError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of err, or empty when err carries none.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// isCancellation reports whether err is cancellation rather than failure:
// context teardown or a closed stream. Cancellation is conveyed to
// consumers as done, never as an error.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, ErrCancelled)
}
