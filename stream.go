package streamix

import (
	"context"
	"iter"
	"log/slog"
)

// StreamKind identifies the flavor of a source.
type StreamKind string

const (
	KindStream          StreamKind = "stream"
	KindSubject         StreamKind = "subject"
	KindBehaviorSubject StreamKind = "behaviorSubject"
	KindReplaySubject   StreamKind = "replaySubject"
)

// Source is the read side shared by cold streams and subjects. Operators
// and combinators accept any Source.
type Source[T any] interface {
	Name() string
	Kind() StreamKind
	// Iterator starts a fresh pull iterator over the source. For a cold
	// stream this re-invokes the producer; for a subject it attaches a
	// new reader to the shared buffer.
	Iterator(ctx context.Context) Iterator[T]
}

// Emitter is the push side handed to a stream producer. Send blocks until
// the subscriber has consumed the value (producer backpressure) and
// fails once the subscription is gone: with an error satisfying
// errors.Is(err, ErrStreamClosed), or errors.Is(err, ErrCancelled) when
// the teardown happened while Send was blocked. Producers should return
// when Send fails.
type Emitter[T any] interface {
	Send(v T) error
}

type emitter[T any] struct {
	ctx context.Context
	buf *buffer[T]
}

func (e *emitter[T]) Send(v T) error {
	select {
	case <-e.ctx.Done():
		return ErrStreamClosed
	default:
	}
	if err := e.buf.write(e.ctx, v, NextStamp()); err != nil {
		return err
	}
	return nil
}

// Stream is a cold source: a description of a producer. Each subscription
// (or iterator) re-invokes the producer, so state never leaks between
// subscribers and the producer terminates with its subscription.
//
// Example:
//
//	ticks := streamix.NewStream("ticks", func(ctx context.Context, emit streamix.Emitter[int]) error {
//	    for i := 0; ; i++ {
//	        select {
//	        case <-ctx.Done():
//	            return nil
//	        case <-time.After(time.Second):
//	            if err := emit.Send(i); err != nil {
//	                return err
//	            }
//	        }
//	    }
//	})
type Stream[T any] struct {
	name      string
	kind      StreamKind
	iterate   func(ctx context.Context) Iterator[T]
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewStream creates a cold stream from a producer callback. The producer
// runs once per subscription on its own goroutine; ctx is canceled when
// the subscriber goes away, which is the abort signal that unwinds the
// producer's deferred cleanup. Returning nil completes the stream,
// returning any other error fails it. ErrStreamClosed and context
// cancellation count as clean shutdown, not failure.
func NewStream[T any](name string, producer func(ctx context.Context, emit Emitter[T]) error) *Stream[T] {
	s := &Stream[T]{name: name, kind: KindStream}
	s.iterate = func(ctx context.Context) Iterator[T] {
		buf := newBuffer[T](bufferPlain, 0)
		it := newBufferIterator(buf)
		pctx, cancel := context.WithCancel(ctx)
		it.release = func() {
			cancel()
			buf.close()
		}
		go func() {
			err := producer(pctx, &emitter[T]{ctx: pctx, buf: buf})
			if err != nil && !isCancellation(err) {
				buf.fail(newError(KindSource, err))
				return
			}
			buf.complete()
		}()
		return it
	}
	return s
}

// newDerivedStream builds a stream around a raw iterator factory. All
// operator composition bottoms out here.
func newDerivedStream[T any](name string, kind StreamKind, iterate func(ctx context.Context) Iterator[T]) *Stream[T] {
	return &Stream[T]{name: name, kind: kind, iterate: iterate}
}

// Name returns the diagnostic name of the stream.
func (s *Stream[T]) Name() string { return s.name }

// Kind returns the stream flavor.
func (s *Stream[T]) Kind() StreamKind { return s.kind }

// WithScheduler pins the scheduler used for subscription startup and
// returns the stream for chaining. Defaults to the process-wide one.
func (s *Stream[T]) WithScheduler(sched *Scheduler) *Stream[T] {
	s.scheduler = sched
	return s
}

// WithLogger sets the logger used for swallowed callback panics and
// returns the stream for chaining.
func (s *Stream[T]) WithLogger(logger *slog.Logger) *Stream[T] {
	s.logger = logger
	return s
}

func (s *Stream[T]) sched() *Scheduler {
	if s.scheduler != nil {
		return s.scheduler
	}
	return defaultScheduler
}

// Iterator implements Source.
func (s *Stream[T]) Iterator(ctx context.Context) Iterator[T] {
	return s.iterate(ctx)
}

// Subscribe attaches a receiver and starts the pipeline. Delivery is
// sequential per receiver; the subscription terminalizes on complete,
// error, or Unsubscribe, whichever comes first.
func (s *Stream[T]) Subscribe(r Receiver[T]) *Subscription {
	return subscribe[T](s, s.sched(), s.logger, r)
}

// SubscribeFunc is the bare-callback form of Subscribe.
func (s *Stream[T]) SubscribeFunc(next func(v T)) *Subscription {
	return s.Subscribe(Receiver[T]{Next: next})
}

// subscribe wires an iterator, a pump goroutine and a subscription
// together. The pump starts at the scheduler's next tick, so subscribers
// to an already-terminal subject observe the terminal one tick later,
// never synchronously inside Subscribe.
func subscribe[T any](src Source[T], sched *Scheduler, logger *slog.Logger, r Receiver[T]) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(logger)
	it := src.Iterator(ctx)
	sub.stop = func() {
		cancel()
		it.Stop()
	}
	sched.Enqueue(func() {
		go pump(ctx, it, r, sub)
	})
	return sub
}

// All bridges the stream into a range-over-func sequence, driving a
// single iterator underneath:
//
//	for v, err := range stream.All(ctx) {
//	    if err != nil { ... }
//	}
//
// Breaking out of the loop stops the iterator and cancels the producer.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return iterate[T](s, ctx)
}

func iterate[T any](src Source[T], ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it := src.Iterator(ctx)
		defer it.Stop()
		for {
			v, ok, err := it.Next(ctx)
			if err != nil {
				if !isCancellation(err) {
					var zero T
					yield(zero, err)
				}
				return
			}
			if !ok {
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// First resolves with the next value a fresh subscriber would observe.
// It returns ErrEmpty when the source completes without emitting.
func (s *Stream[T]) First(ctx context.Context) (T, error) {
	return first[T](s, ctx)
}

func first[T any](src Source[T], ctx context.Context) (T, error) {
	it := src.Iterator(ctx)
	defer it.Stop()
	v, ok, err := it.Next(ctx)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, ErrEmpty
	}
	return v, nil
}

// Any erases the element type, re-emitting every value as any. FromAny
// and the tracer consume this form.
func (s *Stream[T]) Any() *Stream[any] {
	return newDerivedStream(s.name, s.kind, func(ctx context.Context) Iterator[any] {
		src := s.iterate(ctx)
		return &pullIterator[T, any]{
			source: src,
			next: func(ctx context.Context) (any, bool, error) {
				v, ok, err := src.Next(ctx)
				if !ok || err != nil {
					return nil, ok, err
				}
				return v, true, nil
			},
		}
	})
}

// anyStreamer is how FromAny recognizes a Stream of any element type.
type anyStreamer interface {
	Any() *Stream[any]
}

// FromAny normalizes an arbitrary input into a stream: streams and
// subjects pass through (type-erased), []any slices and chan any
// channels are drained, a func(ctx) (any, error) resolves once like a
// future, and anything else is emitted as a single value. Slices and
// channels of other element types are not drained; they are emitted as
// a single value.
func FromAny(x any) *Stream[any] {
	switch v := x.(type) {
	case anyStreamer:
		return v.Any()
	case []any:
		return FromSlice(v)
	case <-chan any:
		return FromChannel(v)
	case chan any:
		return FromChannel(v)
	case func(ctx context.Context) (any, error):
		return FromFunc(v)
	default:
		return Of[any](x)
	}
}
