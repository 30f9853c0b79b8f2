package streamix

import (
	"context"
	"iter"
	"log/slog"
)

// Subject is a hot multicast stream: producers push into a shared buffer
// and every subscriber pulls from its own reader head, each at its own
// pace. A subject lives until explicitly completed or errored; readers
// come and go without terminalizing it.
//
// Unlike a cold Stream, all subscribers observe the same sequence of
// commits, in commit order.
type Subject[T any] struct {
	name      string
	kind      StreamKind
	buf       *buffer[T]
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewSubject creates a plain subject: subscribers observe only values
// committed after they attach.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{name: "subject", kind: KindSubject, buf: newBuffer[T](bufferPlain, 0)}
}

// WithName sets the diagnostic name and returns the subject for chaining.
func (s *Subject[T]) WithName(name string) *Subject[T] {
	s.name = name
	return s
}

// WithScheduler pins the scheduler used for subscription startup.
func (s *Subject[T]) WithScheduler(sched *Scheduler) *Subject[T] {
	s.scheduler = sched
	return s
}

// WithLogger sets the logger used for swallowed callback panics.
func (s *Subject[T]) WithLogger(logger *slog.Logger) *Subject[T] {
	s.logger = logger
	return s
}

func (s *Subject[T]) sched() *Scheduler {
	if s.scheduler != nil {
		return s.scheduler
	}
	return defaultScheduler
}

// Name implements Source.
func (s *Subject[T]) Name() string { return s.name }

// Kind implements Source.
func (s *Subject[T]) Kind() StreamKind { return s.kind }

// Iterator implements Source: it attaches a fresh reader to the shared
// buffer. Stopping the iterator detaches the reader; the subject itself
// is unaffected.
func (s *Subject[T]) Iterator(ctx context.Context) Iterator[T] {
	return newBufferIterator(s.buf)
}

// Next commits v and blocks until every attached subscriber has pulled
// it; this is the backpressure that lets a slow pipeline throttle its
// producer. Values pushed after a terminal are dropped. The Value
// accessor reflects v before any receiver observes it.
func (s *Subject[T]) Next(v T) {
	// Write errors mean the subject was terminalized underneath the
	// producer; late pushes are swallowed.
	_ = s.buf.write(context.Background(), v, NextStamp())
}

// NextCtx is Next with a cancellation point for the backpressure wait.
func (s *Subject[T]) NextCtx(ctx context.Context, v T) error {
	return s.buf.write(ctx, v, NextStamp())
}

// Complete terminalizes the subject. Subscribers (current and future)
// observe complete; repeated terminals are swallowed.
func (s *Subject[T]) Complete() {
	s.buf.complete()
}

// Error terminalizes the subject with err.
func (s *Subject[T]) Error(err error) {
	s.buf.fail(newError(KindSource, err))
}

// Value returns the latest committed value, synchronously.
func (s *Subject[T]) Value() (T, bool) {
	return s.buf.value()
}

// Completed reports whether the subject has been completed or errored.
func (s *Subject[T]) Completed() bool {
	return s.buf.terminated()
}

// Subscribe attaches a receiver. A subscriber joining a terminal subject
// observes the terminal at the scheduler's next tick.
func (s *Subject[T]) Subscribe(r Receiver[T]) *Subscription {
	return subscribe[T](s, s.sched(), s.logger, r)
}

// SubscribeFunc is the bare-callback form of Subscribe.
func (s *Subject[T]) SubscribeFunc(next func(v T)) *Subscription {
	return s.Subscribe(Receiver[T]{Next: next})
}

// Pipe applies a chain of same-type operators, producing a cold stream
// reading from this subject.
func (s *Subject[T]) Pipe(ops ...Operator[T, T]) *Stream[T] {
	out := s.AsStream()
	for _, op := range ops {
		out = Pipe[T, T](out, op)
	}
	return out
}

// AsStream returns the subject's read side as a Stream value.
func (s *Subject[T]) AsStream() *Stream[T] {
	return newDerivedStream(s.name, s.kind, s.Iterator)
}

// All bridges the subject into a range-over-func sequence.
func (s *Subject[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return iterate[T](s, ctx)
}

// First resolves with the next value a new subscriber would receive.
func (s *Subject[T]) First(ctx context.Context) (T, error) {
	return first[T](s, ctx)
}

// Peek returns the value First would, without consuming it from any
// reader's point of view.
func (s *Subject[T]) Peek(ctx context.Context) (T, error) {
	id := s.buf.attachReader()
	defer s.buf.detachReader(id)
	v, ok, err := s.buf.peek(ctx, id)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, ErrEmpty
	}
	return v, nil
}

// Any erases the element type for FromAny.
func (s *Subject[T]) Any() *Stream[any] {
	return s.AsStream().Any()
}
