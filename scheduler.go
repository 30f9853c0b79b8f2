package streamix

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/epikodelabs/streamix/internal/taskq"
)

// Scheduler serializes work onto a single cooperative FIFO queue. The
// streams and subjects of this package enqueue only subscription
// startup; value delivery, terminal dispatch and timers run on their own
// goroutines and do not pass through the queue.
//
// All streams share a process-wide default scheduler. Pipelines that need
// isolation can run on their own instance; the ordering contracts hold
// either way because the only shared mutable state is the emission-stamp
// counter.
type Scheduler struct {
	queue  *taskq.Queue
	logger *slog.Logger
}

// NewScheduler returns a scheduler with an empty queue.
func NewScheduler() *Scheduler {
	s := &Scheduler{queue: taskq.New()}
	s.queue.OnPanic = func(v any) {
		s.log().Error("scheduler task panicked", slog.Any("panic", v))
	}
	return s
}

// WithLogger sets the logger used for swallowed task panics and returns
// the scheduler for chaining.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Enqueue runs task at the next queue boundary, after every task enqueued
// before it. Reentrant calls append to the tail. A task that panics does
// not abort the queue; the panic is logged and draining continues.
func (s *Scheduler) Enqueue(task func()) {
	s.queue.Enqueue(task)
}

// Flush blocks until all currently queued tasks, including tasks they
// themselves enqueue, have run. Tests use it as the quiescence point.
func (s *Scheduler) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

var defaultScheduler = NewScheduler()

// DefaultScheduler returns the process-wide scheduler.
func DefaultScheduler() *Scheduler { return defaultScheduler }

// stampCounter is the process-wide monotonic emission-stamp source. Stamps
// order events across concurrent producers: gating operators compare
// stamps to decide precedence, and equal stamps are simultaneous.
var stampCounter atomic.Uint64

// NextStamp returns a fresh emission stamp, strictly greater than every
// stamp returned before it.
func NextStamp() uint64 {
	return stampCounter.Add(1)
}

type stampKey struct{}

// WithStamp returns a context carrying stamp. Work derived from an
// emission propagates the emission's stamp this way.
func WithStamp(ctx context.Context, stamp uint64) context.Context {
	return context.WithValue(ctx, stampKey{}, stamp)
}

// StampFromContext reports the emission stamp carried by ctx, if any.
func StampFromContext(ctx context.Context) (uint64, bool) {
	s, ok := ctx.Value(stampKey{}).(uint64)
	return s, ok
}

// stampOrNext resolves the effective stamp for an emission: the stamp
// carried by ctx, or a fresh counter value when absent.
func stampOrNext(ctx context.Context) uint64 {
	if s, ok := StampFromContext(ctx); ok {
		return s
	}
	return NextStamp()
}

// iteratorStamp reads the stamp sidecar of an iterator: the stamp attached
// to the emission most recently returned by Next. Zero when the iterator
// carries no stamps or has not emitted yet.
func iteratorStamp(it any) uint64 {
	if s, ok := it.(interface{ LastStamp() uint64 }); ok {
		return s.LastStamp()
	}
	return 0
}
