package streamix

import "context"

// Iterator is the pull side of a stream: the contract every operator
// consumes and produces. Next blocks until the next emission is available
// and returns it, or (zero, false, nil) when the sequence completed, or a
// non-nil error when it failed. After done or error, further Next calls
// return the same terminal.
//
// Stop cancels the iterator: it releases the upstream producer and any
// owned inner iterators. Stop is idempotent and safe to call concurrently
// with Next. A stopped iterator reports done; cancellation is not an
// error.
//
// Iterators may additionally implement the advisory capabilities below
// (TryNexter, PushAware, LastStamp). Wrappers forward them to the
// innermost source so synchronous drains and push notifications skip the
// blocking path, but every pipeline remains correct when only Next is
// used.
type Iterator[T any] interface {
	Next(ctx context.Context) (value T, ok bool, err error)
	Stop()
}

// TryNexter is the synchronous drain hook. TryNext returns a buffered
// value without blocking: ok reports whether a value was taken, done
// reports that the sequence reached its terminal instead. (false, false)
// means nothing is ready right now.
type TryNexter[T any] interface {
	TryNext() (value T, ok bool, done bool)
}

// PushAware lets a consumer register a wake-up callback invoked whenever
// the producer makes a value ready. Poll loops built on TryNext use it
// instead of spinning.
type PushAware interface {
	SetOnPush(fn func())
}

// tryNext drains it synchronously when it supports the capability.
func tryNext[T any](it Iterator[T]) (T, bool, bool) {
	if tn, ok := it.(TryNexter[T]); ok {
		return tn.TryNext()
	}
	var zero T
	return zero, false, false
}

// setOnPush registers fn on it when it supports the capability and
// reports whether it did.
func setOnPush(it any, fn func()) bool {
	if pa, ok := it.(PushAware); ok {
		pa.SetOnPush(fn)
		return true
	}
	return false
}

// pullIterator adapts a next function into an Iterator while forwarding
// the push and stamp capabilities of the wrapped source. It is the shape
// of every 1:1 pull operator (map, filter, scan, take, skip, throttle).
type pullIterator[T, R any] struct {
	source Iterator[T]
	next   func(ctx context.Context) (R, bool, error)
	try    func() (R, bool, bool) // nil when the operator cannot drain synchronously
	stop   func()
}

func (p *pullIterator[T, R]) Next(ctx context.Context) (R, bool, error) {
	return p.next(ctx)
}

func (p *pullIterator[T, R]) Stop() {
	if p.stop != nil {
		p.stop()
		return
	}
	p.source.Stop()
}

func (p *pullIterator[T, R]) TryNext() (R, bool, bool) {
	if p.try != nil {
		return p.try()
	}
	var zero R
	return zero, false, false
}

func (p *pullIterator[T, R]) SetOnPush(fn func()) {
	setOnPush(p.source, fn)
}

func (p *pullIterator[T, R]) LastStamp() uint64 {
	return iteratorStamp(p.source)
}
