package streamix

import (
	"context"
	"fmt"
)

// Operator transforms a pull iterator over T into one over R. Operators
// are pure values: applying one allocates nothing until a subscription
// materializes the chain, and every subscription re-applies it, so
// operator state (counters, timers, buffers) never leaks between
// subscribers.
type Operator[T, R any] struct {
	name  string
	apply func(ctx context.Context, source Iterator[T]) Iterator[R]
}

// NewOperator wraps an iterator transform into an operator. The apply
// function owns the source iterator: it must propagate Stop to it and to
// any inner iterators it creates.
func NewOperator[T, R any](name string, apply func(ctx context.Context, source Iterator[T]) Iterator[R]) Operator[T, R] {
	return Operator[T, R]{name: name, apply: apply}
}

// Name returns the operator's diagnostic name.
func (op Operator[T, R]) Name() string { return op.name }

// Pipe applies one operator to a source, producing a cold stream.
// Composition is left to right: Pipe2(s, a, b) subscribes b(a(s)).
func Pipe[T, R any](src Source[T], op Operator[T, R]) *Stream[R] {
	return newDerivedStream(pipeName(src.Name(), op.name), KindStream, func(ctx context.Context) Iterator[R] {
		return op.apply(ctx, src.Iterator(ctx))
	})
}

// Pipe2 composes two operators over a source.
func Pipe2[A, B, C any](src Source[A], op1 Operator[A, B], op2 Operator[B, C]) *Stream[C] {
	return Pipe(Pipe(src, op1), op2)
}

// Pipe3 composes three operators over a source.
func Pipe3[A, B, C, D any](src Source[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D]) *Stream[D] {
	return Pipe(Pipe2(src, op1, op2), op3)
}

// Pipe4 composes four operators over a source.
func Pipe4[A, B, C, D, E any](src Source[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D], op4 Operator[D, E]) *Stream[E] {
	return Pipe(Pipe3(src, op1, op2, op3), op4)
}

// Pipe applies a chain of same-type operators. Type-changing chains use
// the free Pipe/Pipe2/... functions.
func (s *Stream[T]) Pipe(ops ...Operator[T, T]) *Stream[T] {
	out := s
	for _, op := range ops {
		out = Pipe[T, T](out, op)
	}
	return out
}

func pipeName(src, op string) string {
	return fmt.Sprintf("%s.%s", src, op)
}

// generatorIterator runs a producer goroutine feeding an internal buffer
// and returns its iterator. It is the shape of every operator that cannot
// be a synchronous pull wrapper: anything with timers, inner streams or
// multiple upstreams pumps here. Stopping the iterator cancels the
// producer's ctx; the producer is responsible for stopping the upstreams
// it owns.
func generatorIterator[R any](ctx context.Context, producer func(ctx context.Context, emit Emitter[R]) error) Iterator[R] {
	buf := newBuffer[R](bufferPlain, 0)
	it := newBufferIterator(buf)
	pctx, cancel := context.WithCancel(ctx)
	it.release = func() {
		cancel()
		buf.close()
	}
	go func() {
		err := producer(pctx, &emitter[R]{ctx: pctx, buf: buf})
		if err != nil && !isCancellation(err) {
			buf.fail(err)
			return
		}
		buf.complete()
	}()
	return it
}

// pulled is one result of pumping an iterator: a value with its stamp, a
// terminal error, or done.
type pulled[T any] struct {
	value T
	ok    bool
	err   error
	stamp uint64
}

// pumpIterator pulls src on a dedicated goroutine and forwards each
// result to the returned channel, so operators that juggle several
// upstreams can select over them. The channel closes after the terminal
// result is delivered. The pump stops when ctx is canceled; the caller
// still owns src.Stop.
func pumpIterator[T any](ctx context.Context, src Iterator[T]) <-chan pulled[T] {
	ch := make(chan pulled[T])
	go func() {
		defer close(ch)
		for {
			v, ok, err := src.Next(ctx)
			p := pulled[T]{value: v, ok: ok, err: err, stamp: iteratorStamp(src)}
			select {
			case ch <- p:
			case <-ctx.Done():
				return
			}
			if err != nil || !ok {
				return
			}
		}
	}()
	return ch
}

// sendAll forwards every value of src into emit until src terminates or
// the consumer goes away. It returns src's terminal error, if any.
func sendAll[T any](ctx context.Context, src Iterator[T], emit Emitter[T]) error {
	for {
		v, ok, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := emit.Send(v); err != nil {
			return err
		}
	}
}
