package streamix

import (
	"context"
	"sync"
)

// connector ref-counts subscribers over a shared buffer: the first
// iterator attaches the upstream, the last one detaching releases it.
// After a clean disconnect the buffer is discarded so the next
// subscriber reconnects fresh; after a terminal the buffer is kept so
// late subscribers replay the retained window and the sticky terminal.
type connector[T any] struct {
	mu         sync.Mutex
	mode       bufferMode
	window     int
	refs       int
	buf        *buffer[T]
	disconnect func()
	connect    func(buf *buffer[T]) (disconnect func())
}

func (c *connector[T]) iterator(ctx context.Context) Iterator[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buf == nil {
		c.buf = newBuffer[T](c.mode, c.window)
	}
	buf := c.buf
	if buf.terminated() {
		return newBufferIterator(buf)
	}

	it := newBufferIterator(buf)
	c.refs++
	if c.refs == 1 {
		c.disconnect = c.connect(buf)
	}
	it.release = func() {
		c.mu.Lock()
		c.refs--
		if c.refs > 0 {
			c.mu.Unlock()
			return
		}
		d := c.disconnect
		c.disconnect = nil
		if c.buf == buf && !buf.terminated() {
			c.buf = nil
		}
		c.mu.Unlock()
		if d != nil {
			d()
		}
	}
	return it
}

// ShareReplay multicasts src through a replay buffer of the given
// window. The upstream iterator is created once, by the first
// subscriber, and stopped when the last subscriber leaves. While
// connected, every subscriber reads the shared sequence; a subscriber
// joining mid-flight first replays the window. After the source
// terminates, the terminal is sticky: late subscribers observe the
// buffered values and then the terminal without reconnecting.
func ShareReplay[T any](src Source[T], window int) *Stream[T] {
	c := &connector[T]{mode: bufferReplay, window: window}
	c.connect = func(buf *buffer[T]) func() {
		ctx, cancel := context.WithCancel(context.Background())
		it := src.Iterator(ctx)
		go func() {
			for {
				v, ok, err := it.Next(ctx)
				if err != nil {
					if !isCancellation(err) {
						buf.fail(err)
					}
					return
				}
				if !ok {
					buf.complete()
					return
				}
				if err := buf.write(ctx, v, NextStamp()); err != nil {
					return
				}
			}
		}()
		return func() {
			cancel()
			it.Stop()
		}
	}
	return newDerivedStream(pipeName(src.Name(), "shareReplay"), KindStream, c.iterator)
}

// NewSubscription builds a subscription around a teardown function, for
// producers that bridge external resources into FromRegistration.
func NewSubscription(stop func()) *Subscription {
	sub := newSubscription(nil)
	sub.stop = stop
	return sub
}

// FromRegistration adapts a push-style registration into a
// reference-counted stream: register is invoked with a receiver when the
// first subscriber attaches, and the subscription it returns is
// unsubscribed when the last subscriber leaves. DOM-style adapters and
// connection-backed sources plug in here.
func FromRegistration[T any](name string, register func(r Receiver[T]) *Subscription) *Stream[T] {
	c := &connector[T]{mode: bufferPlain}
	c.connect = func(buf *buffer[T]) func() {
		ctx, cancel := context.WithCancel(context.Background())
		sub := register(Receiver[T]{
			Next: func(v T) {
				// Blocking here is the backpressure that throttles the
				// upstream producer.
				_ = buf.write(ctx, v, NextStamp())
			},
			Complete: func() {
				buf.complete()
			},
			Error: func(err error) {
				buf.fail(newError(KindSource, err))
			},
		})
		return func() {
			cancel()
			sub.Unsubscribe()
		}
	}
	return newDerivedStream(name, KindStream, c.iterator)
}
