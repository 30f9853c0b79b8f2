package streamix

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Receiver is the callback form of a consumer. Every field is optional.
//
// The delivery pump guarantees at most one in-flight Next per receiver:
// the next call only begins after the previous one returned. Exactly one
// of Complete or Error fires per subscription, and nothing after it.
type Receiver[T any] struct {
	Next     func(v T)
	Complete func()
	Error    func(err error)
}

// Subscription is the handle returned by Subscribe. It terminalizes a
// pipeline exactly once: through the source completing, erroring, or an
// explicit Unsubscribe, whichever happens first.
type Subscription struct {
	mu           sync.Mutex
	unsubscribed bool
	terminated   bool
	onUnsub      []func()
	stop         func()
	done         chan struct{}
	logger       *slog.Logger
}

func newSubscription(logger *slog.Logger) *Subscription {
	return &Subscription{done: make(chan struct{}), logger: logger}
}

// Unsubscribe tears the pipeline down: the upstream iterator is stopped,
// owned resources are released, and the receiver's Complete fires unless
// a terminal was already delivered. Repeated calls are no-ops.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.unsubscribed {
		s.mu.Unlock()
		return
	}
	s.unsubscribed = true
	stop := s.stop
	hooks := s.onUnsub
	s.onUnsub = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, fn := range hooks {
		s.runHook(fn)
	}
}

// Unsubscribed reports whether Unsubscribe has been called.
func (s *Subscription) Unsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// OnUnsubscribe registers fn to run when the subscription is
// unsubscribed. Panics inside fn are swallowed so cleanup always
// finishes. If the subscription is already unsubscribed, fn runs
// immediately.
func (s *Subscription) OnUnsubscribe(fn func()) {
	s.mu.Lock()
	if s.unsubscribed {
		s.mu.Unlock()
		s.runHook(fn)
		return
	}
	s.onUnsub = append(s.onUnsub, fn)
	s.mu.Unlock()
}

// Done is closed once the receiver has observed its terminal.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Subscription) runHook(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			s.log().Warn("unsubscribe hook panicked", slog.Any("panic", v))
		}
	}()
	fn()
}

// claimTerminal marks the subscription terminated and reports whether the
// caller won the claim.
func (s *Subscription) claimTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	s.terminated = true
	return true
}

// pump drives one subscription: it pulls the composed iterator and
// delivers sequentially to the receiver until a terminal or unsubscribe.
func pump[T any](ctx context.Context, it Iterator[T], r Receiver[T], sub *Subscription) {
	deliverComplete := func() {
		if !sub.claimTerminal() {
			return
		}
		defer close(sub.done)
		if r.Complete == nil {
			return
		}
		defer func() {
			if v := recover(); v != nil {
				sub.log().Warn("receiver complete panicked", slog.Any("panic", v))
			}
		}()
		r.Complete()
	}
	deliverError := func(err error) {
		if !sub.claimTerminal() {
			return
		}
		defer close(sub.done)
		if r.Error == nil {
			sub.log().Error("unhandled stream error", slog.Any("error", err))
			return
		}
		defer func() {
			if v := recover(); v != nil {
				sub.log().Warn("receiver error callback panicked", slog.Any("panic", v))
			}
		}()
		r.Error(err)
	}

	defer it.Stop()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			if isCancellation(err) {
				deliverComplete()
			} else {
				deliverError(err)
			}
			return
		}
		if !ok {
			deliverComplete()
			return
		}
		if r.Next != nil {
			if err := deliverNext(r, v); err != nil {
				deliverError(err)
				return
			}
		}
	}
}

// deliverNext invokes the receiver's Next, converting a panic into the
// subscription's terminal error.
func deliverNext[T any](r Receiver[T], v T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("receiver next panicked: %v", p)
		}
	}()
	r.Next(v)
	return nil
}
