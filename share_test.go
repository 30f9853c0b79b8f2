package streamix

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestShareReplay_UpstreamConnectsOnce(t *testing.T) {
	var runs, stopped atomic.Int32
	src := NewStream("upstream", func(ctx context.Context, emit Emitter[int]) error {
		runs.Add(1)
		for i := 1; i <= 3; i++ {
			if err := emit.Send(i); err != nil {
				return err
			}
		}
		<-ctx.Done()
		stopped.Add(1)
		return nil
	})

	shared := ShareReplay[int](src, 2)

	a, b := newRecorder[int](), newRecorder[int]()
	subA := shared.Subscribe(a.receiver())
	time.Sleep(50 * time.Millisecond) // let the upstream emit 1..3
	subB := shared.Subscribe(b.receiver())
	time.Sleep(50 * time.Millisecond)

	if n := runs.Load(); n != 1 {
		t.Fatalf("upstream must connect exactly once, connected %d times", n)
	}
	assertInts(t, a.snapshot(), []int{1, 2, 3})
	// The late subscriber replays the window.
	assertInts(t, b.snapshot(), []int{2, 3})

	subA.Unsubscribe()
	if n := stopped.Load(); n != 0 {
		t.Fatal("upstream released while a subscriber remained")
	}
	subB.Unsubscribe()

	deadline := time.After(time.Second)
	for stopped.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("upstream not released after the last unsubscribe")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestShareReplay_TerminalSticky(t *testing.T) {
	var runs atomic.Int32
	src := NewStream("finite", func(ctx context.Context, emit Emitter[int]) error {
		runs.Add(1)
		for i := 1; i <= 3; i++ {
			if err := emit.Send(i); err != nil {
				return err
			}
		}
		return nil
	})
	shared := ShareReplay[int](src, 2)

	first := newRecorder[int]()
	shared.Subscribe(first.receiver())
	first.wait(t)

	// The upstream completed; a late subscriber sees the buffered
	// window and the sticky terminal without reconnecting.
	late := newRecorder[int]()
	shared.Subscribe(late.receiver())
	late.wait(t)

	assertInts(t, late.snapshot(), []int{2, 3})
	if !late.completed {
		t.Error("expected the sticky complete")
	}
	if n := runs.Load(); n != 1 {
		t.Errorf("terminal shareReplay must not reconnect, connected %d times", n)
	}
}

func TestShareReplay_ReconnectsAfterDisconnect(t *testing.T) {
	var runs atomic.Int32
	src := NewStream("upstream", func(ctx context.Context, emit Emitter[int]) error {
		runs.Add(1)
		if err := emit.Send(int(runs.Load())); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	shared := ShareReplay[int](src, 1)

	a := newRecorder[int]()
	subA := shared.Subscribe(a.receiver())
	time.Sleep(30 * time.Millisecond)
	subA.Unsubscribe()
	time.Sleep(30 * time.Millisecond)

	b := newRecorder[int]()
	subB := shared.Subscribe(b.receiver())
	defer subB.Unsubscribe()
	time.Sleep(30 * time.Millisecond)

	if n := runs.Load(); n != 2 {
		t.Errorf("expected a fresh connection after full disconnect, got %d runs", n)
	}
	assertInts(t, b.snapshot(), []int{2})
}

func TestFromRegistration_RefCountedAttach(t *testing.T) {
	var registered, unregistered atomic.Int32
	var push func(int)

	src := FromRegistration("adapter", func(r Receiver[int]) *Subscription {
		registered.Add(1)
		push = r.Next
		return NewSubscription(func() {
			unregistered.Add(1)
		})
	})

	a, b := newRecorder[int](), newRecorder[int]()
	subA := src.Subscribe(a.receiver())
	subB := src.Subscribe(b.receiver())
	time.Sleep(30 * time.Millisecond)

	if n := registered.Load(); n != 1 {
		t.Fatalf("register must run once for the first subscriber, ran %d times", n)
	}

	push(7)
	time.Sleep(30 * time.Millisecond)
	assertInts(t, a.snapshot(), []int{7})
	assertInts(t, b.snapshot(), []int{7})

	subA.Unsubscribe()
	if n := unregistered.Load(); n != 0 {
		t.Fatal("upstream detached while a subscriber remained")
	}
	subB.Unsubscribe()
	time.Sleep(30 * time.Millisecond)
	if n := unregistered.Load(); n != 1 {
		t.Errorf("upstream must detach after the last unsubscribe, detached %d times", n)
	}
}
