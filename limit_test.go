package streamix

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTake(t *testing.T) {
	out := Pipe(FromSlice([]int{1, 2, 3, 4, 5}), Take[int](3))
	assertInts(t, collect[int](t, out), []int{1, 2, 3})
}

func TestTake_CancelsUpstreamEagerly(t *testing.T) {
	cleaned := make(chan struct{})
	src := NewStream("infinite", func(ctx context.Context, emit Emitter[int]) error {
		defer close(cleaned)
		for i := 0; ; i++ {
			if err := emit.Send(i); err != nil {
				return err
			}
		}
	})
	out := Pipe[int, int](src, Take[int](2))
	assertInts(t, collect[int](t, out), []int{0, 1})

	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("take did not cancel the upstream after the last value")
	}
}

func TestTake_Zero(t *testing.T) {
	out := Pipe(FromSlice([]int{1, 2}), Take[int](0))
	assertInts(t, collect[int](t, out), nil)
}

func TestTakeWhile_DropsTriggeringValue(t *testing.T) {
	out := Pipe(FromSlice([]int{1, 2, 3, 2, 1}), TakeWhile(func(v int) bool { return v < 3 }))
	assertInts(t, collect[int](t, out), []int{1, 2})
}

func TestSkip(t *testing.T) {
	out := Pipe(FromSlice([]int{1, 2, 3, 4}), Skip[int](2))
	assertInts(t, collect[int](t, out), []int{3, 4})
}

func TestSkipWhile(t *testing.T) {
	out := Pipe(FromSlice([]int{1, 2, 3, 1, 2}), SkipWhile(func(v int) bool { return v < 3 }))
	assertInts(t, collect[int](t, out), []int{3, 1, 2})
}

func TestTakeUntil_NotifierGates(t *testing.T) {
	src := NewSubject[int]()
	notifier := NewSubject[struct{}]()

	rec := newRecorder[int]()
	sub := Pipe[int, int](src.AsStream(), TakeUntil[int, struct{}](notifier)).Subscribe(rec.receiver())
	defer sub.Unsubscribe()

	src.Next(1)
	src.Next(2)
	time.Sleep(20 * time.Millisecond)
	notifier.Next(struct{}{})

	rec.wait(t)
	assertInts(t, rec.snapshot(), []int{1, 2})
	if !rec.completed {
		t.Error("expected complete once the notifier fired")
	}
}

func TestTakeUntil_NotifierCompletingIsNoop(t *testing.T) {
	notifier := Of[struct{}]() // completes without emitting
	out := Pipe(FromSlice([]int{1, 2, 3}), TakeUntil[int, struct{}](notifier))
	assertInts(t, collect[int](t, out), []int{1, 2, 3})
}

func TestTakeUntil_NotifierError(t *testing.T) {
	boom := errors.New("boom")
	notifier := NewStream("failing", func(ctx context.Context, emit Emitter[struct{}]) error {
		time.Sleep(30 * time.Millisecond)
		return boom
	})
	src := NewStream("slow", func(ctx context.Context, emit Emitter[int]) error {
		if err := emit.Send(1); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})

	out := Pipe[int, int](src, TakeUntil[int, struct{}](notifier))
	got, err := collectErr[int](t, out)
	assertInts(t, got, []int{1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if KindOf(err) != KindNotifier {
		t.Errorf("expected notifier kind, got %q", KindOf(err))
	}
}

func TestSkipUntil_OpensOnNotifier(t *testing.T) {
	src := NewSubject[int]()
	notifier := NewSubject[struct{}]()

	rec := newRecorder[int]()
	sub := Pipe[int, int](src.AsStream(), SkipUntil[int, struct{}](notifier)).Subscribe(rec.receiver())
	defer sub.Unsubscribe()

	src.Next(1)
	src.Next(2)
	time.Sleep(20 * time.Millisecond)
	notifier.Next(struct{}{})
	time.Sleep(20 * time.Millisecond)
	src.Next(3)
	src.Complete()

	rec.wait(t)
	assertInts(t, rec.snapshot(), []int{3})
}

func TestSkipUntil_NotifierCompletingDiscardsSource(t *testing.T) {
	notifier := Of[struct{}]() // completes empty
	out := Pipe(FromSlice([]int{1, 2, 3}), SkipUntil[int, struct{}](notifier))
	got := collect[int](t, out)
	if len(got) != 0 {
		t.Errorf("expected the whole source discarded, got %v", got)
	}
}

func TestDelayUntil_FlushesThenForwardsLive(t *testing.T) {
	src := NewSubject[int]()
	notifier := NewSubject[struct{}]()

	rec := newRecorder[int]()
	sub := Pipe[int, int](src.AsStream(), DelayUntil[int, struct{}](notifier)).Subscribe(rec.receiver())
	defer sub.Unsubscribe()

	src.Next(1)
	src.Next(2)
	time.Sleep(20 * time.Millisecond)
	notifier.Next(struct{}{})
	time.Sleep(20 * time.Millisecond)
	src.Next(3)
	src.Complete()

	rec.wait(t)
	assertInts(t, rec.snapshot(), []int{1, 2, 3})
}

func TestDelayUntil_NotifierCompletingDiscardsBuffer(t *testing.T) {
	notifier := Of[struct{}]()
	out := Pipe(FromSlice([]int{1, 2, 3}), DelayUntil[int, struct{}](notifier))
	got := collect[int](t, out)
	if len(got) != 0 {
		t.Errorf("expected buffered values discarded, got %v", got)
	}
}

func TestDelayUntil_SourceCompletesBeforeNotifier(t *testing.T) {
	notifier := NewStream("late", func(ctx context.Context, emit Emitter[struct{}]) error {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return nil
		}
		if err := emit.Send(struct{}{}); err != nil {
			return err
		}
		return nil
	})
	out := Pipe(FromSlice([]int{1, 2}), DelayUntil[int, struct{}](notifier))
	assertInts(t, collect[int](t, out), []int{1, 2})
}
