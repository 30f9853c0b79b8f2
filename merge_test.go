package streamix

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func TestSwitchMap_Sequential(t *testing.T) {
	src := NewSubject[int]()
	rec := newRecorder[int]()
	sub := Pipe[int, int](src.AsStream(), SwitchMap(func(v int) Source[int] {
		return Of(v*10, v*10+1)
	})).Subscribe(rec.receiver())
	defer sub.Unsubscribe()

	// Each inner completes before the next source value arrives, so
	// nothing is cancelled and everything is mirrored in order.
	src.Next(1)
	time.Sleep(30 * time.Millisecond)
	src.Next(2)
	time.Sleep(30 * time.Millisecond)
	src.Complete()

	rec.wait(t)
	assertInts(t, rec.snapshot(), []int{10, 11, 20, 21})
	if !rec.completed {
		t.Error("expected complete once source and inners were done")
	}
}

func TestSwitchMap_CancelsPreviousInner(t *testing.T) {
	src := NewSubject[int]()
	var cancelled atomic.Int32

	inner := func(v int) Source[int] {
		return NewStream("inner", func(ctx context.Context, emit Emitter[int]) error {
			if err := emit.Send(v * 10); err != nil {
				return err
			}
			<-ctx.Done()
			cancelled.Add(1)
			return nil
		})
	}

	rec := newRecorder[int]()
	sub := Pipe[int, int](src.AsStream(), SwitchMap(inner)).Subscribe(rec.receiver())
	defer sub.Unsubscribe()

	src.Next(1)
	time.Sleep(30 * time.Millisecond)
	src.Next(2)
	time.Sleep(30 * time.Millisecond)

	assertInts(t, rec.snapshot(), []int{10, 20})
	if n := cancelled.Load(); n != 1 {
		t.Errorf("expected the first inner cancelled, got %d cancellations", n)
	}
}

func TestSwitchMap_CompletesWhenSourceAndInnerDone(t *testing.T) {
	out := Pipe[int, int](
		Of(1),
		SwitchMap(func(v int) Source[int] { return Of(v, v+1) }),
	)
	assertInts(t, collect[int](t, out), []int{1, 2})
}

func TestSwitchMap_InnerErrorTerminates(t *testing.T) {
	boom := errors.New("boom")
	out := Pipe[int, int](
		Of(1),
		SwitchMap(func(v int) Source[int] {
			return NewStream("failing", func(ctx context.Context, emit Emitter[int]) error {
				return boom
			})
		}),
	)
	_, err := collectErr[int](t, out)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestMergeMap_AllInnerValuesArrive(t *testing.T) {
	out := Pipe[int, int](
		FromSlice([]int{1, 2, 3}),
		MergeMap(func(v int) Source[int] {
			return Of(v*10, v*10+1)
		}, 0),
	)
	got := collect[int](t, out)
	sort.Ints(got)
	assertInts(t, got, []int{10, 11, 20, 21, 30, 31})
}

func TestMergeMap_ConcurrencyLimitHoldsSource(t *testing.T) {
	var active, maxActive atomic.Int32
	inner := func(v int) Source[int] {
		return NewStream("inner", func(ctx context.Context, emit Emitter[int]) error {
			if n := active.Add(1); n > maxActive.Load() {
				maxActive.Store(n)
			}
			defer active.Add(-1)
			time.Sleep(20 * time.Millisecond)
			return emit.Send(v)
		})
	}

	out := Pipe[int, int](FromSlice([]int{1, 2, 3, 4}), MergeMap(inner, 2))
	got := collect[int](t, out)
	sort.Ints(got)
	assertInts(t, got, []int{1, 2, 3, 4})
	if maxActive.Load() > 2 {
		t.Errorf("concurrency limit exceeded: %d inners ran at once", maxActive.Load())
	}
}

func TestConcatMap_PreservesSourceOrder(t *testing.T) {
	// Later inners are faster; order must still follow the source.
	inner := func(v int) Source[int] {
		return NewStream("inner", func(ctx context.Context, emit Emitter[int]) error {
			time.Sleep(time.Duration(4-v) * 10 * time.Millisecond)
			return emit.Send(v)
		})
	}
	out := Pipe[int, int](FromSlice([]int{1, 2, 3}), ConcatMap(inner))
	assertInts(t, collect[int](t, out), []int{1, 2, 3})
}

func TestMergeMap_CallbackPanicTerminates(t *testing.T) {
	out := Pipe[int, int](
		Of(1),
		MergeMap(func(v int) Source[int] { panic("no stream for you") }, 0),
	)
	_, err := collectErr[int](t, out)
	if err == nil || KindOf(err) != KindOperator {
		t.Fatalf("expected operator error, got %v", err)
	}
}

func TestExpand_DepthFirst(t *testing.T) {
	// 1 expands to 2 and 4; 2 expands to 3. Depth-first visits a full
	// branch before its sibling.
	children := map[int][]int{1: {2, 4}, 2: {3}}
	out := Pipe(
		Of(1),
		Expand(func(v int) Source[int] {
			return FromSlice(children[v])
		}, ExpandOptions{}),
	)
	assertInts(t, collect[int](t, out), []int{1, 2, 3, 4})
}

func TestExpand_BreadthFirst(t *testing.T) {
	children := map[int][]int{1: {2, 4}, 2: {3}}
	out := Pipe(
		Of(1),
		Expand(func(v int) Source[int] {
			return FromSlice(children[v])
		}, ExpandOptions{Traversal: TraversalBreadth}),
	)
	assertInts(t, collect[int](t, out), []int{1, 2, 4, 3})
}

func TestExpand_MaxDepth(t *testing.T) {
	out := Pipe(
		Of(1),
		Expand(func(v int) Source[int] {
			return Of(v + 1)
		}, ExpandOptions{MaxDepth: 2}),
	)
	assertInts(t, collect[int](t, out), []int{1, 2, 3})
}

func TestExpand_CallbackPanicAfterYielded(t *testing.T) {
	out := Pipe(
		Of(1),
		Expand(func(v int) Source[int] {
			if v >= 2 {
				panic("expansion failed")
			}
			return Of(2)
		}, ExpandOptions{}),
	)
	got, err := collectErr[int](t, out)
	assertInts(t, got, []int{1, 2})
	if err == nil || KindOf(err) != KindOperator {
		t.Fatalf("expected operator error after yielded values, got %v", err)
	}
}
