package streamix

import (
	"context"
	"sort"
)

// CombineLatest emits a snapshot of the latest value from every input
// whenever any of them emits, once each input has emitted at least once.
// It completes as soon as any input completes, and fails on the first
// input error. Inputs emitting at the same instant are committed in
// ascending stamp order.
func CombineLatest[T any](sources ...Source[T]) *Stream[[]T] {
	return NewStream("combineLatest", func(ctx context.Context, emit Emitter[[]T]) error {
		if len(sources) == 0 {
			return nil
		}

		type indexed struct {
			p     pulled[T]
			index int
		}
		ch := make(chan indexed)
		iters := make([]Iterator[T], len(sources))
		for i, src := range sources {
			iters[i] = src.Iterator(ctx)
			defer iters[i].Stop()
		}
		for i, it := range iters {
			go func(i int, it Iterator[T]) {
				for {
					v, ok, err := it.Next(ctx)
					p := pulled[T]{value: v, ok: ok, err: err, stamp: iteratorStamp(it)}
					select {
					case ch <- indexed{p: p, index: i}:
					case <-ctx.Done():
						return
					}
					if err != nil || !ok {
						return
					}
				}
			}(i, it)
		}

		latest := make([]T, len(sources))
		seen := make([]bool, len(sources))
		seenCount := 0
		for {
			var batch []indexed
			select {
			case first := <-ch:
				batch = append(batch, first)
				// Drain whatever arrived at the same instant and commit
				// in stamp order.
				for {
					select {
					case more := <-ch:
						batch = append(batch, more)
						continue
					default:
					}
					break
				}
			case <-ctx.Done():
				return nil
			}
			sort.SliceStable(batch, func(i, j int) bool {
				return batch[i].p.stamp < batch[j].p.stamp
			})
			for _, in := range batch {
				if in.p.err != nil {
					return in.p.err
				}
				if !in.p.ok {
					return nil
				}
				latest[in.index] = in.p.value
				if !seen[in.index] {
					seen[in.index] = true
					seenCount++
				}
				if seenCount < len(sources) {
					continue
				}
				snapshot := make([]T, len(latest))
				copy(snapshot, latest)
				if err := emit.Send(snapshot); err != nil {
					return err
				}
			}
		}
	})
}

// Zip emits a tuple of the next unconsumed value from every input, one
// tuple per round, and completes when any input completes.
func Zip[T any](sources ...Source[T]) *Stream[[]T] {
	return NewStream("zip", func(ctx context.Context, emit Emitter[[]T]) error {
		if len(sources) == 0 {
			return nil
		}
		iters := make([]Iterator[T], len(sources))
		for i, src := range sources {
			iters[i] = src.Iterator(ctx)
			defer iters[i].Stop()
		}
		for {
			tuple := make([]T, len(iters))
			for i, it := range iters {
				v, ok, err := it.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				tuple[i] = v
			}
			if err := emit.Send(tuple); err != nil {
				return err
			}
		}
	})
}

// Concat subscribes to each source in turn: the nth starts only after
// the (n-1)th completed. The first error terminalizes the whole
// sequence.
func Concat[T any](sources ...Source[T]) *Stream[T] {
	return NewStream("concat", func(ctx context.Context, emit Emitter[T]) error {
		for _, src := range sources {
			it := src.Iterator(ctx)
			if err := sendAll(ctx, it, emit); err != nil {
				it.Stop()
				return err
			}
			it.Stop()
		}
		return nil
	})
}
