package streamix

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// SwitchMap projects each source value to an inner stream and mirrors the
// most recent one: a new source value cancels the previous inner before
// subscribing to the next. The output completes once the source has
// completed and no inner is active; an error at either level
// terminalizes.
func SwitchMap[T, R any](f func(v T) Source[R]) Operator[T, R] {
	return NewOperator("switchMap", func(ctx context.Context, src Iterator[T]) Iterator[R] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[R]) error {
			defer src.Stop()

			type tagged struct {
				p   pulled[R]
				gen int
			}
			var (
				gen       int
				innerCh   chan tagged
				stopInner func()
			)
			defer func() {
				if stopInner != nil {
					stopInner()
				}
			}()

			innerCh = make(chan tagged)
			active := false
			sourceDone := false
			srcCh := pumpIterator(gctx, src)
			for {
				if sourceDone && !active {
					return nil
				}
				select {
				case <-gctx.Done():
					return nil
				case p, ok := <-srcCh:
					if !ok {
						srcCh = nil
						sourceDone = true
						continue
					}
					if p.err != nil {
						return p.err
					}
					if !p.ok {
						srcCh = nil
						sourceDone = true
						continue
					}
					inner, err := guarded(func() Source[R] { return f(p.value) })
					if err != nil {
						return err
					}
					if stopInner != nil {
						stopInner()
					}
					gen++
					myGen := gen
					ictx, cancel := context.WithCancel(gctx)
					iit := inner.Iterator(ictx)
					stopInner = func() {
						cancel()
						iit.Stop()
					}
					active = true
					go func() {
						for {
							v, ok, err := iit.Next(ictx)
							t := tagged{p: pulled[R]{value: v, ok: ok, err: err}, gen: myGen}
							select {
							case innerCh <- t:
							case <-ictx.Done():
								return
							}
							if err != nil || !ok {
								return
							}
						}
					}()
				case t := <-innerCh:
					if t.gen != gen {
						continue
					}
					if t.p.err != nil {
						if isCancellation(t.p.err) {
							active = false
							continue
						}
						return t.p.err
					}
					if !t.p.ok {
						active = false
						continue
					}
					if err := emit.Send(t.p.value); err != nil {
						return err
					}
				}
			}
		})
	})
}

// MergeMap projects each source value to an inner stream and multiplexes
// up to concurrency of them at once; further source values are held
// until a slot frees. Each inner forwards its values directly as it
// produces them, so values are committed in arrival order; they are not
// re-sorted by the inners' emission stamps. concurrency <= 0
// means unlimited. The output completes when the source is done and
// every inner has completed.
func MergeMap[T, R any](f func(v T) Source[R], concurrency int) Operator[T, R] {
	limit := int64(concurrency)
	if concurrency <= 0 {
		limit = math.MaxInt64
	}
	return NewOperator("mergeMap", func(ctx context.Context, src Iterator[T]) Iterator[R] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[R]) error {
			sem := semaphore.NewWeighted(limit)
			g, ictx := errgroup.WithContext(gctx)

			g.Go(func() error {
				defer src.Stop()
				for {
					v, ok, err := src.Next(ictx)
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
					inner, err := guarded(func() Source[R] { return f(v) })
					if err != nil {
						return err
					}
					// Holds the source while all slots are busy.
					if err := sem.Acquire(ictx, 1); err != nil {
						return err
					}
					g.Go(func() error {
						defer sem.Release(1)
						it := inner.Iterator(ictx)
						defer it.Stop()
						return sendAll(ictx, it, emit)
					})
				}
			})
			return g.Wait()
		})
	})
}

// ConcatMap is MergeMap with a single slot: inner streams run one at a
// time, in source order.
func ConcatMap[T, R any](f func(v T) Source[R]) Operator[T, R] {
	op := MergeMap(f, 1)
	op.name = "concatMap"
	return op
}

// Traversal selects the expansion order of Expand.
type Traversal string

const (
	TraversalDepth   Traversal = "depth"
	TraversalBreadth Traversal = "breadth"
)

// ExpandOptions tunes Expand. Zero MaxDepth means unbounded.
type ExpandOptions struct {
	Traversal Traversal
	MaxDepth  int
}

// Expand recursively projects each value to a child stream: every value
// is emitted, then its children are expanded, depth-first by default or
// breadth-first via options. MaxDepth bounds the recursion. A panic in f
// propagates after the values already yielded.
func Expand[T any](f func(v T) Source[T], opts ExpandOptions) Operator[T, T] {
	if opts.Traversal == "" {
		opts.Traversal = TraversalDepth
	}
	return NewOperator("expand", func(ctx context.Context, src Iterator[T]) Iterator[T] {
		return generatorIterator(ctx, func(gctx context.Context, emit Emitter[T]) error {
			defer src.Stop()

			type frame struct {
				value T
				depth int
			}

			// collect drains the child stream for v.
			collect := func(v T, depth int) ([]frame, error) {
				child, err := guarded(func() Source[T] { return f(v) })
				if err != nil {
					return nil, err
				}
				it := child.Iterator(gctx)
				defer it.Stop()
				var out []frame
				for {
					c, ok, err := it.Next(gctx)
					if err != nil {
						return out, err
					}
					if !ok {
						return out, nil
					}
					out = append(out, frame{value: c, depth: depth})
				}
			}

			expandFrom := func(root T) error {
				work := []frame{{value: root, depth: 0}}
				for len(work) > 0 {
					var cur frame
					if opts.Traversal == TraversalBreadth {
						cur = work[0]
						work = work[1:]
					} else {
						cur = work[len(work)-1]
						work = work[:len(work)-1]
					}
					if err := emit.Send(cur.value); err != nil {
						return err
					}
					if opts.MaxDepth > 0 && cur.depth >= opts.MaxDepth {
						continue
					}
					children, err := collect(cur.value, cur.depth+1)
					if err != nil {
						return err
					}
					if opts.Traversal == TraversalBreadth {
						work = append(work, children...)
					} else {
						// Reverse onto the stack so the first child is
						// expanded first.
						for i := len(children) - 1; i >= 0; i-- {
							work = append(work, children[i])
						}
					}
				}
				return nil
			}

			for {
				v, ok, err := src.Next(gctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := expandFrom(v); err != nil {
					return err
				}
			}
		})
	})
}
