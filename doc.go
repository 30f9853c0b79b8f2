// Package streamix is a reactive streams runtime: it turns push-style
// event sources (timers, subjects, channels, websockets) into cold or
// hot asynchronous sequences and transforms them with composable
// operators.
//
// A [Stream] is cold: a description of a producer that runs once per
// subscription. A [Subject] (and its behavior/replay variants) is hot:
// producers push into a shared buffer and every subscriber reads at its
// own pace. Both sides meet in the pull-based [Iterator] protocol, which
// carries backpressure (a producer's send blocks until every reader has
// consumed the value) and cancellation (stopping an iterator unwinds the
// producer).
//
// Operators compose with [Pipe] and friends:
//
//	evens := streamix.Pipe2(
//	    streamix.FromSlice([]int{1, 2, 3}),
//	    streamix.Map(func(x int) int { return x * 2 }),
//	    streamix.Filter(func(x int) bool { return x != 4 }),
//	)
//	for v, err := range evens.All(ctx) {
//	    ...
//	}
//
// Concurrent emissions are ordered by emission stamps, monotonic
// integers assigned at the producer boundary; gating operators such as
// [TakeUntil] compare stamps to decide precedence.
package streamix
