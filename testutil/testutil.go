// Package testutil provides testing helpers for streamix pipelines:
// recording receivers, collection helpers and terminal assertions.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/epikodelabs/streamix"
)

// Recorder is a receiver that records everything it observes: values in
// delivery order plus the terminal. It is safe for use as the receiver
// of exactly one subscription.
type Recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	err       error
	completed bool
	done      chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{done: make(chan struct{})}
}

// Receiver returns the receiver to pass to Subscribe.
func (r *Recorder[T]) Receiver() streamix.Receiver[T] {
	return streamix.Receiver[T]{
		Next: func(v T) {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
		},
		Complete: func() {
			r.mu.Lock()
			r.completed = true
			r.mu.Unlock()
			close(r.done)
		},
		Error: func(err error) {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			close(r.done)
		},
	}
}

// Values returns a snapshot of the recorded values.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Err returns the recorded terminal error, if any.
func (r *Recorder[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Completed reports whether Complete was observed.
func (r *Recorder[T]) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Wait blocks until the recorder observes its terminal or the timeout
// elapses.
func (r *Recorder[T]) Wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for terminal; %d values so far", timeout, len(r.Values()))
	}
}

// AssertValues fails the test unless the recorded values equal expected.
func (r *Recorder[T]) AssertValues(t *testing.T, expected []T) {
	t.Helper()
	got := r.Values()
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		t.Errorf("values mismatch:\nexpected: %v\ngot:      %v", expected, got)
	}
}

// AssertCompleted fails the test unless the recorder observed a clean
// complete.
func (r *Recorder[T]) AssertCompleted(t *testing.T) {
	t.Helper()
	if err := r.Err(); err != nil {
		t.Errorf("expected complete, got error: %v", err)
		return
	}
	if !r.Completed() {
		t.Errorf("expected complete, subscription still live")
	}
}

// AssertErrored fails the test unless the recorder observed a terminal
// error.
func (r *Recorder[T]) AssertErrored(t *testing.T) error {
	t.Helper()
	err := r.Err()
	if err == nil {
		t.Errorf("expected an error terminal, got completed=%v", r.Completed())
	}
	return err
}

// Collect drains src to completion and returns its values. It fails the
// test on a terminal error or when ctx expires first.
func Collect[T any](t *testing.T, ctx context.Context, src streamix.Source[T]) []T {
	t.Helper()
	var out []T
	for v, err := range allOf(ctx, src) {
		if err != nil {
			t.Fatalf("stream errored after %d values: %v", len(out), err)
		}
		out = append(out, v)
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("context expired while collecting: %v", err)
	}
	return out
}

// CollectErr drains src and returns its values plus the terminal error.
func CollectErr[T any](ctx context.Context, src streamix.Source[T]) ([]T, error) {
	var out []T
	for v, err := range allOf(ctx, src) {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func allOf[T any](ctx context.Context, src streamix.Source[T]) func(yield func(T, error) bool) {
	return func(yield func(T, error) bool) {
		it := src.Iterator(ctx)
		defer it.Stop()
		for {
			v, ok, err := it.Next(ctx)
			if err != nil {
				yield(v, err)
				return
			}
			if !ok {
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
