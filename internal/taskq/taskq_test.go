package taskq

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueue_DrainsInOrder(t *testing.T) {
	q := New()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		q.Enqueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
}

func TestQueue_FlushWaitsForReentrantTasks(t *testing.T) {
	q := New()

	done := false
	q.Enqueue(func() {
		q.Enqueue(func() { done = true })
	})
	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !done {
		t.Fatal("Flush returned before a reentrantly enqueued task ran")
	}
}

func TestQueue_OnPanic(t *testing.T) {
	q := New()

	var recovered any
	var mu sync.Mutex
	q.OnPanic = func(v any) {
		mu.Lock()
		recovered = v
		mu.Unlock()
	}

	q.Enqueue(func() { panic("boom") })
	survived := make(chan struct{})
	q.Enqueue(func() { close(survived) })

	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	select {
	case <-survived:
	case <-time.After(time.Second):
		t.Fatal("queue died after panic")
	}
	mu.Lock()
	defer mu.Unlock()
	if recovered != "boom" {
		t.Errorf("expected recovered panic, got %v", recovered)
	}
}

func TestQueue_Len(t *testing.T) {
	q := New()
	release := make(chan struct{})
	q.Enqueue(func() { <-release })
	q.Enqueue(func() {})
	q.Enqueue(func() {})

	time.Sleep(10 * time.Millisecond)
	if n := q.Len(); n != 2 {
		t.Errorf("expected 2 queued tasks, got %d", n)
	}
	close(release)
	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
