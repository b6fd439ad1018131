package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoRunsJob(t *testing.T) {
	q := New(context.Background(), 4)
	defer q.Close()

	ran := false
	err := q.Do(context.Background(), PriorityBatch, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !ran {
		t.Error("job did not run")
	}
}

func TestDoPropagatesError(t *testing.T) {
	q := New(context.Background(), 4)
	defer q.Close()

	want := errors.New("synthesis failed")
	err := q.Do(context.Background(), PriorityBatch, func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Do() error = %v, want %v", err, want)
	}
}

func TestJobsRunSequentially(t *testing.T) {
	q := New(context.Background(), 16)
	defer q.Close()

	var running int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), PriorityBatch, func(context.Context) error {
				if n := atomic.AddInt32(&running, 1); n != 1 {
					t.Errorf("%d jobs running concurrently, want 1", n)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := q.Stats().Completed; got != 8 {
		t.Errorf("Completed = %d, want 8", got)
	}
}

func TestInteractiveJumpsAhead(t *testing.T) {
	q := New(context.Background(), 16)
	defer q.Close()

	// Block the worker so later submissions queue up behind it.
	release := make(chan struct{})
	blocker := &Job{Priority: PriorityBatch, Run: func(context.Context) error {
		<-release
		return nil
	}}
	if err := q.Submit(blocker); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	// The worker needs to pick the blocker up before the rest enqueue.
	for q.Size() > 0 {
		time.Sleep(time.Millisecond)
	}

	var order []string
	var mu sync.Mutex
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	batch1 := &Job{Priority: PriorityBatch, Run: record("batch1")}
	batch2 := &Job{Priority: PriorityBatch, Run: record("batch2")}
	urgent := &Job{Priority: PriorityInteractive, Run: record("urgent")}
	for _, job := range []*Job{batch1, batch2, urgent} {
		if err := q.Submit(job); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	close(release)
	for _, job := range []*Job{blocker, batch1, batch2, urgent} {
		if err := <-job.done; err != nil {
			t.Fatalf("job error = %v", err)
		}
	}

	want := []string{"urgent", "batch1", "batch2"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestBackpressure(t *testing.T) {
	q := New(context.Background(), 1)
	defer q.Close()

	release := make(chan struct{})
	blocker := &Job{Priority: PriorityBatch, Run: func(context.Context) error {
		<-release
		return nil
	}}
	if err := q.Submit(blocker); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	for q.Size() > 0 {
		time.Sleep(time.Millisecond)
	}

	// Fill the single pending slot, then the next submit must be rejected.
	waiting := &Job{Priority: PriorityBatch, Run: func(context.Context) error { return nil }}
	if err := q.Submit(waiting); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	overflow := &Job{Priority: PriorityBatch, Run: func(context.Context) error { return nil }}
	if err := q.Submit(overflow); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit() on full queue = %v, want ErrQueueFull", err)
	}
	if got := q.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}

	close(release)
	if err := <-waiting.done; err != nil {
		t.Fatalf("waiting job error = %v", err)
	}

	// Space freed up; a retry of the rejected work is accepted and runs.
	retry := &Job{Priority: PriorityBatch, Run: func(context.Context) error { return nil }}
	if err := q.Submit(retry); err != nil {
		t.Fatalf("Submit() after drain error = %v", err)
	}
	if err := <-retry.done; err != nil {
		t.Errorf("retry job error = %v", err)
	}
}

func TestCloseFailsPendingJobs(t *testing.T) {
	q := New(context.Background(), 8)

	release := make(chan struct{})
	blocker := &Job{Priority: PriorityBatch, Run: func(context.Context) error {
		<-release
		return nil
	}}
	if err := q.Submit(blocker); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	for q.Size() > 0 {
		time.Sleep(time.Millisecond)
	}

	pending := &Job{Priority: PriorityBatch, Run: func(context.Context) error { return nil }}
	if err := q.Submit(pending); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	closeDone := make(chan error, 1)
	go func() { closeDone <- q.Close() }()

	if err := <-pending.done; !errors.Is(err, ErrQueueClosed) {
		t.Errorf("pending job error = %v, want ErrQueueClosed", err)
	}
	close(release)
	if err := <-closeDone; err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if err := q.Submit(&Job{Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Submit() after Close = %v, want ErrQueueClosed", err)
	}
}

func TestDoRespectsContext(t *testing.T) {
	q := New(context.Background(), 8)
	defer q.Close()

	release := make(chan struct{})
	blocker := &Job{Priority: PriorityBatch, Run: func(context.Context) error {
		<-release
		return nil
	}}
	if err := q.Submit(blocker); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Do(ctx, PriorityBatch, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() with cancelled context = %v, want context.Canceled", err)
	}
	close(release)
}
