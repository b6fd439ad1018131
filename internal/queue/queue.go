package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity and the caller
	// declined to wait.
	ErrQueueFull = errors.New("synthesis queue is full")

	// ErrQueueClosed is returned for operations on a closed queue.
	ErrQueueClosed = errors.New("synthesis queue is closed")
)

// Priority orders jobs. Interactive requests preempt queued batch work but
// never an in-flight job.
type Priority int

const (
	// PriorityBatch is for bulk or background synthesis.
	PriorityBatch Priority = iota

	// PriorityInteractive is for requests a user is waiting on.
	PriorityInteractive
)

// Job is one unit of serialized work. Run executes on the worker goroutine
// with the queue's context; its error is delivered to the submitter.
type Job struct {
	ID       string
	Priority Priority
	Run      func(ctx context.Context) error

	enqueued time.Time
	seq      uint64
	done     chan error
}

// Stats tracks queue counters.
type Stats struct {
	Enqueued    int64
	Completed   int64
	Rejected    int64
	Interactive int64
	CurrentSize int
	PeakSize    int
	LastWait    time.Duration
}

// Queue is a bounded priority queue drained by a single worker. Jobs of
// equal priority run in submission order.
type Queue struct {
	maxDepth int

	mu       sync.Mutex
	notEmpty *sync.Cond
	pending  jobHeap
	seq      uint64
	closed   bool
	stats    Stats
	workerWG sync.WaitGroup
}

// New creates a queue holding at most maxDepth pending jobs and starts its
// worker. ctx bounds every job's execution; cancelling it drains nothing,
// pending jobs fail with the context's error.
func New(ctx context.Context, maxDepth int) *Queue {
	if maxDepth < 1 {
		maxDepth = 1
	}
	q := &Queue{maxDepth: maxDepth}
	q.notEmpty = sync.NewCond(&q.mu)
	heap.Init(&q.pending)

	q.workerWG.Add(1)
	go q.work(ctx)
	return q
}

// Do submits fn and blocks until it has run or ctx is cancelled. When the
// queue is full Do fails fast with ErrQueueFull instead of waiting; the
// backpressure is visible to the caller, who decides whether to retry.
func (q *Queue) Do(ctx context.Context, priority Priority, fn func(context.Context) error) error {
	job := &Job{Priority: priority, Run: fn}
	if err := q.Submit(job); err != nil {
		return err
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		// The job may still run; its result is discarded.
		return ctx.Err()
	}
}

// Submit enqueues a job without waiting for it to run. The job's result is
// delivered on its done channel.
func (q *Queue) Submit(job *Job) error {
	if job.Run == nil {
		return errors.New("job has no Run function")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.pending.Len() >= q.maxDepth {
		q.stats.Rejected++
		return ErrQueueFull
	}

	q.seq++
	job.seq = q.seq
	job.enqueued = time.Now()
	job.done = make(chan error, 1)
	heap.Push(&q.pending, job)

	q.stats.Enqueued++
	if job.Priority == PriorityInteractive {
		q.stats.Interactive++
	}
	if size := q.pending.Len(); size > q.stats.PeakSize {
		q.stats.PeakSize = size
	}
	q.stats.CurrentSize = q.pending.Len()

	q.notEmpty.Signal()
	return nil
}

// Size returns the number of pending jobs.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := q.stats
	stats.CurrentSize = q.pending.Len()
	return stats
}

// Close stops accepting jobs, fails every pending job with ErrQueueClosed,
// and waits for an in-flight job to finish.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for q.pending.Len() > 0 {
		job := heap.Pop(&q.pending).(*Job)
		job.done <- ErrQueueClosed
	}
	q.notEmpty.Broadcast()
	q.mu.Unlock()

	q.workerWG.Wait()
	return nil
}

// work drains the queue one job at a time. Strictly sequential: the next
// job starts only after the previous one's Run has returned.
func (q *Queue) work(ctx context.Context) {
	defer q.workerWG.Done()

	for {
		q.mu.Lock()
		for q.pending.Len() == 0 && !q.closed {
			q.notEmpty.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		job := heap.Pop(&q.pending).(*Job)
		q.stats.CurrentSize = q.pending.Len()
		q.stats.LastWait = time.Since(job.enqueued)
		q.mu.Unlock()

		var err error
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = job.Run(ctx)
		}
		job.done <- err

		q.mu.Lock()
		q.stats.Completed++
		q.mu.Unlock()
	}
}

// jobHeap orders by priority, then submission order.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*Job))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
