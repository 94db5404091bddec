package evnet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed indicates the worker pool is shutting down and no longer
// accepts tasks.
var ErrPoolClosed = errors.New("worker pool is closed")

// DefaultPoolSize is the number of workers used when none is configured.
const DefaultPoolSize = 4

// TaskFunc is a zero-argument unit of deferred work. It is created by the
// submitter, queued by the pool, and invoked exactly once by exactly one
// worker.
type TaskFunc func() (any, error)

// taskResult carries a task's outcome to its Result handle.
type taskResult struct {
	value any
	err   error
}

// Result is the handle returned by Submit. It yields the eventual value or
// the propagated failure of the task. A Result may be waited on at most once.
type Result struct {
	ch chan taskResult
}

// Wait blocks until the task has run and returns its outcome.
func (r *Result) Wait() (any, error) {
	out := <-r.ch
	return out.value, out.err
}

// WaitContext blocks until the task has run or ctx is done.
func (r *Result) WaitContext(ctx context.Context) (any, error) {
	select {
	case out := <-r.ch:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// task pairs a TaskFunc with its Result handle.
type task struct {
	fn  TaskFunc
	res *Result
}

// run invokes the task and completes its Result. A panic inside fn is
// recovered and surfaced as the task's error.
func (t *task) run() {
	defer func() {
		if rec := recover(); rec != nil {
			t.res.ch <- taskResult{err: fmt.Errorf("task panic: %v", rec)}
		}
	}()

	v, err := t.fn()
	t.res.ch <- taskResult{value: v, err: err}
}

// WorkerPool executes submitted tasks on a fixed set of worker goroutines
// pulling from a shared queue. Workers block on a condition variable guarding
// "queue non-empty or stopping", dequeue one task at a time, and release the
// queue lock before executing it so slow tasks never block enqueueing.
type WorkerPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    *ring[*task]
	stopping bool
	size     int
	eg       errgroup.Group
}

// NewWorkerPool creates a pool of size workers and starts them immediately.
// A size <= 0 falls back to DefaultPoolSize.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &WorkerPool{
		queue: newRing[*task](16),
		size:  size,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		p.eg.Go(p.worker)
	}

	return p
}

// Submit enqueues fn for asynchronous execution and returns a Result handle
// for its outcome. It fails with ErrPoolClosed once shutdown has begun; the
// caller must not assume the task ran.
func (p *WorkerPool) Submit(fn TaskFunc) (*Result, error) {
	if fn == nil {
		return nil, errors.New("nil task")
	}

	res := &Result{ch: make(chan taskResult, 1)}

	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.queue.enqueue(&task{fn: fn, res: res})
	p.mu.Unlock()

	p.cond.Signal()

	return res, nil
}

// Pending returns a snapshot of the queue depth. It is for observability
// only: the count can change the instant after it is read.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.length()
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.size
}

// Shutdown transitions the pool to stopping, wakes all idle workers, and
// waits for every worker to drain the queue and exit. Tasks accepted before
// shutdown all run to completion before it returns. A second call observes
// the stopping state and returns immediately.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	p.mu.Unlock()

	p.cond.Broadcast()

	_ = p.eg.Wait()
}

// worker is the loop run by each worker goroutine. It exits only when the
// pool is stopping and the queue is empty.
func (p *WorkerPool) worker() error {
	for {
		p.mu.Lock()
		for p.queue.length() == 0 && !p.stopping {
			p.cond.Wait()
		}
		t, ok := p.queue.dequeue()
		if !ok {
			// stopping and drained.
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		t.run()
	}
}
