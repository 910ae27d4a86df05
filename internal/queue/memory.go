package queue

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
)

// MemoryDispatcher runs tasks on a bounded set of goroutines in this
// process. Up to backlog accepted tasks wait for a free slot; past that
// Dispatch returns ErrBusy without blocking the caller.
type MemoryDispatcher struct {
	handler Handler
	sem     *semaphore.Weighted
	limit   int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending int
	closed  bool
	wg      sync.WaitGroup
}

// NewMemoryDispatcher creates a dispatcher running at most concurrency tasks
// at once with at most backlog more waiting.
func NewMemoryDispatcher(handler Handler, concurrency, backlog int) *MemoryDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryDispatcher{
		handler: handler,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		limit:   concurrency + backlog,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dispatch accepts task for execution. It never waits for a slot.
func (d *MemoryDispatcher) Dispatch(ctx context.Context, task domain.PublishTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.pending >= d.limit {
		d.mu.Unlock()
		return ErrBusy
	}
	d.pending++
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(task)
	return nil
}

func (d *MemoryDispatcher) run(task domain.PublishTask) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		d.pending--
		d.mu.Unlock()
	}()

	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		// Shutdown while queued: the item stays scheduled for stuck recovery.
		logger.Warn("publish task dropped at shutdown",
			"task_id", task.ID, "content_item_id", task.ContentItemID)
		return
	}
	defer d.sem.Release(1)

	if err := d.handler(d.ctx, task); err != nil {
		logger.Error("publish task failed",
			"task_id", task.ID, "content_item_id", task.ContentItemID, "error", err.Error())
	}
}

// Pending reports accepted tasks that have not finished yet.
func (d *MemoryDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Close stops accepting tasks and waits for accepted ones. If ctx ends
// first, running tasks are cancelled, queued ones are dropped, and Close
// still waits for them to return.
func (d *MemoryDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
