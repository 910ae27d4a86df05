package worker

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/service/campaign"
)

// DefaultPublishTimeout bounds one publish task. Instagram and TikTok status
// polls alone can take two and a half minutes.
const DefaultPublishTimeout = 10 * time.Minute

// PublishWorker executes publish tasks delivered by the queue.
type PublishWorker struct {
	service *campaign.PublishService
	timeout time.Duration

	handled   int64
	published int64
	failed    int64
	skipped   int64
	errors    int64
}

// PublishStats is a snapshot of publish worker counters.
type PublishStats struct {
	Handled   int64 `json:"handled"`
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
	Errors    int64 `json:"errors"`
}

// NewPublishWorker wraps a publish service. timeout <= 0 uses DefaultPublishTimeout.
func NewPublishWorker(service *campaign.PublishService, timeout time.Duration) *PublishWorker {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &PublishWorker{service: service, timeout: timeout}
}

// Handle matches queue.Handler.
func (w *PublishWorker) Handle(ctx context.Context, task domain.PublishTask) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	atomic.AddInt64(&w.handled, 1)
	status, err := w.service.Handle(ctx, task)
	if err != nil {
		atomic.AddInt64(&w.errors, 1)
		return err
	}

	switch status {
	case domain.ContentPublished:
		atomic.AddInt64(&w.published, 1)
	case domain.ContentFailed:
		atomic.AddInt64(&w.failed, 1)
	case domain.ContentSkipped:
		atomic.AddInt64(&w.skipped, 1)
	}
	log.Printf("[PublishWorker] %s task %s item %s -> %s in %v",
		task.Kind, task.ID, task.ContentItemID, status, time.Since(start).Round(time.Millisecond))
	return nil
}

// GetStats returns a snapshot of the worker counters.
func (w *PublishWorker) GetStats() PublishStats {
	return PublishStats{
		Handled:   atomic.LoadInt64(&w.handled),
		Published: atomic.LoadInt64(&w.published),
		Failed:    atomic.LoadInt64(&w.failed),
		Skipped:   atomic.LoadInt64(&w.skipped),
		Errors:    atomic.LoadInt64(&w.errors),
	}
}
