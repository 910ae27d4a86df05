package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/distlock"
	"github.com/ignite/social-scheduler/internal/service/campaign"
)

// =============================================================================
// CAMPAIGN SCHEDULER WORKER
// =============================================================================
// Each tick lists running campaigns and evaluates them one at a time under a
// per-campaign distributed lock: completion check, next post, next repost.
// Due items are moved to 'scheduled' and handed to the dispatcher; the
// publish worker does the actual posting.

const (
	// DefaultSchedulerPollInterval is how often running campaigns are evaluated.
	DefaultSchedulerPollInterval = time.Minute

	// DefaultCampaignLockTTL bounds how long one worker may hold a campaign.
	DefaultCampaignLockTTL = 2 * time.Minute

	// DefaultCampaignsPerTick caps the campaigns evaluated in one pass.
	DefaultCampaignsPerTick = 500
)

// ErrSchedulerRunning is returned by Start on an already running scheduler.
var ErrSchedulerRunning = errors.New("scheduler already running")

// SchedulerStats is a snapshot of the scheduler's counters.
type SchedulerStats struct {
	WorkerID           string     `json:"worker_id"`
	Running            bool       `json:"running"`
	PollInterval       string     `json:"poll_interval"`
	Passes             int64      `json:"passes"`
	CampaignsEvaluated int64      `json:"campaigns_evaluated"`
	CampaignsSkipped   int64      `json:"campaigns_skipped_locked"`
	PostsDispatched    int64      `json:"posts_dispatched"`
	RepostsDispatched  int64      `json:"reposts_dispatched"`
	ItemsRecovered     int64      `json:"items_recovered"`
	Completions        int64      `json:"completions"`
	DispatchFailures   int64      `json:"dispatch_failures"`
	Errors             int64      `json:"errors"`
	LastPassAt         *time.Time `json:"last_pass_at,omitempty"`
}

// PassResult reports one scheduler pass.
type PassResult struct {
	Evaluated int                `json:"evaluated"`
	Skipped   int                `json:"skipped_locked"`
	Errors    int                `json:"errors"`
	Outcomes  []campaign.Outcome `json:"outcomes"`
}

// CampaignScheduler runs campaign.Scheduler on a ticker.
type CampaignScheduler struct {
	scheduler    *campaign.Scheduler
	db           *sql.DB
	redisClient  *redis.Client // optional; nil falls back to PG advisory locks
	workerID     string
	pollInterval time.Duration
	lockTTL      time.Duration
	batchSize    int

	// Stats
	passes             int64
	campaignsEvaluated int64
	campaignsSkipped   int64
	postsDispatched    int64
	repostsDispatched  int64
	itemsRecovered     int64
	completions        int64
	dispatchFailures   int64
	errors             int64
	lastPassAt         atomic.Value // time.Time

	// passMu keeps manual and ticker passes from overlapping in this process.
	passMu sync.Mutex

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewCampaignScheduler creates a scheduler worker. db is used for advisory
// locks when no Redis client is set and may be nil in single-process setups.
func NewCampaignScheduler(scheduler *campaign.Scheduler, db *sql.DB) *CampaignScheduler {
	return &CampaignScheduler{
		scheduler:    scheduler,
		db:           db,
		workerID:     fmt.Sprintf("scheduler-%s-%s", getHostname(), uuid.NewString()[:8]),
		pollInterval: DefaultSchedulerPollInterval,
		lockTTL:      DefaultCampaignLockTTL,
		batchSize:    DefaultCampaignsPerTick,
	}
}

// SetRedisClient sets the Redis client for distributed locking.
// If set, the scheduler uses Redis-based locks; otherwise it falls back
// to PostgreSQL advisory locks.
func (cs *CampaignScheduler) SetRedisClient(client *redis.Client) {
	cs.redisClient = client
}

// SetPollInterval changes the tick interval. Takes effect on the next Start.
func (cs *CampaignScheduler) SetPollInterval(d time.Duration) {
	if d > 0 {
		cs.pollInterval = d
	}
}

// SetLockTTL changes the per-campaign lock TTL.
func (cs *CampaignScheduler) SetLockTTL(d time.Duration) {
	if d > 0 {
		cs.lockTTL = d
	}
}

// SetBatchSize caps the campaigns evaluated per pass.
func (cs *CampaignScheduler) SetBatchSize(n int) {
	if n > 0 {
		cs.batchSize = n
	}
}

// WorkerID identifies this scheduler instance.
func (cs *CampaignScheduler) WorkerID() string { return cs.workerID }

// Start begins the scheduler polling loop
func (cs *CampaignScheduler) Start() error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return ErrSchedulerRunning
	}
	cs.running = true
	cs.ctx, cs.cancel = context.WithCancel(context.Background())
	cs.mu.Unlock()

	log.Printf("[CampaignScheduler] Starting %s with poll interval: %v", cs.workerID, cs.pollInterval)

	cs.wg.Add(1)
	go cs.schedulerLoop()
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight pass.
func (cs *CampaignScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cs.mu.Unlock()

	log.Printf("[CampaignScheduler] Stopping...")
	cs.cancel()
	cs.wg.Wait()
	log.Printf("[CampaignScheduler] Stopped. Evaluated: %d campaigns, Dispatched: %d posts, %d reposts",
		atomic.LoadInt64(&cs.campaignsEvaluated),
		atomic.LoadInt64(&cs.postsDispatched),
		atomic.LoadInt64(&cs.repostsDispatched))
}

// IsRunning reports whether the polling loop is active.
func (cs *CampaignScheduler) IsRunning() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.running
}

func (cs *CampaignScheduler) schedulerLoop() {
	defer cs.wg.Done()

	ticker := time.NewTicker(cs.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.ctx.Done():
			return
		case <-ticker.C:
			if _, err := cs.RunOnce(cs.ctx); err != nil && cs.ctx.Err() == nil {
				log.Printf("[CampaignScheduler] Pass failed: %v", err)
			}
		}
	}
}

// RunOnce evaluates every running campaign once. Per-campaign failures are
// counted and logged; only a failure to list campaigns is returned.
func (cs *CampaignScheduler) RunOnce(ctx context.Context) (PassResult, error) {
	cs.passMu.Lock()
	defer cs.passMu.Unlock()

	atomic.AddInt64(&cs.passes, 1)
	cs.lastPassAt.Store(time.Now().UTC())

	var result PassResult
	campaigns, err := cs.scheduler.RunningCampaigns(ctx, cs.batchSize)
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		return result, fmt.Errorf("list running campaigns: %w", err)
	}

	for i := range campaigns {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		out, acquired, err := cs.processCampaign(ctx, &campaigns[i])
		switch {
		case err != nil:
			result.Errors++
			atomic.AddInt64(&cs.errors, 1)
			log.Printf("[CampaignScheduler] Campaign %s: %v", campaigns[i].ID, err)
			continue
		case !acquired:
			result.Skipped++
			atomic.AddInt64(&cs.campaignsSkipped, 1)
			continue
		}
		result.Evaluated++
		atomic.AddInt64(&cs.campaignsEvaluated, 1)
		result.Outcomes = append(result.Outcomes, out)
		cs.record(out)
	}
	return result, nil
}

func (cs *CampaignScheduler) processCampaign(ctx context.Context, c *domain.Campaign) (campaign.Outcome, bool, error) {
	lock := distlock.NewLock(cs.redisClient, cs.db, fmt.Sprintf("campaign:%s", c.ID), cs.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return campaign.Outcome{CampaignID: c.ID}, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		log.Printf("[CampaignScheduler] Campaign %s already being processed by another worker", c.ID)
		return campaign.Outcome{CampaignID: c.ID}, false, nil
	}
	defer lock.Release(context.Background())

	stop := cs.keepLock(ctx, lock)
	defer stop()

	// Another worker may have posted between listing and locking.
	fresh, err := cs.scheduler.Campaign(ctx, c.ID)
	if err != nil {
		return campaign.Outcome{CampaignID: c.ID}, true, fmt.Errorf("reload campaign: %w", err)
	}

	out, err := cs.scheduler.ProcessCampaign(ctx, fresh)
	return out, true, err
}

// extendableLock is a lock whose TTL can be renewed while held.
type extendableLock interface {
	Key() string
	Extend(ctx context.Context, ttl time.Duration) error
}

// keepLock renews an expiring lock every half TTL until the returned stop
// func is called. Locks without a TTL are left alone.
func (cs *CampaignScheduler) keepLock(ctx context.Context, lock distlock.DistLock) (stop func()) {
	ext, ok := lock.(extendableLock)
	if !ok {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		every := cs.lockTTL / 2
		if every <= 0 {
			every = cs.lockTTL
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ext.Extend(ctx, cs.lockTTL); err != nil {
					if ctx.Err() == nil {
						log.Printf("[CampaignScheduler] Lost lock %s: %v", ext.Key(), err)
					}
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (cs *CampaignScheduler) record(out campaign.Outcome) {
	if out.PostItemID != "" {
		atomic.AddInt64(&cs.postsDispatched, 1)
	}
	if out.RepostItemID != "" {
		atomic.AddInt64(&cs.repostsDispatched, 1)
	}
	if out.Recovered {
		atomic.AddInt64(&cs.itemsRecovered, 1)
	}
	if out.Completed {
		atomic.AddInt64(&cs.completions, 1)
		log.Printf("[CampaignScheduler] Campaign %s completed (published=%d failed=%d skipped=%d)",
			out.CampaignID, out.Counts.Published, out.Counts.Failed, out.Counts.Skipped)
	}
	atomic.AddInt64(&cs.dispatchFailures, int64(out.DispatchFailures))
}

// GetStats returns a snapshot of the scheduler counters.
func (cs *CampaignScheduler) GetStats() SchedulerStats {
	s := SchedulerStats{
		WorkerID:           cs.workerID,
		Running:            cs.IsRunning(),
		PollInterval:       cs.pollInterval.String(),
		Passes:             atomic.LoadInt64(&cs.passes),
		CampaignsEvaluated: atomic.LoadInt64(&cs.campaignsEvaluated),
		CampaignsSkipped:   atomic.LoadInt64(&cs.campaignsSkipped),
		PostsDispatched:    atomic.LoadInt64(&cs.postsDispatched),
		RepostsDispatched:  atomic.LoadInt64(&cs.repostsDispatched),
		ItemsRecovered:     atomic.LoadInt64(&cs.itemsRecovered),
		Completions:        atomic.LoadInt64(&cs.completions),
		DispatchFailures:   atomic.LoadInt64(&cs.dispatchFailures),
		Errors:             atomic.LoadInt64(&cs.errors),
	}
	if t, ok := cs.lastPassAt.Load().(time.Time); ok {
		s.LastPassAt = &t
	}
	return s
}

func getHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "social-worker"
	}
	return h
}
