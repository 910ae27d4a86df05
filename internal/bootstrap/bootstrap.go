// Package bootstrap wires configuration into the scheduler's runtime
// components. cmd/worker and cmd/server share it.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/social-scheduler/internal/config"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
	"github.com/ignite/social-scheduler/internal/proxy"
	"github.com/ignite/social-scheduler/internal/publisher"
	"github.com/ignite/social-scheduler/internal/queue"
	"github.com/ignite/social-scheduler/internal/repository/postgres"
	"github.com/ignite/social-scheduler/internal/service/campaign"
	"github.com/ignite/social-scheduler/internal/storage"
	"github.com/ignite/social-scheduler/internal/worker"
)

// App holds the assembled runtime.
type App struct {
	Config        *config.Config
	DB            *sql.DB
	Redis         *redis.Client
	Registry      *publisher.Registry
	PublishWorker *worker.PublishWorker
	Scheduler     *worker.CampaignScheduler
	Dispatcher    queue.Dispatcher

	memory *queue.MemoryDispatcher
	broker *queue.Broker
}

// New connects to PostgreSQL and, when configured, Redis, then assembles
// the runtime.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if r := cfg.Publishing.RedactSecretsInLogs; r != nil {
		logger.SetRedactSecrets(*r)
	}

	if cfg.Database.URL == "" {
		return nil, errors.New("database url is required (DATABASE_URL)")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("Connected to database")

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// Locks fall back to advisory locks and the proxy breaker stays off.
			log.Printf("Redis unavailable at %s, continuing without it: %v", cfg.Redis.Addr, err)
			rdb.Close()
			rdb = nil
		} else {
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
	}

	app, err := Assemble(ctx, cfg, db, rdb)
	if err != nil {
		db.Close()
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}
	return app, nil
}

// Assemble builds every component over existing connections. rdb may be nil.
func Assemble(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	app := &App{Config: cfg, DB: db, Redis: rdb}
	pub := cfg.Publishing

	var objects storage.ObjectReader
	if cfg.Storage.AWSRegion != "" {
		s3store, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:          cfg.Storage.AWSRegion,
			Profile:         cfg.Storage.GetAWSProfile(),
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretKey,
			Endpoint:        cfg.Storage.Endpoint,
			MaxBytes:        cfg.Storage.MaxMediaBytes(),
		})
		if err != nil {
			log.Printf("S3 media disabled: %v", err)
		} else {
			objects = s3store
		}
	}
	media := publisher.NewMediaLoader(objects, pub.DownloadMaxRetries)

	app.Registry = publisher.NewDefaultRegistry(publisher.Options{
		GraphBaseURL:       pub.GraphBaseURL,
		YouTubeUploadURL:   pub.YouTubeUploadURL,
		TikTokBaseURL:      pub.TikTokBaseURL,
		TikTokPrivacyLevel: pub.TikTokPrivacyLevel,
		InstagramPoll:      pub.InstagramPoll(),
		InstagramPollTries: pub.InstagramPollAttempts,
		TikTokPoll:         pub.TikTokPoll(),
		TikTokPollTries:    pub.TikTokPollAttempts,
		DownloadMaxRetries: pub.DownloadMaxRetries,
	}, media)

	var breaker *proxy.RedisBreaker
	if rdb != nil {
		breaker = proxy.NewRedisBreaker(rdb, cfg.Proxy.StopThreshold, cfg.Proxy.FailureWindow())
	}
	proxies := proxy.NewService(postgres.NewProxyRepo(db), breaker, pub.Timeout(), pub.UseDirectFallback())
	orchestrator := publisher.NewOrchestrator(app.Registry, proxies)

	campaigns := postgres.NewCampaignRepo(db)
	content := postgres.NewContentRepo(db)
	publishService := campaign.NewPublishService(content, postgres.NewContentResolver(db), orchestrator)
	app.PublishWorker = worker.NewPublishWorker(publishService, pub.TaskTimeout())

	switch cfg.Queue.Driver {
	case "amqp":
		broker, err := queue.Dial(cfg.Queue.URL, cfg.Queue.Name)
		if err != nil {
			return nil, err
		}
		app.broker = broker
		app.Dispatcher = broker.Dispatcher()
		log.Printf("Publishing tasks to RabbitMQ queue %s", cfg.Queue.Name)
	case "memory", "":
		app.memory = queue.NewMemoryDispatcher(app.PublishWorker.Handle, cfg.Queue.Concurrency, cfg.Queue.Backlog)
		app.Dispatcher = app.memory
		log.Printf("Executing tasks in process (concurrency %d, backlog %d)", cfg.Queue.Concurrency, cfg.Queue.Backlog)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}

	scheduler := campaign.NewScheduler(campaigns, content, app.Dispatcher, cfg.Scheduler.StuckThreshold())
	app.Scheduler = worker.NewCampaignScheduler(scheduler, db)
	app.Scheduler.SetRedisClient(rdb)
	app.Scheduler.SetPollInterval(cfg.Scheduler.PollInterval())
	app.Scheduler.SetLockTTL(cfg.Scheduler.LockTTL())
	app.Scheduler.SetBatchSize(cfg.Scheduler.CampaignsPerTick)

	return app, nil
}

// ConsumeTasks runs the broker consumer until ctx ends. With the memory
// driver tasks already execute in process and it just waits.
func (a *App) ConsumeTasks(ctx context.Context) error {
	if a.broker == nil {
		<-ctx.Done()
		return nil
	}
	err := a.broker.Consume(ctx, queue.NewConsumer(a.PublishWorker.Handle, a.Config.Queue.Concurrency))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the scheduler, drains in-process tasks and closes connections.
func (a *App) Close(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.memory != nil {
		if err := a.memory.Close(ctx); err != nil {
			log.Printf("Publish tasks cancelled at shutdown: %v", err)
		}
	}
	if a.broker != nil {
		a.broker.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
