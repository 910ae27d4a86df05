package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/social-scheduler/internal/bootstrap"
	"github.com/ignite/social-scheduler/internal/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml (optional)")
	flag.Parse()

	log.Println("Starting social publishing worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	if cfg.Scheduler.Enabled {
		if err := app.Scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	} else {
		log.Println("Campaign scheduler disabled; executing publish tasks only")
	}

	consumerDone := make(chan error, 1)
	go func() { consumerDone <- app.ConsumeTasks(ctx) }()

	log.Println("Worker running...")

	// Wait for interrupt signal or a dead consumer
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-consumerDone:
		log.Printf("Task consumer stopped: %v", err)
	}

	log.Println("Shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	app.Close(shutdownCtx)

	s := app.Scheduler.GetStats()
	p := app.PublishWorker.GetStats()
	log.Printf("Worker stopped. Passes: %d, posts: %d, reposts: %d, published: %d, failed: %d",
		s.Passes, s.PostsDispatched, s.RepostsDispatched, p.Published, p.Failed)
}
