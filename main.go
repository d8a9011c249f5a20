package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-sync/internal/backend"
	"media-sync/internal/cache"
	"media-sync/internal/config"
	"media-sync/internal/database"
	"media-sync/internal/events"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/queue"
	"media-sync/internal/reconciler"
	"media-sync/internal/scheduler"
	"media-sync/internal/status"
	"media-sync/internal/transform"
)

func main() {
	startTime := time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	logging.Info("Database ready in %v", time.Since(dbStart).Round(time.Millisecond))

	if err := transform.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using fallback image pipeline: %v", err)
	}
	defer transform.ShutdownVips()

	feed := events.NewFeed(cfg.EventFeedSize)
	taskQueue := queue.New(cfg.MaxParallel)
	defer taskQueue.Close()

	registry := backend.NewRegistry()
	for _, account := range cfg.Accounts {
		client, err := registry.Client(account)
		if err != nil {
			logging.Fatal("Account %s: %v", account.ID, err)
		}
		if err := client.Validate(ctx); err != nil {
			logging.Warn("Account %s failed validation, will retry on next sweep: %v", account.ID, err)
		}
	}

	populator := cache.NewPopulator(cache.Options{
		Queue:          taskQueue,
		CacheRoot:      cfg.CacheDir,
		ScratchRoot:    cfg.ScratchDir,
		ThumbnailWidth: cfg.ThumbnailWidth,
		PreviewWidth:   cfg.PreviewWidth,
		VideoMaxWidth:  cfg.VideoMaxWidth,
	})
	rec := reconciler.New(db, taskQueue, feed, populator)

	sched := scheduler.New(scheduler.Options{
		Database:           db,
		Feed:               feed,
		Clients:            registry,
		Rec:                rec,
		Populator:          populator,
		Accounts:           cfg.Accounts,
		BaseInterval:       cfg.SweepInterval,
		MaxIntervalFactor:  cfg.MaxIntervalFactor,
		StalenessThreshold: cfg.StalenessThreshold,
		SeedFolderCount:    cfg.SeedFolderCount,
	})
	if err := sched.WatchLocalAccounts(ctx); err != nil {
		logging.Warn("Filesystem watcher disabled: %v", err)
	}
	go sched.Run(ctx)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateDBMetrics()
			}
		}
	}()

	server := status.NewServer(db, taskQueue, feed, sched, cfg.Accounts)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logging.Info("Received %s, shutting down", sig)
		cancel()
	}()

	logging.Info("media-sync started in %v", time.Since(startTime).Round(time.Millisecond))
	if err := server.Run(ctx, cfg.StatusPort); err != nil {
		logging.Fatal("Status server error: %v", err)
	}
	logging.Info("Shutdown complete")
}
