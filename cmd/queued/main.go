package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"github.com/spf13/pflag"

	"ticket-queue-backend/config"
	"ticket-queue-backend/internal/api"
	"ticket-queue-backend/internal/checkpoint"
	"ticket-queue-backend/internal/db"
	"ticket-queue-backend/internal/notification"
	"ticket-queue-backend/internal/queue"
	"ticket-queue-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "queued ", log.LstdFlags)
	log.SetOutput(os.Stdout)
	log.SetPrefix("queued ")

	configPath := pflag.StringP("config", "c", os.Getenv("CONFIG_PATH"), "path to the YAML configuration (env CONFIG_PATH)")
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("failed to load configuration from %s: %v", *configPath, err)
		}
		logger.Printf("configuration loaded successfully from %s", *configPath)
	} else {
		logger.Println("no configuration file given; using defaults")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := appStore.SeedCategories(ctx, cfg.QueueCategories()); err != nil {
		logger.Fatalf("failed to seed categories: %v", err)
	}

	// Event fan-out. The handlers run on the worker pool, never inside the
	// scheduler lock.
	responses := cache.New(cfg.Server.CacheTTL, time.Minute)
	events := notification.NewBroadcaster(64)
	handlers := []notification.Handler{
		notification.NewStateWriter(appStore),
		events,
		notification.HandlerFunc("response-cache", func(context.Context, queue.Event) error {
			responses.Flush()
			return nil
		}),
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		handlers = append(handlers, notification.NewPushNotifier(appStore, webpushOptions))
	} else {
		logger.Println("VAPID keys are not configured; web push is disabled")
	}

	if cfg.NATS.URL != "" {
		natsPublisher, err := notification.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logger.Fatalf("failed to connect to NATS: %v", err)
		}
		defer natsPublisher.Close()
		handlers = append(handlers, natsPublisher)
		logger.Printf("publishing events to NATS under %s.*", cfg.NATS.SubjectPrefix)
	}

	pool := notification.NewWorkerPool(notification.Options{
		Size:          cfg.WorkerPool.Size,
		QueueSize:     cfg.WorkerPool.QueueSize,
		MaxAttempts:   cfg.WorkerPool.MaxAttempts,
		RetryBackoff:  cfg.WorkerPool.RetryBackoff,
		MaxRetryDelay: cfg.WorkerPool.MaxRetryDelay,
		DrainTimeout:  cfg.WorkerPool.DrainTimeout,
	}, handlers...)
	poolCtx, stopPool := context.WithCancel(context.Background())
	pool.Start(poolCtx)

	// Restore the scheduler from the database.
	schedCfg := cfg.SchedulerConfig()
	schedCfg.Sink = pool
	sched, err := queue.Restore(ctx, appStore, schedCfg)
	if err != nil {
		logger.Fatalf("failed to restore queue state: %v", err)
	}
	stats := sched.Stats()
	logger.Printf("queue restored: %d waiting, %d at desks", stats.Waiting, stats.Called+stats.BeingServed)

	checkpointSvc := checkpoint.NewService(cfg.Checkpoint, sched, appStore)
	// Store whatever Restore repaired before taking traffic.
	if err := checkpointSvc.SaveOnce(ctx); err != nil {
		logger.Fatalf("failed to save restored queue state: %v", err)
	}
	go checkpointSvc.Run(ctx)

	// Initialize router
	handler := api.NewHandler(sched, appStore, webpushOptions, events)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		RequestIPHeader: cfg.Server.RequestIPHeader,
		RecentCalls:     cfg.Queue.RecentCalls,
		CacheStore:      responses,
		CacheTTL:        cfg.Server.CacheTTL,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	cancel()

	// The workers deliver what is still pending before they return; the
	// final checkpoint covers any database write they could not finish.
	stopPool()
	pool.Wait()
	if err := checkpointSvc.SaveOnce(shutdownCtx); err != nil {
		logger.Printf("final checkpoint failed: %v", err)
	}
	if lost := pool.Lost(); lost > 0 {
		logger.Printf("%d event deliveries were abandoned on shutdown", lost)
	}

	logger.Println("Server gracefully stopped")
}
