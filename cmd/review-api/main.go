package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/amazon-review-scraper/internal/api"
	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/config"
	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/database"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/jobs"
	"github.com/maltedev/amazon-review-scraper/internal/logging"
	"github.com/maltedev/amazon-review-scraper/internal/metrics"
	"github.com/maltedev/amazon-review-scraper/internal/queue"
	"github.com/maltedev/amazon-review-scraper/internal/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	notifiers := events.Multi{events.NewLogNotifier(logger)}

	var (
		store  jobs.Store
		outbox api.OutboxCounter
	)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)

		// Redis latency must not slow the scrape, so events go through a
		// bounded queue first.
		q := events.NewQueue(cfg.Server.EventBuffer)
		publisher := events.NewStreamPublisher(rdb, cfg.Redis.Stream, "review-api", logger)
		go pump(q, publisher)
		defer func() {
			q.Close()
			m.AddDropped(q.Dropped())
		}()
		notifiers = append(notifiers, q)
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:         cfg.Database.DSN(),
			MaxConns:    cfg.Database.MaxConns,
			MaxConnLife: time.Hour,
			MaxConnIdle: 30 * time.Minute,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}

		outboxRepo := database.NewOutboxRepository(db)
		store = database.NewReviewRepository(db, database.DefaultStream)
		outbox = outboxRepo

		if rdb != nil {
			relay := database.NewRelay(outboxRepo, rdb, logger, database.RelayConfig{
				PollInterval: 5 * time.Second,
				BatchSize:    100,
				Source:       "review-api",
			})
			go func() {
				if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("relay failed", "error", err)
				}
			}()
		} else {
			logger.Warn("redis disabled, outbox events stay pending")
		}
	}

	driver, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      orDefault(cfg.Browser.UserAgent, browser.DefaultOptions().UserAgent),
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
		ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
	}, logger)
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		os.Exit(1)
	}

	manager := jobs.NewManager(jobs.Config{
		Queue:  queue.NewInMemoryQueue(cfg.Server.QueueSize),
		Store:  store,
		Logger: logger,
	})

	svc, err := scraper.NewService(scraper.Config{
		Driver:          driver,
		Domain:          cfg.Scraper.Domain,
		Credentials:     credentials.NewEnvStore(),
		Signals:         manager.Signals(),
		Delays:          cfg.Delays,
		Notifier:        append(events.Multi{manager}, notifiers...),
		Metrics:         m,
		MaxResults:      cfg.Scraper.MaxResults,
		MaxLoginRetries: cfg.Scraper.MaxLoginRetries,
		OutputDir:       cfg.Scraper.OutputDir,
		CacheSize:       cfg.Scraper.SearchCacheSize,
		CacheTTL:        cfg.Scraper.SearchCacheTTL,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to create scraper", "error", err)
		_ = driver.Quit()
		os.Exit(1)
	}
	defer svc.Close()

	go manager.StartWorker(ctx, svc)

	handlers := api.NewHandlers(manager, svc, outbox, logger)
	router := api.NewRouter(handlers, api.RouterOptions{Metrics: m.Handler()})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		svc.Cancel()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr, "domain", cfg.Scraper.Domain)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// pump forwards queued events until the queue is closed.
func pump(q *events.Queue, n events.Notifier) {
	for e := range q.Events() {
		n.Notify(e)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
