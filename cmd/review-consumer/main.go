package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/amazon-review-scraper/internal/config"
	"github.com/maltedev/amazon-review-scraper/internal/consumer"
	"github.com/maltedev/amazon-review-scraper/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
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

	c := consumer.New(rdb, consumer.Config{
		Stream: cfg.Consumer.Stream,
		Group:  cfg.Consumer.Group,
		Name:   cfg.Consumer.Name,
		APIURL: cfg.Consumer.APIURL,
		Logger: logger,
	})

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer failed", "error", err)
		os.Exit(1)
	}
	logger.Info("consumer stopped")
}
