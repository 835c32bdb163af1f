package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream notifications are appended to
const DefaultStream = "stream:review_scraper_events"

// StreamClient is the subset of the Redis client the publisher needs (for testing)
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher appends every event to a Redis stream so other services can
// follow a scrape. Publishing failures are logged and never reach the scrape.
type StreamPublisher struct {
	client  StreamClient
	stream  string
	source  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewStreamPublisher creates a publisher writing to stream, or DefaultStream
// when stream is empty.
func NewStreamPublisher(client StreamClient, stream, source string, logger *slog.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamPublisher{
		client:  client,
		stream:  stream,
		source:  source,
		timeout: 2 * time.Second,
		logger:  logger.With("component", "stream_publisher"),
	}
}

func (p *StreamPublisher) Notify(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.Publish(ctx, e); err != nil {
		p.logger.Error("failed to publish event",
			"event_id", e.ID,
			"type", string(e.Type),
			"error", err)
	}
}

// Publish writes one event to the stream
func (p *StreamPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"id":        e.ID,
			"type":      string(e.Type),
			"timestamp": fmt.Sprintf("%d", e.Time.UnixNano()),
			"source":    p.source,
			"data":      string(data),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
