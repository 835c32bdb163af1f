// Package consumer reads review requests from a Redis stream and submits them
// as jobs to the review API.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream         = "stream:review_requests"
	DefaultGroup          = "review-consumer-group"
	EventReviewsRequested = "REVIEWS_REQUESTED"
)

// ErrRejected means the API refused the request. Retrying will not help.
var ErrRejected = errors.New("request rejected by review api")

// StreamClient is the subset of the Redis client the consumer needs
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Request is the payload of a REVIEWS_REQUESTED event.
type Request struct {
	ASIN     string `json:"asin"`
	MaxPages int    `json:"max_pages"`
	Keyword  string `json:"keyword,omitempty"`
}

type Config struct {
	Stream     string
	Group      string
	Name       string
	APIURL     string
	HTTPClient *http.Client
	Attempts   int
	RetryDelay time.Duration
	Block      time.Duration
	Logger     *slog.Logger
}

type Consumer struct {
	redis      StreamClient
	stream     string
	group      string
	name       string
	apiURL     string
	httpClient *http.Client
	attempts   int
	retryDelay time.Duration
	block      time.Duration
	logger     *slog.Logger
}

func New(client StreamClient, cfg Config) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Name == "" {
		cfg.Name = "consumer-1"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Consumer{
		redis:      client,
		stream:     cfg.Stream,
		group:      cfg.Group,
		name:       cfg.Name,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		httpClient: cfg.HTTPClient,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		block:      cfg.Block,
		logger:     cfg.Logger.With("component", "consumer"),
	}
}

// Run consumes the stream until ctx is done. Messages are acknowledged once
// submitted, skipped or rejected; transient failures stay pending.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.redis.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err(); err != nil &&
		!strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer", "stream", c.stream, "group", c.group)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    c.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			if err := sleep(ctx, time.Second); err != nil {
				return err
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				jobID, err := c.handle(ctx, msg)
				switch {
				case err == nil && jobID != "":
					c.logger.Info("job submitted", "message_id", msg.ID, "job_id", jobID)
				case err != nil && !errors.Is(err, ErrRejected):
					c.logger.Error("failed to process message", "message_id", msg.ID, "error", err)
					continue
				case err != nil:
					c.logger.Warn("dropping rejected request", "message_id", msg.ID, "error", err)
				}

				if err := c.redis.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
					c.logger.Error("failed to acknowledge message", "message_id", msg.ID, "error", err)
				}
			}
		}
	}
}

// handle submits one message and returns the created job id. Events of other
// types are skipped with an empty id.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) (string, error) {
	eventType, _ := msg.Values["event_type"].(string)
	if eventType != EventReviewsRequested {
		return "", nil
	}

	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return "", fmt.Errorf("%w: missing payload in event", ErrRejected)
	}
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return "", fmt.Errorf("%w: failed to parse payload: %v", ErrRejected, err)
	}
	if req.ASIN == "" {
		return "", fmt.Errorf("%w: missing ASIN in payload", ErrRejected)
	}

	return c.submit(ctx, req)
}

type jobResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func (c *Consumer) submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*c.retryDelay); err != nil {
				return "", err
			}
		}

		id, err := c.post(ctx, body)
		if err == nil || errors.Is(err, ErrRejected) {
			return id, err
		}
		lastErr = err
		c.logger.Warn("job submission failed", "asin", req.ASIN, "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", c.attempts, lastErr)
}

func (c *Consumer) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	var out jobResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return out.ID, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, out.Error)
	default:
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
