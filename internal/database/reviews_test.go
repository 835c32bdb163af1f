package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-review-scraper/internal/models"
)

func rating(v float64) *float64 { return &v }

func session(asin string, records ...models.ReviewRecord) *models.SessionResult {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.SessionResult{
		ID:          uuid.NewString(),
		ASIN:        asin,
		PageBudget:  3,
		PagesRead:   2,
		Reviews:     records,
		StartedAt:   now.Add(-time.Minute),
		CompletedAt: now,
	}
}

func record(asin, identity string, page int) models.ReviewRecord {
	return models.ReviewRecord{
		ASIN:     asin,
		Rating:   rating(4),
		Title:    "Title " + identity,
		Text:     "A review body that is long enough to keep.",
		Reviewer: "Amazon Customer",
		Date:     "Reviewed in the United States on May 1, 2024",
		Page:     page,
		Identity: identity,
	}
}

func TestSessionEvent(t *testing.T) {
	res := session("B000000001", record("B000000001", "a", 1), record("B000000001", "b", 2))
	res.Keyword = "battery"
	res.StopReason = "navigation stalled"

	event, err := sessionEvent(res, "amazon_reviews_battery_B000000001.csv", 1, "stream:test")
	require.NoError(t, err)
	require.NoError(t, event.validate())

	assert.Equal(t, AggregateReviewSession, event.AggregateType)
	assert.Equal(t, res.ID, event.AggregateID)
	assert.Equal(t, EventReviewsScraped, event.EventType)
	assert.Equal(t, "stream:test", event.TargetStream)

	var payload SessionPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, SessionPayload{
		SessionID:  res.ID,
		ASIN:       "B000000001",
		Keyword:    "battery",
		PagesRead:  2,
		Reviews:    2,
		NewReviews: 1,
		CSVFile:    "amazon_reviews_battery_B000000001.csv",
		StopReason: "navigation stalled",
	}, payload)
}

func TestReviewRepository_SaveSession(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewReviewRepository(db, "")

	asin := "B000000001"
	first := session(asin, record(asin, "r1", 1), record(asin, "r2", 1))
	inserted, err := repo.SaveSession(ctx, first, "first.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	second := session(asin, record(asin, "r2", 1), record(asin, "r3", 2))
	inserted, err = repo.SaveSession(ctx, second, "")
	require.NoError(t, err)
	assert.Equal(t, 1, inserted, "r2 was stored by the first session")

	n, err := repo.CountReviews(ctx, asin)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stored, err := repo.Reviews(ctx, asin, 0)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, 4.0, *stored[0].Rating)

	limited, err := repo.Reviews(ctx, asin, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	pending, err := NewOutboxRepository(db).GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "one outbox event per stored session")
}

func TestReviewRepository_SaveEmptySession(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewReviewRepository(db, "")

	res := session("B000000002")
	res.Error = "login blocked"
	inserted, err := repo.SaveSession(ctx, res, "")
	require.NoError(t, err)
	assert.Zero(t, inserted)

	stored, err := repo.Reviews(ctx, "B000000002", 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
