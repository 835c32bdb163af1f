package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/amazon-review-scraper/internal/models"
)

// ReviewRepository persists finished scrape sessions. Reviews are keyed by
// (asin, identity) so a review seen by an earlier session is not stored twice.
type ReviewRepository struct {
	db     *DB
	outbox *OutboxRepository
	stream string
}

func NewReviewRepository(db *DB, stream string) *ReviewRepository {
	if stream == "" {
		stream = DefaultStream
	}
	return &ReviewRepository{db: db, outbox: NewOutboxRepository(db), stream: stream}
}

// SessionPayload is the outbox payload announcing a stored session.
type SessionPayload struct {
	SessionID  string `json:"session_id"`
	ASIN       string `json:"asin"`
	Keyword    string `json:"keyword,omitempty"`
	PagesRead  int    `json:"pages_read"`
	Reviews    int    `json:"reviews"`
	NewReviews int    `json:"new_reviews"`
	CSVFile    string `json:"csv_file,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

func sessionEvent(res *models.SessionResult, csvFile string, inserted int, stream string) (*OutboxEvent, error) {
	payload, err := json.Marshal(SessionPayload{
		SessionID:  res.ID,
		ASIN:       res.ASIN,
		Keyword:    res.Keyword,
		PagesRead:  res.PagesRead,
		Reviews:    len(res.Reviews),
		NewReviews: inserted,
		CSVFile:    csvFile,
		StopReason: res.StopReason,
		Error:      res.Error,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session payload: %w", err)
	}
	return &OutboxEvent{
		AggregateType: AggregateReviewSession,
		AggregateID:   res.ID,
		EventType:     EventReviewsScraped,
		Payload:       payload,
		TargetStream:  stream,
	}, nil
}

// SaveSession stores res and its reviews and queues a REVIEWS_SCRAPED outbox
// event in one transaction. It returns how many reviews were new.
func (r *ReviewRepository) SaveSession(ctx context.Context, res *models.SessionResult, csvFile string) (int, error) {
	inserted := 0
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO review_sessions (
				id, asin, keyword, page_budget, pages_read, review_count,
				stop_reason, error, csv_file, started_at, completed_at
			) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11)`,
			res.ID, res.ASIN, res.Keyword, res.PageBudget, res.PagesRead, len(res.Reviews),
			res.StopReason, res.Error, csvFile, res.StartedAt, res.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		if len(res.Reviews) > 0 {
			n, err := insertReviews(ctx, tx, res.ID, res.Reviews)
			if err != nil {
				return err
			}
			inserted = n
		}

		event, err := sessionEvent(res, csvFile, inserted, r.stream)
		if err != nil {
			return err
		}
		return r.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertReviews(ctx context.Context, tx pgx.Tx, sessionID string, records []models.ReviewRecord) (int, error) {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO reviews (asin, identity, session_id, rating, title, body, reviewer, review_date, page)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (asin, identity) DO NOTHING`,
			rec.ASIN, rec.Identity, sessionID, rec.Rating, rec.Title, rec.Text, rec.Reviewer, rec.Date, rec.Page,
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			return 0, fmt.Errorf("failed to insert review: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Reviews returns the stored reviews of asin in scrape order, at most limit
// when limit is positive.
func (r *ReviewRepository) Reviews(ctx context.Context, asin string, limit int) ([]models.ReviewRecord, error) {
	query := `
		SELECT asin, identity, rating::float8, title, body, reviewer, review_date, page
		FROM reviews
		WHERE asin = $1
		ORDER BY created_at ASC, page ASC`
	args := []any{asin}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ReviewRecord, error) {
		var rec models.ReviewRecord
		err := row.Scan(&rec.ASIN, &rec.Identity, &rec.Rating, &rec.Title, &rec.Text, &rec.Reviewer, &rec.Date, &rec.Page)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan reviews: %w", err)
	}
	return records, nil
}

// CountReviews returns how many reviews of asin are stored.
func (r *ReviewRepository) CountReviews(ctx context.Context, asin string) (int, error) {
	var n int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE asin = $1`, asin).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return n, nil
}
