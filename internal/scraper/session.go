package scraper

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/maltedev/amazon-review-scraper/internal/dedup"
	"github.com/maltedev/amazon-review-scraper/internal/extractor"
	"github.com/maltedev/amazon-review-scraper/internal/models"
)

// Session is the state of one ScrapeReviews call.
type Session struct {
	ID        string
	ASIN      string
	Keyword   string
	Budget    int
	Page      int
	StartedAt time.Time

	records []models.ReviewRecord
	tracker *dedup.Tracker
	stop    error
}

func newSession(asin, keyword string, budget int) *Session {
	return &Session{
		ID:        uuid.New().String(),
		ASIN:      asin,
		Keyword:   keyword,
		Budget:    budget,
		StartedAt: time.Now(),
		records:   make([]models.ReviewRecord, 0),
		tracker:   dedup.NewTracker(),
	}
}

// Add turns extracted data into a record unless its text is too short or
// its identity was already recorded.
func (s *Session) Add(data extractor.ReviewData, native string, page int) (models.ReviewRecord, bool) {
	text := extractor.NormalizeWhitespace(data.Text)
	if utf8.RuneCountInString(text) < models.MinReviewTextLen {
		return models.ReviewRecord{}, false
	}

	identity := dedup.Identify(native, data.Title, data.Rating, text)
	if !s.tracker.Add(identity) {
		return models.ReviewRecord{}, false
	}

	reviewer := data.Reviewer
	if reviewer == "" {
		reviewer = models.DefaultReviewer
	}

	rec := models.ReviewRecord{
		ASIN:     s.ASIN,
		Rating:   data.Rating,
		Title:    data.Title,
		Text:     text,
		Reviewer: reviewer,
		Date:     data.Date,
		Page:     page,
		Identity: identity,
	}
	s.records = append(s.records, rec)
	return rec, true
}

func (s *Session) Len() int {
	return len(s.records)
}

// Records returns a copy of the collected records, never nil.
func (s *Session) Records() []models.ReviewRecord {
	return append(make([]models.ReviewRecord, 0, len(s.records)), s.records...)
}

// Result summarizes the session. err is the error the scrape ended with.
func (s *Session) Result(err error) *models.SessionResult {
	res := &models.SessionResult{
		ID:          s.ID,
		ASIN:        s.ASIN,
		Keyword:     s.Keyword,
		PageBudget:  s.Budget,
		PagesRead:   s.Page,
		Reviews:     s.Records(),
		StartedAt:   s.StartedAt,
		CompletedAt: time.Now(),
	}
	if s.stop != nil {
		res.StopReason = s.stop.Error()
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
