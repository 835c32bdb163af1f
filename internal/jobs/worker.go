package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/queue"
	"github.com/maltedev/amazon-review-scraper/internal/scraper"
)

// StartWorker runs queued jobs on s until ctx is done or the queue is closed.
// It must be the only caller of s.
func (m *Manager) StartWorker(ctx context.Context, s Scraper) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				m.logger.Info("job worker stopping")
				return
			}
			m.logger.Error("failed to pop task", "error", err)
			continue
		}
		m.process(ctx, s, task)
	}
}

func (m *Manager) process(ctx context.Context, s Scraper, task *queue.Task) {
	e, err := m.lookup(task.JobID)
	if err != nil {
		m.logger.Warn("dropping task of unknown job", "id", task.JobID)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if e.job.Status != StatusPending {
		m.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	e.job.Status = StatusRunning
	e.job.StartedAt = &now
	e.cancel = cancel
	m.current = e
	m.mu.Unlock()

	m.confirm.Reset()
	m.logger.Info("processing job", "id", task.JobID, "asin", task.ASIN, "max_pages", task.PageBudget)

	res, scrapeErr := s.Scrape(jobCtx, scraper.Request{
		ASIN:       task.ASIN,
		PageBudget: task.PageBudget,
		Keyword:    task.Keyword,
	})

	var csvFile string
	if res != nil && len(res.Reviews) > 0 {
		path, err := s.SaveReviews(res.Reviews, res.ASIN, res.Keyword)
		if err != nil {
			m.logger.Error("failed to save csv", "id", task.JobID, "error", err)
		}
		csvFile = path
	}

	stored := 0
	if res != nil && m.store != nil {
		n, err := m.store.SaveSession(ctx, res, csvFile)
		if err != nil {
			m.logger.Error("failed to persist session", "id", task.JobID, "error", err)
			e.events.Notify(events.Error("Failed to store reviews: " + err.Error()))
		}
		stored = n
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil

	if res != nil {
		e.records = res.Reviews
		e.job.PagesRead = res.PagesRead
		e.job.ReviewCount = len(res.Reviews)
		e.job.StopReason = res.StopReason
	}
	e.job.CSVFile = csvFile
	e.job.StoredReviews = stored

	status := StatusCompleted
	switch {
	case errors.Is(scrapeErr, scraper.ErrCancelled):
		status = StatusCancelled
	case scrapeErr != nil:
		status = StatusFailed
		e.job.Error = scrapeErr.Error()
	}
	m.finish(e, status)

	m.logger.Info("job finished",
		"id", task.JobID,
		"status", status,
		"reviews", e.job.ReviewCount,
		"pages", e.job.PagesRead,
		"error", scrapeErr)
}
