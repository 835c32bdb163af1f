// Package jobs runs review scrapes submitted over the API one at a time on a
// single browser and keeps their notifications for polling.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/extractor"
	"github.com/maltedev/amazon-review-scraper/internal/login"
	"github.com/maltedev/amazon-review-scraper/internal/models"
	"github.com/maltedev/amazon-review-scraper/internal/queue"
	"github.com/maltedev/amazon-review-scraper/internal/scraper"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobFinished   = errors.New("job already finished")
	ErrJobNotRunning = errors.New("job is not running")
)

// Scraper is the part of scraper.Service the worker drives.
type Scraper interface {
	Scrape(ctx context.Context, req scraper.Request) (*models.SessionResult, error)
	SaveReviews(records []models.ReviewRecord, asin, keyword string) (string, error)
}

// Store persists finished sessions and reports how many reviews were new.
type Store interface {
	SaveSession(ctx context.Context, res *models.SessionResult, csvFile string) (int, error)
}

// Job is the externally visible state of one scrape request.
type Job struct {
	ID            string     `json:"id"`
	ASIN          string     `json:"asin"`
	Keyword       string     `json:"keyword,omitempty"`
	MaxPages      int        `json:"max_pages"`
	Status        Status     `json:"status"`
	PagesRead     int        `json:"pages_read"`
	ReviewCount   int        `json:"review_count"`
	StoredReviews int        `json:"stored_reviews"`
	EventCount    int        `json:"event_count"`
	CSVFile       string     `json:"csv_file,omitempty"`
	StopReason    string     `json:"stop_reason,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type entry struct {
	job     Job
	events  *events.Buffer
	records []models.ReviewRecord
	cancel  context.CancelFunc
}

type Config struct {
	Queue  queue.Queue
	Store  Store
	Logger *slog.Logger
}

type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*entry
	current *entry

	queue   queue.Queue
	store   Store
	confirm *login.ChannelSignal
	logger  *slog.Logger
}

func NewManager(cfg Config) *Manager {
	if cfg.Queue == nil {
		cfg.Queue = queue.NewInMemoryQueue(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		jobs:    make(map[string]*entry),
		queue:   cfg.Queue,
		store:   cfg.Store,
		confirm: login.NewChannelSignal(),
		logger:  cfg.Logger.With("component", "job_manager"),
	}
}

// Signals are the login confirmations the scraper waits on. Confirm fires
// them for the running job.
func (m *Manager) Signals() login.Signals {
	return login.Signals{TwoFactor: m.confirm, Manual: m.confirm}
}

// Notify records e on the running job. Events outside a job are dropped.
func (m *Manager) Notify(e events.Event) {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur != nil {
		cur.events.Notify(e)
	}
}

// Submit validates the request and queues a pending job.
func (m *Manager) Submit(asin string, maxPages int, keyword string) (Job, error) {
	asin = strings.ToUpper(strings.TrimSpace(asin))
	if !extractor.IsASIN(asin) {
		return Job{}, fmt.Errorf("%w: %q", scraper.ErrInvalidASIN, asin)
	}
	keyword = strings.TrimSpace(keyword)
	if utf8.RuneCountInString(keyword) >= scraper.MaxKeywordLen {
		return Job{}, fmt.Errorf("%w: must be shorter than %d characters", scraper.ErrInvalidKeyword, scraper.MaxKeywordLen)
	}

	e := &entry{
		job: Job{
			ID:        uuid.New().String(),
			ASIN:      asin,
			Keyword:   keyword,
			MaxPages:  scraper.ClampPages(maxPages),
			Status:    StatusPending,
			CreatedAt: time.Now().UTC(),
		},
		events: events.NewBuffer(),
	}

	m.mu.Lock()
	m.jobs[e.job.ID] = e
	m.mu.Unlock()

	err := m.queue.Push(&queue.Task{
		JobID:      e.job.ID,
		ASIN:       asin,
		PageBudget: e.job.MaxPages,
		Keyword:    keyword,
		CreatedAt:  e.job.CreatedAt,
	})
	if err != nil {
		m.mu.Lock()
		delete(m.jobs, e.job.ID)
		m.mu.Unlock()
		return Job{}, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", e.job.ID, "asin", asin, "max_pages", e.job.MaxPages, "keyword", keyword)
	return m.snapshot(e), nil
}

func (m *Manager) Get(id string) (Job, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Job{}, err
	}
	return m.snapshot(e), nil
}

// List returns every job, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.jobs))
	for _, e := range m.jobs {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Job, 0, len(entries))
	for _, e := range entries {
		out = append(out, m.snapshot(e))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Events returns the notifications of job id after the first after.
func (m *Manager) Events(id string, after int) ([]events.Event, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.events.Since(after), nil
}

// Reviews returns the records collected so far.
func (m *Manager) Reviews(id string) ([]models.ReviewRecord, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append(make([]models.ReviewRecord, 0, len(e.records)), e.records...), nil
}

// Confirm resumes a running job that waits for two-factor or manual login.
func (m *Manager) Confirm(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	running := m.current == e
	m.mu.RUnlock()
	if !running {
		return ErrJobNotRunning
	}
	m.confirm.Fire()
	e.events.Notify(events.Status("Login confirmation received"))
	return nil
}

// Cancel drops a pending job from the queue or interrupts the running one.
func (m *Manager) Cancel(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case e.job.Status.Terminal():
		return ErrJobFinished
	case e.job.Status == StatusPending:
		m.queue.Remove(id)
		m.finish(e, StatusCancelled)
		m.logger.Info("pending job cancelled", "id", id)
	case e.cancel != nil:
		e.cancel()
		m.logger.Info("running job cancel requested", "id", id)
	}
	return nil
}

// Counts returns how many jobs are in each status.
func (m *Manager) Counts() map[Status]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Status]int)
	for _, e := range m.jobs {
		out[e.job.Status]++
	}
	return out
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return e, nil
}

func (m *Manager) snapshot(e *entry) Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job := e.job
	job.EventCount = e.events.Len()
	return job
}

// finish must be called with m.mu held.
func (m *Manager) finish(e *entry, status Status) {
	now := time.Now().UTC()
	e.job.Status = status
	e.job.CompletedAt = &now
	e.cancel = nil
}
