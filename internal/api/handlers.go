// Package api exposes the job manager and product search over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/database"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/jobs"
	"github.com/maltedev/amazon-review-scraper/internal/models"
	"github.com/maltedev/amazon-review-scraper/internal/queue"
	"github.com/maltedev/amazon-review-scraper/internal/scraper"
)

// Searcher resolves a search term to products.
type Searcher interface {
	Search(ctx context.Context, term string) ([]models.ProductInfo, error)
}

// OutboxCounter reports outbox backlog for the health check.
type OutboxCounter interface {
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
}

type Handlers struct {
	jobs     *jobs.Manager
	searcher Searcher
	outbox   OutboxCounter
	logger   *slog.Logger
}

// NewHandlers wires the handlers. outbox may be nil when persistence is off.
func NewHandlers(manager *jobs.Manager, searcher Searcher, outbox OutboxCounter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:     manager,
		searcher: searcher,
		outbox:   outbox,
		logger:   logger.With("component", "api"),
	}
}

type CreateJobRequest struct {
	ASIN     string `json:"asin"`
	MaxPages int    `json:"max_pages"`
	Keyword  string `json:"keyword"`
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ASIN == "" {
		h.respondError(w, http.StatusBadRequest, "asin is required")
		return
	}
	if req.MaxPages == 0 {
		req.MaxPages = 1
	}

	job, err := h.jobs.Submit(req.ASIN, req.MaxPages, req.Keyword)
	if err != nil {
		h.respondJobError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondJobError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   int            `json:"next"`
}

// GetJobEvents returns the notifications after ?after=N. Next is the value to
// pass on the following poll.
func (h *Handlers) GetJobEvents(w http.ResponseWriter, r *http.Request) {
	after := 0
	if raw := r.URL.Query().Get("after"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = n
	}

	evs, err := h.jobs.Events(chi.URLParam(r, "jobID"), after)
	if err != nil {
		h.respondJobError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, EventsResponse{Events: evs, Next: after + len(evs)})
}

func (h *Handlers) ConfirmJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Confirm(chi.URLParam(r, "jobID")); err != nil {
		h.respondJobError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	if err := h.jobs.Cancel(id); err != nil {
		h.respondJobError(w, err)
		return
	}
	job, err := h.jobs.Get(id)
	if err != nil {
		h.respondJobError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJobReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.jobs.Reviews(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondJobError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, reviews)
}

type SearchRequest struct {
	Term string `json:"term"`
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	products, err := h.searcher.Search(r.Context(), req.Term)
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, products)
	case errors.Is(err, scraper.ErrEmptySearch):
		h.respondError(w, http.StatusBadRequest, "term is required")
	case errors.Is(err, browser.ErrClosed):
		h.respondError(w, http.StatusServiceUnavailable, "browser is not available")
	default:
		h.logger.Error("search failed", "term", req.Term, "error", err)
		h.respondError(w, http.StatusBadGateway, "search failed")
	}
}

// Health reports job counts and, with persistence on, the outbox backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status": "ok",
		"jobs":   h.jobs.Counts(),
	}
	status := http.StatusOK

	if h.outbox != nil {
		pending, pErr := h.outbox.CountByStatus(r.Context(), database.OutboxStatusPending, database.OutboxStatusFailed)
		dead, dErr := h.outbox.CountByStatus(r.Context(), database.OutboxStatusDeadLetter)
		if err := errors.Join(pErr, dErr); err != nil {
			h.logger.Error("failed to read outbox counts", "error", err)
			health["status"] = "error"
			health["message"] = "database unavailable"
			status = http.StatusServiceUnavailable
		} else {
			health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}
			if dead > 100 {
				health["status"] = "error"
				health["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		h.respondError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, scraper.ErrInvalidASIN), errors.Is(err, scraper.ErrInvalidKeyword):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrJobFinished), errors.Is(err, jobs.ErrJobNotRunning):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		h.respondError(w, http.StatusServiceUnavailable, "job queue is not accepting jobs")
	default:
		h.logger.Error("job request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
