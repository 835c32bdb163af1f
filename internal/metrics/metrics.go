// Package metrics holds the Prometheus collectors of the review scraper.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors on a dedicated registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	PagesScraped     prometheus.Counter
	ReviewsCollected prometheus.Counter
	DuplicatesTotal  prometheus.Counter
	LoginOutcomes    *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	SearchesTotal    *prometheus.CounterVec
	ScrapeDuration   prometheus.Histogram
	EventsDropped    prometheus.Counter
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_scraper_pages_total",
		Help: "Review pages extracted.",
	})
	reviews := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_scraper_reviews_total",
		Help: "Unique reviews collected.",
	})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_scraper_duplicates_total",
		Help: "Reviews skipped because their identity was already seen.",
	})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_scraper_login_outcomes_total",
		Help: "Terminal login states by name.",
	}, []string{"state"})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_scraper_errors_total",
		Help: "Scrape errors by kind.",
	}, []string{"kind"})
	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_scraper_searches_total",
		Help: "Product searches by cache result.",
	}, []string{"cache"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "review_scraper_scrape_duration_seconds",
		Help:    "Wall time of review scrapes.",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_scraper_events_dropped_total",
		Help: "Notifications dropped because a consumer fell behind.",
	})

	registry.MustRegister(pages, reviews, duplicates, logins, errorsTotal, searches, duration, dropped)

	return &Metrics{
		Registry:         registry,
		PagesScraped:     pages,
		ReviewsCollected: reviews,
		DuplicatesTotal:  duplicates,
		LoginOutcomes:    logins,
		ErrorsTotal:      errorsTotal,
		SearchesTotal:    searches,
		ScrapeDuration:   duration,
		EventsDropped:    dropped,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesScraped.Inc()
}

func (m *Metrics) AddReviews(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReviewsCollected.Add(float64(n))
}

func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
}

func (m *Metrics) IncLogin(state string) {
	if m == nil {
		return
	}
	m.LoginOutcomes.WithLabelValues(state).Inc()
}

// IncError counts an error under its kind label.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// IncSearch counts a search as a cache "hit" or "miss".
func (m *Metrics) IncSearch(cache string) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(cache).Inc()
}

func (m *Metrics) ObserveScrape(d time.Duration) {
	if m == nil {
		return
	}
	m.ScrapeDuration.Observe(d.Seconds())
}

func (m *Metrics) AddDropped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.EventsDropped.Add(float64(n))
}
