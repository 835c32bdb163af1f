package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncPage()
		m.AddReviews(3)
		m.IncDuplicate()
		m.IncLogin("login_failed")
		m.IncError("access_blocked")
		m.IncSearch("hit")
		m.ObserveScrape(time.Second)
		m.AddDropped(2)
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.IncPage()
	m.IncPage()
	m.AddReviews(10)
	m.AddReviews(0)
	m.IncError("navigation_stalled")
	m.IncLogin("login_succeeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesScraped))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.ReviewsCollected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("navigation_stalled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginOutcomes.WithLabelValues("login_succeeded")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncSearch("miss")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `review_scraper_searches_total{cache="miss"} 1`)
}
