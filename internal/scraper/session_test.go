package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-review-scraper/internal/extractor"
	"github.com/maltedev/amazon-review-scraper/internal/models"
)

func rating(v float64) *float64 { return &v }

func TestSession_Add(t *testing.T) {
	sess := newSession(asin, "", 3)

	rec, ok := sess.Add(extractor.ReviewData{
		Rating: rating(5),
		Title:  "Great",
		Text:   "  Works   perfectly\nwith my laptop.  ",
		Date:   "Reviewed on May 1, 2024",
	}, "", 1)
	require.True(t, ok)
	assert.Equal(t, "Works perfectly with my laptop.", rec.Text)
	assert.Equal(t, models.DefaultReviewer, rec.Reviewer)
	assert.Equal(t, 1, rec.Page)
	assert.NotEmpty(t, rec.Identity)

	_, ok = sess.Add(extractor.ReviewData{Rating: rating(5), Title: "Great", Text: "Works perfectly with my laptop."}, "", 2)
	assert.False(t, ok, "same content on a later page")

	_, ok = sess.Add(extractor.ReviewData{Title: "Meh", Text: "Too short."}, "R1", 2)
	assert.False(t, ok, "text under the minimum length")

	_, ok = sess.Add(extractor.ReviewData{Title: "Great", Text: "Works perfectly with my laptop."}, "R2", 2)
	assert.True(t, ok, "a native id makes it a different review")

	assert.Equal(t, 2, sess.Len())
}

func TestSession_Result(t *testing.T) {
	sess := newSession(asin, "battery", 4)
	sess.Page = 2
	sess.stop = ErrNavigationStalled

	res := sess.Result(errors.New("boom"))
	assert.Equal(t, sess.ID, res.ID)
	assert.Equal(t, "battery", res.Keyword)
	assert.Equal(t, 4, res.PageBudget)
	assert.Equal(t, 2, res.PagesRead)
	assert.NotNil(t, res.Reviews)
	assert.Empty(t, res.Reviews)
	assert.Equal(t, ErrNavigationStalled.Error(), res.StopReason)
	assert.Equal(t, "boom", res.Error)
	assert.False(t, res.CompletedAt.Before(res.StartedAt))
}

func TestSession_RecordsIsACopy(t *testing.T) {
	sess := newSession(asin, "", 1)
	_, ok := sess.Add(extractor.ReviewData{Title: "T", Text: "Long enough review text for the filter."}, "", 1)
	require.True(t, ok)

	records := sess.Records()
	records[0].Title = "changed"
	assert.Equal(t, "T", sess.Records()[0].Title)
}
