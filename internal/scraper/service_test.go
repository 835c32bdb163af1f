package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-review-scraper/internal/amazontest"
	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/browser/htmldriver"
	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/login"
	"github.com/maltedev/amazon-review-scraper/internal/metrics"
	"github.com/maltedev/amazon-review-scraper/internal/models"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
)

const asin = "B000000001"

type fixture struct {
	driver  *htmldriver.Driver
	events  *events.Buffer
	pacer   *pacing.Recorder
	metrics *metrics.Metrics
	svc     *Service
}

func newFixture(t *testing.T, d *htmldriver.Driver, tweak ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{driver: d, events: events.NewBuffer(), pacer: &pacing.Recorder{}, metrics: metrics.New()}
	cfg := Config{
		Driver:    d,
		Domain:    amazontest.Domain,
		Pacer:     f.pacer,
		Notifier:  f.events,
		Metrics:   f.metrics,
		OutputDir: t.TempDir(),
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// listing registers len(pages) linked review pages for asin. When stallAfter
// is positive, the page with that number renders a disabled next control.
func listing(d *htmldriver.Driver, asin string, pages [][]amazontest.Review, stallAfter int) {
	for i, reviews := range pages {
		n := i + 1
		opts := amazontest.ReviewsPageOptions{Selected: n}
		if n < len(pages) && n != stallAfter {
			opts.NextURL = amazontest.ReviewsURL(asin, n+1)
		}
		d.SetPage(amazontest.ReviewsURL(asin, n), amazontest.ReviewsPage(asin, reviews, opts))
	}
}

func withoutIDs(reviews []amazontest.Review) []amazontest.Review {
	out := make([]amazontest.Review, len(reviews))
	for i, r := range reviews {
		r.ID = ""
		out[i] = r
	}
	return out
}

func pagesOf(records []models.ReviewRecord) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Page
	}
	return out
}

func TestScrapeReviews_NoReviews(t *testing.T) {
	d := htmldriver.New()
	d.SetPage(amazontest.ReviewsURL("B000000000", 1), amazontest.ReviewsPage("B000000000", nil, amazontest.ReviewsPageOptions{}))
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), "B000000000", 5, "")
	require.NoError(t, err)

	assert.Empty(t, records)
	assert.Contains(t, f.events.Texts(events.TypeStatus), "Finished scraping: 0 reviews collected")
}

func TestScrapeReviews_StallBeforePageThree(t *testing.T) {
	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{
		amazontest.GenerateReviews("p1", 5),
		amazontest.GenerateReviews("p2", 5),
		amazontest.GenerateReviews("p3", 5),
	}, 2)
	f := newFixture(t, d)

	res, err := f.svc.Scrape(context.Background(), Request{ASIN: asin, PageBudget: 3})
	require.NoError(t, err)

	require.Len(t, res.Reviews, 10)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 2, 2, 2, 2, 2}, pagesOf(res.Reviews))
	assert.Equal(t, 2, res.PagesRead)
	assert.Contains(t, res.StopReason, ErrNavigationStalled.Error())
	assert.Equal(t, []string{"Scraping page 2/3", "Scraping page 3/3"}, f.events.Texts(events.TypeProgress))
	assert.Contains(t, f.events.Texts(events.TypeStatus), "Finished scraping: 10 reviews collected")

	for _, r := range res.Reviews {
		assert.Equal(t, asin, r.ASIN)
		assert.NotEmpty(t, r.Identity)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PagesScraped))
	assert.Equal(t, 10.0, testutil.ToFloat64(f.metrics.ReviewsCollected))
}

func TestScrapeReviews_AllPages(t *testing.T) {
	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{
		amazontest.GenerateReviews("a", 2),
		amazontest.GenerateReviews("b", 2),
		amazontest.GenerateReviews("c", 2),
	}, 0)
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), strings.ToLower(asin), 3, "")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 2, 2, 3, 3}, pagesOf(records))
	// two advances plus one pause between pages 2 and 3
	assert.Equal(t, 3, f.pacer.Count(pacing.DefaultDelays().Transition))
}

func TestScrapeReviews_DuplicatesCollapse(t *testing.T) {
	first := withoutIDs(amazontest.GenerateReviews("a", 3))
	second := append(withoutIDs(amazontest.GenerateReviews("a", 3)), withoutIDs(amazontest.GenerateReviews("b", 2))...)

	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{first, second}, 0)
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 2, "")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 1, 2, 2}, pagesOf(records))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.DuplicatesTotal))

	seen := map[string]bool{}
	for _, r := range records {
		assert.False(t, seen[r.Identity], "identity %s repeated", r.Identity)
		seen[r.Identity] = true
	}
}

func TestScrapeReviews_NativeIDsDeduplicate(t *testing.T) {
	shared := amazontest.GenerateReviews("s", 2)
	second := append([]amazontest.Review{}, shared...)
	second[1].Body = "Same review id but the text was edited in the meantime."

	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{shared, second}, 0)
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 2, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "customer_review-RS001", records[0].Identity)
}

func TestScrapeReviews_ShortTextExcluded(t *testing.T) {
	reviews := amazontest.GenerateReviews("a", 2)
	reviews = append(reviews, amazontest.Review{ID: "RSHORT", Rating: "3.0", Title: "Short", Body: "Too short body.", Author: "X"})

	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{reviews}, 0)
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 1, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.NotEqual(t, "Too short body.", r.Text)
	}
}

func TestScrapeReviews_BudgetIsClamped(t *testing.T) {
	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{
		amazontest.GenerateReviews("a", 1),
		amazontest.GenerateReviews("b", 1),
	}, 0)
	f := newFixture(t, d)

	res, err := f.svc.Scrape(context.Background(), Request{ASIN: asin, PageBudget: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PageBudget)
	assert.Len(t, res.Reviews, 1)
	assert.Empty(t, f.events.Texts(events.TypeProgress))
}

func TestScrapeReviews_InvalidInput(t *testing.T) {
	f := newFixture(t, htmldriver.New())

	_, err := f.svc.ScrapeReviews(context.Background(), "not-an-asin", 3, "")
	assert.ErrorIs(t, err, ErrInvalidASIN)

	_, err = f.svc.ScrapeReviews(context.Background(), asin, 3, strings.Repeat("k", MaxKeywordLen))
	assert.ErrorIs(t, err, ErrInvalidKeyword)

	assert.Empty(t, f.driver.History(), "validation happens before the browser is touched")
}

func TestScrapeReviews_KeywordFilter(t *testing.T) {
	d := htmldriver.New()
	d.SetPage(amazontest.ReviewsURL(asin, 1), amazontest.ReviewsPage(asin, amazontest.GenerateReviews("k", 3), amazontest.ReviewsPageOptions{FilterForm: true}))
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 1, "battery")
	require.NoError(t, err)
	assert.Len(t, records, 3)

	subs := d.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "GET", subs[0].Method)
	assert.Equal(t, "battery", subs[0].Values.Get("filterByKeyword"))

	assert.Contains(t, f.events.Texts(events.TypeStatus), "Review keyword filter applied successfully")
	assert.Equal(t, len("battery"), f.pacer.Count(pacing.DefaultDelays().Typing))
}

func TestScrapeReviews_KeywordFilterMissingIsNotFatal(t *testing.T) {
	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{amazontest.GenerateReviews("k", 2)}, 0)
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 1, "battery")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Contains(t, f.events.Texts(events.TypeStatus), "Continuing without keyword filter")
}

func TestScrapeReviews_RegressionStops(t *testing.T) {
	target := amazontest.ReviewsURL(asin, 1)
	d := htmldriver.New()
	d.SetPage(target, amazontest.ReviewsPage(asin, amazontest.GenerateReviews("r", 4), amazontest.ReviewsPageOptions{
		Selected: 1,
		NextURL:  target + "?ref=cm_cr_arp_d_paging_btm_next_2",
	}))
	f := newFixture(t, d)

	res, err := f.svc.Scrape(context.Background(), Request{ASIN: asin, PageBudget: 5})
	require.NoError(t, err)
	assert.Len(t, res.Reviews, 4)
	assert.Equal(t, 1, res.PagesRead)
	assert.Contains(t, f.events.Texts(events.TypeStatus), "Pagination failed, stopping")
}

func TestScrapeReviews_AccessBlockedMidScrape(t *testing.T) {
	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{
		amazontest.GenerateReviews("a", 5),
		nil,
	}, 0)
	d.SetPage(amazontest.ReviewsURL(asin, 2), amazontest.CaptchaPage())
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 3, "")

	var blocked *AccessBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.ErrorIs(t, err, ErrAccessBlocked)
	assert.Equal(t, 2, blocked.Page)
	assert.Equal(t, ReasonCaptcha, blocked.Reason)
	assert.Len(t, records, 5, "records collected before the block are kept")
	assert.Equal(t, []string{"Access blocked on page 2: CAPTCHA/robot detection"}, f.events.Texts(events.TypeError))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ErrorsTotal.WithLabelValues("access_blocked")))
}

func TestScrapeReviews_RobotInProductTitle(t *testing.T) {
	d := htmldriver.New()
	d.SetPage(amazontest.ReviewsURL(asin, 1), amazontest.ReviewsPage(asin, amazontest.GenerateReviews("a", 5), amazontest.ReviewsPageOptions{
		Selected:     1,
		ProductTitle: "iRobot Roomba 694 Robot Vacuum",
	}))
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 1, "")
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Empty(t, f.events.Texts(events.TypeError))
}

func TestScrapeReviews_LoginBlocked(t *testing.T) {
	target := amazontest.ReviewsURL(asin, 1)
	d := htmldriver.New()
	d.SetPage(target, amazontest.ReviewsPage(asin, amazontest.GenerateReviews("a", 2), amazontest.ReviewsPageOptions{}))
	d.SetPage(amazontest.SignInURL, amazontest.EmailPage())
	d.Redirect(target, amazontest.SignInURL)
	f := newFixture(t, d)

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 3, "")

	var blocked *LoginBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.ErrorIs(t, err, ErrLoginBlocked)
	assert.Empty(t, records)
	assert.Contains(t, f.events.Texts(events.TypeError), "Login failed, cannot proceed with scraping.")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginOutcomes.WithLabelValues("login_failed")))
}

type failingNavigation struct {
	*htmldriver.Driver
}

func (failingNavigation) Navigate(string) error {
	return errors.New("Timeout 30000ms exceeded")
}

func TestScrapeReviews_FirstPageFailsToLoad(t *testing.T) {
	d := htmldriver.New()
	f := newFixture(t, d, func(cfg *Config) {
		cfg.Driver = failingNavigation{Driver: d}
	})

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 3, "")

	var blocked *LoginBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "Failed to open the reviews page: Timeout 30000ms exceeded", blocked.Reason)
	assert.Equal(t, "login_blocked", ErrorKind(err))
	assert.Empty(t, records)
	assert.Equal(t, []string{
		"Failed to open the reviews page: Timeout 30000ms exceeded",
		"Login failed, cannot proceed with scraping.",
	}, f.events.Texts(events.TypeError))
}

func TestScrapeReviews_ReturnsToReviewsAfterLogin(t *testing.T) {
	target := amazontest.ReviewsURL(asin, 1)
	d := htmldriver.New()
	d.SetPage(target, amazontest.ReviewsPage(asin, amazontest.GenerateReviews("a", 3), amazontest.ReviewsPageOptions{}))
	d.SetPage(amazontest.SignInURL, amazontest.EmailPage())
	d.SetPage(amazontest.PasswordURL, amazontest.PasswordPage(amazontest.Base+"/"))
	d.SetPage(amazontest.Base+"/", amazontest.HomePage())
	d.Redirect(target, amazontest.SignInURL)

	buf := events.NewBuffer()
	f := newFixture(t, d, func(c *Config) {
		c.Credentials = credentials.Static{Email: "shopper@example.com", Password: "hunter2"}
		c.Notifier = events.NotifierFunc(func(e events.Event) {
			buf.Notify(e)
			if e.Text == "Automatic login successful!" {
				d.RemoveRedirect(target)
			}
		})
	})

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 1, "")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Contains(t, buf.Texts(events.TypeStatus), "Returning to reviews page...")
	assert.Equal(t, target, d.History()[len(d.History())-1])
}

func TestScrapeReviews_ManualSignalIsForwarded(t *testing.T) {
	target := amazontest.ReviewsURL(asin, 1)
	d := htmldriver.New()
	d.SetPage(target, amazontest.ReviewsPage(asin, amazontest.GenerateReviews("m", 2), amazontest.ReviewsPageOptions{}))
	d.SetPage(amazontest.SignInURL, amazontest.EmailPage())
	d.Redirect(target, amazontest.SignInURL)

	waited := 0
	f := newFixture(t, d, func(c *Config) {
		c.Signals = login.Signals{Manual: login.SignalFunc(func(context.Context) error {
			waited++
			d.RemoveRedirect(target)
			return nil
		})}
	})

	records, err := f.svc.ScrapeReviews(context.Background(), asin, 1, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, waited)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginOutcomes.WithLabelValues("login_succeeded")))
}

func TestScrapeReviews_Cancel(t *testing.T) {
	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{
		amazontest.GenerateReviews("a", 5),
		amazontest.GenerateReviews("b", 5),
	}, 0)

	var svc *Service
	buf := events.NewBuffer()
	f := newFixture(t, d, func(c *Config) {
		c.Notifier = events.NotifierFunc(func(e events.Event) {
			buf.Notify(e)
			if e.Type == events.TypeProgress {
				svc.Cancel()
			}
		})
	})
	svc = f.svc

	records, err := svc.ScrapeReviews(context.Background(), asin, 2, "")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, records, 5, "partial results survive cancellation")
	assert.True(t, d.Closed())
	assert.Contains(t, buf.Texts(events.TypeStatus), "Scraping cancelled: 5 reviews collected")

	_, err = svc.Search(context.Background(), "cable")
	assert.ErrorIs(t, err, browser.ErrClosed)
}

func TestScrapeReviews_ParentContextCancelled(t *testing.T) {
	d := htmldriver.New()
	listing(d, asin, [][]amazontest.Review{amazontest.GenerateReviews("a", 1)}, 0)
	f := newFixture(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.ScrapeReviews(ctx, asin, 2, "")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.False(t, d.Closed(), "only Cancel quits the browser")
}

func TestSaveReviews(t *testing.T) {
	f := newFixture(t, htmldriver.New())

	_, err := f.svc.SaveReviews(nil, asin, "")
	assert.ErrorIs(t, err, ErrNoReviews)
	assert.Equal(t, []string{"No reviews to save."}, f.events.Texts(events.TypeError))

	rating := 4.0
	records := []models.ReviewRecord{
		{ASIN: asin, Rating: &rating, Title: "Good", Text: "Does exactly what it says on the box.", Reviewer: "A", Page: 1},
		{ASIN: asin, Title: "Fine", Text: "Arrived quickly and works as expected.", Reviewer: "B", Page: 1},
	}

	path, err := f.svc.SaveReviews(records, asin, "usb cable")
	require.NoError(t, err)
	assert.Equal(t, "amazon_reviews_usb_cable_B000000001.csv", filepath.Base(path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	saved := f.events.Since(0)
	var files []string
	for _, e := range saved {
		if e.Type == events.TypeFileSaved {
			files = append(files, e.File)
		}
	}
	assert.Equal(t, []string{"amazon_reviews_usb_cable_B000000001.csv"}, files)
	assert.Contains(t, f.events.Texts(events.TypeStatus), "Total reviews: 2")
	assert.Contains(t, f.events.Texts(events.TypeStatus), "Average rating: 4.00")
}

func TestClose(t *testing.T) {
	d := htmldriver.New()
	f := newFixture(t, d)

	require.NoError(t, f.svc.Close())
	require.NoError(t, f.svc.Close())
	assert.True(t, d.Closed())

	closedCount := 0
	for _, text := range f.events.Texts(events.TypeStatus) {
		if text == "Browser closed" {
			closedCount++
		}
	}
	assert.Equal(t, 1, closedCount)

	_, err := f.svc.ScrapeReviews(context.Background(), asin, 1, "")
	assert.ErrorIs(t, err, browser.ErrClosed)
}

func TestNewService_RequiresDriver(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestClampPages(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{7, 7},
		{20, 20},
		{21, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampPages(tt.in), "ClampPages(%d)", tt.in)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&LoginBlockedError{Attempts: 2, Reason: "x"}, "login_blocked"},
		{&AccessBlockedError{URL: "u", Page: 2, Reason: ReasonCaptcha}, "access_blocked"},
		{errors.Join(ErrCancelled, context.Canceled), "cancelled"},
		{context.DeadlineExceeded, "timeout"},
		{browser.ErrClosed, "browser_closed"},
		{ErrNavigationStalled, "navigation_stalled"},
		{ErrInvalidASIN, "invalid_input"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}
