package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/dedup"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/export"
	"github.com/maltedev/amazon-review-scraper/internal/extractor"
	"github.com/maltedev/amazon-review-scraper/internal/login"
	"github.com/maltedev/amazon-review-scraper/internal/metrics"
	"github.com/maltedev/amazon-review-scraper/internal/models"
	"github.com/maltedev/amazon-review-scraper/internal/navigator"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
)

const (
	MinPages = 1
	MaxPages = 20

	// MaxKeywordLen is exclusive: keywords must be shorter.
	MaxKeywordLen = 50

	DefaultDomain     = "amazon.com"
	DefaultMaxResults = 10
)

type Config struct {
	Driver          browser.Driver
	Domain          string
	Credentials     credentials.Store
	Signals         login.Signals
	Pacer           pacing.Pacer
	Delays          pacing.Delays
	Notifier        events.Notifier
	Metrics         *metrics.Metrics
	MaxResults      int
	MaxLoginRetries int
	OutputDir       string
	CacheSize       int
	CacheTTL        time.Duration
	Logger          *slog.Logger
}

// Request describes one review scrape.
type Request struct {
	ASIN       string
	PageBudget int
	Keyword    string
}

type Service struct {
	mu sync.Mutex

	driver     browser.Driver
	domain     string
	creds      credentials.Store
	signals    login.Signals
	pacer      pacing.Pacer
	delays     pacing.Delays
	notify     events.Notifier
	metrics    *metrics.Metrics
	maxResults int
	maxRetries int
	outputDir  string

	products *extractor.ProductExtractor
	reviews  *extractor.ReviewExtractor
	cache    *expirable.LRU[string, []models.ProductInfo]
	logger   *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Driver == nil {
		return nil, errors.New("scraper: driver is required")
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.Credentials == nil {
		cfg.Credentials = credentials.None
	}
	if cfg.Pacer == nil {
		cfg.Pacer = pacing.NewRandomPacer()
	}
	if cfg.Delays == (pacing.Delays{}) {
		cfg.Delays = pacing.DefaultDelays()
	}
	if err := cfg.Delays.Validate(); err != nil {
		return nil, fmt.Errorf("invalid delays: %w", err)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = events.Discard
	}
	if cfg.MaxResults < 1 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MaxLoginRetries < 1 {
		cfg.MaxLoginRetries = login.DefaultMaxRetries
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = export.DefaultOutputDir()
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 64
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		driver:     cfg.Driver,
		domain:     cfg.Domain,
		creds:      cfg.Credentials,
		signals:    cfg.Signals,
		pacer:      cfg.Pacer,
		delays:     cfg.Delays,
		notify:     cfg.Notifier,
		metrics:    cfg.Metrics,
		maxResults: cfg.MaxResults,
		maxRetries: cfg.MaxLoginRetries,
		outputDir:  cfg.OutputDir,
		products:   extractor.NewProductExtractor(cfg.Logger),
		reviews:    extractor.NewReviewExtractor(cfg.Logger),
		cache:      expirable.NewLRU[string, []models.ProductInfo](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:     cfg.Logger.With("component", "scraper"),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// ReviewsURL is the first review listing page of asin.
func ReviewsURL(domain, asin string) string {
	return fmt.Sprintf("https://www.%s/product-reviews/%s/", domain, asin)
}

// ClampPages bounds a page budget to [MinPages, MaxPages].
func ClampPages(n int) int {
	switch {
	case n < MinPages:
		return MinPages
	case n > MaxPages:
		return MaxPages
	}
	return n
}

// ScrapeReviews collects unique reviews of asin from up to pageBudget pages.
// Records gathered before a cancellation or an access block are returned
// together with the error.
func (s *Service) ScrapeReviews(ctx context.Context, asin string, pageBudget int, keyword string) ([]models.ReviewRecord, error) {
	res, err := s.Scrape(ctx, Request{ASIN: asin, PageBudget: pageBudget, Keyword: keyword})
	if res == nil {
		return nil, err
	}
	return res.Reviews, err
}

// Scrape is ScrapeReviews with the session summary.
func (s *Service) Scrape(ctx context.Context, req Request) (*models.SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, browser.ErrClosed
	}

	asin := strings.ToUpper(strings.TrimSpace(req.ASIN))
	if !extractor.IsASIN(asin) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidASIN, req.ASIN)
	}
	keyword := strings.TrimSpace(req.Keyword)
	if utf8.RuneCountInString(keyword) >= MaxKeywordLen {
		return nil, fmt.Errorf("%w: must be shorter than %d characters", ErrInvalidKeyword, MaxKeywordLen)
	}

	ctx, stop := s.operationContext(ctx)
	defer stop()

	start := time.Now()
	sess := newSession(asin, keyword, ClampPages(req.PageBudget))
	err := s.run(ctx, sess)

	s.metrics.ObserveScrape(time.Since(start))
	s.metrics.AddReviews(sess.Len())
	if err != nil {
		s.metrics.IncError(ErrorKind(err))
	}
	return sess.Result(err), err
}

func (s *Service) run(ctx context.Context, sess *Session) error {
	s.status("Starting to scrape reviews for product: " + sess.ASIN)
	target := ReviewsURL(s.domain, sess.ASIN)

	machine := login.NewMachine(login.Config{
		Driver:      s.driver,
		Credentials: s.creds,
		Pacer:       s.pacer,
		Delays:      s.delays,
		Signals:     s.signals,
		Notifier:    s.notify,
		MaxRetries:  s.maxRetries,
		Logger:      s.logger,
	})
	outcome, err := machine.Run(ctx, target)
	s.metrics.IncLogin(outcome.State.String())
	if err != nil {
		return s.interrupted(ctx, sess, err)
	}
	if !outcome.Proceed() {
		s.notify.Notify(events.Error("Login failed, cannot proceed with scraping."))
		reason := outcome.Reason
		if reason == "" {
			reason = "still on the sign-in page"
		}
		return &LoginBlockedError{Attempts: outcome.Attempts, Reason: reason}
	}

	if outcome.State == login.LoginSucceeded {
		if err := s.returnTo(ctx, target, sess.ASIN); err != nil {
			return s.interrupted(ctx, sess, err)
		}
	}

	if sess.Keyword != "" {
		applied, err := s.applyKeywordFilter(ctx, sess.Keyword)
		if err != nil {
			return s.interrupted(ctx, sess, err)
		}
		if !applied {
			s.status("Continuing without keyword filter")
		}
	}

	s.status("Processing page 1...")
	if blocked := s.checkAccess(1); blocked != nil {
		return s.block(sess, blocked)
	}
	s.collectPage(sess, 1)

	nav := navigator.New(s.driver, s.pacer, s.delays, s.logger)
pages:
	for page := 2; page <= sess.Budget; page++ {
		if err := ctx.Err(); err != nil {
			return s.interrupted(ctx, sess, err)
		}

		s.notify.Notify(events.Progress(fmt.Sprintf("Scraping page %d/%d", page, sess.Budget)))

		advanced, err := nav.Advance(ctx)
		if err != nil {
			return s.interrupted(ctx, sess, err)
		}
		if !advanced {
			sess.stop = fmt.Errorf("%w: no next page after page %d", ErrNavigationStalled, page-1)
			s.logger.Info("pagination stopped", "asin", sess.ASIN, "page", page-1, "reason", sess.stop)
			s.status("No next button found - stopping pagination")
			break pages
		}

		if blocked := s.checkAccess(page); blocked != nil {
			return s.block(sess, blocked)
		}

		switch check := nav.Verify(page); check {
		case navigator.Regressed:
			sess.stop = fmt.Errorf("%w: returned to page 1 instead of page %d", ErrNavigationStalled, page)
			s.logger.Warn("pagination stopped", "asin", sess.ASIN, "page", page, "reason", sess.stop)
			s.status("Pagination failed, stopping")
			break pages
		case navigator.Mismatch:
			s.status(fmt.Sprintf("WARNING: Expected page %d, but actually on page %d", page, nav.CurrentPage()))
		}

		if added := s.collectPage(sess, page); added == 0 {
			s.status(fmt.Sprintf("No new reviews on page %d", page))
		}

		if page < sess.Budget {
			if err := s.pacer.Pause(ctx, s.delays.Transition); err != nil {
				return s.interrupted(ctx, sess, err)
			}
		}
	}

	s.status(fmt.Sprintf("Finished scraping: %d reviews collected", sess.Len()))
	return nil
}

// returnTo reloads the review listing when sign-in left the browser elsewhere.
func (s *Service) returnTo(ctx context.Context, target, asin string) error {
	loc, err := s.driver.CurrentLocation()
	if err != nil {
		return err
	}
	if strings.Contains(loc, "/product-reviews/"+asin) {
		return nil
	}
	s.status("Returning to reviews page...")
	if err := s.driver.Navigate(target); err != nil {
		return err
	}
	return s.pacer.Pause(ctx, s.delays.PageLoad)
}

// collectPage extracts the reviews on the loaded page into sess and returns
// how many were new.
func (s *Service) collectPage(sess *Session, page int) int {
	sess.Page = page
	s.metrics.IncPage()

	elems := s.reviews.FindReviewElements(s.driver)
	if len(elems) == 0 {
		s.status(fmt.Sprintf("No reviews found on page %d", page))
		return 0
	}
	s.status(fmt.Sprintf("Found %d review elements to process", len(elems)))

	added := 0
	for _, el := range elems {
		data := s.reviews.Extract(el)
		if _, ok := sess.Add(data, dedup.NativeID(el), page); ok {
			added++
			continue
		}
		if utf8.RuneCountInString(extractor.NormalizeWhitespace(data.Text)) >= models.MinReviewTextLen {
			s.metrics.IncDuplicate()
		}
	}

	s.logger.Info("page scraped", "asin", sess.ASIN, "page", page, "found", len(elems), "added", added, "total", sess.Len())
	s.status(fmt.Sprintf("Added %d reviews from page %d", added, page))
	return added
}

func (s *Service) block(sess *Session, blocked *AccessBlockedError) error {
	sess.stop = blocked
	s.notify.Notify(events.Error(fmt.Sprintf("Access blocked on page %d: %s", blocked.Page, blocked.Reason)))
	s.status(fmt.Sprintf("Finished scraping: %d reviews collected", sess.Len()))
	return blocked
}

// interrupted turns an error caused by cancellation into ErrCancelled and
// passes every other error through.
func (s *Service) interrupted(ctx context.Context, sess *Session, err error) error {
	if ctx.Err() == nil {
		return err
	}
	s.status(fmt.Sprintf("Scraping cancelled: %d reviews collected", sess.Len()))
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}

// SaveReviews writes records to the output directory as CSV and returns the
// written path.
func (s *Service) SaveReviews(records []models.ReviewRecord, asin, keyword string) (string, error) {
	if len(records) == 0 {
		s.notify.Notify(events.Error("No reviews to save."))
		return "", ErrNoReviews
	}

	path, err := export.SaveCSV(s.outputDir, asin, keyword, records)
	if err != nil {
		s.notify.Notify(events.Error("Failed to save CSV: " + err.Error()))
		return "", err
	}

	name := filepath.Base(path)
	s.status(fmt.Sprintf("CSV file saved at %s: %s", s.outputDir, name))
	s.notify.Notify(events.FileSaved(name))
	for _, line := range export.Summarize(records).Lines() {
		s.status(line)
	}
	return path, nil
}

// Cancel stops the running operation and quits the browser, which also
// unblocks a driver call in flight. The service cannot be used afterwards.
func (s *Service) Cancel() {
	s.cancel()
	if err := s.shutdown(); err != nil {
		s.logger.Warn("failed to quit browser", "error", err)
	}
}

// Close quits the browser. It is safe to call more than once.
func (s *Service) Close() error {
	s.cancel()
	return s.shutdown()
}

func (s *Service) shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.driver.Quit()
		s.status("Browser closed")
	})
	return err
}

// operationContext is cancelled when either parent or the service is.
func (s *Service) operationContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Service) status(text string) {
	s.notify.Notify(events.Status(text))
}

func isFatal(err error) bool {
	return errors.Is(err, browser.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
