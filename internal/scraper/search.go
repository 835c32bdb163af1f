package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/extractor"
	"github.com/maltedev/amazon-review-scraper/internal/models"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

// ProductURL is the detail page of asin.
func ProductURL(domain, asin string) string {
	return fmt.Sprintf("https://www.%s/dp/%s", domain, asin)
}

// SearchURL is the direct search results URL for term.
func SearchURL(domain, term string) string {
	return fmt.Sprintf("https://www.%s/s?k=%s", domain, url.QueryEscape(term))
}

// Search resolves term to products. An ASIN or a product URL is looked up
// directly; anything else goes through the site search. Results are cached
// per term and emitted as a results notification.
func (s *Service) Search(ctx context.Context, term string) ([]models.ProductInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, browser.ErrClosed
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptySearch
	}

	key := strings.ToLower(term)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncSearch("hit")
		s.logger.Debug("search cache hit", "term", term, "results", len(cached))
		products := append([]models.ProductInfo(nil), cached...)
		s.notify.Notify(events.Results(products))
		return products, nil
	}
	s.metrics.IncSearch("miss")

	ctx, stop := s.operationContext(ctx)
	defer stop()

	s.status(fmt.Sprintf("Searching Amazon for: %q", term))

	var (
		products []models.ProductInfo
		blocked  *AccessBlockedError
		err      error
	)
	switch {
	case extractor.IsASIN(term):
		s.status("Detected ASIN: " + term)
		products, blocked, err = s.lookup(ctx, ProductURL(s.domain, term))
	case s.isProductURL(term):
		target := term
		if !strings.HasPrefix(target, "http") {
			target = "https://" + target
		}
		products, blocked, err = s.lookup(ctx, target)
	default:
		products, blocked, err = s.keywordSearch(ctx, term)
	}
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		s.metrics.IncError(ErrorKind(err))
		s.notify.Notify(events.Error("Search failed: " + err.Error()))
		return nil, err
	}

	if blocked != nil {
		s.metrics.IncError(ErrorKind(blocked))
	} else {
		s.cache.Add(key, products)
	}

	s.notify.Notify(events.Results(products))
	return products, nil
}

func (s *Service) isProductURL(term string) bool {
	return strings.HasPrefix(term, "http://") ||
		strings.HasPrefix(term, "https://") ||
		strings.HasPrefix(term, "www."+s.domain)
}

// lookup extracts the product on one detail page. A blocked page yields a
// product whose only content is the block reason.
func (s *Service) lookup(ctx context.Context, target string) ([]models.ProductInfo, *AccessBlockedError, error) {
	s.status("Extracting product info from URL: " + target)

	if err := s.open(ctx, target); err != nil {
		return nil, nil, err
	}

	if blocked := s.checkAccess(0); blocked != nil {
		info := models.NewProductInfo()
		info.URL = target
		info.AddError(blocked.Reason)
		if blocked.Reason == ReasonCaptcha {
			s.status("CAPTCHA detected")
		} else {
			s.status("Login page detected")
		}
		return []models.ProductInfo{*info}, blocked, nil
	}

	info := s.products.FromPage(s.driver, target)
	s.status(fmt.Sprintf("EXTRACTION SUMMARY: ASIN: %s, Title: %s, Price: %s, Rating: %s, Reviews: %s",
		info.ASIN,
		extractor.Truncate(info.DisplayTitle(), 50),
		info.DisplayPrice(),
		info.DisplayRating(),
		info.DisplayReviewsCount(),
	))
	if n := len(info.ExtractionErrors); n > 0 {
		s.status(fmt.Sprintf("Extraction issues: %d", n))
	}
	return []models.ProductInfo{*info}, nil, nil
}

// keywordSearch types term into the site search box, falling back to the
// results URL when the box cannot be used.
func (s *Service) keywordSearch(ctx context.Context, term string) ([]models.ProductInfo, *AccessBlockedError, error) {
	s.status("Navigating to Amazon home page...")
	if err := s.open(ctx, fmt.Sprintf("https://www.%s", s.domain)); err != nil {
		return nil, nil, err
	}

	submitted, err := s.submitSearch(ctx, term)
	if err != nil {
		return nil, nil, err
	}
	if !submitted {
		fallback := SearchURL(s.domain, term)
		s.status("Fallback to direct URL: " + fallback)
		if err := s.driver.Navigate(fallback); err != nil {
			return nil, nil, err
		}
	}

	if err := s.pacer.Pause(ctx, s.delays.PageLoad); err != nil {
		return nil, nil, err
	}
	if blocked := s.checkAccess(0); blocked != nil {
		s.notify.Notify(events.Error("Search results blocked: " + blocked.Reason))
		return []models.ProductInfo{}, blocked, nil
	}

	cards, err := s.products.SearchCards(s.driver, s.maxResults)
	if err != nil {
		return nil, nil, err
	}
	s.status(fmt.Sprintf("Found %d search results", len(cards)))

	products := make([]models.ProductInfo, 0, len(cards))
	for idx, card := range cards {
		info, ok := s.products.FromSearchCard(card, s.domain)
		if !ok {
			continue
		}
		products = append(products, *info)
		s.status(fmt.Sprintf("Product %d: %s", idx+1, extractor.Truncate(info.DisplayTitle(), 50)))
	}
	return products, nil, nil
}

func (s *Service) submitSearch(ctx context.Context, term string) (bool, error) {
	box, _, ok := browser.FirstDisplayed(s.driver, selectors.SearchBox, false)
	if !ok {
		if _, err := s.driver.CurrentLocation(); err != nil {
			return false, err
		}
		s.notify.Notify(events.Error("Search box not found"))
		return false, nil
	}

	if err := box.Clear(); err != nil {
		return false, s.searchErr(err)
	}
	if err := box.SendKeys(term); err != nil {
		return false, s.searchErr(err)
	}
	if err := s.pacer.Pause(ctx, s.delays.Interaction); err != nil {
		return false, err
	}
	if err := box.Submit(); err != nil {
		return false, s.searchErr(err)
	}
	s.status(fmt.Sprintf("Performed search for: %q", term))
	return true, nil
}

func (s *Service) searchErr(err error) error {
	if isFatal(err) {
		return err
	}
	s.notify.Notify(events.Error("Error using search box: " + err.Error()))
	return nil
}

// open navigates to target, waits for it to settle and clicks through the
// continue-shopping interstitial.
func (s *Service) open(ctx context.Context, target string) error {
	if err := s.driver.Navigate(target); err != nil {
		return err
	}
	if err := s.pacer.Pause(ctx, s.delays.PageLoad); err != nil {
		return err
	}

	clicked, err := browser.DismissInterstitial(s.driver)
	if err != nil {
		if isFatal(err) {
			return err
		}
		s.logger.Debug("interstitial check failed", "error", err)
		return nil
	}
	if clicked {
		s.status(`Clicked "Continue shopping" button`)
		return s.pacer.Pause(ctx, s.delays.Interaction)
	}
	return nil
}
