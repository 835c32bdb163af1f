package extractor

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/models"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

var urlASINPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/gp/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/([A-Z0-9]{10})(?:[/?]|$)`),
	regexp.MustCompile(`(?i)/ASIN/([A-Z0-9]{10})`),
}

var titleASIN = regexp.MustCompile(`\b([A-Z0-9]{10})\b`)

// ASINFromURL finds a product identifier in an Amazon URL.
func ASINFromURL(rawURL string) (string, bool) {
	for _, p := range urlASINPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// ProductExtractor builds ProductInfo from detail pages and search cards.
type ProductExtractor struct {
	page   *Extractor
	card   *Extractor
	logger *slog.Logger
}

func NewProductExtractor(logger *slog.Logger) *ProductExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductExtractor{
		page:   New(ProductRules(), logger),
		card:   New(SearchRules(), logger),
		logger: logger.With("component", "product_extractor"),
	}
}

// FromPage extracts the product on the currently loaded detail page. Missing
// fields are recorded on the result and never stop the other fields.
func (pe *ProductExtractor) FromPage(d browser.Driver, requestedURL string) *models.ProductInfo {
	info := models.NewProductInfo()
	info.URL = requestedURL

	if asin, ok := pe.pageASIN(d, requestedURL); ok {
		info.ASIN = asin
	} else {
		info.AddError("asin not found with any strategy")
	}

	if v, ok := pe.extract(d, pe.page, FieldTitle, info); ok {
		info.Title = v
	}
	if v, ok := pe.extract(d, pe.page, FieldPrice, info); ok {
		info.Price = v
	}
	if v, ok := pe.extract(d, pe.page, FieldRating, info); ok {
		info.Rating = parseFloatPtr(v)
	}
	if v, ok := pe.extract(d, pe.page, FieldReviewCount, info); ok {
		info.ReviewsCount = parseIntPtr(v)
	}

	pe.logger.Info("product extracted",
		"asin", info.ASIN,
		"title_found", info.Title != "",
		"errors", len(info.ExtractionErrors),
	)
	return info
}

func (pe *ProductExtractor) pageASIN(d browser.Driver, requestedURL string) (string, bool) {
	if asin, ok := ASINFromURL(requestedURL); ok {
		return asin, true
	}
	if loc, err := d.CurrentLocation(); err == nil {
		if asin, ok := ASINFromURL(loc); ok {
			return asin, true
		}
	}
	if asin, ok := pe.page.ExtractField(d, FieldASIN); ok {
		return asin, true
	}
	if title, err := d.PageTitle(); err == nil {
		if m := titleASIN.FindStringSubmatch(title); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// FromSearchCard extracts one search result. Cards without an ASIN are
// reported as not ok.
func (pe *ProductExtractor) FromSearchCard(card browser.Element, domain string) (*models.ProductInfo, bool) {
	info := models.NewProductInfo()

	asin, ok := pe.card.ExtractField(card, FieldASIN)
	if !ok {
		return nil, false
	}
	info.ASIN = asin
	info.URL = fmt.Sprintf("https://www.%s/dp/%s", domain, asin)

	if v, ok := pe.extract(card, pe.card, FieldTitle, info); ok {
		info.Title = v
	}
	if v, ok := pe.extract(card, pe.card, FieldPrice, info); ok {
		info.Price = v
	}
	if v, ok := pe.extract(card, pe.card, FieldRating, info); ok {
		info.Rating = parseFloatPtr(v)
	}
	if v, ok := pe.extract(card, pe.card, FieldReviewCount, info); ok {
		info.ReviewsCount = parseIntPtr(v)
	}
	return info, true
}

// SearchCards returns up to max result cards on the current page.
func (pe *ProductExtractor) SearchCards(d browser.Driver, max int) ([]browser.Element, error) {
	cards, err := d.FindElements(selectors.SearchResult)
	if err != nil {
		return nil, err
	}
	if max > 0 && len(cards) > max {
		cards = cards[:max]
	}
	return cards, nil
}

func (pe *ProductExtractor) extract(scope browser.Scope, ex *Extractor, field Field, info *models.ProductInfo) (string, bool) {
	res := ex.Extract(scope, field)
	if !res.Found {
		info.AddError(res.FailureNote())
		return "", false
	}
	return res.Value, true
}

func parseFloatPtr(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseIntPtr(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
