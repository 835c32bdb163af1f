package extractor

import (
	"log/slog"
	"unicode/utf8"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/models"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

// ReviewData is what one review container yields before identity and
// length filtering.
type ReviewData struct {
	Rating   *float64
	Title    string
	Text     string
	Reviewer string
	Date     string
}

type ReviewExtractor struct {
	ex     *Extractor
	logger *slog.Logger
}

func NewReviewExtractor(logger *slog.Logger) *ReviewExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewExtractor{
		ex:     New(ReviewRules(), logger),
		logger: logger.With("component", "review_extractor"),
	}
}

// FindReviewElements locates review containers on the page. Within each
// strategy family (CSS, then XPath) the first selector that matches anything
// decides the candidate set, which is then validated.
func (re *ReviewExtractor) FindReviewElements(scope browser.Scope) []browser.Element {
	if found := re.firstMatching(scope, selectors.ReviewContainers); len(found) > 0 {
		return found
	}
	return re.firstMatching(scope, selectors.ReviewContainersXPath)
}

func (re *ReviewExtractor) firstMatching(scope browser.Scope, sels []browser.Selector) []browser.Element {
	for _, sel := range sels {
		elems, err := scope.FindElements(sel)
		if err != nil || len(elems) == 0 {
			continue
		}

		valid := make([]browser.Element, 0, len(elems))
		for _, el := range elems {
			if IsReviewElement(el) {
				valid = append(valid, el)
			}
		}
		re.logger.Debug("review containers", "selector", sel.String(), "matched", len(elems), "valid", len(valid))
		return valid
	}
	return nil
}

// IsReviewElement reports whether el holds a review body of more than 10
// characters next to a star rating marker.
func IsReviewElement(el browser.Element) bool {
	bodies, err := el.FindElements(selectors.ReviewBodyMarker)
	if err != nil || len(bodies) == 0 {
		return false
	}
	if !browser.Exists(el, selectors.ReviewStarMarker) {
		return false
	}
	return utf8.RuneCountInString(browser.TextOf(bodies[0])) > 10
}

// Extract reads every review field; a missing field leaves its zero value
// except the reviewer, which falls back to the site's placeholder name.
func (re *ReviewExtractor) Extract(el browser.Element) ReviewData {
	var data ReviewData

	if v, ok := re.ex.ExtractField(el, FieldRating); ok {
		data.Rating = parseFloatPtr(v)
	}
	data.Title, _ = re.ex.ExtractField(el, FieldTitle)
	data.Text, _ = re.ex.ExtractField(el, FieldReviewBody)
	data.Date, _ = re.ex.ExtractField(el, FieldDate)

	reviewer, ok := re.ex.ExtractField(el, FieldReviewer)
	if !ok {
		reviewer = models.DefaultReviewer
	}
	data.Reviewer = reviewer

	return data
}
