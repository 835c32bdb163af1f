// Package extractor pulls field values out of Amazon pages by trying ordered
// locator strategies and keeping the first plausible value.
package extractor

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

type Field string

const (
	FieldASIN        Field = "asin"
	FieldTitle       Field = "title"
	FieldPrice       Field = "price"
	FieldRating      Field = "rating"
	FieldReviewCount Field = "reviews_count"
	FieldReviewBody  Field = "review_body"
	FieldReviewer    Field = "reviewer"
	FieldDate        Field = "date"
)

// Rule is the ordered strategy list for one field plus the plausibility check
// every candidate must pass.
type Rule struct {
	Field      Field
	Strategies []Strategy
	Accept     Validator
}

type RuleSet map[Field]Rule

func NewRuleSet(rules ...Rule) RuleSet {
	rs := make(RuleSet, len(rules))
	for _, r := range rules {
		rs[r.Field] = r
	}
	return rs
}

// Result is the outcome of extracting one field.
type Result struct {
	Field    Field
	Value    string
	Found    bool
	Strategy string
	Failed   []string
}

// FailureNote is the structured note recorded when nothing matched.
func (r Result) FailureNote() string {
	return fmt.Sprintf("%s not found with any strategy (%d tried)", r.Field, len(r.Failed))
}

type Extractor struct {
	rules  RuleSet
	logger *slog.Logger
}

func New(rules RuleSet, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		rules:  rules,
		logger: logger.With("component", "extractor"),
	}
}

// ExtractField returns the first plausible value for field within scope.
func (e *Extractor) ExtractField(scope browser.Scope, field Field) (string, bool) {
	r := e.Extract(scope, field)
	return r.Value, r.Found
}

// Extract tries the field's strategies in order and stops at the first
// accepted value.
func (e *Extractor) Extract(scope browser.Scope, field Field) Result {
	res := Result{Field: field}

	rule, ok := e.rules[field]
	if !ok {
		return res
	}

	for _, s := range rule.Strategies {
		if v, ok := s.TryExtract(scope, rule.Accept); ok {
			res.Value = v
			res.Found = true
			res.Strategy = s.Name()
			return res
		}
		res.Failed = append(res.Failed, s.Name())
	}

	e.logger.Debug("field not found", "field", field, "strategies", len(res.Failed))
	return res
}

var (
	priceInText = regexp.MustCompile(`[$€£]\s*\d+[.,]?\d*`)

	asinSourcePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"ASIN"\s*:\s*"([A-Z0-9]{10})"`),
		regexp.MustCompile(`(?i)ASIN["']?\s*:\s*["']?([A-Z0-9]{10})`),
		regexp.MustCompile(`(?i)var asin = "([A-Z0-9]{10})"`),
		regexp.MustCompile(`(?i)data-asin="([A-Z0-9]{10})"`),
		regexp.MustCompile(`(?i)input[^>]*name="ASIN"[^>]*value="([A-Z0-9]{10})"`),
	}
)

// ProductRules covers a product detail page; the scope is the driver.
func ProductRules() RuleSet {
	asin := []Strategy{
		SelectorAttr{Sel: selectors.ASINInput[0], Attr: "value"},
		SelectorAttr{Sel: selectors.ASINInput[1], Attr: "value"},
	}
	for _, p := range asinSourcePatterns {
		asin = append(asin, PagePattern{Pattern: p, Source: FromSource})
	}

	price := textOf(selectors.ProductPrice)
	price = append(price, PagePattern{Pattern: priceInText, Source: FromText})

	rating := textOf(selectors.ProductRating)
	rating = append(rating,
		SelectorAttr{Sel: browser.ByCSS(`#acrPopover`), Attr: "title"},
		SelectorAttr{Sel: browser.ByCSS(`a[aria-label*="out of 5 stars"]`), Attr: "aria-label"},
		SelectorAttr{Sel: browser.ByCSS(`span[aria-label*="out of 5 stars"]`), Attr: "aria-label"},
	)

	return NewRuleSet(
		Rule{Field: FieldASIN, Strategies: asin, Accept: asinValidator},
		Rule{Field: FieldTitle, Strategies: textOf(selectors.ProductTitle), Accept: titleValidator(150)},
		Rule{Field: FieldPrice, Strategies: price, Accept: ParsePrice},
		Rule{Field: FieldRating, Strategies: rating, Accept: ratingValidator},
		Rule{Field: FieldReviewCount, Strategies: attrOrText("aria-label", selectors.ProductReviewCount), Accept: countValidator},
	)
}

// SearchRules covers one search result card; the scope is the card element.
func SearchRules() RuleSet {
	title := textOf(selectors.SearchTitleSpan)
	title = append(title,
		SelectorAttr{Sel: selectors.SearchTitleLabel[0], Attr: "aria-label"},
		SelectorText{Sel: selectors.SearchTitleLabel[0]},
	)

	rating := textOf(selectors.SearchRating)
	rating = append(rating, SelectorAttr{Sel: browser.ByCSS(`a[aria-label*="out of 5 stars"]`), Attr: "aria-label"})

	return NewRuleSet(
		Rule{Field: FieldASIN, Strategies: []Strategy{Own{Attr: "data-asin"}}, Accept: asinValidator},
		Rule{Field: FieldTitle, Strategies: title, Accept: titleValidator(120)},
		Rule{Field: FieldPrice, Strategies: textOf(selectors.SearchPrice), Accept: ParsePrice},
		Rule{Field: FieldRating, Strategies: rating, Accept: ratingValidator},
		Rule{Field: FieldReviewCount, Strategies: attrOrText("aria-label", selectors.SearchReviewCount), Accept: countValidator},
	)
}

// ReviewRules covers one review container; the scope is the review element.
func ReviewRules() RuleSet {
	body := textOf(selectors.ReviewBody)
	body = append(body, LongestLineOf{})

	return NewRuleSet(
		Rule{Field: FieldRating, Strategies: textOf(selectors.ReviewRating), Accept: ratingValidator},
		Rule{Field: FieldTitle, Strategies: textOf(selectors.ReviewTitle), Accept: reviewTitleValidator},
		Rule{Field: FieldReviewBody, Strategies: body, Accept: bodyValidator},
		Rule{Field: FieldReviewer, Strategies: textOf(selectors.ReviewAuthor), Accept: nonEmpty},
		Rule{Field: FieldDate, Strategies: textOf(selectors.ReviewDate), Accept: nonEmpty},
	)
}
