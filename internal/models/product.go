package models

import (
	"strconv"
	"time"
)

const (
	UnknownASIN       = "UNKNOWN"
	DefaultReviewer   = "Amazon Customer"
	MinReviewTextLen  = 20
	TitleNotFound     = "Title not found"
	PriceNotAvailable = "Price not available"
	NoRating          = "No rating"
)

// ProductInfo is the result of one product lookup, either a detail page or a
// search result card. ExtractionErrors only ever grows.
type ProductInfo struct {
	ASIN             string   `json:"asin"`
	Title            string   `json:"title"`
	Price            string   `json:"price"`
	Rating           *float64 `json:"rating"`
	ReviewsCount     *int     `json:"reviews_count"`
	URL              string   `json:"url,omitempty"`
	ExtractionErrors []string `json:"extraction_errors,omitempty"`
}

func NewProductInfo() *ProductInfo {
	return &ProductInfo{ASIN: UnknownASIN}
}

func (p *ProductInfo) AddError(note string) {
	p.ExtractionErrors = append(p.ExtractionErrors, note)
}

func (p *ProductInfo) DisplayTitle() string {
	if p.Title == "" {
		return TitleNotFound
	}
	return p.Title
}

func (p *ProductInfo) DisplayPrice() string {
	if p.Price == "" {
		return PriceNotAvailable
	}
	return p.Price
}

func (p *ProductInfo) DisplayRating() string {
	if p.Rating == nil {
		return NoRating
	}
	return FormatRating(p.Rating)
}

func (p *ProductInfo) DisplayReviewsCount() string {
	if p.ReviewsCount == nil {
		return "0"
	}
	return strconv.Itoa(*p.ReviewsCount)
}

// ReviewRecord is one customer review harvested from a review page.
type ReviewRecord struct {
	ASIN     string   `json:"asin"`
	Rating   *float64 `json:"rating"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Reviewer string   `json:"reviewer"`
	Date     string   `json:"date"`
	Page     int      `json:"page"`
	Identity string   `json:"identity"`
}

// FormatRating renders a rating with one decimal, or "" when absent.
func FormatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}

// SessionResult describes a finished review scrape.
type SessionResult struct {
	ID          string         `json:"id"`
	ASIN        string         `json:"asin"`
	Keyword     string         `json:"keyword,omitempty"`
	PageBudget  int            `json:"page_budget"`
	PagesRead   int            `json:"pages_read"`
	Reviews     []ReviewRecord `json:"reviews"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	StopReason  string         `json:"stop_reason,omitempty"`
	Error       string         `json:"error,omitempty"`
}
