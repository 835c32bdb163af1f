// Package scraper runs product searches and review scrapes against Amazon
// through a browser.Driver. A Service owns one driver and runs one
// operation at a time.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
)

var (
	ErrInvalidASIN       = errors.New("invalid ASIN")
	ErrInvalidKeyword    = errors.New("review keyword too long")
	ErrEmptySearch       = errors.New("search term is empty")
	ErrLoginBlocked      = errors.New("blocked by Amazon login")
	ErrAccessBlocked     = errors.New("blocked by Amazon anti-bot")
	ErrNavigationStalled = errors.New("pagination stalled")
	ErrCancelled         = errors.New("scrape cancelled")
	ErrNoReviews         = errors.New("no reviews to save")
)

// LoginBlockedError ends a session whose login wall could not be passed.
type LoginBlockedError struct {
	Attempts int
	Reason   string
}

func (e *LoginBlockedError) Error() string {
	return fmt.Sprintf("login blocked after %d attempts: %s", e.Attempts, e.Reason)
}

func (e *LoginBlockedError) Unwrap() error {
	return ErrLoginBlocked
}

// AccessBlockedError records a sign-in wall or robot check that appeared
// after a page load.
type AccessBlockedError struct {
	URL    string
	Page   int
	Reason string
}

func (e *AccessBlockedError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("access blocked on page %d (%s): %s", e.Page, e.URL, e.Reason)
	}
	return fmt.Sprintf("access blocked (%s): %s", e.URL, e.Reason)
}

func (e *AccessBlockedError) Unwrap() error {
	return ErrAccessBlocked
}

// ErrorKind maps an error to the label used in logs and metrics.
func ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	var login *LoginBlockedError
	if errors.As(err, &login) {
		return "login_blocked"
	}
	var access *AccessBlockedError
	if errors.As(err, &access) {
		return "access_blocked"
	}
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, browser.ErrClosed):
		return "browser_closed"
	case errors.Is(err, ErrNavigationStalled):
		return "navigation_stalled"
	case errors.Is(err, ErrInvalidASIN), errors.Is(err, ErrInvalidKeyword), errors.Is(err, ErrEmptySearch):
		return "invalid_input"
	case errors.Is(err, ErrNoReviews):
		return "no_reviews"
	}
	return "other"
}
