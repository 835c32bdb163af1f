// Package navigator moves a review listing forward one page at a time and
// tells the caller which page the browser actually landed on.
package navigator

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

var (
	pageParam = regexp.MustCompile(`[?&]pageNumber=(\d+)`)
	digits    = regexp.MustCompile(`\d+`)
)

// Check classifies the page reached after an advance.
type Check int

const (
	OnExpected Check = iota
	// Mismatch means the pager disagrees with our count; scraping continues.
	Mismatch
	// Regressed means Amazon bounced us back to page 1.
	Regressed
)

func (c Check) String() string {
	switch c {
	case OnExpected:
		return "on_expected"
	case Mismatch:
		return "mismatch"
	case Regressed:
		return "regressed"
	default:
		return "unknown"
	}
}

type Navigator struct {
	driver browser.Driver
	pacer  pacing.Pacer
	delays pacing.Delays
	logger *slog.Logger
}

func New(d browser.Driver, pacer pacing.Pacer, delays pacing.Delays, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		driver: d,
		pacer:  pacer,
		delays: delays,
		logger: logger.With("component", "navigator"),
	}
}

// CurrentPage reads the page number from the URL, then from the pager, and
// defaults to 1.
func (n *Navigator) CurrentPage() int {
	if loc, err := n.driver.CurrentLocation(); err == nil {
		if m := pageParam.FindStringSubmatch(loc); m != nil {
			if p, err := strconv.Atoi(m[1]); err == nil && p > 0 {
				return p
			}
		}
	}

	if el, err := n.driver.FindElement(selectors.PageNumber); err == nil {
		if m := digits.FindString(browser.TextOf(el)); m != "" {
			if p, err := strconv.Atoi(m); err == nil && p > 0 {
				return p
			}
		}
	}

	return 1
}

// Advance clicks the next-page control. It returns false when there is no
// usable control, the click fails, or the location did not change. Errors are
// reserved for cancellation and a closed driver.
func (n *Navigator) Advance(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	next, sel, ok := browser.FirstDisplayed(n.driver, selectors.NextPage, true)
	if !ok {
		if _, err := n.driver.CurrentLocation(); errors.Is(err, browser.ErrClosed) {
			return false, err
		}
		n.logger.Info("no next page control")
		return false, nil
	}

	if err := next.ScrollIntoView(); err != nil {
		n.logger.Debug("scroll into view failed", "error", err)
	}
	if err := n.pacer.Pause(ctx, n.delays.Interaction); err != nil {
		return false, err
	}

	before, err := n.driver.CurrentLocation()
	if err != nil {
		return false, fatal(err)
	}

	if err := next.Click(); err != nil {
		if errors.Is(err, browser.ErrClosed) {
			return false, err
		}
		n.logger.Warn("next page click failed", "selector", sel.String(), "error", err)
		return false, nil
	}

	if err := n.pacer.Pause(ctx, n.delays.Transition); err != nil {
		return false, err
	}

	after, err := n.driver.CurrentLocation()
	if err != nil {
		return false, fatal(err)
	}
	if after == before {
		n.logger.Warn("location unchanged after next page click", "url", after)
		return false, nil
	}

	n.logger.Debug("advanced", "from", before, "to", after)
	return true, nil
}

// Verify compares the landed page against expected.
func (n *Navigator) Verify(expected int) Check {
	actual := n.CurrentPage()
	switch {
	case actual == expected:
		return OnExpected
	case actual == 1 && expected > 1:
		n.logger.Warn("navigation regressed to page 1", "expected", expected)
		return Regressed
	default:
		n.logger.Warn("page number mismatch", "expected", expected, "actual", actual)
		return Mismatch
	}
}

func fatal(err error) error {
	if errors.Is(err, browser.ErrClosed) {
		return err
	}
	return nil
}
