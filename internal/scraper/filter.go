package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

// applyKeywordFilter narrows the review listing to keyword through the
// page's own search box. It reports whether the filter took effect; only
// cancellation and a closed driver are returned as errors.
func (s *Service) applyKeywordFilter(ctx context.Context, keyword string) (bool, error) {
	s.status(fmt.Sprintf("Applying review keyword filter: %q", keyword))

	if err := s.pacer.Pause(ctx, s.delays.PageLoad); err != nil {
		return false, err
	}

	input, sel, ok := browser.FirstDisplayed(s.driver, selectors.ReviewSearchInput, false)
	if !ok {
		if _, err := s.driver.CurrentLocation(); errors.Is(err, browser.ErrClosed) {
			return false, err
		}
		s.status("Review search input not found - proceeding without filter")
		return false, nil
	}
	s.logger.Debug("review search input found", "selector", sel.String())

	if err := s.typeInto(ctx, input, keyword); err != nil {
		return false, s.filterErr("typing keyword", err)
	}
	if err := s.pacer.Pause(ctx, s.delays.Interaction); err != nil {
		return false, err
	}

	if button, _, ok := browser.FirstDisplayed(s.driver, selectors.ReviewFilterSubmit, true); ok {
		if err := button.Click(); err != nil {
			return false, s.filterErr("clicking filter submit", err)
		}
		s.status("Clicked submit button for keyword filter")
	} else {
		if err := input.Submit(); err != nil {
			return false, s.filterErr("submitting keyword", err)
		}
		s.status("Submitted keyword filter with Enter key (fallback)")
	}

	if err := s.pacer.Pause(ctx, s.delays.Transition); err != nil {
		return false, err
	}

	loc, err := s.driver.CurrentLocation()
	if err != nil {
		return false, err
	}
	source, _ := s.driver.PageSource()
	if strings.Contains(loc, "filterByKeyword") || strings.Contains(strings.ToLower(source), strings.ToLower(keyword)) {
		s.status("Review keyword filter applied successfully")
		return true, nil
	}

	s.status("WARNING: Keyword filter may not have been applied")
	return false, nil
}

func (s *Service) filterErr(step string, err error) error {
	s.logger.Warn("keyword filter step failed", "step", step, "error", err)
	if isFatal(err) {
		return err
	}
	return nil
}

// typeInto enters text one character at a time with typing pauses.
func (s *Service) typeInto(ctx context.Context, el browser.Element, text string) error {
	if err := el.Clear(); err != nil {
		return err
	}
	for _, r := range text {
		if err := el.SendKeys(string(r)); err != nil {
			return err
		}
		if err := s.pacer.Pause(ctx, s.delays.Typing); err != nil {
			return err
		}
	}
	return nil
}
