package scraper

import (
	"strings"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

const (
	ReasonLoginRequired = "Login required"
	ReasonCaptcha       = "CAPTCHA/robot detection"
)

// robotCheckTitle is the title of the interstitial captcha page.
const robotCheckTitle = "robot check"

// blockReason inspects the loaded page for a sign-in wall or a robot check.
// A page that shows reviews is never a wall, whatever its title says.
func blockReason(d browser.Driver) (string, bool) {
	if browser.Exists(d, selectors.ReviewPresence) {
		return "", false
	}

	loc, _ := d.CurrentLocation()
	title, _ := d.PageTitle()
	loc = strings.ToLower(loc)
	title = strings.ToLower(strings.TrimSpace(title))

	if strings.Contains(loc, "/ap/signin") || strings.Contains(title, "sign in") {
		return ReasonLoginRequired, true
	}
	if title == robotCheckTitle || strings.Contains(title, "captcha") {
		return ReasonCaptcha, true
	}
	if browser.Exists(d, selectors.CaptchaMarkers...) {
		return ReasonCaptcha, true
	}
	return "", false
}

func (s *Service) checkAccess(page int) *AccessBlockedError {
	reason, blocked := blockReason(s.driver)
	if !blocked {
		return nil
	}
	loc, _ := s.driver.CurrentLocation()
	s.logger.Warn("access blocked", "page", page, "url", loc, "reason", reason)
	return &AccessBlockedError{URL: loc, Page: page, Reason: reason}
}
