package login

import (
	"strings"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

type pageState struct {
	url    string
	title  string
	source string
}

func snapshot(d browser.Driver) pageState {
	var p pageState
	if loc, err := d.CurrentLocation(); err == nil {
		p.url = strings.ToLower(loc)
	}
	if title, err := d.PageTitle(); err == nil {
		p.title = strings.ToLower(title)
	}
	if src, err := d.PageSource(); err == nil {
		p.source = strings.ToLower(src)
	}
	return p
}

// IsLoginPage reports whether the current page asks for a sign-in. A page
// that shows reviews is never a login page, whatever else it contains.
func IsLoginPage(d browser.Driver) bool {
	if browser.Exists(d, selectors.ReviewPresence) {
		return false
	}
	p := snapshot(d)
	return strings.Contains(p.url, "/ap/signin") ||
		strings.Contains(p.title, "sign in") ||
		strings.Contains(p.source, "signin") ||
		strings.Contains(p.title, "amazon sign-in") ||
		(strings.Contains(p.title, "login") && strings.Contains(p.title, "amazon"))
}

// HasTwoFactorChallenge looks for a visible one-time-code input first and
// falls back to the wording of Amazon's verification pages.
func HasTwoFactorChallenge(d browser.Driver) bool {
	if _, _, ok := browser.FirstDisplayed(d, selectors.TwoFactorInput, false); ok {
		return true
	}

	p := snapshot(d)
	hasAmazon := strings.Contains(p.source, "amazon")
	for _, phrase := range []string{"two-step verification", "2-step verification", "verification code", "enter the code"} {
		if hasAmazon && strings.Contains(p.source, phrase) {
			return true
		}
	}
	return (strings.Contains(p.source, "otp") && strings.Contains(p.source, "verification")) ||
		strings.Contains(p.title, "authentication code")
}

// Verified reports whether the browser left the sign-in flow.
func Verified(d browser.Driver) bool {
	p := snapshot(d)
	switch {
	case strings.Contains(p.url, "product-reviews"),
		strings.Contains(p.url, "dp/"),
		strings.Contains(p.url, "product") && strings.Contains(p.title, "amazon"),
		strings.Contains(p.title, "customer reviews"):
		return true
	}
	return !IsLoginPage(d)
}

// HasCaptcha reports whether Amazon is showing its robot check.
func HasCaptcha(d browser.Driver) bool {
	if browser.Exists(d, selectors.CaptchaMarkers...) {
		return true
	}
	title, err := d.PageTitle()
	return err == nil && strings.Contains(strings.ToLower(title), "robot check")
}
