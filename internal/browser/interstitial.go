package browser

import (
	"errors"
	"strings"
)

// Markers of the "click to continue shopping" interstitial Amazon shows to
// fresh sessions, in the storefront languages we target.
var interstitialMarkers = []string{
	"Click the button below to continue shopping",
	"Continue shopping",
	"Klicke auf die Schaltfläche unten",
	"Weiter shoppen",
}

var InterstitialButtons = []Selector{
	ByCSS(`button[alt="Continue shopping"]`),
	ByXPath(`//button[contains(normalize-space(.), 'Continue shopping')]`),
	ByXPath(`//button[contains(normalize-space(.), 'Weiter shoppen')]`),
	ByCSS(`input[type="submit"][value*="Weiter"]`),
	ByCSS(`.a-button-primary button`),
}

// DismissInterstitial clicks through the continue-shopping page when it is
// showing. It reports whether a button was clicked; a page without the
// interstitial is not an error.
func DismissInterstitial(d Driver) (bool, error) {
	content, err := d.PageSource()
	if err != nil {
		return false, err
	}

	present := false
	for _, marker := range interstitialMarkers {
		if strings.Contains(content, marker) {
			present = true
			break
		}
	}
	if !present {
		return false, nil
	}

	for _, sel := range InterstitialButtons {
		button, err := d.FindElement(sel)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return false, err
			}
			continue
		}
		if err := button.Click(); err != nil {
			continue
		}
		return true, nil
	}

	return false, nil
}
