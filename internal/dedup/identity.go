// Package dedup gives every review a stable identity and remembers which
// identities a scrape session has already recorded.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

const (
	titlePrefixLen = 20
	textPrefixLen  = 100
	identityLen    = 16
)

// Identify returns native when the page exposed one. Otherwise the identity
// is a content hash over the title prefix, rating and text prefix, so the same
// review seen on two pages collapses to one key.
func Identify(native, title string, rating *float64, text string) string {
	if native = strings.TrimSpace(native); native != "" {
		return native
	}

	r := ""
	if rating != nil {
		r = strconv.FormatFloat(*rating, 'g', -1, 64)
	}

	sum := sha256.Sum256([]byte(prefix(title, titlePrefixLen) + "|" + r + "|" + prefix(text, textPrefixLen)))
	return hex.EncodeToString(sum[:])[:identityLen]
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// NativeID reads the site-assigned review id from el or its first
// review-tagged descendant. Lookup errors mean "no native id".
func NativeID(el browser.Element) string {
	if v, ok, err := el.Attribute("data-review-id"); err == nil && ok && v != "" {
		return v
	}

	child, err := el.FindElement(selectors.ReviewNativeID)
	if err != nil {
		return ""
	}
	for _, name := range []string{"data-review-id", "id"} {
		if v, ok, err := child.Attribute(name); err == nil && ok && v != "" {
			return v
		}
	}
	return ""
}
