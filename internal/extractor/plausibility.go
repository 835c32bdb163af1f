package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validator decides whether a raw candidate is plausible for a field and
// returns its normalized form.
type Validator func(raw string) (string, bool)

var (
	decimalPattern    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	priceStripPattern = regexp.MustCompile(`[^\d.,$€£\s]`)
	spacePattern      = regexp.MustCompile(`\s+`)
	countPattern      = regexp.MustCompile(`(?i)^\D*?(\d+(?:\.\d+)?)([KM])?`)
	digitsPattern     = regexp.MustCompile(`\d+`)
	starsPrefix       = regexp.MustCompile(`(?i)^\d+(?:[.,]\d+)?\s+out of \d+ stars\s*`)
	asinPattern       = regexp.MustCompile(`^[A-Z0-9]{10}$`)
)

// ParseRating returns the first decimal number in text when it lies in the
// closed range [1, 5].
func ParseRating(text string) (float64, bool) {
	m := decimalPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || v < 1 || v > 5 {
		return 0, false
	}
	return v, true
}

// ParsePrice accepts text carrying a currency symbol and strips everything
// but digits, separators, currency symbols and single spaces.
func ParsePrice(text string) (string, bool) {
	if !strings.ContainsAny(text, "$€£") {
		return "", false
	}
	cleaned := priceStripPattern.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

// ParseCount normalizes review and rating counts such as "1,234 ratings",
// "(3.9K)" or "2M". A K or M directly after the leading number scales it;
// zero and unparsable input are rejected.
func ParseCount(text string) (int, bool) {
	cleaned := strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(text))
	cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")

	if m := countPattern.FindStringSubmatch(cleaned); m != nil && m[2] != "" {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		factor := 1_000.0
		if strings.EqualFold(m[2], "M") {
			factor = 1_000_000
		}
		v := int(math.Round(n * factor))
		return v, v > 0
	}

	m := digitsPattern.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// NormalizeWhitespace collapses every whitespace run to one space.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// CleanReviewTitle drops the "4.0 out of 5 stars" prefix Amazon renders into
// review title links.
func CleanReviewTitle(s string) string {
	return strings.TrimSpace(starsPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}

// LongestLine returns the longest non-empty line of s.
func LongestLine(s string) string {
	longest := ""
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > utf8.RuneCountInString(longest) {
			longest = line
		}
	}
	return longest
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func ratingValidator(raw string) (string, bool) {
	v, ok := ParseRating(raw)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

func countValidator(raw string) (string, bool) {
	v, ok := ParseCount(raw)
	if !ok {
		return "", false
	}
	return strconv.Itoa(v), true
}

func titleValidator(max int) Validator {
	return func(raw string) (string, bool) {
		t := strings.TrimSpace(raw)
		if utf8.RuneCountInString(t) <= 3 {
			return "", false
		}
		return Truncate(t, max), true
	}
}

func nonEmpty(raw string) (string, bool) {
	t := strings.TrimSpace(raw)
	return t, t != ""
}

func reviewTitleValidator(raw string) (string, bool) {
	t := CleanReviewTitle(raw)
	return t, t != ""
}

func bodyValidator(raw string) (string, bool) {
	t := NormalizeWhitespace(raw)
	return t, t != ""
}

func asinValidator(raw string) (string, bool) {
	a := strings.ToUpper(strings.TrimSpace(raw))
	return a, asinPattern.MatchString(a)
}

// IsASIN reports whether s is exactly ten uppercase letters or digits.
func IsASIN(s string) bool {
	return asinPattern.MatchString(s)
}
