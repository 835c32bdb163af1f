package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"out of five", "4.5 out of 5 stars", 4.5, true},
		{"bare number", "4", 4, true},
		{"german decimal comma", "4,3 von 5 Sternen", 4.3, true},
		{"lower bound", "1.0 out of 5 stars", 1, true},
		{"upper bound", "5.0 out of 5 stars", 5, true},
		{"zero rejected", "0 out of 5", 0, false},
		{"above range rejected", "12 ratings", 0, false},
		{"below range rejected", "0.5", 0, false},
		{"no number", "No rating", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRating(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.0001)
				assert.GreaterOrEqual(t, got, 1.0)
				assert.LessOrEqual(t, got, 5.0)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"dollar", "$19.99", "$19.99", true},
		{"euro with label", "Preis: 1.299,00 €", "1.299,00 €", true},
		{"pound with spaces", "  £ 7.50\n ", "£ 7.50", true},
		{"strips letters", "US$24.99 with discount", "$24.99", true},
		{"no currency", "19.99", "", false},
		{"words only", "Currently unavailable", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		ok    bool
	}{
		{"thousands suffix", "3.9K", 3900, true},
		{"millions suffix", "2M", 2000000, true},
		{"fractional millions", "1.25M ratings", 1250000, true},
		{"parenthesized", "(3.9K)", 3900, true},
		{"lowercase k", "12k", 12000, true},
		{"thousands separator", "1,234 global ratings", 1234, true},
		{"plain digits", "87", 87, true},
		{"spaces", "2 345 ratings", 2345, true},
		{"zero rejected", "0 ratings", 0, false},
		{"no digits", "No reviews", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCount(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanReviewTitle(t *testing.T) {
	assert.Equal(t, "Great cable", CleanReviewTitle("4.0 out of 5 stars Great cable"))
	assert.Equal(t, "Great cable", CleanReviewTitle("  5 out of 5 stars   Great cable "))
	assert.Equal(t, "Works", CleanReviewTitle("Works"))
}

func TestLongestLine(t *testing.T) {
	assert.Equal(t, "the longest line of them all", LongestLine("short\n  the longest line of them all  \nmid line"))
	assert.Equal(t, "", LongestLine("\n\n"))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\tb   c "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "äöü", Truncate("äöüß", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
}

func TestIsASIN(t *testing.T) {
	assert.True(t, IsASIN("B08N5WRWNW"))
	assert.True(t, IsASIN("1234567890"))
	assert.False(t, IsASIN("b08n5wrwnw"))
	assert.False(t, IsASIN("B08N5WRWN"))
	assert.False(t, IsASIN("usb cable!"))
}
