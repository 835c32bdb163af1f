package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.False(t, opts.Headless, "login needs a visible window by default")
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "en-US", opts.Locale)
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		raw  string
		want Selector
	}{
		{raw: `div[data-hook="review"]`, want: ByCSS(`div[data-hook="review"]`)},
		{raw: `css=li.a-last a`, want: ByCSS(`li.a-last a`)},
		{raw: `xpath=//a[@id='x']`, want: ByXPath(`//a[@id='x']`)},
		{raw: `//div[.//span]`, want: ByXPath(`//div[.//span]`)},
		{raw: `(//a)[1]`, want: ByXPath(`(//a)[1]`)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSelector(tt.raw))
		})
	}
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "xpath=//a", ByXPath("//a").String())
	assert.Equal(t, "li.a-last a", ByCSS("li.a-last a").String())
}
