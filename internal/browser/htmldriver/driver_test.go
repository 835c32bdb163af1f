package htmldriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
)

const listingPage = `<html><head><title>Customer reviews</title></head><body>
<div id="reviews">
  <div data-hook="review" id="R1"><span data-hook="review-body">First body<br>second line</span></div>
  <div data-hook="review" id="R2" style="display: none"><span data-hook="review-body">Hidden</span></div>
</div>
<ul class="a-pagination"><li class="a-last"><a href="?pageNumber=2">Next page</a></li></ul>
<form action="/s" method="get">
  <input name="k" id="search" value="">
  <input type="hidden" name="ref" value="nb">
  <input type="submit" value="Go">
  <button type="submit" disabled>Off</button>
</form>
</body></html>`

func newDriver(t *testing.T) *Driver {
	t.Helper()
	d := New()
	d.SetPage("https://www.amazon.com/product-reviews/B000000001/", listingPage)
	d.SetPage("https://www.amazon.com/product-reviews/B000000001/?pageNumber=2", `<html><head><title>Page 2</title></head><body></body></html>`)
	require.NoError(t, d.Navigate("https://www.amazon.com/product-reviews/B000000001/"))
	return d
}

func TestDriver_FindAndText(t *testing.T) {
	d := newDriver(t)

	title, err := d.PageTitle()
	require.NoError(t, err)
	assert.Equal(t, "Customer reviews", title)

	reviews, err := d.FindElements(browser.ByCSS(`div[data-hook="review"]`))
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	body, err := reviews[0].FindElement(browser.ByCSS(`span[data-hook="review-body"]`))
	require.NoError(t, err)
	text, err := body.Text()
	require.NoError(t, err)
	assert.Equal(t, "First body\nsecond line", text)

	id, ok, err := reviews[0].Attribute("id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "R1", id)

	_, ok, err = reviews[0].Attribute("data-review-id")
	require.NoError(t, err)
	assert.False(t, ok)

	visible, err := reviews[1].IsDisplayed()
	require.NoError(t, err)
	assert.False(t, visible)

	_, err = d.FindElement(browser.ByCSS("#missing"))
	assert.ErrorIs(t, err, browser.ErrNoSuchElement)
}

func TestDriver_XPath(t *testing.T) {
	d := newDriver(t)

	elems, err := d.FindElements(browser.ByXPath(`//a[contains(normalize-space(.), 'Next')]`))
	require.NoError(t, err)
	require.Len(t, elems, 1)

	elems, err = d.FindElements(browser.ByXPath(`//div[.//span[@data-hook='review-body']]`))
	require.NoError(t, err)
	assert.Len(t, elems, 3)
}

func TestDriver_ClickLinkNavigates(t *testing.T) {
	d := newDriver(t)

	next, err := d.FindElement(browser.ByCSS("li.a-last a"))
	require.NoError(t, err)
	require.NoError(t, next.Click())

	loc, err := d.CurrentLocation()
	require.NoError(t, err)
	assert.Equal(t, "https://www.amazon.com/product-reviews/B000000001/?pageNumber=2", loc)

	title, _ := d.PageTitle()
	assert.Equal(t, "Page 2", title)

	_, err = next.Text()
	assert.ErrorIs(t, err, ErrStaleElement)
}

func TestDriver_SubmitFormUsesTypedValues(t *testing.T) {
	d := newDriver(t)

	input, err := d.FindElement(browser.ByCSS("#search"))
	require.NoError(t, err)
	require.NoError(t, input.SendKeys("usb "))
	require.NoError(t, input.SendKeys("cable"))

	value, ok, err := input.Attribute("value")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "usb cable", value)

	disabled, err := d.FindElement(browser.ByCSS("button[disabled]"))
	require.NoError(t, err)
	enabled, err := disabled.IsEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, input.Submit())

	loc, _ := d.CurrentLocation()
	assert.Equal(t, "https://www.amazon.com/s?k=usb+cable&ref=nb", loc)

	title, _ := d.PageTitle()
	assert.Equal(t, "Page Not Found", title)
}

func TestDriver_Redirects(t *testing.T) {
	d := New()
	d.SetPage("https://www.amazon.com/ap/signin", `<html><head><title>Amazon Sign-In</title></head></html>`)
	d.Redirect("https://www.amazon.com/product-reviews/B1/", "https://www.amazon.com/ap/signin")

	require.NoError(t, d.Navigate("https://www.amazon.com/product-reviews/B1/"))
	loc, _ := d.CurrentLocation()
	assert.Equal(t, "https://www.amazon.com/ap/signin", loc)

	d.RemoveRedirect("https://www.amazon.com/product-reviews/B1/")
	require.NoError(t, d.Navigate("https://www.amazon.com/product-reviews/B1/"))
	loc, _ = d.CurrentLocation()
	assert.Equal(t, "https://www.amazon.com/product-reviews/B1/", loc)

	assert.Equal(t, []string{
		"https://www.amazon.com/ap/signin",
		"https://www.amazon.com/product-reviews/B1/",
	}, d.History())
}

func TestDriver_QuitInvalidatesEverything(t *testing.T) {
	d := newDriver(t)
	el, err := d.FindElement(browser.ByCSS("#search"))
	require.NoError(t, err)

	require.NoError(t, d.Quit())
	assert.True(t, d.Closed())

	_, err = d.CurrentLocation()
	assert.ErrorIs(t, err, browser.ErrClosed)
	assert.ErrorIs(t, d.Navigate("https://www.amazon.com/"), browser.ErrClosed)
	assert.ErrorIs(t, el.Click(), browser.ErrClosed)
	_, err = d.FindElements(browser.ByCSS("div"))
	assert.ErrorIs(t, err, browser.ErrClosed)
}

func TestDismissInterstitial(t *testing.T) {
	d := New()
	d.SetPage("https://www.amazon.com/", `<html><body>
<p>Click the button below to continue shopping</p>
<a href="/home"><button alt="Continue shopping">Continue shopping</button></a>
</body></html>`)
	d.SetPage("https://www.amazon.com/home", `<html><head><title>Amazon.com</title></head><body></body></html>`)
	require.NoError(t, d.Navigate("https://www.amazon.com/"))

	clicked, err := browser.DismissInterstitial(d)
	require.NoError(t, err)
	assert.True(t, clicked)

	loc, _ := d.CurrentLocation()
	assert.Equal(t, "https://www.amazon.com/home", loc)

	clicked, err = browser.DismissInterstitial(d)
	require.NoError(t, err)
	assert.False(t, clicked)
}
