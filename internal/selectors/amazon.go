// Package selectors holds the locator strategies for Amazon pages as plain
// data. Lists are ordered by preference; callers try them front to back.
package selectors

import "github.com/maltedev/amazon-review-scraper/internal/browser"

func css(exprs ...string) []browser.Selector {
	out := make([]browser.Selector, len(exprs))
	for i, e := range exprs {
		out[i] = browser.ByCSS(e)
	}
	return out
}

func xpath(exprs ...string) []browser.Selector {
	out := make([]browser.Selector, len(exprs))
	for i, e := range exprs {
		out[i] = browser.ByXPath(e)
	}
	return out
}

// Product detail page.
var (
	ProductTitle = css(
		`#productTitle`,
		`span#productTitle`,
		`h1#title`,
		`h1.a-size-large`,
		`.product-title-word-break`,
		`h1[data-automation-id="product-title"]`,
		`.a-size-large.product-title-word-break`,
		`h1[data-feature-name="productTitle"]`,
	)

	ProductPrice = css(
		`span.a-price:not(.a-text-price) span.a-offscreen`,
		`span.a-price span.a-offscreen`,
		`.a-price .a-offscreen`,
		`#price_inside_buybox`,
		`#priceblock_ourprice`,
		`#priceblock_dealprice`,
		`#priceblock_saleprice`,
		`.a-price .a-price-whole`,
		`span.a-color-price`,
		`span[data-price-type="listPrice"] .a-offscreen`,
		`span[data-price-type="price"] .a-offscreen`,
	)

	ProductRating = css(
		`span[data-hook="rating-out-of-text"]`,
		`i.a-icon-star span.a-icon-alt`,
		`#acrPopover`,
		`.a-icon-alt`,
		`a[aria-label*="out of 5 stars"]`,
		`span[aria-label*="out of 5 stars"]`,
	)

	ProductReviewCount = css(
		`#acrCustomerReviewText`,
		`span[data-hook="total-review-count"]`,
		`#customerReviews`,
		`a[href*="product-reviews"]`,
		`span[data-hook="rating-out-of-text"]`,
		`span[aria-label*="ratings"]`,
		`a[aria-label*="ratings"]`,
	)

	ASINInput = css(`input[name="ASIN"]`, `input#ASIN`)
	ASINData  = css(`[data-asin]`)
)

// Search results.
var (
	SearchBox        = css(`input[name="field-keywords"]`, `#twotabsearchtextbox`)
	SearchResult     = browser.ByCSS(`div[data-component-type="s-search-result"]`)
	SearchTitleSpan  = css(`h2 span`, `h2 a span`)
	SearchTitleLabel = css(`h2`)
	SearchPrice      = css(
		`span.a-price:not(.a-text-price) span.a-offscreen`,
		`span.a-price span.a-offscreen`,
		`.a-price .a-offscreen`,
	)
	SearchRating = css(
		`span.a-size-small.a-color-base`,
		`span.a-icon-alt`,
		`a[aria-label*="out of 5 stars"]`,
		`i span.a-icon-alt`,
		`.a-icon-star-mini span.a-icon-alt`,
	)
	SearchReviewCount = css(
		`a[aria-label*="ratings"]`,
		`span.a-size-mini.puis-normal-weight-text.s-underline-text`,
		`span.a-size-base.s-underline-text`,
		`span[aria-label*="ratings"]`,
	)
)

// Review pages.
var (
	ReviewContainers = css(
		`div[data-hook="review"]`,
		`div[data-hook="cr-review"]`,
		`section[data-hook="review"]`,
		`div:has(> div > span[data-hook="review-body"])`,
		`div:has(span[data-hook="review-body"])`,
	)

	ReviewContainersXPath = xpath(
		`//div[.//span[@data-hook='review-body'] and .//i[contains(@class, 'star')]]`,
		`//*[@data-hook='review' or @data-hook='cr-review']`,
		`//div[contains(@class, 'review') and .//span[@data-hook='review-body']]`,
	)

	// A genuine review container has both of these.
	ReviewBodyMarker = browser.ByCSS(`span[data-hook="review-body"]`)
	ReviewStarMarker = browser.ByCSS(`i[class*="star"], span.a-icon-alt`)

	// Any review on the page; its presence overrides login-page heuristics.
	ReviewPresence = browser.ByCSS(`div[data-hook="review"], div[data-hook="cr-review"]`)

	ReviewRating = css(
		`i[data-hook="cmps-review-star-rating"] span.a-icon-alt`,
		`i[data-hook="review-star-rating"] span.a-icon-alt`,
		`span.a-icon-alt`,
		`i.a-icon-star span.a-icon-alt`,
	)
	ReviewTitle = css(
		`a[data-hook="review-title"] span:not(.a-icon-alt):not(.a-letter-space)`,
		`a[data-hook="review-title"]`,
		`span[data-hook="review-title"]`,
		`a.review-title`,
	)
	ReviewBody = css(
		`span[data-hook="review-body"]`,
		`div[data-hook="review-body"]`,
		`div.a-expander-content.reviewText`,
		`div.review-text-content`,
	)
	ReviewAuthor   = css(`span.a-profile-name`)
	ReviewDate     = css(`span[data-hook="review-date"]`)
	ReviewNativeID = browser.ByCSS(`[data-review-id], [id*="review"]`)

	NextPage = []browser.Selector{
		browser.ByCSS(`li.a-last a`),
		browser.ByCSS(`a[data-hook="next-page"]`),
		browser.ByCSS(`.a-pagination .a-last a`),
		browser.ByCSS(`li.a-last > a`),
		browser.ByCSS(`a[aria-label="Next page"]`),
		browser.ByXPath(`//a[contains(normalize-space(.), 'Next')]`),
	}
	PageNumber = browser.ByCSS(`li.a-selected span`)

	ReviewSearchInput = css(
		`input[id="filterByKeywordTextBox"]`,
		`input[placeholder*="Search customer reviews"]`,
		`input[placeholder*="search customer reviews"]`,
		`input[type="search"][maxlength="300"]`,
	)
	ReviewFilterSubmit = css(
		`input.a-button-input[aria-labelledby="a-autoid-1-announce"]`,
		`input[type="submit"][class*="a-button-input"]`,
		`input[type="submit"]`,
	)
)

// Sign-in flow.
var (
	Email = css(
		`input[name="email"]`,
		`input[name="username"]`,
		`input[type="email"]`,
		`input[placeholder*="email"]`,
		`input[placeholder*="Email"]`,
		`#ap_email`,
	)
	Password = css(
		`input[name="password"]`,
		`input[type="password"]`,
		`#ap_password`,
	)
	ContinueButton = css(
		`#continue`,
		`span[id="continue"]`,
		`input[aria-labelledby="continue"]`,
		`input[type="submit"]`,
		`button[type="submit"]`,
	)
	SignInButton = css(
		`#signInSubmit`,
		`span[id="signInSubmit"]`,
		`button[aria-labelledby="signInSubmit"]`,
		`input[type="submit"]`,
		`button[type="submit"]`,
	)
	TwoFactorInput = css(
		`input[placeholder*="code"]`,
		`input[placeholder*="OTP"]`,
		`input[name*="code"]`,
		`input[name*="otp"]`,
		`input[id*="code"]`,
		`input[id*="otp"]`,
	)
	CaptchaMarkers = css(
		`#captchacharacters`,
		`form[action*="Captcha"]`,
		`form[action*="validateCaptcha"]`,
	)
)
