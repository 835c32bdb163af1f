// Package amazontest renders Amazon-shaped HTML pages for offline tests.
package amazontest

import (
	"fmt"
	"html"
	"strings"
)

const (
	Domain = "amazon.com"
	Base   = "https://www.amazon.com"

	SignInURL    = Base + "/ap/signin"
	PasswordURL  = Base + "/ap/signin/password"
	TwoFactorURL = Base + "/ap/mfa"
)

type Review struct {
	ID     string
	Rating string
	Title  string
	Body   string
	Author string
	Date   string
}

// ReviewsURL is the review listing URL for page; page 1 has no query.
func ReviewsURL(asin string, page int) string {
	if page <= 1 {
		return fmt.Sprintf("%s/product-reviews/%s/", Base, asin)
	}
	return fmt.Sprintf("%s/product-reviews/%s/?pageNumber=%d", Base, asin, page)
}

// GenerateReviews returns n distinct reviews whose ids and bodies are keyed
// by prefix.
func GenerateReviews(prefix string, n int) []Review {
	out := make([]Review, n)
	for i := range out {
		out[i] = Review{
			ID:     fmt.Sprintf("R%s%03d", strings.ToUpper(prefix), i+1),
			Rating: fmt.Sprintf("%d.0", 1+i%5),
			Title:  fmt.Sprintf("Review %s number %d", prefix, i+1),
			Body:   fmt.Sprintf("This is review %s-%d and it has plenty of words to pass the length filter.", prefix, i+1),
			Author: fmt.Sprintf("Customer %s%d", prefix, i+1),
			Date:   "Reviewed in the United States on May 1, 2024",
		}
	}
	return out
}

type ReviewsPageOptions struct {
	// NextURL renders an enabled next link; empty renders the disabled one.
	NextURL string
	// Selected is the page number shown as current in the pager.
	Selected int
	// FilterForm adds the keyword filter form.
	FilterForm bool
	// SignInLink adds the header "sign in" link real pages carry.
	SignInLink bool
	// ProductTitle replaces "Test Product" in the page title.
	ProductTitle string
}

func ReviewsPage(asin string, reviews []Review, opts ReviewsPageOptions) string {
	product := opts.ProductTitle
	if product == "" {
		product = "Test Product"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>Amazon.com: Customer reviews: %s</title></head><body>`, html.EscapeString(product))
	if opts.SignInLink {
		b.WriteString(`<div id="nav-tools"><a href="/ap/signin?openid.return_to=reviews">Hello, sign in</a></div>`)
	}
	if opts.FilterForm {
		fmt.Fprintf(&b, `<form action="/product-reviews/%s/" method="get">
<input type="search" id="filterByKeywordTextBox" name="filterByKeyword" maxlength="300" placeholder="Search customer reviews">
<span class="a-button"><input type="submit" class="a-button-input" aria-labelledby="a-autoid-1-announce"></span>
</form>`, asin)
	}
	b.WriteString(`<div id="cm_cr-review_list">`)
	for _, r := range reviews {
		b.WriteString(renderReview(r))
	}
	b.WriteString(`</div>`)

	b.WriteString(`<ul class="a-pagination">`)
	if opts.Selected > 0 {
		fmt.Fprintf(&b, `<li class="a-selected"><span>%d</span></li>`, opts.Selected)
	}
	if opts.NextURL != "" {
		fmt.Fprintf(&b, `<li class="a-last"><a href="%s">Next page<span class="a-letter-space"></span></a></li>`, html.EscapeString(opts.NextURL))
	} else {
		b.WriteString(`<li class="a-disabled a-last">Next page</li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func renderReview(r Review) string {
	var b strings.Builder
	b.WriteString(`<div data-hook="review" class="a-section review aok-relative">`)
	if r.ID != "" {
		fmt.Fprintf(&b, `<div id="customer_review-%s" class="a-section celwidget">`, r.ID)
	} else {
		b.WriteString(`<div class="a-section celwidget">`)
	}
	fmt.Fprintf(&b, `<div class="a-profile"><span class="a-profile-name">%s</span></div>`, html.EscapeString(r.Author))
	fmt.Fprintf(&b, `<div class="a-row"><a data-hook="review-title" class="a-link-normal review-title" href="/gp/customer-reviews/%s">`, r.ID)
	if r.Rating != "" {
		fmt.Fprintf(&b, `<i data-hook="review-star-rating" class="a-icon a-icon-star"><span class="a-icon-alt">%s out of 5 stars</span></i><span class="a-letter-space"></span>`, r.Rating)
	} else {
		b.WriteString(`<i class="a-icon a-icon-star a-star-0"></i>`)
	}
	fmt.Fprintf(&b, `<span>%s</span></a></div>`, html.EscapeString(r.Title))
	fmt.Fprintf(&b, `<span data-hook="review-date" class="review-date">%s</span>`, html.EscapeString(r.Date))
	fmt.Fprintf(&b, `<div class="a-row review-data"><span data-hook="review-body" class="review-text"><span>%s</span></span></div>`, html.EscapeString(r.Body))
	b.WriteString(`</div></div>`)
	return b.String()
}

// EmailPage is the first sign-in step; continue posts to PasswordURL.
func EmailPage() string {
	return fmt.Sprintf(`<html><head><title>Amazon Sign-In</title></head><body>
<form name="signIn" method="post" action="%s">
<label for="ap_email">Email or mobile phone number</label>
<input type="email" name="email" id="ap_email">
<span class="a-button"><input id="continue" class="a-button-input" type="submit"></span>
</form></body></html>`, PasswordURL)
}

// PasswordPage is the second sign-in step; sign-in posts to action.
func PasswordPage(action string) string {
	return fmt.Sprintf(`<html><head><title>Amazon Sign-In</title></head><body>
<form name="signIn" method="post" action="%s">
<input type="password" name="password" id="ap_password">
<input id="signInSubmit" class="a-button-input" type="submit">
</form></body></html>`, action)
}

func TwoFactorPage() string {
	return `<html><head><title>Two-Step Verification</title></head><body>
<h1>Two-Step Verification</h1>
<p>For added security, please enter the One Time Password (OTP) generated by your Authenticator App</p>
<form method="post" action="/ap/mfa/verify">
<input type="tel" name="otpCode" id="auth-mfa-otpcode" placeholder="Enter OTP">
<input id="auth-signin-button" type="submit">
</form><p>amazon</p></body></html>`
}

func CaptchaPage() string {
	return `<html><head><title>Robot Check</title></head><body>
<form method="get" action="/errors/validateCaptcha"><input id="captchacharacters" name="field-keywords"></form>
</body></html>`
}

type Product struct {
	ASIN        string
	Title       string
	Price       string
	RatingText  string
	ReviewCount string
}

func ProductURL(asin string) string {
	return fmt.Sprintf("%s/dp/%s", Base, asin)
}

func ProductPage(p Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>Amazon.com: %s</title></head><body>`, html.EscapeString(p.Title))
	fmt.Fprintf(&b, `<input type="hidden" name="ASIN" value="%s">`, p.ASIN)
	if p.Title != "" {
		fmt.Fprintf(&b, `<h1 id="title"><span id="productTitle" class="a-size-large product-title-word-break">  %s  </span></h1>`, html.EscapeString(p.Title))
	}
	if p.Price != "" {
		fmt.Fprintf(&b, `<div id="corePrice"><span class="a-price"><span class="a-offscreen">%s</span><span aria-hidden="true">%s</span></span></div>`, html.EscapeString(p.Price), html.EscapeString(p.Price))
	}
	if p.RatingText != "" {
		fmt.Fprintf(&b, `<span id="acrPopover" title="%s"><i class="a-icon a-icon-star"><span class="a-icon-alt">%s</span></i></span>`, html.EscapeString(p.RatingText), html.EscapeString(p.RatingText))
	}
	if p.ReviewCount != "" {
		fmt.Fprintf(&b, `<span id="acrCustomerReviewText">%s</span>`, html.EscapeString(p.ReviewCount))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

type Card struct {
	ASIN       string
	Title      string
	Price      string
	RatingText string
	CountLabel string
	CountText  string
}

func HomePage() string {
	return `<html><head><title>Amazon.com. Spend less. Smile more.</title></head><body>
<form id="nav-search-bar-form" method="get" action="/s">
<input type="text" id="twotabsearchtextbox" name="field-keywords" value="">
<input type="submit" id="nav-search-submit-button" value="Go">
</form></body></html>`
}

func SearchURL(query string) string {
	return Base + "/s?field-keywords=" + query
}

func SearchPage(cards []Card) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Amazon.com : search</title></head><body><div class="s-main-slot">`)
	for _, c := range cards {
		fmt.Fprintf(&b, `<div data-component-type="s-search-result" data-asin="%s" class="s-result-item">`, c.ASIN)
		fmt.Fprintf(&b, `<h2 aria-label="%s" class="a-size-mini"><a class="a-link-normal" href="/dp/%s"><span>%s</span></a></h2>`,
			html.EscapeString(c.Title), c.ASIN, html.EscapeString(c.Title))
		if c.Price != "" {
			fmt.Fprintf(&b, `<span class="a-price"><span class="a-offscreen">%s</span></span>`, html.EscapeString(c.Price))
		}
		if c.RatingText != "" {
			fmt.Fprintf(&b, `<i class="a-icon a-icon-star-small"><span class="a-icon-alt">%s</span></i>`, html.EscapeString(c.RatingText))
		}
		if c.CountLabel != "" || c.CountText != "" {
			fmt.Fprintf(&b, `<a aria-label="%s" href="/dp/%s#customerReviews"><span class="a-size-base s-underline-text">%s</span></a>`,
				html.EscapeString(c.CountLabel), c.ASIN, html.EscapeString(c.CountText))
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
