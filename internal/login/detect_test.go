package login

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-review-scraper/internal/amazontest"
	"github.com/maltedev/amazon-review-scraper/internal/browser/htmldriver"
)

func page(t *testing.T, url, body string) *htmldriver.Driver {
	t.Helper()
	d := htmldriver.New()
	d.SetPage(url, body)
	require.NoError(t, d.Navigate(url))
	return d
}

func TestIsLoginPage(t *testing.T) {
	reviews := amazontest.GenerateReviews("d", 1)

	tests := []struct {
		name string
		url  string
		body string
		want bool
	}{
		{"signin url", amazontest.SignInURL, `<html><head><title>x</title></head><body></body></html>`, true},
		{"sign in title", amazontest.Base + "/x", `<html><head><title>Please Sign In</title></head><body></body></html>`, true},
		{"signin in source", amazontest.Base + "/x", `<html><head><title>x</title></head><body><a href="/ap/signin">Hello</a></body></html>`, true},
		{"login and amazon in title", amazontest.Base + "/x", `<html><head><title>Amazon Login</title></head><body></body></html>`, true},
		{"plain page", amazontest.Base + "/x", `<html><head><title>Amazon.com</title></head><body>hi</body></html>`, false},
		{
			name: "reviews override every login indicator",
			url:  amazontest.SignInURL,
			body: amazontest.ReviewsPage(asin, reviews, amazontest.ReviewsPageOptions{SignInLink: true}),
			want: false,
		},
		{
			name: "empty reviews page with header sign in link",
			url:  target,
			body: amazontest.ReviewsPage(asin, nil, amazontest.ReviewsPageOptions{SignInLink: true}),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoginPage(page(t, tt.url, tt.body)))
		})
	}
}

func TestHasTwoFactorChallenge(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"otp input", amazontest.TwoFactorPage(), true},
		{"code input", `<html><body><input name="auth_code"></body></html>`, true},
		{"hidden code input and no wording", `<html><body><input type="hidden" name="code"></body></html>`, false},
		{"two-step wording", `<html><body><p>Two-Step Verification</p><p>Amazon</p></body></html>`, true},
		{"wording without amazon", `<html><body><p>Enter the code we sent</p></body></html>`, false},
		{"otp and verification", `<html><body>OTP verification pending</body></html>`, true},
		{"authentication code title", `<html><head><title>Authentication Code Required</title></head><body></body></html>`, true},
		{"email page", amazontest.EmailPage(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasTwoFactorChallenge(page(t, amazontest.TwoFactorURL, tt.body)))
		})
	}
}

func TestVerified(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
		want bool
	}{
		{"reviews url", target, amazontest.EmailPage(), true},
		{"product url", amazontest.ProductURL(asin), amazontest.EmailPage(), true},
		{"customer reviews title", amazontest.SignInURL, `<html><head><title>Customer Reviews: Thing</title></head></html>`, true},
		{"still signing in", amazontest.SignInURL, amazontest.EmailPage(), false},
		{"home page", amazontest.Base + "/", amazontest.HomePage(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verified(page(t, tt.url, tt.body)))
		})
	}
}

func TestHasCaptcha(t *testing.T) {
	assert.True(t, HasCaptcha(page(t, amazontest.Base+"/errors/validateCaptcha", amazontest.CaptchaPage())))
	assert.False(t, HasCaptcha(page(t, amazontest.Base+"/", amazontest.HomePage())))
}

func TestChannelSignal(t *testing.T) {
	s := NewChannelSignal()
	s.Fire()
	s.Fire()
	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded, "repeated fires collapse into one")
}

func TestChannelSignal_Reset(t *testing.T) {
	s := NewChannelSignal()
	s.Fire()
	s.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}

func TestPromptSignal(t *testing.T) {
	var out strings.Builder
	s := NewPromptSignal(strings.NewReader("\n"), &out, "Press Enter: ")

	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, "Press Enter: ", out.String())

	require.NoError(t, s.Wait(context.Background()), "closed input confirms")
}
