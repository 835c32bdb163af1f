package login

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-review-scraper/internal/amazontest"
	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/browser/htmldriver"
	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
)

const asin = "B000000001"

var (
	target  = amazontest.ReviewsURL(asin, 1)
	account = credentials.Static{Email: "shopper@example.com", Password: "hunter2"}
)

// loginWall serves the reviews page behind a redirect to the sign-in flow.
// The password form posts to passwordAction.
func loginWall(passwordAction string) *htmldriver.Driver {
	d := htmldriver.New()
	d.SetPage(target, amazontest.ReviewsPage(asin, amazontest.GenerateReviews("l", 2), amazontest.ReviewsPageOptions{}))
	d.SetPage(amazontest.SignInURL, amazontest.EmailPage())
	d.SetPage(amazontest.PasswordURL, amazontest.PasswordPage(passwordAction))
	d.SetPage(amazontest.TwoFactorURL, amazontest.TwoFactorPage())
	d.Redirect(target, amazontest.SignInURL)
	return d
}

type harness struct {
	driver  *htmldriver.Driver
	pacer   *pacing.Recorder
	events  *events.Buffer
	machine *Machine
}

func newHarness(d *htmldriver.Driver, store credentials.Store, signals Signals) *harness {
	h := &harness{driver: d, pacer: &pacing.Recorder{}, events: events.NewBuffer()}
	h.machine = NewMachine(Config{
		Driver:      d,
		Credentials: store,
		Pacer:       h.pacer,
		Delays:      pacing.DefaultDelays(),
		Signals:     signals,
		Notifier:    h.events,
	})
	return h
}

func unlock(d *htmldriver.Driver) Signal {
	return SignalFunc(func(context.Context) error {
		d.RemoveRedirect(target)
		return nil
	})
}

func TestRun_NoLoginNeeded(t *testing.T) {
	d := loginWall(amazontest.SignInURL)
	d.RemoveRedirect(target)
	h := newHarness(d, account, Signals{})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, NoLoginNeeded, out.State)
	assert.True(t, out.Proceed())
	assert.Equal(t, []State{NoLoginNeeded}, out.Path())
	assert.Equal(t, 0, out.Attempts)
	assert.Equal(t, 1, h.pacer.Count(pacing.DefaultDelays().PageLoad))
}

func TestRun_ProductPageNeverNeedsLogin(t *testing.T) {
	d := htmldriver.New()
	productURL := amazontest.ProductURL(asin)
	d.SetPage(productURL, amazontest.EmailPage())
	h := newHarness(d, account, Signals{})

	out, err := h.machine.Run(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, NoLoginNeeded, out.State)
}

func TestRun_AutomaticLogin(t *testing.T) {
	d := loginWall(target + "?ref=signin_done")
	h := newHarness(d, account, Signals{})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, LoginSucceeded, out.State)
	assert.Equal(t, []State{LoginPageDetected, AttemptingAutomatic, VerifyingSuccess, LoginSucceeded}, out.Path())
	assert.Equal(t, 1, out.Attempts)
	assert.True(t, h.machine.Attempts().LastVerified)

	subs := d.Submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, amazontest.PasswordURL, subs[0].Action)
	assert.Equal(t, "shopper@example.com", subs[0].Values.Get("email"))
	assert.Equal(t, "hunter2", subs[1].Values.Get("password"))

	typed := len("shopper@example.com") + len("hunter2")
	assert.Equal(t, typed, h.pacer.Count(pacing.DefaultDelays().Typing), "one pause per typed character")
	assert.Contains(t, h.events.Texts(events.TypeStatus), "Automatic login successful!")
	assert.Equal(t, []string{"Login attempt 1/2"}, h.events.Texts(events.TypeProgress))
}

func TestRun_TwoFailedAttemptsFallBackToManual(t *testing.T) {
	d := loginWall(amazontest.SignInURL)
	h := newHarness(d, account, Signals{Manual: unlock(d)})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, LoginSucceeded, out.State)
	assert.Equal(t, []State{
		LoginPageDetected,
		AttemptingAutomatic, VerifyingSuccess,
		AttemptingAutomatic, VerifyingSuccess,
		ManualFallback,
		LoginSucceeded,
	}, out.Path())
	assert.Equal(t, 2, out.Attempts)
	assert.False(t, h.machine.Attempts().LastVerified)
	assert.Equal(t, 1, h.pacer.Count(pacing.DefaultDelays().Retry), "no retry pause after the last attempt")
	assert.Contains(t, h.events.Texts(events.TypeStatus), "All automatic login attempts failed.")
}

func TestRun_LoginFailedOnlyWhenManualAlsoFails(t *testing.T) {
	d := loginWall(amazontest.SignInURL)
	confirmed := false
	manual := SignalFunc(func(context.Context) error {
		confirmed = true
		return nil
	})
	h := newHarness(d, account, Signals{Manual: manual})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)

	assert.True(t, confirmed)
	assert.Equal(t, LoginFailed, out.State)
	assert.False(t, out.Proceed())
	assert.Equal(t, ManualFallback, out.Path()[len(out.Path())-2])
	assert.Equal(t, []string{"Still on login page after manual login attempt."}, h.events.Texts(events.TypeError))
}

func TestRun_NoCredentialsGoesStraightToManual(t *testing.T) {
	d := loginWall(amazontest.SignInURL)
	h := newHarness(d, credentials.None, Signals{Manual: unlock(d)})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, []State{LoginPageDetected, ManualFallback, LoginSucceeded}, out.Path())
	assert.Equal(t, 0, out.Attempts)
	assert.Empty(t, d.Submissions())
}

func TestRun_NoManualSignalFails(t *testing.T) {
	d := loginWall(amazontest.SignInURL)
	h := newHarness(d, credentials.None, Signals{})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, LoginFailed, out.State)
}

// failingNavigation serves pages normally but cannot load any URL.
type failingNavigation struct {
	*htmldriver.Driver
	err error
}

func (f failingNavigation) Navigate(string) error {
	return f.err
}

func TestRun_NavigationFailure(t *testing.T) {
	d := failingNavigation{Driver: loginWall(amazontest.SignInURL), err: errors.New("Timeout 30000ms exceeded")}
	evts := events.NewBuffer()
	m := NewMachine(Config{
		Driver:      d,
		Credentials: account,
		Pacer:       &pacing.Recorder{},
		Delays:      pacing.DefaultDelays(),
		Notifier:    evts,
	})

	out, err := m.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, LoginFailed, out.State)
	assert.Equal(t, []State{LoginFailed}, out.Path())
	assert.Equal(t, "Failed to open the reviews page: Timeout 30000ms exceeded", out.Reason)
	assert.Equal(t, []string{out.Reason}, evts.Texts(events.TypeError))
	assert.Empty(t, d.Submissions())
}

func TestRun_NavigationFatalErrors(t *testing.T) {
	t.Run("closed driver", func(t *testing.T) {
		d := loginWall(amazontest.SignInURL)
		require.NoError(t, d.Quit())
		h := newHarness(d, account, Signals{})

		_, err := h.machine.Run(context.Background(), target)
		assert.ErrorIs(t, err, browser.ErrClosed)
		assert.Empty(t, h.events.Texts(events.TypeError))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := failingNavigation{Driver: loginWall(amazontest.SignInURL), err: errors.New("navigation aborted")}
		m := NewMachine(Config{Driver: d, Credentials: account, Pacer: &pacing.Recorder{}, Notifier: events.NewBuffer()})

		_, err := m.Run(ctx, target)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "navigation aborted")
	})
}

func TestRun_TwoFactor(t *testing.T) {
	d := loginWall(amazontest.TwoFactorURL)
	waited := 0
	twoFactor := SignalFunc(func(context.Context) error {
		waited++
		d.RemoveRedirect(target)
		return d.Navigate(target)
	})
	h := newHarness(d, account, Signals{TwoFactor: twoFactor})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, 1, waited)
	assert.Equal(t, []State{LoginPageDetected, AttemptingAutomatic, TwoFactorPending, VerifyingSuccess, LoginSucceeded}, out.Path())
	assert.Equal(t, 1, h.pacer.Count(pacing.DefaultDelays().TwoFactor))
	assert.Contains(t, h.events.Texts(events.TypeStatus), "2FA completed successfully.")
}

func TestRun_TwoFactorStillOnLoginPage(t *testing.T) {
	d := loginWall(amazontest.TwoFactorURL)
	h := newHarness(d, account, Signals{
		TwoFactor: SignalFunc(func(context.Context) error { return nil }),
	})

	out, err := h.machine.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, LoginFailed, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.Contains(t, h.events.Texts(events.TypeStatus), "Still on login page after 2FA. Login may have failed.")
}

func TestRun_CancelledWhileWaitingForOperator(t *testing.T) {
	d := loginWall(amazontest.SignInURL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manual := SignalFunc(func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	h := newHarness(d, credentials.None, Signals{Manual: manual})

	out, err := h.machine.Run(ctx, target)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ManualFallback, out.State)
	assert.False(t, out.Proceed())
}

func TestRun_ClosedDriver(t *testing.T) {
	d := loginWall(amazontest.SignInURL)
	require.NoError(t, d.Quit())
	h := newHarness(d, account, Signals{})

	out, err := h.machine.Run(context.Background(), target)
	assert.ErrorIs(t, err, browser.ErrClosed)
	assert.Equal(t, LoginFailed, out.State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "manual_fallback", ManualFallback.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, LoginFailed.Terminal())
	assert.False(t, TwoFactorPending.Terminal())
}
