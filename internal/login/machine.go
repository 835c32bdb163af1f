// Package login gets a browser past Amazon's sign-in wall. It tries the
// configured account a bounded number of times and then hands over to the
// operator, always returning an explicit terminal state.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
	"github.com/maltedev/amazon-review-scraper/internal/selectors"
)

// DefaultMaxRetries is the number of automatic attempts before the manual
// fallback.
const DefaultMaxRetries = 2

// lookupTries bounds how often a required field is looked for before the
// step gives up.
const lookupTries = 3

type State int

const (
	NoLoginNeeded State = iota
	LoginPageDetected
	AttemptingAutomatic
	TwoFactorPending
	VerifyingSuccess
	ManualFallback
	LoginSucceeded
	LoginFailed
)

func (s State) String() string {
	switch s {
	case NoLoginNeeded:
		return "no_login_needed"
	case LoginPageDetected:
		return "login_page_detected"
	case AttemptingAutomatic:
		return "attempting_automatic"
	case TwoFactorPending:
		return "two_factor_pending"
	case VerifyingSuccess:
		return "verifying_success"
	case ManualFallback:
		return "manual_fallback"
	case LoginSucceeded:
		return "login_succeeded"
	case LoginFailed:
		return "login_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == NoLoginNeeded || s == LoginSucceeded || s == LoginFailed
}

// Transition is one entry of the machine's history.
type Transition struct {
	To      State     `json:"to"`
	Attempt int       `json:"attempt,omitempty"`
	At      time.Time `json:"at"`
}

// AttemptState tracks the automatic attempts of one run.
type AttemptState struct {
	Attempt      int
	MaxRetries   int
	LastVerified bool
}

// Outcome is the decision of a run. Callers act on State only.
type Outcome struct {
	State    State
	Attempts int
	History  []Transition
	// Reason explains a LoginFailed outcome.
	Reason string
}

// Proceed reports whether scraping may continue.
func (o Outcome) Proceed() bool {
	return o.State == NoLoginNeeded || o.State == LoginSucceeded
}

// Path lists the visited states in order.
func (o Outcome) Path() []State {
	out := make([]State, len(o.History))
	for i, t := range o.History {
		out[i] = t.To
	}
	return out
}

type Config struct {
	Driver      browser.Driver
	Credentials credentials.Store
	Pacer       pacing.Pacer
	Delays      pacing.Delays
	Signals     Signals
	Notifier    events.Notifier
	MaxRetries  int
	Logger      *slog.Logger
}

type Machine struct {
	driver  browser.Driver
	creds   credentials.Store
	pacer   pacing.Pacer
	delays  pacing.Delays
	signals Signals
	notify  events.Notifier
	logger  *slog.Logger

	attempts AttemptState
	history  []Transition
	reason   string
}

func NewMachine(cfg Config) *Machine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Credentials == nil {
		cfg.Credentials = credentials.None
	}
	if cfg.Pacer == nil {
		cfg.Pacer = pacing.NewRandomPacer()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = events.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		driver:   cfg.Driver,
		creds:    cfg.Credentials,
		pacer:    cfg.Pacer,
		delays:   cfg.Delays,
		signals:  cfg.Signals,
		notify:   cfg.Notifier,
		logger:   cfg.Logger.With("component", "login"),
		attempts: AttemptState{MaxRetries: cfg.MaxRetries},
	}
}

// Attempts returns the attempt bookkeeping of the last run.
func (m *Machine) Attempts() AttemptState {
	return m.attempts
}

// Run opens targetURL and resolves any sign-in wall in front of it. The error
// is non-nil only when ctx was cancelled or the driver was closed; every other
// failure is expressed as the LoginFailed state.
func (m *Machine) Run(ctx context.Context, targetURL string) (Outcome, error) {
	m.history = nil
	m.reason = ""
	m.attempts = AttemptState{MaxRetries: m.attempts.MaxRetries}

	m.status("Navigating to: " + targetURL)
	if err := m.driver.Navigate(targetURL); err != nil {
		if fatal(ctx, err) {
			return m.outcome(), fmt.Errorf("failed to open %s: %w", targetURL, err)
		}
		m.logger.Warn("failed to open target", "url", targetURL, "error", err)
		return m.fail("Failed to open the reviews page: " + err.Error()), nil
	}
	if err := m.pacer.Pause(ctx, m.delays.PageLoad); err != nil {
		return m.outcome(), err
	}

	loc, err := m.driver.CurrentLocation()
	if err != nil {
		return m.outcome(), err
	}
	if !IsLoginPage(m.driver) || strings.Contains(strings.ToLower(loc), "dp/") {
		m.enter(NoLoginNeeded)
		m.status("No login required - proceeding with scraping.")
		return m.outcome(), nil
	}

	m.enter(LoginPageDetected)
	m.status("Login page detected - attempting automatic login...")

	creds, ok := m.creds.Credentials()
	if !ok {
		m.status("No Amazon credentials configured - manual login required.")
		return m.manual(ctx, targetURL)
	}

	for attempt := 1; attempt <= m.attempts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return m.outcome(), err
		}

		m.attempts.Attempt = attempt
		m.enter(AttemptingAutomatic)
		m.notify.Notify(events.Progress(fmt.Sprintf("Login attempt %d/%d", attempt, m.attempts.MaxRetries)))

		done, err := m.attempt(ctx, creds)
		if err != nil {
			return m.outcome(), err
		}

		if done {
			m.enter(VerifyingSuccess)
			m.attempts.LastVerified = Verified(m.driver)
			if m.attempts.LastVerified {
				m.enter(LoginSucceeded)
				m.status("Automatic login successful!")
				return m.outcome(), nil
			}
			m.status("Login attempt failed verification.")
		} else {
			m.status("Automatic login attempt failed.")
		}

		if attempt < m.attempts.MaxRetries {
			if err := m.pacer.Pause(ctx, m.delays.Retry); err != nil {
				return m.outcome(), err
			}
			if err := m.driver.Refresh(); err != nil {
				if errors.Is(err, browser.ErrClosed) {
					return m.outcome(), err
				}
				m.logger.Warn("refresh before retry failed", "error", err)
			}
			if err := m.pacer.Pause(ctx, m.delays.Interaction); err != nil {
				return m.outcome(), err
			}
		}
	}

	m.status("All automatic login attempts failed.")
	return m.manual(ctx, targetURL)
}

// attempt runs the sign-in form once. It returns false when a required step
// could not be completed.
func (m *Machine) attempt(ctx context.Context, creds credentials.Credentials) (bool, error) {
	email, ok, err := m.find(ctx, selectors.Email, false)
	if err != nil || !ok {
		m.logStep("email field not found", err)
		return false, err
	}
	if err := m.typeInto(ctx, email, creds.Email); err != nil {
		return false, m.stepErr("type email", err)
	}
	if err := m.pacer.Pause(ctx, m.delays.Interaction); err != nil {
		return false, err
	}

	// Continue exists only when email and password are separate steps.
	if _, _, onSamePage := browser.FirstDisplayed(m.driver, selectors.Password, false); !onSamePage {
		if err := m.click(ctx, selectors.ContinueButton); err != nil {
			return false, err
		}
	}

	password, ok, err := m.find(ctx, selectors.Password, false)
	if err != nil || !ok {
		m.logStep("password field not found", err)
		return false, err
	}
	if err := m.typeInto(ctx, password, creds.Password); err != nil {
		return false, m.stepErr("type password", err)
	}
	if err := m.pacer.Pause(ctx, m.delays.Interaction); err != nil {
		return false, err
	}

	signIn, ok, err := m.find(ctx, selectors.SignInButton, true)
	if err != nil || !ok {
		m.logStep("sign in button not found", err)
		return false, err
	}
	if err := signIn.Click(); err != nil {
		return false, m.stepErr("click sign in", err)
	}
	if err := m.pacer.Pause(ctx, m.delays.Login); err != nil {
		return false, err
	}

	if HasTwoFactorChallenge(m.driver) {
		passed, err := m.twoFactor(ctx)
		if err != nil || !passed {
			return false, err
		}
	}

	if err := m.pacer.Pause(ctx, m.delays.LoginComplete); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Machine) twoFactor(ctx context.Context) (bool, error) {
	m.enter(TwoFactorPending)
	m.status("Two-factor authentication detected. Complete it in the browser window, then confirm.")

	if m.signals.TwoFactor == nil {
		m.logger.Warn("two-factor challenge without a confirmation signal")
		return false, nil
	}
	if err := m.signals.TwoFactor.Wait(ctx); err != nil {
		return false, err
	}
	if err := m.pacer.Pause(ctx, m.delays.TwoFactor); err != nil {
		return false, err
	}

	if IsLoginPage(m.driver) {
		m.status("Still on login page after 2FA. Login may have failed.")
		return false, nil
	}
	m.status("2FA completed successfully.")
	return true, nil
}

func (m *Machine) manual(ctx context.Context, targetURL string) (Outcome, error) {
	m.enter(ManualFallback)
	m.status("Manual login required. Sign in in the browser window until the reviews page shows, then confirm.")

	if m.signals.Manual == nil {
		return m.fail("Manual login is not available in this mode."), nil
	}
	if err := m.signals.Manual.Wait(ctx); err != nil {
		return m.outcome(), err
	}

	m.status("Reloading reviews page...")
	if err := m.driver.Navigate(targetURL); err != nil {
		if errors.Is(err, browser.ErrClosed) {
			return m.outcome(), err
		}
		m.logger.Warn("reload after manual login failed", "error", err)
	}
	if err := m.pacer.Pause(ctx, m.delays.PageLoad); err != nil {
		return m.outcome(), err
	}

	if IsLoginPage(m.driver) {
		return m.fail("Still on login page after manual login attempt."), nil
	}
	m.enter(LoginSucceeded)
	return m.outcome(), nil
}

// find looks for the first displayed match, pausing between lookups while
// the page settles.
func (m *Machine) find(ctx context.Context, sels []browser.Selector, requireEnabled bool) (browser.Element, bool, error) {
	for try := 0; try < lookupTries; try++ {
		if el, _, ok := browser.FirstDisplayed(m.driver, sels, requireEnabled); ok {
			return el, true, nil
		}
		if _, err := m.driver.CurrentLocation(); err != nil {
			return nil, false, err
		}
		if try < lookupTries-1 {
			if err := m.pacer.Pause(ctx, m.delays.Interaction); err != nil {
				return nil, false, err
			}
		}
	}
	return nil, false, nil
}

// click presses the first displayed and enabled button. A missing button is
// not an error.
func (m *Machine) click(ctx context.Context, sels []browser.Selector) error {
	button, sel, ok := browser.FirstDisplayed(m.driver, sels, true)
	if !ok {
		return nil
	}
	if err := button.Click(); err != nil {
		m.logger.Debug("button click failed", "selector", sel.String(), "error", err)
		if errors.Is(err, browser.ErrClosed) {
			return err
		}
		return nil
	}
	return m.pacer.Pause(ctx, m.delays.Login)
}

// typeInto enters text one character at a time.
func (m *Machine) typeInto(ctx context.Context, el browser.Element, text string) error {
	if err := el.Clear(); err != nil {
		return err
	}
	for _, r := range text {
		if err := el.SendKeys(string(r)); err != nil {
			return err
		}
		if err := m.pacer.Pause(ctx, m.delays.Typing); err != nil {
			return err
		}
	}
	return nil
}

// fail ends the run in LoginFailed and reports why.
func (m *Machine) fail(reason string) Outcome {
	m.reason = reason
	m.enter(LoginFailed)
	m.notify.Notify(events.Error(reason))
	return m.outcome()
}

// fatal reports whether err ends the run instead of failing the login.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, browser.ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// stepErr keeps fatal errors and turns the rest into a failed step.
func (m *Machine) stepErr(step string, err error) error {
	m.logStep(step+" failed", err)
	if errors.Is(err, browser.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (m *Machine) logStep(msg string, err error) {
	if err != nil {
		m.logger.Warn(msg, "attempt", m.attempts.Attempt, "error", err)
		return
	}
	m.logger.Warn(msg, "attempt", m.attempts.Attempt)
}

func (m *Machine) enter(s State) {
	m.history = append(m.history, Transition{To: s, Attempt: m.attempts.Attempt, At: time.Now()})
	m.logger.Info("login state", "state", s.String(), "attempt", m.attempts.Attempt)
}

func (m *Machine) status(text string) {
	m.notify.Notify(events.Status(text))
}

func (m *Machine) outcome() Outcome {
	state := LoginFailed
	if n := len(m.history); n > 0 {
		state = m.history[n-1].To
	}
	return Outcome{
		State:    state,
		Attempts: m.attempts.Attempt,
		History:  append([]Transition(nil), m.history...),
		Reason:   m.reason,
	}
}
