package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       false,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "America/New_York",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// PlaywrightDriver drives one Chromium tab. It is not safe for concurrent use
// apart from Quit, which may be called from another goroutine to unblock an
// in-flight call.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func New(opts *Options, logger *slog.Logger) (*PlaywrightDriver, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := map[string]string{}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	return &PlaywrightDriver{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
		timeout: opts.Timeout,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (d *PlaywrightDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// guard maps any failure after Quit to ErrClosed so callers see one error.
func (d *PlaywrightDriver) guard(err error) error {
	if err == nil {
		return nil
	}
	if d.isClosed() {
		return ErrClosed
	}
	return err
}

func (d *PlaywrightDriver) Navigate(url string) error {
	if d.isClosed() {
		return ErrClosed
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(d.timeout.Milliseconds())),
	})
	if err != nil {
		return d.guard(fmt.Errorf("failed to navigate to %s: %w", url, err))
	}
	return nil
}

func (d *PlaywrightDriver) CurrentLocation() (string, error) {
	if d.isClosed() {
		return "", ErrClosed
	}
	return d.page.URL(), nil
}

func (d *PlaywrightDriver) PageTitle() (string, error) {
	if d.isClosed() {
		return "", ErrClosed
	}
	title, err := d.page.Title()
	if err != nil {
		return "", d.guard(fmt.Errorf("failed to get page title: %w", err))
	}
	return title, nil
}

func (d *PlaywrightDriver) PageSource() (string, error) {
	if d.isClosed() {
		return "", ErrClosed
	}
	content, err := d.page.Content()
	if err != nil {
		return "", d.guard(fmt.Errorf("failed to get page content: %w", err))
	}
	return content, nil
}

func (d *PlaywrightDriver) Refresh() error {
	if d.isClosed() {
		return ErrClosed
	}
	if _, err := d.page.Reload(); err != nil {
		return d.guard(fmt.Errorf("failed to reload page: %w", err))
	}
	return nil
}

func (d *PlaywrightDriver) FindElement(sel Selector) (Element, error) {
	return findFirst(d, d.page.Locator(sel.String()))
}

func (d *PlaywrightDriver) FindElements(sel Selector) ([]Element, error) {
	return findAll(d, d.page.Locator(sel.String()))
}

// Quit closes the tab and the browser process. Calling it twice is a no-op.
func (d *PlaywrightDriver) Quit() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	var errs []error

	if d.context != nil {
		if err := d.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		d.logger.Warn("errors during close", "errors", errs)
		return errors.Join(errs...)
	}

	return nil
}

func findFirst(d *PlaywrightDriver, loc playwright.Locator) (Element, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	count, err := loc.Count()
	if err != nil {
		return nil, d.guard(err)
	}
	if count == 0 {
		return nil, ErrNoSuchElement
	}
	return &playwrightElement{driver: d, loc: loc.First()}, nil
}

func findAll(d *PlaywrightDriver, loc playwright.Locator) ([]Element, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	locs, err := loc.All()
	if err != nil {
		return nil, d.guard(err)
	}
	elems := make([]Element, 0, len(locs))
	for _, l := range locs {
		elems = append(elems, &playwrightElement{driver: d, loc: l})
	}
	return elems, nil
}

type playwrightElement struct {
	driver *PlaywrightDriver
	loc    playwright.Locator
}

func (e *playwrightElement) FindElement(sel Selector) (Element, error) {
	return findFirst(e.driver, e.loc.Locator(sel.String()))
}

func (e *playwrightElement) FindElements(sel Selector) ([]Element, error) {
	return findAll(e.driver, e.loc.Locator(sel.String()))
}

// Text prefers rendered text and falls back to textContent for visually
// hidden nodes such as price spans.
func (e *playwrightElement) Text() (string, error) {
	if e.driver.isClosed() {
		return "", ErrClosed
	}
	text, err := e.loc.InnerText()
	if err != nil {
		return "", e.driver.guard(err)
	}
	if text != "" {
		return text, nil
	}
	content, err := e.loc.TextContent()
	if err != nil {
		return "", e.driver.guard(err)
	}
	return content, nil
}

func (e *playwrightElement) Attribute(name string) (string, bool, error) {
	if e.driver.isClosed() {
		return "", false, ErrClosed
	}
	value, err := e.loc.GetAttribute(name)
	if err != nil {
		return "", false, e.driver.guard(err)
	}
	return value, value != "", nil
}

func (e *playwrightElement) Click() error {
	if e.driver.isClosed() {
		return ErrClosed
	}
	return e.driver.guard(e.loc.Click())
}

func (e *playwrightElement) SendKeys(text string) error {
	if e.driver.isClosed() {
		return ErrClosed
	}
	return e.driver.guard(e.loc.PressSequentially(text))
}

func (e *playwrightElement) Clear() error {
	if e.driver.isClosed() {
		return ErrClosed
	}
	return e.driver.guard(e.loc.Clear())
}

func (e *playwrightElement) Submit() error {
	if e.driver.isClosed() {
		return ErrClosed
	}
	return e.driver.guard(e.loc.Press("Enter"))
}

func (e *playwrightElement) IsDisplayed() (bool, error) {
	if e.driver.isClosed() {
		return false, ErrClosed
	}
	visible, err := e.loc.IsVisible()
	return visible, e.driver.guard(err)
}

func (e *playwrightElement) IsEnabled() (bool, error) {
	if e.driver.isClosed() {
		return false, ErrClosed
	}
	enabled, err := e.loc.IsEnabled()
	return enabled, e.driver.guard(err)
}

func (e *playwrightElement) ScrollIntoView() error {
	if e.driver.isClosed() {
		return ErrClosed
	}
	return e.driver.guard(e.loc.ScrollIntoViewIfNeeded())
}
