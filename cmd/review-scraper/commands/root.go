// Package commands implements the review-scraper command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/amazon-review-scraper/internal/browser"
	"github.com/maltedev/amazon-review-scraper/internal/config"
	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/events"
	"github.com/maltedev/amazon-review-scraper/internal/logging"
	"github.com/maltedev/amazon-review-scraper/internal/login"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
	"github.com/maltedev/amazon-review-scraper/internal/scraper"
)

var (
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "review-scraper",
	Short:        "Searches Amazon products and exports their reviews to CSV.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "The .env file to read settings and credentials from.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Overrides LOG_LEVEL (debug, info, warn, error).")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printer writes notifications for the operator.
func printer(w io.Writer) events.Notifier {
	return events.NotifierFunc(func(e events.Event) {
		switch e.Type {
		case events.TypeError:
			fmt.Fprintln(w, "error:", e.Text)
		case events.TypeProgress:
			fmt.Fprintln(w, "..", e.Text)
		case events.TypeStatus:
			fmt.Fprintln(w, e.Text)
		}
	})
}

// openBrowser starts Chromium with the configured options.
func openBrowser() (*browser.PlaywrightDriver, error) {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout
	if cfg.Browser.UserAgent != "" {
		opts.UserAgent = cfg.Browser.UserAgent
	}
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.ProxyServer = cfg.Browser.ProxyServer
	return browser.New(opts, logger)
}

type serviceOptions struct {
	driver  browser.Driver
	pacer   pacing.Pacer
	creds   credentials.Store
	signals login.Signals
	out     io.Writer
}

func newService(o serviceOptions) (*scraper.Service, error) {
	return scraper.NewService(scraper.Config{
		Driver:          o.driver,
		Domain:          cfg.Scraper.Domain,
		Credentials:     o.creds,
		Signals:         o.signals,
		Pacer:           o.pacer,
		Delays:          cfg.Delays,
		Notifier:        printer(o.out),
		MaxResults:      cfg.Scraper.MaxResults,
		MaxLoginRetries: cfg.Scraper.MaxLoginRetries,
		OutputDir:       cfg.Scraper.OutputDir,
		CacheSize:       cfg.Scraper.SearchCacheSize,
		CacheTTL:        cfg.Scraper.SearchCacheTTL,
		Logger:          logger,
	})
}

// promptSignals asks the operator on stdin for both confirmations. They
// share one prompt so a single goroutine owns stdin.
func promptSignals(cmd *cobra.Command) login.Signals {
	p := login.NewPromptSignal(cmd.InOrStdin(), cmd.OutOrStdout(), "Finish signing in in the browser, then press Enter... ")
	return login.Signals{TwoFactor: p, Manual: p}
}
