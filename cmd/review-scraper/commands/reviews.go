package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/scraper"
)

var (
	reviewPages   int
	reviewKeyword string
	reviewNoLogin bool
)

func init() {
	reviewsCmd.Flags().IntVarP(&reviewPages, "pages", "p", 0, "Review pages to read (1-20). Defaults to SCRAPER_MAX_PAGES.")
	reviewsCmd.Flags().StringVarP(&reviewKeyword, "keyword", "k", "", "Only collect reviews matching this keyword.")
	reviewsCmd.Flags().BoolVar(&reviewNoLogin, "manual-login", false, "Ignore AMAZON_EMAIL/AMAZON_PASSWORD and sign in by hand.")
	rootCmd.AddCommand(reviewsCmd)
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews <ASIN> [--pages N] [--keyword word]",
	Short: "Scrapes the reviews of a product and writes them to a CSV file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pages := reviewPages
		if pages == 0 {
			pages = cfg.Scraper.MaxPages
		}

		var creds credentials.Store = credentials.NewEnvStore(envFile)
		if reviewNoLogin {
			creds = credentials.None
		}

		driver, err := openBrowser()
		if err != nil {
			return err
		}
		svc, err := newService(serviceOptions{
			driver:  driver,
			creds:   creds,
			signals: promptSignals(cmd),
			out:     cmd.OutOrStdout(),
		})
		if err != nil {
			_ = driver.Quit()
			return err
		}
		defer svc.Close()

		return scrapeAndSave(cmd, svc, args[0], pages, reviewKeyword)
	},
}

// scrapeAndSave writes whatever was collected, even when the scrape stopped
// early, and then reports the scrape error.
func scrapeAndSave(cmd *cobra.Command, svc *scraper.Service, asin string, pages int, keyword string) error {
	records, scrapeErr := svc.ScrapeReviews(cmd.Context(), asin, pages, keyword)
	if len(records) > 0 {
		if _, err := svc.SaveReviews(records, asin, keyword); err != nil {
			return errors.Join(scrapeErr, err)
		}
	}
	return scrapeErr
}
