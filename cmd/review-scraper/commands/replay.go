package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maltedev/amazon-review-scraper/internal/browser/htmldriver"
	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/pacing"
)

var (
	replayPages   int
	replayKeyword string
)

func init() {
	replayCmd.Flags().IntVarP(&replayPages, "pages", "p", 20, "Review pages to read.")
	replayCmd.Flags().StringVarP(&replayKeyword, "keyword", "k", "", "Review keyword filter.")
	rootCmd.AddCommand(replayCmd)
}

// Manifest maps page URLs to saved HTML files relative to the manifest.
type Manifest struct {
	Pages     map[string]string `json:"pages"`
	Redirects map[string]string `json:"redirects,omitempty"`
}

var replayCmd = &cobra.Command{
	Use:   "replay <manifest.json> <ASIN>",
	Short: "Runs a review scrape against saved HTML pages without a browser.",
	Long: `Runs a review scrape against saved HTML pages without a browser.

The manifest lists the URL each saved page was captured from:

  {"pages": {"https://www.amazon.com/product-reviews/B000000001/": "page1.html"}}

No delays are applied and sign-in is never attempted automatically.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := loadManifest(args[0])
		if err != nil {
			return err
		}

		svc, err := newService(serviceOptions{
			driver: driver,
			pacer:  pacing.Instant,
			creds:  credentials.None,
			out:    cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		defer svc.Close()

		return scrapeAndSave(cmd, svc, args[1], replayPages, replayKeyword)
	},
}

func loadManifest(path string) (*htmldriver.Driver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Pages) == 0 {
		return nil, fmt.Errorf("manifest %s lists no pages", path)
	}

	dir := filepath.Dir(path)
	d := htmldriver.New()
	for url, file := range m.Pages {
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		body, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read page for %s: %w", url, err)
		}
		d.SetPage(url, string(body))
	}
	for from, to := range m.Redirects {
		d.Redirect(from, to)
	}
	return d, nil
}
