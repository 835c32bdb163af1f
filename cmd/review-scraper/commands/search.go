package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maltedev/amazon-review-scraper/internal/credentials"
	"github.com/maltedev/amazon-review-scraper/internal/models"
)

func init() {
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword | ASIN | product URL>",
	Short: "Looks up products and prints their title, price and rating.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := openBrowser()
		if err != nil {
			return err
		}
		svc, err := newService(serviceOptions{
			driver: driver,
			creds:  credentials.None,
			out:    cmd.ErrOrStderr(),
		})
		if err != nil {
			_ = driver.Quit()
			return err
		}
		defer svc.Close()

		products, err := svc.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printProducts(cmd.OutOrStdout(), products)
		return nil
	},
}

func printProducts(w io.Writer, products []models.ProductInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASIN\tPRICE\tRATING\tREVIEWS\tTITLE")
	for _, p := range products {
		reviews := "-"
		if p.ReviewsCount != nil {
			reviews = fmt.Sprint(*p.ReviewsCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ASIN, p.Price, models.FormatRating(p.Rating), reviews, p.Title)
	}
	tw.Flush()
}
