// Package export writes collected reviews to disk.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/amazon-review-scraper/internal/models"
)

// Header is the fixed column order of review exports
var Header = []string{"asin", "rating", "title", "text", "reviewer", "date", "page"}

// utf8BOM lets spreadsheet applications detect the encoding.
const utf8BOM = "\ufeff"

const maxKeywordLen = 20

var unsafeKeyword = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// SafeKeyword reduces a filter keyword to something usable in a filename.
func SafeKeyword(keyword string) string {
	s := unsafeKeyword.ReplaceAllString(keyword, "")
	s = strings.ReplaceAll(s, " ", "_")
	if r := []rune(s); len(r) > maxKeywordLen {
		s = string(r[:maxKeywordLen])
	}
	return s
}

// Filename returns amazon_reviews_{keyword}_{asin}.csv, or
// amazon_reviews_{asin}.csv when the keyword has nothing usable.
func Filename(asin, keyword string) string {
	if safe := SafeKeyword(keyword); safe != "" {
		return fmt.Sprintf("amazon_reviews_%s_%s.csv", safe, asin)
	}
	return fmt.Sprintf("amazon_reviews_%s.csv", asin)
}

// WriteCSV writes the BOM, the header and one row per record.
func WriteCSV(w io.Writer, records []models.ReviewRecord) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.ASIN,
			models.FormatRating(r.Rating),
			r.Title,
			r.Text,
			r.Reviewer,
			r.Date,
			strconv.Itoa(r.Page),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// SaveCSV writes records into dir under Filename(asin, keyword) and returns
// the full path.
func SaveCSV(dir, asin, keyword string, records []models.ReviewRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %q: %w", dir, err)
	}

	path := filepath.Join(dir, Filename(asin, keyword))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close csv file: %w", err)
	}
	return path, nil
}

// DefaultOutputDir is ~/Desktop when it exists, else the working directory.
func DefaultOutputDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		desktop := filepath.Join(home, "Desktop")
		if info, err := os.Stat(desktop); err == nil && info.IsDir() {
			return desktop
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
