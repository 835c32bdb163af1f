package export

import (
	"fmt"
	"sort"

	"github.com/maltedev/amazon-review-scraper/internal/models"
)

// Stats summarizes an export.
type Stats struct {
	Total int
	// Rated counts records that carry a rating; Average is over those only.
	Rated        int
	Average      float64
	Distribution map[float64]int
}

func Summarize(records []models.ReviewRecord) Stats {
	s := Stats{Total: len(records), Distribution: make(map[float64]int)}

	sum := 0.0
	for _, r := range records {
		if r.Rating == nil {
			continue
		}
		s.Rated++
		sum += *r.Rating
		s.Distribution[*r.Rating]++
	}
	if s.Rated > 0 {
		s.Average = sum / float64(s.Rated)
	}
	return s
}

// Lines renders the summary the way it is reported to the operator.
func (s Stats) Lines() []string {
	lines := []string{fmt.Sprintf("Total reviews: %d", s.Total)}
	if s.Rated == 0 {
		return lines
	}

	lines = append(lines,
		fmt.Sprintf("Average rating: %.2f", s.Average),
		"Rating distribution:",
	)

	ratings := make([]float64, 0, len(s.Distribution))
	for r := range s.Distribution {
		ratings = append(ratings, r)
	}
	sort.Float64s(ratings)
	for _, r := range ratings {
		lines = append(lines, fmt.Sprintf("  %.1f stars: %d reviews", r, s.Distribution[r]))
	}
	return lines
}
