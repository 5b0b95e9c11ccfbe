// Package validate runs advisory data-quality checks over cleaned batches
// and writes a JSON report. Failures never stop the pipeline; they are
// surfaced for operators to triage.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lodgemart/internal/config"
	"lodgemart/internal/record"
)

// Check is one named data-quality check with its outcome.
type Check struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Failures int64  `json:"failures"`
	Detail   string `json:"detail,omitempty"`
}

// Report is the full data-quality report for one pipeline run.
type Report struct {
	GeneratedAt  time.Time `json:"generated_at"`
	ListingCount int       `json:"listing_count"`
	ReviewCount  int       `json:"review_count"`
	Checks       []Check   `json:"checks"`
	AllPassed    bool      `json:"all_passed"`
}

// Columns are the normalized header names found in each source file.
type Columns struct {
	Listings []string
	Reviews  []string
}

// Run evaluates every check against the cleaned batches.
func Run(listings []record.CleanListing, reviews []record.CleanReview, cols Columns, q config.Quality) Report {
	rep := Report{
		GeneratedAt:  time.Now().UTC(),
		ListingCount: len(listings),
		ReviewCount:  len(reviews),
	}

	rep.add(checkColumns("listing_columns_present", cols.Listings, q.RequiredListingColumns))
	rep.add(checkColumns("review_columns_present", cols.Reviews, q.RequiredReviewColumns))
	rep.add(checkIDPresent(listings))
	rep.add(checkIDUnique(listings))
	rep.add(checkCompleteness("host_id_present", listings, func(l record.CleanListing) bool { return l.HostID != nil }))
	rep.add(checkCompleteness("room_type_present", listings, func(l record.CleanListing) bool { return l.RoomType != nil }))
	rep.add(checkRange("price_in_range", listings, func(l record.CleanListing) (float64, bool) {
		if l.Price == nil {
			return 0, false
		}
		return *l.Price, true
	}, q.PriceMin, q.PriceMax))
	rep.add(checkRange("latitude_in_range", listings, func(l record.CleanListing) (float64, bool) {
		if l.Latitude == nil {
			return 0, false
		}
		return *l.Latitude, true
	}, q.LatitudeMin, q.LatitudeMax))
	rep.add(checkRange("longitude_in_range", listings, func(l record.CleanListing) (float64, bool) {
		if l.Longitude == nil {
			return 0, false
		}
		return *l.Longitude, true
	}, q.LongitudeMin, q.LongitudeMax))
	rep.add(checkAvailability(listings, q.AvailabilityMax))
	rep.add(checkReviews(reviews))
	rep.add(checkReferential(listings, reviews))

	rep.AllPassed = true
	for _, c := range rep.Checks {
		if !c.Passed {
			rep.AllPassed = false
			break
		}
	}
	return rep
}

// WriteFile writes the report as indented JSON under dir.
func WriteFile(rep Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, "data_quality_report.json")
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
}

func checkIDPresent(listings []record.CleanListing) Check {
	var failures int64
	for _, l := range listings {
		if l.ID == nil {
			failures++
		}
	}
	return result("listing_id_present", failures, "")
}

func checkIDUnique(listings []record.CleanListing) Check {
	seen := make(map[int64]bool, len(listings))
	var dupes int64
	for _, l := range listings {
		if l.ID == nil {
			continue
		}
		if seen[*l.ID] {
			dupes++
		}
		seen[*l.ID] = true
	}
	return result("listing_id_unique", dupes, "")
}

func checkCompleteness(name string, listings []record.CleanListing, present func(record.CleanListing) bool) Check {
	var failures int64
	for _, l := range listings {
		if !present(l) {
			failures++
		}
	}
	return result(name, failures, "")
}

func checkRange(name string, listings []record.CleanListing, get func(record.CleanListing) (float64, bool), min, max float64) Check {
	var failures int64
	for _, l := range listings {
		v, ok := get(l)
		if !ok {
			continue
		}
		if v < min || v > max {
			failures++
		}
	}
	return result(name, failures, fmt.Sprintf("bounds [%g, %g]", min, max))
}

func checkAvailability(listings []record.CleanListing, max int64) Check {
	var failures int64
	for _, l := range listings {
		if l.Availability365 == nil {
			continue
		}
		if *l.Availability365 < 0 || *l.Availability365 > max {
			failures++
		}
	}
	return result("availability_365_in_range", failures, fmt.Sprintf("bounds [0, %d]", max))
}

func checkColumns(name string, seen, required []string) Check {
	have := make(map[string]bool, len(seen))
	for _, c := range seen {
		have[c] = true
	}
	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	detail := ""
	if len(missing) > 0 {
		detail = "missing: " + strings.Join(missing, ", ")
	}
	return result(name, int64(len(missing)), detail)
}

// checkReferential counts distinct review listing ids with no matching
// listing in the batch. Such reviews may still resolve against dimension
// history at load time, so this is coverage reporting, not a hard rule.
func checkReferential(listings []record.CleanListing, reviews []record.CleanReview) Check {
	known := make(map[int64]bool, len(listings))
	for _, l := range listings {
		if l.ID != nil {
			known[*l.ID] = true
		}
	}
	orphans := map[int64]bool{}
	for _, r := range reviews {
		if r.ListingID != nil && !known[*r.ListingID] {
			orphans[*r.ListingID] = true
		}
	}
	return result("referential_integrity", int64(len(orphans)), "distinct review listing_ids absent from listings")
}

func checkReviews(reviews []record.CleanReview) Check {
	var failures int64
	for _, r := range reviews {
		if r.ListingID == nil || r.Date == nil {
			failures++
		}
	}
	return result("review_fields_present", failures, "")
}

func result(name string, failures int64, detail string) Check {
	return Check{Name: name, Passed: failures == 0, Failures: failures, Detail: detail}
}
