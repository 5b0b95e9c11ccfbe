package validate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lodgemart/internal/config"
	"lodgemart/internal/record"
)

func defaultQuality() config.Quality {
	return config.Quality{
		PriceMin: 0, PriceMax: 100000,
		LatitudeMin: -90, LatitudeMax: 90,
		LongitudeMin: -180, LongitudeMax: 180,
		AvailabilityMax:        365,
		RequiredListingColumns: []string{"id", "host_id", "neighbourhood", "room_type"},
		RequiredReviewColumns:  []string{"listing_id", "date"},
	}
}

func fullColumns() Columns {
	return Columns{
		Listings: []string{"id", "name", "host_id", "neighbourhood", "room_type", "price"},
		Reviews:  []string{"listing_id", "date"},
	}
}

func TestRunAllPassed(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	listings := []record.CleanListing{
		{ID: i64(1), HostID: i64(10), RoomType: str("Entire home/apt"), Price: f64(150), Latitude: f64(40.7), Longitude: f64(-73.9), Availability365: i64(200)},
		{ID: i64(2), HostID: i64(11), RoomType: str("Private room"), Price: f64(80), Latitude: f64(40.8), Longitude: f64(-73.8), Availability365: i64(10)},
	}
	reviews := []record.CleanReview{{ListingID: i64(1), Date: &day}}

	rep := Run(listings, reviews, fullColumns(), defaultQuality())

	if !rep.AllPassed {
		t.Fatalf("expected all checks to pass: %+v", rep.Checks)
	}
	if rep.ListingCount != 2 || rep.ReviewCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", rep.ListingCount, rep.ReviewCount)
	}
}

func TestRunReportsFailures(t *testing.T) {
	t.Parallel()

	listings := []record.CleanListing{
		{ID: i64(1), HostID: i64(10), RoomType: str("x"), Price: f64(-5)},         // price below min
		{ID: i64(1), HostID: nil, RoomType: nil, Latitude: f64(95)},               // dup id, missing host, bad lat
		{ID: nil, HostID: i64(12), RoomType: str("x"), Availability365: i64(400)}, // missing id, avail too high
	}
	reviews := []record.CleanReview{{ListingID: nil, Date: nil}}

	rep := Run(listings, reviews, fullColumns(), defaultQuality())

	if rep.AllPassed {
		t.Fatal("expected failures")
	}

	failures := map[string]int64{}
	for _, c := range rep.Checks {
		failures[c.Name] = c.Failures
	}

	want := map[string]int64{
		"listing_id_present":        1,
		"listing_id_unique":         1,
		"host_id_present":           1,
		"room_type_present":         1,
		"price_in_range":            1,
		"latitude_in_range":         1,
		"availability_365_in_range": 1,
		"review_fields_present":     1,
	}
	for name, n := range want {
		if failures[name] != n {
			t.Errorf("%s failures = %d, want %d", name, failures[name], n)
		}
	}
	if failures["longitude_in_range"] != 0 {
		t.Errorf("longitude check should pass, got %d failures", failures["longitude_in_range"])
	}
}

func TestRunFlagsMissingColumns(t *testing.T) {
	t.Parallel()

	cols := Columns{
		Listings: []string{"id", "name", "price"}, // host_id, neighbourhood, room_type absent
		Reviews:  []string{"listing_id"},          // date absent
	}
	rep := Run(nil, nil, cols, defaultQuality())

	if rep.AllPassed {
		t.Fatal("missing required columns must fail the report")
	}
	byName := map[string]Check{}
	for _, c := range rep.Checks {
		byName[c.Name] = c
	}

	lc := byName["listing_columns_present"]
	if lc.Failures != 3 || !strings.Contains(lc.Detail, "host_id") || !strings.Contains(lc.Detail, "room_type") {
		t.Errorf("listing_columns_present = %+v", lc)
	}
	rc := byName["review_columns_present"]
	if rc.Failures != 1 || !strings.Contains(rc.Detail, "date") {
		t.Errorf("review_columns_present = %+v", rc)
	}
}

func TestRunFlagsOrphanReviewIDs(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	listings := []record.CleanListing{
		{ID: i64(1), HostID: i64(10), RoomType: str("x"), Price: f64(100)},
	}
	reviews := []record.CleanReview{
		{ListingID: i64(1), Date: &day},   // covered
		{ListingID: i64(999), Date: &day}, // orphan
		{ListingID: i64(999), Date: &day}, // same orphan counts once
		{ListingID: nil, Date: &day},      // missing id is a completeness failure, not an orphan
	}

	rep := Run(listings, reviews, fullColumns(), defaultQuality())

	for _, c := range rep.Checks {
		if c.Name == "referential_integrity" {
			if c.Failures != 1 {
				t.Errorf("referential_integrity failures = %d, want 1 distinct orphan id", c.Failures)
			}
			return
		}
	}
	t.Fatal("referential_integrity check missing from report")
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "reports")
	rep := Run(nil, nil, fullColumns(), defaultQuality())

	path, err := WriteFile(rep, dir)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Base(path) != "data_quality_report.json" {
		t.Errorf("unexpected report name: %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var back Report
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if len(back.Checks) != len(rep.Checks) {
		t.Errorf("round-trip checks = %d, want %d", len(back.Checks), len(rep.Checks))
	}
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }
