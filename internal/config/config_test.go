package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"source": {"data_dir": "data", "listings_file": "listings.csv", "reviews_file": "reviews.csv"},
		"storage": {"kind": "sqlite", "dsn": "file:test.db"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Job != "lodgemart" {
		t.Errorf("job = %q, want default", cfg.Job)
	}
	if cfg.Encoding.Default != "utf-8" || cfg.Encoding.Fallback != "utf-8-sig" {
		t.Errorf("encoding defaults = %+v", cfg.Encoding)
	}
	want := TierBounds{Budget: 100, Mid: 200, Premium: 500, Luxury: 999999}
	if cfg.Pricing.TierBounds != want {
		t.Errorf("tier bounds = %+v, want %+v", cfg.Pricing.TierBounds, want)
	}
	if cfg.Quality.OutputDir != "output" {
		t.Errorf("output dir = %q", cfg.Quality.OutputDir)
	}
	if cfg.Quality.LatitudeMin != -90 || cfg.Quality.LatitudeMax != 90 {
		t.Errorf("latitude bounds = %+v", cfg.Quality)
	}
	if cfg.Quality.AvailabilityMax != 365 {
		t.Errorf("availability max = %d", cfg.Quality.AvailabilityMax)
	}
	if len(cfg.Quality.RequiredListingColumns) != 4 || cfg.Quality.RequiredListingColumns[0] != "id" {
		t.Errorf("required listing columns = %v", cfg.Quality.RequiredListingColumns)
	}
	if len(cfg.Quality.RequiredReviewColumns) != 2 || cfg.Quality.RequiredReviewColumns[1] != "date" {
		t.Errorf("required review columns = %v", cfg.Quality.RequiredReviewColumns)
	}
}

func TestLoadRejectsMissingStorage(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"source": {"data_dir": "data", "listings_file": "a.csv", "reviews_file": "b.csv"}
	}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing storage kind")
	}
}

func TestLoadRejectsBadLoadDate(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"source": {"data_dir": "data", "listings_file": "a.csv", "reviews_file": "b.csv"},
		"storage": {"kind": "sqlite", "dsn": "x"},
		"run": {"load_date": "June 15"}
	}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparsable load_date")
	}
}

func TestLoadDatePinned(t *testing.T) {
	t.Parallel()

	cfg := Pipeline{Run: Run{LoadDate: "2025-06-15"}}
	got := cfg.LoadDate()
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("LoadDate() = %v, want %v", got, want)
	}
}

func TestLoadDateDefaultsToTodayUTC(t *testing.T) {
	t.Parallel()

	cfg := Pipeline{}
	got := cfg.LoadDate()
	if h, m, s := got.Clock(); h+m+s != 0 {
		t.Errorf("default load date not midnight: %v", got)
	}
	if got.Location() != time.UTC {
		t.Errorf("default load date not UTC: %v", got)
	}
}
