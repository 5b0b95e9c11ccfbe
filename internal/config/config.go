// Package config parses the JSON pipeline configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Pipeline struct {
	Job      string   `json:"job"`
	Source   Source   `json:"source"`
	Encoding Encoding `json:"encoding"`
	Storage  Storage  `json:"storage"`
	Pricing  Pricing  `json:"pricing"`
	Quality  Quality  `json:"quality"`
	Metrics  Metrics  `json:"metrics"`
	Run      Run      `json:"run"`
}

type Source struct {
	DataDir      string `json:"data_dir"`
	ListingsFile string `json:"listings_file"`
	ReviewsFile  string `json:"reviews_file"`
}

type Encoding struct {
	// Default is the expected CSV encoding; Fallback is tried when the
	// default produces invalid UTF-8 (typically "utf-8-sig" for BOM exports).
	Default  string `json:"default"`
	Fallback string `json:"fallback"`
}

type Storage struct {
	// Kind selects the registered warehouse backend: "postgres" | "sqlite" | "mssql".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

type Pricing struct {
	TierBounds TierBounds `json:"tier_bounds"`
}

// TierBounds are inclusive upper bounds per tier, checked in order.
type TierBounds struct {
	Budget  float64 `json:"budget"`
	Mid     float64 `json:"mid"`
	Premium float64 `json:"premium"`
	Luxury  float64 `json:"luxury"`
}

// Quality holds the advisory data-quality bounds. Violations are reported,
// never fatal.
type Quality struct {
	OutputDir       string  `json:"output_dir"`
	PriceMin        float64 `json:"price_min"`
	PriceMax        float64 `json:"price_max"`
	LatitudeMin     float64 `json:"latitude_min"`
	LatitudeMax     float64 `json:"latitude_max"`
	LongitudeMin    float64 `json:"longitude_min"`
	LongitudeMax    float64 `json:"longitude_max"`
	AvailabilityMax int64   `json:"availability_365_max"`

	// Columns the source files must carry for the warehouse to make sense.
	RequiredListingColumns []string `json:"required_listing_columns"`
	RequiredReviewColumns  []string `json:"required_review_columns"`
}

type Metrics struct {
	// Backend: "" (disabled) | "datadog".
	Backend      string   `json:"backend"`
	Tags         []string `json:"tags"`
	FlushSeconds int      `json:"flush_seconds"`
}

type Run struct {
	// LoadDate pins the run date ("2006-01-02"). Empty means today (UTC).
	LoadDate string `json:"load_date"`
}

// Load reads, defaults and validates a pipeline config file.
func Load(path string) (Pipeline, error) {
	var cfg Pipeline

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Pipeline) applyDefaults() {
	if c.Job == "" {
		c.Job = "lodgemart"
	}
	if c.Encoding.Default == "" {
		c.Encoding.Default = "utf-8"
	}
	if c.Encoding.Fallback == "" {
		c.Encoding.Fallback = "utf-8-sig"
	}
	if c.Pricing.TierBounds == (TierBounds{}) {
		c.Pricing.TierBounds = TierBounds{Budget: 100, Mid: 200, Premium: 500, Luxury: 999999}
	}
	if c.Quality.OutputDir == "" {
		c.Quality.OutputDir = "output"
	}
	if c.Quality.PriceMax == 0 {
		c.Quality.PriceMax = 100000
	}
	if c.Quality.LatitudeMin == 0 && c.Quality.LatitudeMax == 0 {
		c.Quality.LatitudeMin, c.Quality.LatitudeMax = -90, 90
	}
	if c.Quality.LongitudeMin == 0 && c.Quality.LongitudeMax == 0 {
		c.Quality.LongitudeMin, c.Quality.LongitudeMax = -180, 180
	}
	if c.Quality.AvailabilityMax == 0 {
		c.Quality.AvailabilityMax = 365
	}
	if len(c.Quality.RequiredListingColumns) == 0 {
		c.Quality.RequiredListingColumns = []string{"id", "host_id", "neighbourhood", "room_type"}
	}
	if len(c.Quality.RequiredReviewColumns) == 0 {
		c.Quality.RequiredReviewColumns = []string{"listing_id", "date"}
	}
}

func (c *Pipeline) validate() error {
	if c.Source.DataDir == "" || c.Source.ListingsFile == "" || c.Source.ReviewsFile == "" {
		return fmt.Errorf("source.data_dir, source.listings_file and source.reviews_file are required")
	}
	if c.Storage.Kind == "" {
		return fmt.Errorf("storage.kind must be set")
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn must be set")
	}
	if c.Run.LoadDate != "" {
		if _, err := time.Parse("2006-01-02", c.Run.LoadDate); err != nil {
			return fmt.Errorf("run.load_date: %w", err)
		}
	}
	return nil
}

// LoadDate returns the pinned run date, or today (UTC) when unset.
func (c *Pipeline) LoadDate() time.Time {
	if c.Run.LoadDate != "" {
		d, _ := time.Parse("2006-01-02", c.Run.LoadDate)
		return d
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
