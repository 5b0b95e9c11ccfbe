// Package pipeline orchestrates one warehouse run: extract, stage, validate,
// transform, load. Each stage is timed and logged; any stage error aborts the
// run and surfaces as the single returned error.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lodgemart/internal/config"
	"lodgemart/internal/extract"
	"lodgemart/internal/load"
	"lodgemart/internal/metrics"
	"lodgemart/internal/record"
	"lodgemart/internal/transform"
	"lodgemart/internal/validate"
	"lodgemart/internal/warehouse"
)

// Logger is the minimal logging interface the pipeline writes to.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Pipeline wires one configured run against one warehouse backend.
type Pipeline struct {
	Cfg     config.Pipeline
	Repo    warehouse.Repository
	Logger  Logger
	Metrics metrics.Backend
}

// Result summarizes a completed run.
type Result struct {
	LoadID    string
	LoadDate  time.Time
	Listings  int
	Reviews   int
	Quality   validate.Report
	LoadStats load.Stats
}

// Run executes the full pipeline once.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{
		LoadID:   uuid.NewString(),
		LoadDate: p.Cfg.LoadDate(),
	}
	mets := p.metrics()

	if err := p.timed(ctx, "schema", mets, func(ctx context.Context) error {
		return p.Repo.EnsureSchema(ctx, warehouse.StarSchema())
	}); err != nil {
		return res, err
	}

	var rawListings []record.RawListing
	var rawReviews []record.RawReview
	var cols validate.Columns
	if err := p.timed(ctx, "extract", mets, func(ctx context.Context) error {
		var err error
		rawListings, cols.Listings, err = extract.ReadListings(p.Cfg)
		if err != nil {
			return err
		}
		rawReviews, cols.Reviews, err = extract.ReadReviews(p.Cfg)
		return err
	}); err != nil {
		return res, err
	}
	res.Listings = len(rawListings)
	res.Reviews = len(rawReviews)
	mets.IncCounter(metrics.MetricRowsTotal, float64(len(rawListings)), metrics.Labels{"kind": "listings_raw"})
	mets.IncCounter(metrics.MetricRowsTotal, float64(len(rawReviews)), metrics.Labels{"kind": "reviews_raw"})

	if err := p.timed(ctx, "stage", mets, func(ctx context.Context) error {
		return extract.Stage(ctx, p.Repo, rawListings, rawReviews, res.LoadID)
	}); err != nil {
		return res, err
	}

	// Downstream stages read from staging, not from the files, so a run can
	// be replayed from the warehouse alone.
	var listings []record.CleanListing
	var reviews []record.CleanReview
	if err := p.timed(ctx, "transform", mets, func(ctx context.Context) error {
		stagedListings, err := extract.ReadStagedListings(ctx, p.Repo)
		if err != nil {
			return err
		}
		stagedReviews, err := extract.ReadStagedReviews(ctx, p.Repo)
		if err != nil {
			return err
		}
		listings = transform.Listings(stagedListings, p.Cfg.Pricing.TierBounds)
		reviews = transform.Reviews(stagedReviews)
		return nil
	}); err != nil {
		return res, err
	}

	if err := p.timed(ctx, "validate", mets, func(ctx context.Context) error {
		res.Quality = validate.Run(listings, reviews, cols, p.Cfg.Quality)
		path, err := validate.WriteFile(res.Quality, p.Cfg.Quality.OutputDir)
		if err != nil {
			return err
		}
		if !res.Quality.AllPassed {
			for _, c := range res.Quality.Checks {
				if !c.Passed {
					p.logf("quality check=%s failures=%d %s", c.Name, c.Failures, c.Detail)
				}
			}
		}
		p.logf("quality report=%s all_passed=%t", path, res.Quality.AllPassed)
		return nil
	}); err != nil {
		return res, err
	}

	if err := p.timed(ctx, "load", mets, func(ctx context.Context) error {
		loader := &load.Loader{Repo: p.Repo, Logger: p.Logger}
		stats, err := loader.Run(ctx, listings, reviews, res.LoadDate)
		res.LoadStats = stats
		return err
	}); err != nil {
		return res, err
	}

	for table, n := range res.LoadStats.VersionsOpened {
		mets.IncCounter(metrics.MetricVersionsTotal, float64(n), metrics.Labels{"table": table, "action": "opened"})
	}
	for table, n := range res.LoadStats.VersionsClosed {
		mets.IncCounter(metrics.MetricVersionsTotal, float64(n), metrics.Labels{"table": table, "action": "closed"})
	}
	mets.IncCounter(metrics.MetricRowsTotal, float64(res.LoadStats.SnapshotsWritten), metrics.Labels{"kind": "fact_snapshots"})
	mets.IncCounter(metrics.MetricRowsTotal, float64(res.LoadStats.ReviewsWritten), metrics.Labels{"kind": "fact_reviews"})
	mets.IncCounter(metrics.MetricSkipsTotal, float64(res.LoadStats.ListingsSkipped), metrics.Labels{"reason": "listing_missing_keys"})
	mets.IncCounter(metrics.MetricSkipsTotal, float64(res.LoadStats.ReviewsOrphaned), metrics.Labels{"reason": "review_orphan"})
	mets.IncCounter(metrics.MetricSkipsTotal, float64(res.LoadStats.ReviewsSkipped), metrics.Labels{"reason": "review_missing_fields"})

	p.logf("run ok load_id=%s load_date=%s listings=%d reviews=%d",
		res.LoadID, res.LoadDate.Format("2006-01-02"), res.Listings, res.Reviews)
	return res, nil
}

// timed runs one stage, logs its duration, and records stage metrics.
func (p *Pipeline) timed(ctx context.Context, stage string, mets metrics.Backend, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	dur := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := metrics.Labels{"stage": stage, "status": status}
	mets.IncCounter(metrics.MetricStageTotal, 1, labels)
	mets.ObserveHistogram(metrics.MetricStageDurationSeconds, dur.Seconds(), labels)

	if err != nil {
		p.logf("stage=%s error duration=%s err=%v", stage, dur.Round(time.Millisecond), err)
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	p.logf("stage=%s ok duration=%s", stage, dur.Round(time.Millisecond))
	return nil
}

func (p *Pipeline) metrics() metrics.Backend {
	if p.Metrics == nil {
		return metrics.Nop{}
	}
	return p.Metrics
}

func (p *Pipeline) logf(format string, v ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, v...)
	}
}
