// Package load writes the fact tables. It resolves surrogate keys through the
// dimension engine and owns no dimension writes of its own.
package load

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"lodgemart/internal/dimension"
	"lodgemart/internal/record"
	"lodgemart/internal/warehouse"
)

// Logger is the minimal logging interface used by the loader.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Stats summarizes one load run. Skips are row-level and never fail the run;
// any storage error aborts it instead.
type Stats struct {
	SnapshotsWritten int
	ListingsSkipped  int
	ReviewsWritten   int
	ReviewsOrphaned  int
	ReviewsSkipped   int

	// SCD2 versions opened and closed during this run, keyed by dimension
	// table. A rerun of an unchanged batch leaves both empty.
	VersionsOpened map[string]int64
	VersionsClosed map[string]int64
}

// Loader runs the load stage: date backfill, dimension resolution via a
// run-scoped engine, idempotent snapshot facts, append-only review facts.
type Loader struct {
	Repo   warehouse.Repository
	Logger Logger
}

func (l *Loader) logger() func(format string, v ...any) {
	if l.Logger == nil {
		d := log.New(io.Discard, "", 0)
		return d.Printf
	}
	return l.Logger.Printf
}

// Run loads one cleaned batch for loadDate.
//
// Commit boundaries: each dimension version write commits on its own, the
// snapshot replace is one transaction, the review append is one transaction.
// A failure in between leaves dimensions ahead of facts; rerunning the batch
// is the recovery path (snapshots overwrite, unchanged dimensions no-op).
// Review facts are NOT deduplicated across reruns.
func (l *Loader) Run(ctx context.Context, listings []record.CleanListing, reviews []record.CleanReview, loadDate time.Time) (Stats, error) {
	logf := l.logger()
	var stats Stats

	eng := dimension.NewEngine(l.Repo)

	if err := l.backfillDates(ctx, eng, listings, reviews, loadDate); err != nil {
		return stats, err
	}

	if err := l.loadSnapshots(ctx, eng, listings, loadDate, &stats, logf); err != nil {
		return stats, err
	}

	if err := l.loadReviews(ctx, eng, reviews, loadDate, &stats, logf); err != nil {
		return stats, err
	}
	stats.VersionsOpened, stats.VersionsClosed = eng.VersionCounts()

	logf("stage=load ok snapshots=%d listings_skipped=%d reviews=%d orphans=%d reviews_skipped=%d versions_opened=%d versions_closed=%d",
		stats.SnapshotsWritten, stats.ListingsSkipped, stats.ReviewsWritten, stats.ReviewsOrphaned, stats.ReviewsSkipped,
		sumCounts(stats.VersionsOpened), sumCounts(stats.VersionsClosed))
	return stats, nil
}

func sumCounts(m map[string]int64) int64 {
	var total int64
	for _, n := range m {
		total += n
	}
	return total
}

// backfillDates ensures dim_date covers every date the batch references:
// last-review dates and review dates. An empty set degrades to the load date
// itself so the range is never empty.
func (l *Loader) backfillDates(ctx context.Context, eng *dimension.Engine, listings []record.CleanListing, reviews []record.CleanReview, loadDate time.Time) error {
	var min, max time.Time
	widen := func(d time.Time) {
		if min.IsZero() || d.Before(min) {
			min = d
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}

	for _, li := range listings {
		if li.LastReview != nil {
			widen(*li.LastReview)
		}
	}
	for _, rv := range reviews {
		if rv.Date != nil {
			widen(*rv.Date)
		}
	}
	if min.IsZero() {
		widen(loadDate)
	}
	widen(loadDate)

	return eng.EnsureDates(ctx, min, max)
}

var snapshotColumns = []string{
	"listing_sk", "host_sk", "neighbourhood_sk", "room_type_sk",
	"price", "minimum_nights", "number_of_reviews", "last_review_date_sk",
	"reviews_per_month", "calculated_host_listings_count", "availability_365", "number_of_reviews_ltm",
	"estimated_revenue_365", "occupancy_rate", "price_tier", "load_date",
}

var snapshotKeyColumns = []string{"listing_sk", "load_date"}

// loadSnapshots writes one snapshot row per valid listing, replacing any
// prior snapshot for the same (listing_sk, load_date).
func (l *Loader) loadSnapshots(ctx context.Context, eng *dimension.Engine, listings []record.CleanListing, loadDate time.Time, stats *Stats, logf func(string, ...any)) error {
	rows := make([][]any, 0, len(listings))

	for i, li := range listings {
		// A listing without identity cannot be fact-loaded. Row-level skip,
		// not an error.
		if li.ID == nil || li.HostID == nil {
			stats.ListingsSkipped++
			logf("stage=load_snapshots skip row=%d reason=missing_identifier", i+1)
			continue
		}

		roomTypeSK, err := eng.RoomTypeKey(ctx, li.RoomType)
		if err != nil {
			return err
		}
		hostSK, err := eng.HostKey(ctx, *li.HostID, li.HostName)
		if err != nil {
			return err
		}
		neighbourhoodSK, err := eng.NeighbourhoodKey(ctx, li.Neighbourhood, li.NeighbourhoodGroup)
		if err != nil {
			return err
		}
		listingSK, err := eng.ListingKey(ctx, *li.ID, li.Name, li.Latitude, li.Longitude, li.License)
		if err != nil {
			return err
		}

		var lastReviewSK any
		if li.LastReview != nil {
			sk, found, err := eng.DateKey(ctx, *li.LastReview)
			if err != nil {
				return err
			}
			if found {
				lastReviewSK = sk
			}
		}

		rows = append(rows, []any{
			listingSK, hostSK, neighbourhoodSK, roomTypeSK,
			floatOrNil(li.Price), intOrNil(li.MinimumNights), intOrNil(li.NumberOfReviews), lastReviewSK,
			floatOrNil(li.ReviewsPerMonth), intOrNil(li.CalculatedHostListingsCount), intOrNil(li.Availability365), intOrNil(li.NumberOfReviewsLTM),
			floatOrNil(li.EstimatedRevenue365), floatOrNil(li.OccupancyRate), truncateTier(li.PriceTier), record.ISODate(loadDate),
		})
	}

	n, err := l.Repo.ReplaceFactRows(ctx, warehouse.TableFactSnapshots, snapshotKeyColumns, snapshotColumns, rows)
	if err != nil {
		return fmt.Errorf("fact_listing_snapshots: %w", err)
	}
	stats.SnapshotsWritten = int(n)
	return nil
}

var reviewColumns = []string{"listing_sk", "date_sk", "load_date"}

// loadReviews appends one fact row per resolvable review. Orphans (no current
// listing version anywhere) and unparsable rows are excluded, not errors.
func (l *Loader) loadReviews(ctx context.Context, eng *dimension.Engine, reviews []record.CleanReview, loadDate time.Time, stats *Stats, logf func(string, ...any)) error {
	rows := make([][]any, 0, len(reviews))

	for i, rv := range reviews {
		if rv.ListingID == nil {
			stats.ReviewsSkipped++
			logf("stage=load_reviews skip row=%d reason=missing_listing_id", i+1)
			continue
		}

		listingSK, found, err := eng.CurrentListingKey(ctx, *rv.ListingID)
		if err != nil {
			return err
		}
		if !found {
			stats.ReviewsOrphaned++
			continue
		}

		if rv.Date == nil {
			stats.ReviewsSkipped++
			logf("stage=load_reviews skip row=%d reason=unparsable_date", i+1)
			continue
		}

		dateSK, found, err := eng.DateKey(ctx, *rv.Date)
		if err != nil {
			return err
		}
		if !found {
			// The date fell outside the backfilled range; extend on demand
			// rather than failing the row.
			if err := eng.EnsureDates(ctx, *rv.Date, *rv.Date); err != nil {
				return err
			}
			dateSK, found, err = eng.DateKey(ctx, *rv.Date)
			if err != nil {
				return err
			}
			if !found {
				stats.ReviewsSkipped++
				continue
			}
		}

		rows = append(rows, []any{listingSK, dateSK, record.ISODate(loadDate)})
	}

	n, err := l.Repo.InsertRows(ctx, warehouse.TableFactReviews, reviewColumns, rows)
	if err != nil {
		return fmt.Errorf("fact_reviews: %w", err)
	}
	stats.ReviewsWritten = int(n)
	return nil
}

// priceTierMaxLen bounds the tier label column.
const priceTierMaxLen = 20

func truncateTier(tier string) any {
	if tier == "" {
		return nil
	}
	if len(tier) > priceTierMaxLen {
		return tier[:priceTierMaxLen]
	}
	return tier
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intOrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
