package extract

import (
	"context"
	"fmt"

	"lodgemart/internal/record"
	"lodgemart/internal/warehouse"
)

var stagingListingColumns = []string{
	"id", "name", "host_id", "host_name", "neighbourhood_group", "neighbourhood",
	"latitude", "longitude", "room_type", "price", "minimum_nights", "number_of_reviews",
	"last_review", "reviews_per_month", "calculated_host_listings_count",
	"availability_365", "number_of_reviews_ltm", "license", "load_id", "row_num",
}

var stagingReviewColumns = []string{"listing_id", "review_date", "load_id", "row_num"}

// Stage clears both staging tables and lands the raw batch, stamping each row
// with the batch identifier and a 1-based row ordinal. Each table's load is a
// single transaction.
func Stage(ctx context.Context, repo warehouse.Repository, listings []record.RawListing, reviews []record.RawReview, loadID string) error {
	if err := repo.TruncateTable(ctx, warehouse.TableStagingListings); err != nil {
		return err
	}
	if err := repo.TruncateTable(ctx, warehouse.TableStagingReviews); err != nil {
		return err
	}

	lrows := make([][]any, 0, len(listings))
	for i, li := range listings {
		lrows = append(lrows, []any{
			nullable(li.ID), nullable(li.Name), nullable(li.HostID), nullable(li.HostName),
			nullable(li.NeighbourhoodGroup), nullable(li.Neighbourhood),
			nullable(li.Latitude), nullable(li.Longitude), nullable(li.RoomType), nullable(li.Price),
			nullable(li.MinimumNights), nullable(li.NumberOfReviews),
			nullable(li.LastReview), nullable(li.ReviewsPerMonth), nullable(li.CalculatedHostListingsCount),
			nullable(li.Availability365), nullable(li.NumberOfReviewsLTM), nullable(li.License),
			loadID, int64(i + 1),
		})
	}
	if _, err := repo.InsertRows(ctx, warehouse.TableStagingListings, stagingListingColumns, lrows); err != nil {
		return fmt.Errorf("stage listings: %w", err)
	}

	rrows := make([][]any, 0, len(reviews))
	for i, rv := range reviews {
		rrows = append(rrows, []any{nullable(rv.ListingID), nullable(rv.Date), loadID, int64(i + 1)})
	}
	if _, err := repo.InsertRows(ctx, warehouse.TableStagingReviews, stagingReviewColumns, rrows); err != nil {
		return fmt.Errorf("stage reviews: %w", err)
	}

	return nil
}

// ReadStagedListings reads the staged batch back in row order. Transform works
// from this read-back, not from the in-memory extract, so staging stays the
// single source for downstream stages.
func ReadStagedListings(ctx context.Context, repo warehouse.Repository) ([]record.RawListing, error) {
	rows, err := repo.SelectRows(ctx, warehouse.TableStagingListings, stagingListingColumns[:18], "row_num")
	if err != nil {
		return nil, fmt.Errorf("read staging_listings: %w", err)
	}

	out := make([]record.RawListing, 0, len(rows))
	for _, r := range rows {
		out = append(out, record.RawListing{
			ID:                          record.ScanString(r[0]),
			Name:                        record.ScanString(r[1]),
			HostID:                      record.ScanString(r[2]),
			HostName:                    record.ScanString(r[3]),
			NeighbourhoodGroup:          record.ScanString(r[4]),
			Neighbourhood:               record.ScanString(r[5]),
			Latitude:                    record.ScanString(r[6]),
			Longitude:                   record.ScanString(r[7]),
			RoomType:                    record.ScanString(r[8]),
			Price:                       record.ScanString(r[9]),
			MinimumNights:               record.ScanString(r[10]),
			NumberOfReviews:             record.ScanString(r[11]),
			LastReview:                  record.ScanString(r[12]),
			ReviewsPerMonth:             record.ScanString(r[13]),
			CalculatedHostListingsCount: record.ScanString(r[14]),
			Availability365:             record.ScanString(r[15]),
			NumberOfReviewsLTM:          record.ScanString(r[16]),
			License:                     record.ScanString(r[17]),
		})
	}
	return out, nil
}

// ReadStagedReviews reads the staged review batch back in row order.
func ReadStagedReviews(ctx context.Context, repo warehouse.Repository) ([]record.RawReview, error) {
	rows, err := repo.SelectRows(ctx, warehouse.TableStagingReviews, stagingReviewColumns[:2], "row_num")
	if err != nil {
		return nil, fmt.Errorf("read staging_reviews: %w", err)
	}

	out := make([]record.RawReview, 0, len(rows))
	for _, r := range rows {
		out = append(out, record.RawReview{
			ListingID: record.ScanString(r[0]),
			Date:      record.ScanString(r[1]),
		})
	}
	return out, nil
}

// nullable maps empty CSV fields to NULL so staging mirrors the source's
// notion of "absent" instead of inventing empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
