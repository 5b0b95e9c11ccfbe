package extract

import (
	"context"
	"testing"

	"lodgemart/internal/record"
	"lodgemart/internal/warehouse"
	"lodgemart/internal/warehouse/sqlite"
)

func newTestRepo(t *testing.T) warehouse.Repository {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.New(ctx, warehouse.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(repo.Close)

	if err := repo.EnsureSchema(ctx, warehouse.StarSchema()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return repo
}

func TestStageRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	listings := []record.RawListing{
		{ID: "101", Name: "Cozy loft", HostID: "9", Price: "$150.00", License: ""},
		{ID: "102", Name: "Bright studio", HostID: "10", Price: ""},
	}
	reviews := []record.RawReview{
		{ListingID: "101", Date: "2025-06-12"},
	}

	if err := Stage(ctx, repo, listings, reviews, "batch-1"); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	gotListings, err := ReadStagedListings(ctx, repo)
	if err != nil {
		t.Fatalf("ReadStagedListings: %v", err)
	}
	if len(gotListings) != 2 {
		t.Fatalf("staged listings = %d, want 2", len(gotListings))
	}
	if gotListings[0].ID != "101" || gotListings[0].Price != "$150.00" {
		t.Errorf("row 0: %+v", gotListings[0])
	}
	// Empty strings land as NULL and come back as "".
	if gotListings[1].Price != "" {
		t.Errorf("empty price round-tripped as %q", gotListings[1].Price)
	}

	gotReviews, err := ReadStagedReviews(ctx, repo)
	if err != nil {
		t.Fatalf("ReadStagedReviews: %v", err)
	}
	if len(gotReviews) != 1 || gotReviews[0].ListingID != "101" || gotReviews[0].Date != "2025-06-12" {
		t.Fatalf("staged reviews: %+v", gotReviews)
	}
}

func TestStageReplacesPriorBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	first := []record.RawListing{{ID: "1", HostID: "1"}, {ID: "2", HostID: "1"}}
	if err := Stage(ctx, repo, first, nil, "batch-1"); err != nil {
		t.Fatalf("Stage batch-1: %v", err)
	}

	second := []record.RawListing{{ID: "3", HostID: "2"}}
	if err := Stage(ctx, repo, second, nil, "batch-2"); err != nil {
		t.Fatalf("Stage batch-2: %v", err)
	}

	got, err := ReadStagedListings(ctx, repo)
	if err != nil {
		t.Fatalf("ReadStagedListings: %v", err)
	}
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("staging should hold only the latest batch: %+v", got)
	}
}

func TestStagePreservesRowOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	var listings []record.RawListing
	for _, id := range []string{"5", "3", "9", "1"} {
		listings = append(listings, record.RawListing{ID: id, HostID: "1"})
	}
	if err := Stage(ctx, repo, listings, nil, "batch-1"); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	got, err := ReadStagedListings(ctx, repo)
	if err != nil {
		t.Fatalf("ReadStagedListings: %v", err)
	}
	for i, want := range []string{"5", "3", "9", "1"} {
		if got[i].ID != want {
			t.Fatalf("row %d id = %s, want %s (source order)", i, got[i].ID, want)
		}
	}
}
