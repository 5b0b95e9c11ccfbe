package transform

import (
	"math"
	"testing"

	"lodgemart/internal/config"
	"lodgemart/internal/record"
)

var testBounds = config.TierBounds{Budget: 100, Mid: 200, Premium: 500, Luxury: 999999}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want *float64
	}{
		{"plain", "150", f64(150)},
		{"dollar", "$150.00", f64(150)},
		{"thousands", "$1,250.50", f64(1250.50)},
		{"blank", "", nil},
		{"garbage", "call for price", nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParsePrice(tc.in)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("ParsePrice(%q) = %g, want %g", tc.in, *got, *tc.want)
			}
		})
	}
}

func TestPriceTier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		price *float64
		want  string
	}{
		{"nil", nil, "unknown"},
		{"negative", f64(-10), "unknown"},
		{"zero", f64(0), "budget"},
		{"budget_edge", f64(100), "budget"},
		{"mid", f64(100.01), "mid"},
		{"mid_edge", f64(200), "mid"},
		{"premium", f64(350), "premium"},
		{"premium_edge", f64(500), "premium"},
		{"luxury", f64(501), "luxury"},
		{"huge", f64(5_000_000), "luxury"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := PriceTier(tc.price, testBounds); got != tc.want {
				t.Fatalf("PriceTier(%v) = %q, want %q", tc.price, got, tc.want)
			}
		})
	}
}

func TestListingsDerivedMetrics(t *testing.T) {
	t.Parallel()

	raw := []record.RawListing{{
		ID:              "101",
		HostID:          "9",
		Name:            " Cozy loft ",
		Price:           "$150.00",
		Availability365: "200",
	}}

	out := Listings(raw, testBounds)
	if len(out) != 1 {
		t.Fatalf("got %d listings, want 1", len(out))
	}
	c := out[0]

	if c.Price == nil || *c.Price != 150 {
		t.Fatalf("price = %v, want 150", c.Price)
	}
	if got := record.Deref(c.Name); got != "Cozy loft" {
		t.Errorf("name = %q, want trimmed", got)
	}
	// 150 * 200 / 365 = 82.191..., rounded to 82.19
	if c.EstimatedRevenue365 == nil || *c.EstimatedRevenue365 != 82.19 {
		t.Errorf("estimated revenue = %v, want 82.19", c.EstimatedRevenue365)
	}
	// 1 - 200/365 = 0.45205..., rounded to 0.4521
	if c.OccupancyRate == nil || *c.OccupancyRate != 0.4521 {
		t.Errorf("occupancy rate = %v, want 0.4521", c.OccupancyRate)
	}
	if c.PriceTier != "mid" {
		t.Errorf("price tier = %q, want mid", c.PriceTier)
	}
}

func TestListingsMissingValues(t *testing.T) {
	t.Parallel()

	raw := []record.RawListing{{ID: "1", HostID: "2"}}
	c := Listings(raw, testBounds)[0]

	if c.Price != nil {
		t.Errorf("price should be nil, got %v", c.Price)
	}
	if c.EstimatedRevenue365 != nil {
		t.Errorf("revenue should be nil without price, got %v", c.EstimatedRevenue365)
	}
	// Missing availability counts as 0, so occupancy is fully booked.
	if c.OccupancyRate == nil || *c.OccupancyRate != 1 {
		t.Errorf("occupancy = %v, want 1", c.OccupancyRate)
	}
	if c.PriceTier != "unknown" {
		t.Errorf("tier = %q, want unknown", c.PriceTier)
	}
}

func TestOccupancyClamped(t *testing.T) {
	t.Parallel()

	// Availability above 365 would push occupancy negative without the clamp.
	raw := []record.RawListing{{ID: "1", HostID: "2", Availability365: "400"}}
	c := Listings(raw, testBounds)[0]
	if c.OccupancyRate == nil || *c.OccupancyRate != 0 {
		t.Fatalf("occupancy = %v, want clamped 0", c.OccupancyRate)
	}
}

func TestReviews(t *testing.T) {
	t.Parallel()

	out := Reviews([]record.RawReview{
		{ListingID: "101", Date: "2025-06-15"},
		{ListingID: "", Date: "not a date"},
	})

	if len(out) != 2 {
		t.Fatalf("got %d reviews, want 2", len(out))
	}
	if out[0].ListingID == nil || *out[0].ListingID != 101 {
		t.Errorf("listing id = %v, want 101", out[0].ListingID)
	}
	if out[0].Date == nil || record.ISODate(*out[0].Date) != "2025-06-15" {
		t.Errorf("date = %v, want 2025-06-15", out[0].Date)
	}
	if out[1].ListingID != nil || out[1].Date != nil {
		t.Errorf("unparsable fields should be nil: %+v", out[1])
	}
}

func TestRound(t *testing.T) {
	t.Parallel()

	if got := round(82.191780821917808, 2); got != 82.19 {
		t.Fatalf("round = %v, want 82.19", got)
	}
	if got := round(0.45205479452054793, 4); math.Abs(got-0.4521) > 1e-12 {
		t.Fatalf("round = %v, want 0.4521", got)
	}
}

func f64(v float64) *float64 { return &v }
