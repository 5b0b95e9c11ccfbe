// Package transform cleans staged rows and derives the snapshot metrics.
package transform

import (
	"math"
	"strings"

	"lodgemart/internal/config"
	"lodgemart/internal/record"
)

// Listings cleans and types one staged listing batch: price normalization,
// numeric coercion, text trimming (blank→nil), and the derived metrics.
func Listings(raw []record.RawListing, bounds config.TierBounds) []record.CleanListing {
	out := make([]record.CleanListing, 0, len(raw))
	for _, r := range raw {
		c := record.CleanListing{
			ID:                          record.ParseInt(r.ID),
			Name:                        record.TrimToNil(r.Name),
			HostID:                      record.ParseInt(r.HostID),
			HostName:                    record.TrimToNil(r.HostName),
			NeighbourhoodGroup:          record.TrimToNil(r.NeighbourhoodGroup),
			Neighbourhood:               record.TrimToNil(r.Neighbourhood),
			Latitude:                    record.ParseFloat(r.Latitude),
			Longitude:                   record.ParseFloat(r.Longitude),
			RoomType:                    record.TrimToNil(r.RoomType),
			Price:                       ParsePrice(r.Price),
			MinimumNights:               record.ParseInt(r.MinimumNights),
			NumberOfReviews:             record.ParseInt(r.NumberOfReviews),
			LastReview:                  record.ParseDate(r.LastReview),
			ReviewsPerMonth:             record.ParseFloat(r.ReviewsPerMonth),
			CalculatedHostListingsCount: record.ParseInt(r.CalculatedHostListingsCount),
			Availability365:             record.ParseInt(r.Availability365),
			NumberOfReviewsLTM:          record.ParseInt(r.NumberOfReviewsLTM),
			License:                     record.TrimToNil(r.License),
		}

		// Derived metrics treat missing availability as 0 booked-out days,
		// matching the warehouse's historical convention.
		var avail float64
		if c.Availability365 != nil {
			avail = float64(*c.Availability365)
		}

		if c.Price != nil {
			rev := round(*c.Price*avail/365.0, 2)
			c.EstimatedRevenue365 = &rev
		}

		occ := clamp01(round(1.0-avail/365.0, 4))
		c.OccupancyRate = &occ

		c.PriceTier = PriceTier(c.Price, bounds)
		out = append(out, c)
	}
	return out
}

// Reviews cleans one staged review batch.
func Reviews(raw []record.RawReview) []record.CleanReview {
	out := make([]record.CleanReview, 0, len(raw))
	for _, r := range raw {
		out = append(out, record.CleanReview{
			ListingID: record.ParseInt(r.ListingID),
			Date:      record.ParseDate(r.Date),
		})
	}
	return out
}

// ParsePrice normalizes a raw price string: strip "$" and thousands commas,
// parse as float. Invalid or blank yields nil.
func ParsePrice(s string) *float64 {
	t := strings.TrimSpace(s)
	t = strings.ReplaceAll(t, "$", "")
	t = strings.ReplaceAll(t, ",", "")
	return record.ParseFloat(t)
}

// PriceTier buckets a price against inclusive upper bounds, in order.
// Missing or negative prices are "unknown"; anything past the luxury bound
// stays "luxury".
func PriceTier(price *float64, b config.TierBounds) string {
	if price == nil || math.IsNaN(*price) || *price < 0 {
		return "unknown"
	}
	p := *price
	switch {
	case p <= b.Budget:
		return "budget"
	case p <= b.Mid:
		return "mid"
	case p <= b.Premium:
		return "premium"
	default:
		return "luxury"
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
