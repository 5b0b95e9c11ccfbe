// Package record defines the structured row types flowing between pipeline
// stages, plus the null/blank coercion rules shared by every dimension
// equality check. Raw rows mirror the CSV (everything is a string, empty
// means absent); clean rows are fully typed with optional fields as pointers.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawListing is one untyped listing row as landed in staging.
type RawListing struct {
	ID                          string
	Name                        string
	HostID                      string
	HostName                    string
	NeighbourhoodGroup          string
	Neighbourhood               string
	Latitude                    string
	Longitude                   string
	RoomType                    string
	Price                       string
	MinimumNights               string
	NumberOfReviews             string
	LastReview                  string
	ReviewsPerMonth             string
	CalculatedHostListingsCount string
	Availability365             string
	NumberOfReviewsLTM          string
	License                     string
}

// RawReview is one untyped review row as landed in staging.
type RawReview struct {
	ListingID string
	Date      string
}

// CleanListing is a listing after transform: typed, with derived metrics.
// Nil pointers mean the source value was absent or unparseable.
type CleanListing struct {
	ID                          *int64
	Name                        *string
	HostID                      *int64
	HostName                    *string
	NeighbourhoodGroup          *string
	Neighbourhood               *string
	Latitude                    *float64
	Longitude                   *float64
	RoomType                    *string
	Price                       *float64
	MinimumNights               *int64
	NumberOfReviews             *int64
	LastReview                  *time.Time
	ReviewsPerMonth             *float64
	CalculatedHostListingsCount *int64
	Availability365             *int64
	NumberOfReviewsLTM          *int64
	License                     *string

	EstimatedRevenue365 *float64
	OccupancyRate       *float64
	PriceTier           string
}

// CleanReview is a review after transform.
type CleanReview struct {
	ListingID *int64
	Date      *time.Time
}

// ---- coercion helpers ----

// TrimToNil trims s and maps blank to nil. This is the single blank→absent
// rule every dimension equality check goes through.
func TrimToNil(s string) *string {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	return &t
}

// Deref returns the trimmed value of p, with nil mapping to "".
// Combined with TrimToNil it makes null and empty compare as equivalent.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// TextEqual compares two optional strings after trim, treating nil and blank
// as the same value.
func TextEqual(a, b *string) bool {
	return Deref(a) == Deref(b)
}

// FloatTolerance is the closeness bound for versioned coordinate comparisons.
const FloatTolerance = 1e-9

// FloatEqual compares two optional floats: both nil is equal, one nil is not,
// otherwise numeric closeness within FloatTolerance.
func FloatEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	d := *a - *b
	if d < 0 {
		d = -d
	}
	return d < FloatTolerance
}

// ParseInt parses an optional integer; blank or garbage yields nil.
// Values like "3.0" that survive a float round-trip are accepted, since
// spreadsheet exports routinely render integer columns that way.
func ParseInt(s string) *int64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && f == float64(int64(f)) {
		n := int64(f)
		return &n
	}
	return nil
}

// ParseFloat parses an optional float; blank or garbage yields nil.
func ParseFloat(s string) *float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil
	}
	return &f
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// ParseDate parses an optional calendar date; blank or unparseable yields nil.
// The result is truncated to midnight UTC.
func ParseDate(s string) *time.Time {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, t, time.UTC); err == nil {
			d := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// ISODate formats a date the way it crosses the repository boundary.
func ISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ScanString converts a value scanned from the warehouse back into the raw
// string form ("" for NULL). Drivers disagree on TEXT round-trips (string vs
// []byte) and on numeric affinity, so this is deliberately permissive.
func ScanString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return ISODate(t)
	default:
		return fmt.Sprint(v)
	}
}
