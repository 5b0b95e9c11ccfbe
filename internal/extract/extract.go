// Package extract reads the raw listing/review CSV extracts and lands them in
// the staging tables, tagged with a batch identifier and row ordinal.
package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"lodgemart/internal/config"
	"lodgemart/internal/record"
)

// ReadListings reads the listings CSV, trying the fallback encoding if the
// default fails (typically utf-8 strict, then utf-8-sig for BOM exports).
// The returned columns are the normalized header names actually present in
// the file; validation checks them against the required set.
func ReadListings(cfg config.Pipeline) ([]record.RawListing, []string, error) {
	path := filepath.Join(cfg.Source.DataDir, cfg.Source.ListingsFile)
	header, rows, err := readCSVWithFallback(path, cfg.Encoding.Default, cfg.Encoding.Fallback)
	if err != nil {
		return nil, nil, err
	}

	cols := normalizeHeader(header)
	ix := indexHeader(cols)
	out := make([]record.RawListing, 0, len(rows))
	for _, r := range rows {
		out = append(out, record.RawListing{
			ID:                          field(r, ix, "id"),
			Name:                        field(r, ix, "name"),
			HostID:                      field(r, ix, "host_id"),
			HostName:                    field(r, ix, "host_name"),
			NeighbourhoodGroup:          field(r, ix, "neighbourhood_group"),
			Neighbourhood:               field(r, ix, "neighbourhood"),
			Latitude:                    field(r, ix, "latitude"),
			Longitude:                   field(r, ix, "longitude"),
			RoomType:                    field(r, ix, "room_type"),
			Price:                       field(r, ix, "price"),
			MinimumNights:               field(r, ix, "minimum_nights"),
			NumberOfReviews:             field(r, ix, "number_of_reviews"),
			LastReview:                  field(r, ix, "last_review"),
			ReviewsPerMonth:             field(r, ix, "reviews_per_month"),
			CalculatedHostListingsCount: field(r, ix, "calculated_host_listings_count"),
			Availability365:             field(r, ix, "availability_365"),
			NumberOfReviewsLTM:          field(r, ix, "number_of_reviews_ltm"),
			License:                     field(r, ix, "license"),
		})
	}
	return out, cols, nil
}

// ReadReviews reads the reviews CSV with the same encoding fallback.
func ReadReviews(cfg config.Pipeline) ([]record.RawReview, []string, error) {
	path := filepath.Join(cfg.Source.DataDir, cfg.Source.ReviewsFile)
	header, rows, err := readCSVWithFallback(path, cfg.Encoding.Default, cfg.Encoding.Fallback)
	if err != nil {
		return nil, nil, err
	}

	cols := normalizeHeader(header)
	ix := indexHeader(cols)
	out := make([]record.RawReview, 0, len(rows))
	for _, r := range rows {
		out = append(out, record.RawReview{
			ListingID: field(r, ix, "listing_id"),
			Date:      field(r, ix, "date"),
		})
	}
	return out, cols, nil
}

func readCSVWithFallback(path, defaultEnc, fallbackEnc string) ([]string, [][]string, error) {
	header, rows, err := readCSV(path, defaultEnc)
	if err == nil {
		return header, rows, nil
	}
	if fallbackEnc == "" || fallbackEnc == defaultEnc {
		return nil, nil, err
	}

	header, rows, ferr := readCSV(path, fallbackEnc)
	if ferr != nil {
		// The first error names the configured default; it is the one the
		// operator should see.
		return nil, nil, fmt.Errorf("%s: %w (fallback %s: %v)", path, err, fallbackEnc, ferr)
	}
	return header, rows, nil
}

func readCSV(path, encName string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	dec, err := decoderFor(encName)
	if err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(transform.NewReader(f, dec))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s header: %w", path, err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, append([]string(nil), rec...))
	}
	return header, rows, nil
}

// decoderFor maps a config encoding name to a transformer. "utf-8" validates
// strictly so that mis-encoded exports trip the fallback instead of landing
// replacement runes in the warehouse.
func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return encoding.UTF8Validator, nil
	case "utf-8-sig", "utf8-sig":
		// Strip a BOM when present; without one, validate strictly rather
		// than substituting replacement runes.
		return unicode.BOMOverride(encoding.UTF8Validator), nil
	case "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		// A BOM is valid UTF-8, so it survives strict decoding glued to the
		// first header name.
		h = strings.TrimPrefix(h, "\ufeff")
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func indexHeader(cols []string) map[string]int {
	ix := make(map[string]int, len(cols))
	for i, c := range cols {
		ix[c] = i
	}
	return ix
}

func field(row []string, ix map[string]int, name string) string {
	i, ok := ix[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
