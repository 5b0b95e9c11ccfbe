package dimension

import (
	"context"
	"fmt"
	"time"

	"lodgemart/internal/record"
	"lodgemart/internal/warehouse"
)

// EnsureDates guarantees every date in the inclusive range [min, max] exists
// in dim_date. Check-then-insert per date: existing rows are never re-derived
// or updated, so overlapping ranges are safe to backfill repeatedly.
func (e *Engine) EnsureDates(ctx context.Context, min, max time.Time) error {
	min = midnightUTC(min)
	max = midnightUTC(max)

	for d := min; !d.After(max); d = d.AddDate(0, 0, 1) {
		iso := record.ISODate(d)
		if _, ok := e.dates[iso]; ok {
			continue
		}

		sk, found, err := e.repo.SelectKeyValue(ctx, warehouse.TableDimDate, "full_date", "date_sk", iso)
		if err != nil {
			return fmt.Errorf("dim_date lookup %s: %w", iso, err)
		}
		if !found {
			sk, err = e.repo.InsertReturningKey(ctx, warehouse.TableDimDate, dateColumns, dateRow(d), "date_sk")
			if err != nil {
				return fmt.Errorf("dim_date insert %s: %w", iso, err)
			}
		}
		e.dates[iso] = sk
	}
	return nil
}

// DateKey resolves the surrogate key for a calendar date, if present.
func (e *Engine) DateKey(ctx context.Context, d time.Time) (int64, bool, error) {
	iso := record.ISODate(midnightUTC(d))
	if sk, ok := e.dates[iso]; ok {
		return sk, true, nil
	}

	sk, found, err := e.repo.SelectKeyValue(ctx, warehouse.TableDimDate, "full_date", "date_sk", iso)
	if err != nil {
		return 0, false, fmt.Errorf("dim_date lookup %s: %w", iso, err)
	}
	if found {
		e.dates[iso] = sk
	}
	return sk, found, nil
}

var dateColumns = []string{"full_date", "year", "month", "day", "quarter", "day_of_week", "is_weekend"}

// dateRow derives the dim_date attributes. Day-of-week follows the
// 1=Monday..7=Sunday convention; Saturday and Sunday count as weekend.
func dateRow(d time.Time) []any {
	month := int(d.Month())
	quarter := (month-1)/3 + 1
	dow := int(d.Weekday()) // Sunday=0
	dow = (dow+6)%7 + 1     // Monday=1 .. Sunday=7
	return []any{
		record.ISODate(d),
		d.Year(),
		month,
		d.Day(),
		quarter,
		dow,
		dow >= 6,
	}
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
