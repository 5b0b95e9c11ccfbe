// Package dimension owns every write to the dimension tables. The versioning
// engine applies SCD2 semantics (close the current version, open a new one)
// to host, neighbourhood and listing dimensions, and plain lookup-or-insert
// semantics to the room-type dimension.
package dimension

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lodgemart/internal/record"
	"lodgemart/internal/warehouse"
)

// Engine resolves business keys to surrogate keys, creating or versioning
// dimension rows as needed.
//
// An Engine is scoped to exactly one pipeline run: the lookup caches assume a
// single writer and are never invalidated. Construct a fresh one per run.
type Engine struct {
	repo warehouse.Repository

	// now is a seam for deterministic tests. Production uses time.Now.
	now func() time.Time

	roomTypes      map[string]int64
	hosts          map[string]int64
	neighbourhoods map[string]int64
	listings       map[int64]int64
	dates          map[string]int64

	opened map[string]int64
	closed map[string]int64
}

// NewEngine creates a run-scoped engine over the given repository.
func NewEngine(repo warehouse.Repository) *Engine {
	return &Engine{
		repo:           repo,
		now:            time.Now,
		roomTypes:      map[string]int64{},
		hosts:          map[string]int64{},
		neighbourhoods: map[string]int64{},
		listings:       map[int64]int64{},
		dates:          map[string]int64{},
		opened:         map[string]int64{},
		closed:         map[string]int64{},
	}
}

// VersionCounts reports the SCD2 versions this engine opened and closed,
// keyed by dimension table. Lookup-only resolutions count nothing.
func (e *Engine) VersionCounts() (opened, closed map[string]int64) {
	return e.opened, e.closed
}

// RoomTypeKey resolves the room-type surrogate key. Blank room types collapse
// to "Unknown". Room type is a flat lookup: created once, never versioned.
func (e *Engine) RoomTypeKey(ctx context.Context, roomType *string) (int64, error) {
	rt := record.Deref(roomType)
	if rt == "" {
		rt = "Unknown"
	}

	if sk, ok := e.roomTypes[rt]; ok {
		return sk, nil
	}

	sk, found, err := e.repo.SelectKeyValue(ctx, warehouse.TableDimRoomType, "room_type", "room_type_sk", rt)
	if err != nil {
		return 0, fmt.Errorf("dim_room_type lookup: %w", err)
	}
	if !found {
		sk, err = e.repo.InsertReturningKey(ctx, warehouse.TableDimRoomType, []string{"room_type"}, []any{rt}, "room_type_sk")
		if err != nil {
			return 0, fmt.Errorf("dim_room_type insert: %w", err)
		}
	}

	e.roomTypes[rt] = sk
	return sk, nil
}

// HostKey resolves the host surrogate key, versioning dim_host when the host
// name changed. The cache key includes the name so a changed name within one
// batch still goes through the SCD2 path.
func (e *Engine) HostKey(ctx context.Context, hostID int64, hostName *string) (int64, error) {
	name := record.TrimToNil(record.Deref(hostName))

	cacheKey := strconv.FormatInt(hostID, 10) + "\x1f" + record.Deref(name)
	if sk, ok := e.hosts[cacheKey]; ok {
		return sk, nil
	}

	sk, err := e.getOrCreateCurrent(ctx,
		warehouse.HostDimension(),
		[]any{hostID},
		[]any{textVal(name)},
		func(existing []any) bool {
			return record.TextEqual(scanText(existing[0]), name)
		},
	)
	if err != nil {
		return 0, fmt.Errorf("dim_host: %w", err)
	}

	e.hosts[cacheKey] = sk
	return sk, nil
}

// NeighbourhoodKey resolves the neighbourhood surrogate key. The business key
// is the (neighbourhood, group) pair itself; both components are trimmed with
// blank mapping to NULL, and key matching is null-safe.
func (e *Engine) NeighbourhoodKey(ctx context.Context, neighbourhood, group *string) (int64, error) {
	n := record.TrimToNil(record.Deref(neighbourhood))
	g := record.TrimToNil(record.Deref(group))

	cacheKey := record.Deref(n) + "\x1f" + record.Deref(g)
	if sk, ok := e.neighbourhoods[cacheKey]; ok {
		return sk, nil
	}

	sk, err := e.getOrCreateCurrent(ctx,
		warehouse.NeighbourhoodDimension(),
		[]any{textVal(n), textVal(g)},
		[]any{textVal(n), textVal(g)},
		func(existing []any) bool {
			return record.TextEqual(scanText(existing[0]), n) &&
				record.TextEqual(scanText(existing[1]), g)
		},
	)
	if err != nil {
		return 0, fmt.Errorf("dim_neighbourhood: %w", err)
	}

	e.neighbourhoods[cacheKey] = sk
	return sk, nil
}

// ListingKey resolves the listing surrogate key, versioning dim_listing when
// name, coordinates or license changed. Coordinates compare by closeness
// (record.FloatTolerance); one side NULL counts as a change.
func (e *Engine) ListingKey(ctx context.Context, listingID int64, name *string, lat, lon *float64, license *string) (int64, error) {
	n := record.TrimToNil(record.Deref(name))
	lic := record.TrimToNil(record.Deref(license))

	sk, err := e.getOrCreateCurrent(ctx,
		warehouse.ListingDimension(),
		[]any{listingID},
		[]any{textVal(n), floatVal(lat), floatVal(lon), textVal(lic)},
		func(existing []any) bool {
			return record.TextEqual(scanText(existing[0]), n) &&
				record.FloatEqual(scanFloat(existing[1]), lat) &&
				record.FloatEqual(scanFloat(existing[2]), lon) &&
				record.TextEqual(scanText(existing[3]), lic)
		},
	)
	if err != nil {
		return 0, fmt.Errorf("dim_listing: %w", err)
	}

	e.listings[listingID] = sk
	return sk, nil
}

// CurrentListingKey returns the current surrogate key for a listing without
// writing anything. Reviews use this for listings absent from the batch's
// listings file; a miss means orphan, not error.
func (e *Engine) CurrentListingKey(ctx context.Context, listingID int64) (int64, bool, error) {
	if sk, ok := e.listings[listingID]; ok {
		return sk, true, nil
	}

	cur, err := e.repo.SelectCurrentVersion(ctx, warehouse.ListingDimension(), []any{listingID})
	if err != nil {
		return 0, false, fmt.Errorf("dim_listing lookup: %w", err)
	}
	if cur == nil {
		return 0, false, nil
	}

	e.listings[listingID] = cur.SurrogateKey
	return cur.SurrogateKey, true, nil
}

// getOrCreateCurrent implements the SCD2 protocol shared by all versioned
// dimensions:
//
//  1. fetch the current version for the business key
//  2. none → insert a new current version
//  3. attribute-equal → return the existing surrogate key, no write
//  4. changed → close the current version, insert a new one
//
// The equality short-circuit is what keeps reprocessing an unchanged batch
// from growing a new version per run.
func (e *Engine) getOrCreateCurrent(
	ctx context.Context,
	dim warehouse.DimensionSpec,
	key []any,
	attrs []any,
	equal func(existing []any) bool,
) (int64, error) {
	cur, err := e.repo.SelectCurrentVersion(ctx, dim, key)
	if err != nil {
		return 0, err
	}

	// One timestamp for the whole transition, so the closed version's
	// effective_to equals the new version's effective_from.
	now := e.now().UTC()

	if cur != nil {
		if equal(cur.Attributes) {
			return cur.SurrogateKey, nil
		}
		if err := e.repo.CloseVersion(ctx, dim, cur.SurrogateKey, now); err != nil {
			return 0, fmt.Errorf("close version sk=%d: %w", cur.SurrogateKey, err)
		}
		e.closed[dim.Table]++
	}

	columns, row := buildVersionRow(dim, key, attrs, now)
	sk, err := e.repo.InsertReturningKey(ctx, dim.Table, columns, row, dim.SurrogateColumn)
	if err != nil {
		return 0, fmt.Errorf("insert version: %w", err)
	}
	e.opened[dim.Table]++
	return sk, nil
}

// buildVersionRow assembles the insert for a new current version: business
// key columns, attribute columns not already part of the key, then
// effective_from and is_current. effective_to stays NULL until the version
// is closed.
func buildVersionRow(dim warehouse.DimensionSpec, key []any, attrs []any, now time.Time) ([]string, []any) {
	columns := make([]string, 0, len(dim.KeyColumns)+len(dim.AttributeColumns)+2)
	row := make([]any, 0, cap(columns))

	seen := map[string]bool{}
	for i, c := range dim.KeyColumns {
		columns = append(columns, c)
		row = append(row, key[i])
		seen[c] = true
	}
	for i, c := range dim.AttributeColumns {
		if seen[c] {
			continue
		}
		columns = append(columns, c)
		row = append(row, attrs[i])
	}

	columns = append(columns, dim.EffectiveFromColumn, dim.IsCurrentColumn)
	row = append(row, now, true)
	return columns, row
}

// ---- bind/scan conversions ----

func textVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatVal(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func scanText(v any) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(record.ScanString(v))
	if s == "" {
		return nil
	}
	return &s
}

func scanFloat(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case float32:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case []byte:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil
		}
		return &f
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
