// Table and dimension descriptors live here so backend packages can consume
// them without importing the load pipeline (no circular deps).
package warehouse

// TableSpec describes one warehouse table for DDL generation.
//
// Column types use a small dialect-neutral vocabulary; each backend translates
// it to its own DDL ("bigserial" becomes INTEGER PRIMARY KEY AUTOINCREMENT on
// SQLite, BIGINT IDENTITY on SQL Server, and so on):
//
//	bigserial bigint int float text date timestamptz bool
type TableSpec struct {
	Name        string
	PrimaryKey  *PrimaryKeySpec
	Columns     []ColumnSpec
	Constraints []ConstraintSpec
}

type PrimaryKeySpec struct {
	Name string
	Type string // "bigserial"
}

type ColumnSpec struct {
	Name     string
	Type     string
	Nullable bool
}

type ConstraintSpec struct {
	Kind    string // "unique"
	Columns []string
}

// DimensionSpec describes an SCD2 dimension: which columns form the business
// key, which carry versioned attributes, and where the version bookkeeping
// lives. The spec is pure data; the versioning rules themselves (equality,
// close-then-insert) are owned by internal/dimension.
type DimensionSpec struct {
	Table            string
	SurrogateColumn  string
	KeyColumns       []string
	AttributeColumns []string

	EffectiveFromColumn string
	EffectiveToColumn   string
	IsCurrentColumn     string
}

// Fixed table names. The loaders and the validation report reference these;
// keeping them as constants avoids magic strings spread across packages.
const (
	TableStagingListings  = "staging_listings"
	TableStagingReviews   = "staging_reviews"
	TableDimDate          = "dim_date"
	TableDimRoomType      = "dim_room_type"
	TableDimHost          = "dim_host"
	TableDimNeighbourhood = "dim_neighbourhood"
	TableDimListing       = "dim_listing"
	TableFactSnapshots    = "fact_listing_snapshots"
	TableFactReviews      = "fact_reviews"
)

// HostDimension returns the SCD2 descriptor for dim_host.
func HostDimension() DimensionSpec {
	return DimensionSpec{
		Table:               TableDimHost,
		SurrogateColumn:     "host_sk",
		KeyColumns:          []string{"host_id"},
		AttributeColumns:    []string{"host_name"},
		EffectiveFromColumn: "effective_from",
		EffectiveToColumn:   "effective_to",
		IsCurrentColumn:     "is_current",
	}
}

// NeighbourhoodDimension returns the SCD2 descriptor for dim_neighbourhood.
// The business key is the (neighbourhood, neighbourhood_group) pair; both
// components may be NULL, so key matching must be null-safe.
func NeighbourhoodDimension() DimensionSpec {
	return DimensionSpec{
		Table:               TableDimNeighbourhood,
		SurrogateColumn:     "neighbourhood_sk",
		KeyColumns:          []string{"neighbourhood", "neighbourhood_group"},
		AttributeColumns:    []string{"neighbourhood", "neighbourhood_group"},
		EffectiveFromColumn: "effective_from",
		EffectiveToColumn:   "effective_to",
		IsCurrentColumn:     "is_current",
	}
}

// ListingDimension returns the SCD2 descriptor for dim_listing.
func ListingDimension() DimensionSpec {
	return DimensionSpec{
		Table:               TableDimListing,
		SurrogateColumn:     "listing_sk",
		KeyColumns:          []string{"listing_id"},
		AttributeColumns:    []string{"name", "latitude", "longitude", "license"},
		EffectiveFromColumn: "effective_from",
		EffectiveToColumn:   "effective_to",
		IsCurrentColumn:     "is_current",
	}
}

// StarSchema returns every table the pipeline owns, in dependency order.
// EnsureSchema runs over this on every startup; all DDL is idempotent.
func StarSchema() []TableSpec {
	return []TableSpec{
		{
			Name: TableStagingListings,
			Columns: []ColumnSpec{
				{Name: "id", Type: "text", Nullable: true},
				{Name: "name", Type: "text", Nullable: true},
				{Name: "host_id", Type: "text", Nullable: true},
				{Name: "host_name", Type: "text", Nullable: true},
				{Name: "neighbourhood_group", Type: "text", Nullable: true},
				{Name: "neighbourhood", Type: "text", Nullable: true},
				{Name: "latitude", Type: "text", Nullable: true},
				{Name: "longitude", Type: "text", Nullable: true},
				{Name: "room_type", Type: "text", Nullable: true},
				{Name: "price", Type: "text", Nullable: true},
				{Name: "minimum_nights", Type: "text", Nullable: true},
				{Name: "number_of_reviews", Type: "text", Nullable: true},
				{Name: "last_review", Type: "text", Nullable: true},
				{Name: "reviews_per_month", Type: "text", Nullable: true},
				{Name: "calculated_host_listings_count", Type: "text", Nullable: true},
				{Name: "availability_365", Type: "text", Nullable: true},
				{Name: "number_of_reviews_ltm", Type: "text", Nullable: true},
				{Name: "license", Type: "text", Nullable: true},
				{Name: "load_id", Type: "text", Nullable: false},
				{Name: "row_num", Type: "bigint", Nullable: false},
			},
		},
		{
			Name: TableStagingReviews,
			Columns: []ColumnSpec{
				{Name: "listing_id", Type: "text", Nullable: true},
				{Name: "review_date", Type: "text", Nullable: true},
				{Name: "load_id", Type: "text", Nullable: false},
				{Name: "row_num", Type: "bigint", Nullable: false},
			},
		},
		{
			Name:       TableDimDate,
			PrimaryKey: &PrimaryKeySpec{Name: "date_sk", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "full_date", Type: "date", Nullable: false},
				{Name: "year", Type: "int", Nullable: false},
				{Name: "month", Type: "int", Nullable: false},
				{Name: "day", Type: "int", Nullable: false},
				{Name: "quarter", Type: "int", Nullable: false},
				{Name: "day_of_week", Type: "int", Nullable: false},
				{Name: "is_weekend", Type: "bool", Nullable: false},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"full_date"}}},
		},
		{
			Name:       TableDimRoomType,
			PrimaryKey: &PrimaryKeySpec{Name: "room_type_sk", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "room_type", Type: "text", Nullable: false},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"room_type"}}},
		},
		{
			Name:       TableDimHost,
			PrimaryKey: &PrimaryKeySpec{Name: "host_sk", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "host_id", Type: "bigint", Nullable: false},
				{Name: "host_name", Type: "text", Nullable: true},
				{Name: "effective_from", Type: "timestamptz", Nullable: false},
				{Name: "effective_to", Type: "timestamptz", Nullable: true},
				{Name: "is_current", Type: "bool", Nullable: false},
			},
		},
		{
			Name:       TableDimNeighbourhood,
			PrimaryKey: &PrimaryKeySpec{Name: "neighbourhood_sk", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "neighbourhood", Type: "text", Nullable: true},
				{Name: "neighbourhood_group", Type: "text", Nullable: true},
				{Name: "effective_from", Type: "timestamptz", Nullable: false},
				{Name: "effective_to", Type: "timestamptz", Nullable: true},
				{Name: "is_current", Type: "bool", Nullable: false},
			},
		},
		{
			Name:       TableDimListing,
			PrimaryKey: &PrimaryKeySpec{Name: "listing_sk", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "listing_id", Type: "bigint", Nullable: false},
				{Name: "name", Type: "text", Nullable: true},
				{Name: "latitude", Type: "float", Nullable: true},
				{Name: "longitude", Type: "float", Nullable: true},
				{Name: "license", Type: "text", Nullable: true},
				{Name: "effective_from", Type: "timestamptz", Nullable: false},
				{Name: "effective_to", Type: "timestamptz", Nullable: true},
				{Name: "is_current", Type: "bool", Nullable: false},
			},
		},
		{
			Name:       TableFactSnapshots,
			PrimaryKey: &PrimaryKeySpec{Name: "snapshot_sk", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "listing_sk", Type: "bigint", Nullable: false},
				{Name: "host_sk", Type: "bigint", Nullable: false},
				{Name: "neighbourhood_sk", Type: "bigint", Nullable: false},
				{Name: "room_type_sk", Type: "bigint", Nullable: false},
				{Name: "price", Type: "float", Nullable: true},
				{Name: "minimum_nights", Type: "bigint", Nullable: true},
				{Name: "number_of_reviews", Type: "bigint", Nullable: true},
				{Name: "last_review_date_sk", Type: "bigint", Nullable: true},
				{Name: "reviews_per_month", Type: "float", Nullable: true},
				{Name: "calculated_host_listings_count", Type: "bigint", Nullable: true},
				{Name: "availability_365", Type: "bigint", Nullable: true},
				{Name: "number_of_reviews_ltm", Type: "bigint", Nullable: true},
				{Name: "estimated_revenue_365", Type: "float", Nullable: true},
				{Name: "occupancy_rate", Type: "float", Nullable: true},
				{Name: "price_tier", Type: "text", Nullable: true},
				{Name: "load_date", Type: "date", Nullable: false},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"listing_sk", "load_date"}}},
		},
		{
			// Append-only, no unique constraint. Rerunning the same batch for
			// the same load_date duplicates review facts; callers must prevent
			// reruns if that matters to them.
			Name:       TableFactReviews,
			PrimaryKey: &PrimaryKeySpec{Name: "review_fact_sk", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "listing_sk", Type: "bigint", Nullable: false},
				{Name: "date_sk", Type: "bigint", Nullable: false},
				{Name: "load_date", Type: "date", Nullable: false},
			},
		},
	}
}
