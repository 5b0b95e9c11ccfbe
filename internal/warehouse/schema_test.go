package warehouse

import "testing"

func TestStarSchemaTables(t *testing.T) {
	t.Parallel()

	tables := StarSchema()
	byName := map[string]TableSpec{}
	for _, tb := range tables {
		if _, dup := byName[tb.Name]; dup {
			t.Fatalf("duplicate table %s", tb.Name)
		}
		byName[tb.Name] = tb
	}

	for _, name := range []string{
		TableStagingListings, TableStagingReviews, TableDimDate, TableDimRoomType,
		TableDimHost, TableDimNeighbourhood, TableDimListing, TableFactSnapshots, TableFactReviews,
	} {
		if _, ok := byName[name]; !ok {
			t.Errorf("schema missing table %s", name)
		}
	}

	// Staging tables carry no surrogate key; everything else does.
	for name, tb := range byName {
		staging := name == TableStagingListings || name == TableStagingReviews
		if staging && tb.PrimaryKey != nil {
			t.Errorf("%s should not have a primary key spec", name)
		}
		if !staging && tb.PrimaryKey == nil {
			t.Errorf("%s missing primary key spec", name)
		}
	}

	// The snapshot fact is keyed per listing per load date; the review fact
	// deliberately has no uniqueness at all.
	snap := byName[TableFactSnapshots]
	if len(snap.Constraints) != 1 || len(snap.Constraints[0].Columns) != 2 {
		t.Errorf("fact_listing_snapshots constraints = %+v", snap.Constraints)
	}
	if len(byName[TableFactReviews].Constraints) != 0 {
		t.Error("fact_reviews must stay append-only")
	}
}

func TestDimensionSpecsReferenceSchemaColumns(t *testing.T) {
	t.Parallel()

	byName := map[string]TableSpec{}
	for _, tb := range StarSchema() {
		byName[tb.Name] = tb
	}

	for _, dim := range []DimensionSpec{HostDimension(), NeighbourhoodDimension(), ListingDimension()} {
		tb, ok := byName[dim.Table]
		if !ok {
			t.Errorf("dimension table %s not in schema", dim.Table)
			continue
		}

		cols := map[string]bool{}
		for _, c := range tb.Columns {
			cols[c.Name] = true
		}
		if tb.PrimaryKey == nil || tb.PrimaryKey.Name != dim.SurrogateColumn {
			t.Errorf("%s surrogate column mismatch", dim.Table)
		}
		for _, c := range append(append([]string{}, dim.KeyColumns...), dim.AttributeColumns...) {
			if !cols[c] {
				t.Errorf("%s references unknown column %s", dim.Table, c)
			}
		}
		for _, c := range []string{dim.EffectiveFromColumn, dim.EffectiveToColumn, dim.IsCurrentColumn} {
			if !cols[c] {
				t.Errorf("%s missing SCD column %s", dim.Table, c)
			}
		}
	}
}
