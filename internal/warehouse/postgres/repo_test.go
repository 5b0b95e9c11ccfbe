package postgres

import (
	"strings"
	"testing"

	"lodgemart/internal/warehouse"
)

func TestBuildInsertSQLNumbersPlaceholders(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("dim_host", []string{"host_id", "host_name"}, [][]any{
		{int64(9), "Ana"},
		{int64(10), "Ben"},
	})
	want := `INSERT INTO dim_host ("host_id", "host_name") VALUES ($1, $2), ($3, $4);`
	if q != want {
		t.Errorf("sql = %q, want %q", q, want)
	}
	if len(args) != 4 || args[2] != int64(10) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildKeyWhereStartsAtFirstArg(t *testing.T) {
	t.Parallel()

	// Placeholder numbering must continue from the caller's prefix args.
	where, args := buildKeyWhere([]string{"listing_id"}, []any{int64(101)}, 3)
	if where != `"listing_id" = $3` {
		t.Errorf("where = %q", where)
	}
	if len(args) != 1 || args[0] != int64(101) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildKeyWhereNullSafe(t *testing.T) {
	t.Parallel()

	where, args := buildKeyWhere(
		[]string{"neighbourhood", "neighbourhood_group"},
		[]any{nil, "Manhattan"},
		1,
	)
	want := `"neighbourhood" IS NULL AND "neighbourhood_group" = $1`
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	ddl, err := buildCreateTableSQL(warehouse.TableSpec{
		Name:       "dim_listing",
		PrimaryKey: &warehouse.PrimaryKeySpec{Name: "listing_sk", Type: "bigserial"},
		Columns: []warehouse.ColumnSpec{
			{Name: "listing_id", Type: "bigint", Nullable: false},
			{Name: "latitude", Type: "float", Nullable: true},
			{Name: "effective_from", Type: "timestamptz", Nullable: false},
			{Name: "is_current", Type: "bool", Nullable: false},
		},
	})
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}

	for _, frag := range []string{
		"CREATE TABLE IF NOT EXISTS dim_listing",
		`"listing_sk" BIGSERIAL PRIMARY KEY`,
		`"listing_id" BIGINT NOT NULL`,
		`"latitude" DOUBLE PRECISION`,
		`"effective_from" TIMESTAMPTZ NOT NULL`,
		`"is_current" BOOLEAN NOT NULL`,
	} {
		if !strings.Contains(ddl, frag) {
			t.Errorf("ddl missing %q:\n%s", frag, ddl)
		}
	}
	if strings.Contains(ddl, `"latitude" DOUBLE PRECISION NOT NULL`) {
		t.Error("nullable column must not be NOT NULL")
	}
}

func TestBuildCreateTableSQLRejectsUnknownConstraint(t *testing.T) {
	t.Parallel()

	_, err := buildCreateTableSQL(warehouse.TableSpec{
		Name:        "t",
		Columns:     []warehouse.ColumnSpec{{Name: "c", Type: "text", Nullable: true}},
		Constraints: []warehouse.ConstraintSpec{{Kind: "check", Columns: []string{"c"}}},
	})
	if err == nil {
		t.Fatal("expected error for unsupported constraint kind")
	}
}
