package mssql

import (
	"strings"
	"testing"

	"lodgemart/internal/warehouse"
)

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("dim_host", []string{"host_id", "host_name"}, [][]any{
		{int64(9), "Ana"},
	}, "")
	want := "INSERT INTO dim_host ([host_id], [host_name]) VALUES (@p1, @p2)"
	if q != want {
		t.Errorf("sql = %q, want %q", q, want)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildInsertSQLWithOutputClause(t *testing.T) {
	t.Parallel()

	q, _ := buildInsertSQL("dim_host", []string{"host_id"}, [][]any{{int64(9)}}, "host_sk")
	if !strings.Contains(q, "OUTPUT INSERTED.[host_sk]") {
		t.Errorf("missing OUTPUT clause: %q", q)
	}
	// OUTPUT must sit between the column list and VALUES.
	if strings.Index(q, "OUTPUT") > strings.Index(q, "VALUES") {
		t.Errorf("OUTPUT clause misplaced: %q", q)
	}
}

func TestBuildKeyWhereNullSafe(t *testing.T) {
	t.Parallel()

	where, args := buildKeyWhere([]string{"neighbourhood", "neighbourhood_group"}, []any{"Midtown", nil}, 1)
	want := "[neighbourhood] = @p1 AND [neighbourhood_group] IS NULL"
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
		Name:       "dim_host",
		PrimaryKey: &warehouse.PrimaryKeySpec{Name: "host_sk", Type: "bigserial"},
		Columns: []warehouse.ColumnSpec{
			{Name: "host_id", Type: "bigint", Nullable: false},
			{Name: "host_name", Type: "text", Nullable: true},
			{Name: "effective_from", Type: "timestamptz", Nullable: false},
			{Name: "is_current", Type: "bool", Nullable: false},
		},
	})
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}

	for _, frag := range []string{
		"IF OBJECT_ID(N'dim_host', N'U') IS NULL CREATE TABLE dim_host",
		"[host_sk] BIGINT IDENTITY(1,1) PRIMARY KEY",
		"[host_name] NVARCHAR(400)",
		"[effective_from] DATETIMEOFFSET NOT NULL",
		"[is_current] BIT NOT NULL",
	} {
		if !strings.Contains(ddl, frag) {
			t.Errorf("ddl missing %q:\n%s", frag, ddl)
		}
	}
}

func TestSQLIdentEscapesBrackets(t *testing.T) {
	t.Parallel()

	if got := sqlIdent("we]ird"); got != "[we]]ird]" {
		t.Errorf("sqlIdent = %q", got)
	}
}
