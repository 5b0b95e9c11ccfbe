package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lodgemart/internal/warehouse"
)

// Repo implements warehouse.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no native TIMESTAMPTZ or DATE types. SCD2 timestamps are
//     stored as RFC3339Nano strings and calendar dates as "2006-01-02" strings
//     for reliable round-trip behavior and easy debugging.
//   - Booleans are stored as INTEGER 0/1.
type Repo struct {
	db *sql.DB
}

func init() {
	warehouse.Register("sqlite", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// The loader is single-writer but shares one *sql.DB across stages; a
	// second pooled connection to an in-memory DSN would see an empty schema.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureSchema(ctx context.Context, tables []warehouse.TableSpec) error {
	for _, t := range tables {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) TruncateTable(ctx context.Context, table string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

// maxInsertArgs bounds bind variables per statement. SQLite's default variable
// limit is far higher, but keeping statements modest also keeps them readable
// in traces.
const maxInsertArgs = 8000

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	chunk := maxInsertArgs / len(columns)
	if chunk < 1 {
		chunk = 1
	}

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		q, args := buildInsertSQL(table, columns, rows[start:end])
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return total, err
	}
	return total, nil
}

func (r *Repo) SelectRows(ctx context.Context, table string, columns []string, orderBy string) ([][]any, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", identList(columns), table)
	if orderBy != "" {
		q += " ORDER BY " + sqlIdent(orderBy)
	}

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range vals {
			scan[i] = &vals[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func (r *Repo) SelectKeyValue(ctx context.Context, table, keyColumn, valueColumn string, key any) (int64, bool, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? LIMIT 1",
		sqlIdent(valueColumn), table, sqlIdent(keyColumn),
	)

	var id sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, bindValue(key)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !id.Valid {
		return 0, false, fmt.Errorf("sqlite: %s.%s is NULL; surrogate key not generated", table, valueColumn)
	}
	return id.Int64, true, nil
}

func (r *Repo) InsertReturningKey(ctx context.Context, table string, columns []string, row []any, keyColumn string) (int64, error) {
	q, args := buildInsertSQL(table, columns, [][]any{row})
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}

	// The surrogate columns are all INTEGER PRIMARY KEY, i.e. the rowid, so
	// LastInsertId is exact here.
	_ = keyColumn
	return res.LastInsertId()
}

func (r *Repo) SelectCurrentVersion(ctx context.Context, dim warehouse.DimensionSpec, key []any) (*warehouse.Version, error) {
	where, args := buildKeyWhere(dim.KeyColumns, key)
	q := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s AND %s = 1 LIMIT 1",
		sqlIdent(dim.SurrogateColumn),
		identList(dim.AttributeColumns),
		dim.Table,
		where,
		sqlIdent(dim.IsCurrentColumn),
	)

	out := make([]any, len(dim.AttributeColumns))
	scan := make([]any, 0, len(out)+1)
	var sk sql.NullInt64
	scan = append(scan, &sk)
	for i := range out {
		scan = append(scan, &out[i])
	}

	err := r.db.QueryRowContext(ctx, q, args...).Scan(scan...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !sk.Valid {
		return nil, fmt.Errorf("sqlite: %s.%s is NULL for current row", dim.Table, dim.SurrogateColumn)
	}
	return &warehouse.Version{SurrogateKey: sk.Int64, Attributes: out}, nil
}

func (r *Repo) CloseVersion(ctx context.Context, dim warehouse.DimensionSpec, surrogateKey int64, now time.Time) error {
	q := fmt.Sprintf(
		"UPDATE %s SET %s = ?, %s = 0 WHERE %s = ?",
		dim.Table,
		sqlIdent(dim.EffectiveToColumn),
		sqlIdent(dim.IsCurrentColumn),
		sqlIdent(dim.SurrogateColumn),
	)
	_, err := r.db.ExecContext(ctx, q, formatTime(now), surrogateKey)
	return err
}

// ReplaceFactRows deletes any prior row matching each incoming row's key
// columns, then inserts the incoming row. The whole batch is one transaction:
// a failed run leaves the previous snapshot intact.
func (r *Repo) ReplaceFactRows(ctx context.Context, table string, keyColumns []string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	keyIdx, err := indicesFor(keyColumns, columns)
	if err != nil {
		return 0, fmt.Errorf("replace %s: %w", table, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return total, fmt.Errorf("replace %s: row length %d != columns length %d", table, len(row), len(columns))
		}

		keyVals := make([]any, len(keyIdx))
		for i, ix := range keyIdx {
			keyVals[i] = row[ix]
		}
		where, whereArgs := buildKeyWhere(keyColumns, keyVals)

		delQ := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)
		if _, err := tx.ExecContext(ctx, delQ, whereArgs...); err != nil {
			return total, fmt.Errorf("replace %s: delete: %w", table, err)
		}

		insQ, insArgs := buildInsertSQL(table, columns, [][]any{row})
		if _, err := tx.ExecContext(ctx, insQ, insArgs...); err != nil {
			return total, fmt.Errorf("replace %s: insert: %w", table, err)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return total, err
	}
	return total, nil
}

// ---- SQL builders (pure; unit-tested without a database) ----

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(identList(columns))
	b.WriteString(") VALUES ")

	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, v := range row {
			args = append(args, bindValue(v))
		}
	}
	return b.String(), args
}

// buildKeyWhere builds a null-safe "k1 = ? AND k2 IS NULL ..." clause.
// nil key components bind as IS NULL rather than "= NULL" (always false).
func buildKeyWhere(keyCols []string, keyVals []any) (string, []any) {
	parts := make([]string, 0, len(keyCols))
	args := make([]any, 0, len(keyCols))
	for i, k := range keyCols {
		if keyVals[i] == nil {
			parts = append(parts, sqlIdent(k)+" IS NULL")
			continue
		}
		parts = append(parts, sqlIdent(k)+" = ?")
		args = append(args, bindValue(keyVals[i]))
	}
	return strings.Join(parts, " AND "), args
}

func buildCreateTableSQL(t warehouse.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	var parts []string
	if t.PrimaryKey != nil {
		if t.PrimaryKey.Type != "bigserial" {
			return "", fmt.Errorf("%s unsupported primary key type: %s", t.Name, t.PrimaryKey.Type)
		}
		// "INTEGER PRIMARY KEY" is special in sqlite: it becomes the rowid and
		// auto-generates values.
		parts = append(parts, sqlIdent(t.PrimaryKey.Name)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	}

	for _, c := range t.Columns {
		ct, err := columnType(c.Type)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		col := sqlIdent(c.Name) + " " + ct
		if !c.Nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	for _, con := range t.Constraints {
		if con.Kind != "unique" {
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		parts = append(parts, "UNIQUE ("+identList(con.Columns)+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  ")), nil
}

func columnType(t string) (string, error) {
	switch t {
	case "bigint", "int", "bool":
		return "INTEGER", nil
	case "float":
		return "REAL", nil
	case "text", "date", "timestamptz":
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported column type: %s", t)
	}
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func identList(columns []string) string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, sqlIdent(c))
	}
	return strings.Join(out, ", ")
}

func indicesFor(keyColumns, columns []string) ([]int, error) {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	out := make([]int, 0, len(keyColumns))
	for _, k := range keyColumns {
		i, ok := pos[k]
		if !ok {
			return nil, fmt.Errorf("key column %q not found in columns", k)
		}
		out = append(out, i)
	}
	return out, nil
}

// bindValue maps Go values to what this backend stores: time.Time as
// RFC3339Nano text, bool as 0/1. Everything else passes through.
func bindValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return formatTime(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
