package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"lodgemart/internal/warehouse"
)

// Repo implements warehouse.Repository for SQL Server.
//
// Dialect notes:
//   - Surrogate keys are BIGINT IDENTITY; new keys come back via
//     OUTPUT INSERTED.<col>.
//   - There is no CREATE TABLE IF NOT EXISTS; DDL is guarded with OBJECT_ID.
//   - Text columns use NVARCHAR(400) rather than NVARCHAR(MAX) so they remain
//     usable in UNIQUE constraints.
type Repo struct {
	db *sql.DB
}

func init() {
	warehouse.Register("mssql", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
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
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

// SQL Server caps a statement at 2100 parameters.
const maxInsertArgs = 2000

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
		q, args := buildInsertSQL(table, columns, rows[start:end], "")
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
		"SELECT TOP 1 %s FROM %s WHERE %s = @p1",
		sqlIdent(valueColumn), table, sqlIdent(keyColumn),
	)

	var id sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !id.Valid {
		return 0, false, fmt.Errorf("mssql: %s.%s is NULL; surrogate key not generated", table, valueColumn)
	}
	return id.Int64, true, nil
}

func (r *Repo) InsertReturningKey(ctx context.Context, table string, columns []string, row []any, keyColumn string) (int64, error) {
	q, args := buildInsertSQL(table, columns, [][]any{row}, keyColumn)

	var id int64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

func (r *Repo) SelectCurrentVersion(ctx context.Context, dim warehouse.DimensionSpec, key []any) (*warehouse.Version, error) {
	where, args := buildKeyWhere(dim.KeyColumns, key, 1)
	q := fmt.Sprintf(
		"SELECT TOP 1 %s, %s FROM %s WHERE %s AND %s = 1",
		sqlIdent(dim.SurrogateColumn),
		identList(dim.AttributeColumns),
		dim.Table,
		where,
		sqlIdent(dim.IsCurrentColumn),
	)

	var sk sql.NullInt64
	out := make([]any, len(dim.AttributeColumns))
	scan := make([]any, 0, len(out)+1)
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
		return nil, fmt.Errorf("mssql: %s.%s is NULL for current row", dim.Table, dim.SurrogateColumn)
	}
	return &warehouse.Version{SurrogateKey: sk.Int64, Attributes: out}, nil
}

func (r *Repo) CloseVersion(ctx context.Context, dim warehouse.DimensionSpec, surrogateKey int64, now time.Time) error {
	q := fmt.Sprintf(
		"UPDATE %s SET %s = @p1, %s = 0 WHERE %s = @p2",
		dim.Table,
		sqlIdent(dim.EffectiveToColumn),
		sqlIdent(dim.IsCurrentColumn),
		sqlIdent(dim.SurrogateColumn),
	)
	_, err := r.db.ExecContext(ctx, q, now.UTC(), surrogateKey)
	return err
}

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
		keyVals := make([]any, len(keyIdx))
		for i, ix := range keyIdx {
			keyVals[i] = row[ix]
		}
		where, whereArgs := buildKeyWhere(keyColumns, keyVals, 1)

		delQ := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)
		if _, err := tx.ExecContext(ctx, delQ, whereArgs...); err != nil {
			return total, fmt.Errorf("replace %s: delete: %w", table, err)
		}

		insQ, insArgs := buildInsertSQL(table, columns, [][]any{row}, "")
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

// buildInsertSQL builds a multi-row INSERT with @pN placeholders. When
// outputColumn is non-empty an OUTPUT INSERTED clause makes the generated
// identity value scannable from the same statement.
func buildInsertSQL(table string, columns []string, rows [][]any, outputColumn string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(identList(columns))
	b.WriteString(")")
	if outputColumn != "" {
		b.WriteString(" OUTPUT INSERTED.")
		b.WriteString(sqlIdent(outputColumn))
	}
	b.WriteString(" VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func buildKeyWhere(keyCols []string, keyVals []any, firstArg int) (string, []any) {
	parts := make([]string, 0, len(keyCols))
	args := make([]any, 0, len(keyCols))
	p := firstArg
	for i, k := range keyCols {
		if keyVals[i] == nil {
			parts = append(parts, sqlIdent(k)+" IS NULL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = @p%d", sqlIdent(k), p))
		args = append(args, keyVals[i])
		p++
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
		parts = append(parts, sqlIdent(t.PrimaryKey.Name)+" BIGINT IDENTITY(1,1) PRIMARY KEY")
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

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (\n  %s\n);",
		t.Name, t.Name, strings.Join(parts, ",\n  "),
	), nil
}

func columnType(t string) (string, error) {
	switch t {
	case "bigint":
		return "BIGINT", nil
	case "int":
		return "INT", nil
	case "float":
		return "FLOAT", nil
	case "text":
		return "NVARCHAR(400)", nil
	case "date":
		return "DATE", nil
	case "timestamptz":
		return "DATETIMEOFFSET", nil
	case "bool":
		return "BIT", nil
	default:
		return "", fmt.Errorf("unsupported column type: %s", t)
	}
}

func sqlIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
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
