package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lodgemart/internal/warehouse"
)

// Repo implements warehouse.Repository for Postgres via pgx.
//
// Surrogate keys are BIGSERIAL and come back through INSERT ... RETURNING.
// Calendar dates cross the boundary as "2006-01-02" strings; Postgres casts
// them to DATE on bind.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	warehouse.Register("postgres", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) EnsureSchema(ctx context.Context, tables []warehouse.TableSpec) error {
	for _, t := range tables {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) TruncateTable(ctx context.Context, table string) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	// pgx CopyFrom is by far the fastest path for bulk staging loads and is
	// atomic on its own.
	ids := make([]string, len(columns))
	for i, c := range columns {
		ids[i] = strings.Trim(pgIdent(c), `"`)
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{table}, ids, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func (r *Repo) SelectRows(ctx context.Context, table string, columns []string, orderBy string) ([][]any, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", identList(columns), table)
	if orderBy != "" {
		q += " ORDER BY " + pgIdent(orderBy)
	}

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func (r *Repo) SelectKeyValue(ctx context.Context, table, keyColumn, valueColumn string, key any) (int64, bool, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		pgIdent(valueColumn), table, pgIdent(keyColumn),
	)

	var id int64
	err := r.pool.QueryRow(ctx, q, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *Repo) InsertReturningKey(ctx context.Context, table string, columns []string, row []any, keyColumn string) (int64, error) {
	q, args := buildInsertSQL(table, columns, [][]any{row})
	q = strings.TrimSuffix(q, ";") + " RETURNING " + pgIdent(keyColumn)

	var id int64
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

func (r *Repo) SelectCurrentVersion(ctx context.Context, dim warehouse.DimensionSpec, key []any) (*warehouse.Version, error) {
	where, args := buildKeyWhere(dim.KeyColumns, key, 1)
	q := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s AND %s LIMIT 1",
		pgIdent(dim.SurrogateColumn),
		identList(dim.AttributeColumns),
		dim.Table,
		where,
		pgIdent(dim.IsCurrentColumn),
	)

	var sk int64
	out := make([]any, len(dim.AttributeColumns))
	scan := make([]any, 0, len(out)+1)
	scan = append(scan, &sk)
	for i := range out {
		scan = append(scan, &out[i])
	}

	err := r.pool.QueryRow(ctx, q, args...).Scan(scan...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &warehouse.Version{SurrogateKey: sk, Attributes: out}, nil
}

func (r *Repo) CloseVersion(ctx context.Context, dim warehouse.DimensionSpec, surrogateKey int64, now time.Time) error {
	q := fmt.Sprintf(
		"UPDATE %s SET %s = $1, %s = FALSE WHERE %s = $2",
		dim.Table,
		pgIdent(dim.EffectiveToColumn),
		pgIdent(dim.IsCurrentColumn),
		pgIdent(dim.SurrogateColumn),
	)
	_, err := r.pool.Exec(ctx, q, now.UTC(), surrogateKey)
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

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, row := range rows {
		keyVals := make([]any, len(keyIdx))
		for i, ix := range keyIdx {
			keyVals[i] = row[ix]
		}
		where, whereArgs := buildKeyWhere(keyColumns, keyVals, 1)

		delQ := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)
		if _, err := tx.Exec(ctx, delQ, whereArgs...); err != nil {
			return total, fmt.Errorf("replace %s: delete: %w", table, err)
		}

		insQ, insArgs := buildInsertSQL(table, columns, [][]any{row})
		if _, err := tx.Exec(ctx, insQ, insArgs...); err != nil {
			return total, fmt.Errorf("replace %s: insert: %w", table, err)
		}
		total++
	}

	if err := tx.Commit(ctx); err != nil {
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
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// buildKeyWhere builds a null-safe key predicate starting at placeholder $firstArg.
func buildKeyWhere(keyCols []string, keyVals []any, firstArg int) (string, []any) {
	parts := make([]string, 0, len(keyCols))
	args := make([]any, 0, len(keyCols))
	p := firstArg
	for i, k := range keyCols {
		if keyVals[i] == nil {
			parts = append(parts, pgIdent(k)+" IS NULL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", pgIdent(k), p))
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
		parts = append(parts, pgIdent(t.PrimaryKey.Name)+" BIGSERIAL PRIMARY KEY")
	}

	for _, c := range t.Columns {
		ct, err := columnType(c.Type)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		col := pgIdent(c.Name) + " " + ct
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
	case "bigint":
		return "BIGINT", nil
	case "int":
		return "INT", nil
	case "float":
		return "DOUBLE PRECISION", nil
	case "text":
		return "TEXT", nil
	case "date":
		return "DATE", nil
	case "timestamptz":
		return "TIMESTAMPTZ", nil
	case "bool":
		return "BOOLEAN", nil
	default:
		return "", fmt.Errorf("unsupported column type: %s", t)
	}
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func identList(columns []string) string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, pgIdent(c))
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
