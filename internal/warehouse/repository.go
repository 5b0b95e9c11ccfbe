package warehouse

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config is the minimal configuration needed to create a warehouse repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Version is one dimension version row read back from the warehouse:
// the surrogate key plus the versioned attributes, in the order declared
// by DimensionSpec.AttributeColumns.
//
// Attribute values keep whatever scalar type the driver produced (string,
// []byte, int64, float64, nil); callers normalize before comparing.
type Version struct {
	SurrogateKey int64
	Attributes   []any
}

// Repository is a backend-agnostic interface over the star schema.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the load pipeline needs. Each backend implements these semantics
// in its own idiomatic way (Postgres RETURNING, SQLite last_insert_rowid,
// SQL Server OUTPUT INSERTED, etc).
//
// Transaction scope is part of the contract:
//   - InsertRows and ReplaceFactRows each run as a single transaction.
//   - Every other write commits on its own.
type Repository interface {
	// Close releases backend resources. Treat as "call once" at shutdown.
	Close()

	// EnsureSchema creates tables and constraints as needed
	// (create-if-not-exists semantics; safe to call on every run).
	EnsureSchema(ctx context.Context, tables []TableSpec) error

	// TruncateTable removes every row from a table. Used to reset staging.
	TruncateTable(ctx context.Context, table string) error

	// InsertRows performs a bulk insert of positional rows in one transaction.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// SelectRows reads back the requested columns, ordered by orderBy when
	// non-empty. Used to re-read staged batches.
	SelectRows(ctx context.Context, table string, columns []string, orderBy string) ([][]any, error)

	// SelectKeyValue looks up a single surrogate key by a unique natural key.
	// found is false when no row matches; that is not an error.
	SelectKeyValue(ctx context.Context, table, keyColumn, valueColumn string, key any) (value int64, found bool, err error)

	// InsertReturningKey inserts one row and returns the generated surrogate key.
	InsertReturningKey(ctx context.Context, table string, columns []string, row []any, keyColumn string) (int64, error)

	// SelectCurrentVersion fetches the current (is_current) version for a
	// business key. Key matching is null-safe: a nil key component matches
	// only NULL. Returns (nil, nil) when no current version exists.
	SelectCurrentVersion(ctx context.Context, dim DimensionSpec, key []any) (*Version, error)

	// CloseVersion retires a version: effective_to = now, is_current = false.
	CloseVersion(ctx context.Context, dim DimensionSpec, surrogateKey int64, now time.Time) error

	// ReplaceFactRows deletes any existing row matching each incoming row's
	// key columns, then inserts the incoming row, all inside one transaction.
	// This is what makes snapshot fact loads idempotent per run date.
	ReplaceFactRows(ctx context.Context, table string, keyColumns []string, columns []string, rows [][]any) (int64, error)
}

// ---- backend factories (one registration per driver package) ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering the
// same kind more than once panics; this is intentional to fail fast and avoid
// ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if f == nil {
		panic("warehouse: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("warehouse: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("warehouse: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
