/*
Package sqlstore provides SQL-backed implementations of the storage interfaces.

PURPOSE:
  Persists agreements, their occurrences and the points ledger. The same
  code runs on SQLite (local, tests) and PostgreSQL (production); only the
  placeholder syntax and the unique-violation detection differ.

INTERFACES IMPLEMENTED:
  collection.Repository: Agreements and occurrences, optimistic versioning
  generic.Store:         Append-only points ledger

KEY TABLES:
  agreements:   One row per agreement, with a version column
  occurrences:  One row per occurrence, ordered by seq within an agreement
  transactions: Immutable ledger of all points changes

OPTIMISTIC CONCURRENCY:
  Save runs in one database transaction:
    UPDATE agreements ... WHERE id = ? AND version = ?
  Zero affected rows means another writer got there first and the whole
  save is rolled back with generic.ErrConcurrentModification.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE on transactions
  - Occurrences are upserted by id, never deleted

USAGE:
  store, err := sqlstore.Open(sqlstore.DialectSQLite, "./data/collection.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := collection.NewService(store, log)
  ledger := generic.NewLedger(store)

SEE ALSO:
  - collection/repository.go: Repository contract and memory version
  - generic/store.go: Ledger store contract
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect names a database/sql driver this package knows how to talk to.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) Valid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

// Store implements collection.Repository and generic.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

// Open connects to dsn and migrates the schema. For SQLite use a file path
// or ":memory:".
func Open(dialect Dialect, dsn string) (*Store, error) {
	if !dialect.Valid() {
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}

	source := dsn
	if dialect == DialectSQLite {
		source = sqliteDSN(dsn)
	}
	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// Every connection to ":memory:" is its own database.
		db.SetMaxOpenConns(1)
	}

	store := New(db, dialect)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// New wraps an existing connection without migrating.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// The schema sticks to types both SQLite and PostgreSQL accept. Timestamps
// are RFC 3339 text, dates are YYYY-MM-DD text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS agreements (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		collector_id TEXT NOT NULL,
		frequency TEXT NOT NULL,
		days_of_week TEXT NOT NULL DEFAULT '[]',
		period TEXT NOT NULL,
		preferred_time TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		status TEXT NOT NULL,
		materials_json TEXT NOT NULL DEFAULT '[]',
		cancel_reason TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agreements_status
		ON agreements(status, created_at)`,

	`CREATE TABLE IF NOT EXISTS occurrences (
		id TEXT PRIMARY KEY,
		agreement_id TEXT NOT NULL REFERENCES agreements(id),
		seq INTEGER NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL,
		materials_json TEXT NOT NULL DEFAULT '[]',
		photos_json TEXT NOT NULL DEFAULT '[]',
		note TEXT NOT NULL DEFAULT '',
		cancellation_json TEXT,
		ratings_json TEXT,
		collected_at TEXT,
		collected_by TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_agreement
		ON occurrences(agreement_id, seq)`,
	// Reminder scan: scheduled pickups by date.
	`CREATE INDEX IF NOT EXISTS idx_occurrences_status_date
		ON occurrences(status, date)`,

	// Points ledger (append-only)
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		program_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_entity_program_date
		ON transactions(entity_id, program_id, effective_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL`,
}

// =============================================================================
// DIALECT HELPERS
// =============================================================================

// rebind rewrites "?" placeholders to "$1, $2, ..." for PostgreSQL.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) q(query string) string {
	return rebind(s.dialect, query)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueConstraintError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
