/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  Defines the boundary between the points ledger and the database. The
  Store keeps append-only semantics: there is no Update and no Delete.

IDEMPOTENCY:
  Every write may carry an idempotency key. If the key already exists the
  write is rejected with ErrDuplicateIdempotencyKey. Event redelivery from
  the collection service therefore never double-counts points.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite / PostgreSQL
  - generic/store/memory.go: In-memory for tests and the CLI
*/
package generic

import "context"

// Store handles persistence of ledger transactions.
// IMPORTANT: Store is APPEND-ONLY. Corrections are reversal transactions.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if
	// the key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for entity+program, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, programID ProgramID) ([]Transaction, error)

	// Exists checks if an idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
