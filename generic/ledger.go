/*
ledger.go - Append-only points ledger

PURPOSE:
  The Ledger is the source of truth for reward points. Completing a pickup,
  rating the counterpart and cancelling late each append a transaction.
  Balances are always computed by replaying transactions.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

SEE ALSO:
  - store.go: Low-level persistence interface
  - rewards/program.go: Turns collection events into transactions
*/
package generic

import "context"

// Ledger is the source of truth for all points changes.
type Ledger interface {
	// Append adds a transaction. Fails if the idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+program, chronologically.
	Transactions(ctx context.Context, entityID EntityID, programID ProgramID) ([]Transaction, error)

	// Balance sums every transaction for entity+program.
	Balance(ctx context.Context, entityID EntityID, programID ProgramID, unit Unit) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, programID ProgramID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, programID)
}

func (l *DefaultLedger) Balance(ctx context.Context, entityID EntityID, programID ProgramID, unit Unit) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, programID)
	if err != nil {
		return Amount{}, err
	}

	balance := NewAmount(0, unit)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta)
	}
	return balance, nil
}
