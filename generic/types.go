/*
Package generic provides the domain-agnostic building blocks shared by the
collection engine and its collaborators.

PURPOSE:
  The recurring-collection engine, the rewards program and the stores all
  need the same small vocabulary: calendar dates, decimal quantities with a
  unit, actor identifiers, ledger transactions and a common error taxonomy.
  Keeping them here stops the domain packages from importing each other.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 10 kg of paper, 50 points)
  - Transaction: An immutable ledger entry recording a points change
  - EntityID: The actor (requester, collector, cooperative) a ledger belongs to

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only appended
  2. Precision: Uses decimal.Decimal to avoid floating-point drift in weights
  3. Type Safety: Strong typing for IDs prevents mixing actor/program IDs

SEE ALSO:
  - time.go: Date arithmetic used by the recurrence advancer
  - errors.go: Error kinds surfaced by every engine operation
  - ledger.go: Append-only points ledger
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitKilograms Unit = "kg"
	UnitUnits     Unit = "un"
	UnitLiters    Unit = "l"
	UnitBags      Unit = "bags"
	UnitPoints    Unit = "points"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// ParseAmount parses a decimal string such as "10.5" into an Amount.
func ParseAmount(value string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid quantity %q: %w", value, err)
	}
	return Amount{Value: d, Unit: unit}, nil
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Unit == b.Unit && a.Value.Equal(b.Value) }

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Unit)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type ProgramID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to a points balance
// =============================================================================

type TransactionType string

const (
	TxEarn       TransactionType = "earn"       // Points earned (completed pickup, rating)
	TxPenalty    TransactionType = "penalty"    // Points deducted (late cancellation)
	TxAdjustment TransactionType = "adjustment" // Manual admin correction
	TxReversal   TransactionType = "reversal"   // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	ProgramID      ProgramID
	EffectiveAt    Date
	Delta          Amount
	Type           TransactionType
	ReferenceID    string // occurrence the points relate to
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}
