/*
Package rewards turns collection events into reward points.

PURPOSE:
  Requesters and collectors earn points for completed pickups and for
  rating each other, and lose points for cancelling once the pickup period
  has already started. Points live in the append-only generic.Ledger, so a
  balance is always the replay of its transactions.

KEY CONCEPTS:
  Rules:   How many points each event is worth
  Level:   A named tier reached once a balance crosses a threshold
  Program: The collection.EventSink writing transactions to the ledger

UNITS:
  Everything is counted in generic.UnitPoints.

EXAMPLE FLOW:
  1. Collector registers a pickup      -> collector +10, requester +5
  2. Requester rates the collector     -> requester +2
  3. Requester cancels at 10:00 on a
     morning pickup day                -> requester -5 (penalty)

SEE ALSO:
  - policies.go: Default rules and levels
  - accrual.go: Event to transaction mapping
  - program.go: Ledger-backed event sink
*/
package rewards

import (
	"github.com/shopspring/decimal"
	"github.com/warp/collection-engine/generic"
)

// ProgramRecycling is the ledger program all collection points go to.
const ProgramRecycling generic.ProgramID = "recycling"

// =============================================================================
// RULES
// =============================================================================

// Rules sets the points per event. Zero disables an award.
type Rules struct {
	// CollectorCompletion is credited to the collector of a completed pickup.
	CollectorCompletion decimal.Decimal
	// RequesterCompletion is credited to the requester of a completed pickup.
	RequesterCompletion decimal.Decimal
	// Rating is credited to whoever submits a rating.
	Rating decimal.Decimal
	// LateCancellation is debited from whoever cancels inside the period.
	LateCancellation decimal.Decimal
}

// =============================================================================
// LEVELS
// =============================================================================

// Level is a named tier reached at MinPoints.
type Level struct {
	Name      string
	MinPoints decimal.Decimal
}

// Summary is the points picture of one entity.
type Summary struct {
	EntityID     generic.EntityID
	Balance      generic.Amount
	Level        Level
	NextLevel    *Level
	ToNextLevel  generic.Amount
	Transactions int
}
