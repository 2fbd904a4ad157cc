/*
accrual.go - Event to ledger transaction mapping

PURPOSE:
  Each collection event becomes zero or more transactions. The mapping is
  pure so it can be tested without a ledger.

IDEMPOTENCY:
  Keys are "<event key>:<entity>". Redelivering an event produces the same
  keys and the ledger rejects the duplicates.
*/
package rewards

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
)

// Transactions maps one event to the transactions it earns.
func (r Rules) Transactions(ev collection.Event) []generic.Transaction {
	switch ev.Type {
	case collection.EventOccurrenceCompleted:
		collector, requester := ev.Actor.ID, ev.Counterpart.ID
		if ev.Actor.Role == collection.RoleRequester {
			collector, requester = requester, collector
		}
		return compact(
			r.tx(ev, collector, r.CollectorCompletion, generic.TxEarn, "pickup completed"),
			r.tx(ev, requester, r.RequesterCompletion, generic.TxEarn, "pickup completed"),
		)

	case collection.EventRatingSubmitted:
		return compact(r.tx(ev, ev.Actor.ID, r.Rating, generic.TxEarn, "rating submitted"))

	case collection.EventOccurrenceCancelled:
		if !ev.Penalty {
			return nil
		}
		return compact(r.tx(ev, ev.Actor.ID, r.LateCancellation.Neg(), generic.TxPenalty, "late cancellation"))
	}
	return nil
}

func (r Rules) tx(ev collection.Event, entity generic.EntityID, points decimal.Decimal, typ generic.TransactionType, reason string) *generic.Transaction {
	if entity == "" || points.IsZero() {
		return nil
	}
	return &generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       entity,
		ProgramID:      ProgramRecycling,
		EffectiveAt:    generic.DateOf(ev.At),
		Delta:          generic.Amount{Value: points, Unit: generic.UnitPoints},
		Type:           typ,
		ReferenceID:    string(ev.OccurrenceID),
		Reason:         reason,
		IdempotencyKey: ev.Key() + ":" + string(entity),
		Metadata: map[string]string{
			"agreement_id": string(ev.AgreementID),
			"event":        string(ev.Type),
			"role":         string(ev.Actor.Role),
		},
	}
}

func compact(txs ...*generic.Transaction) []generic.Transaction {
	var out []generic.Transaction
	for _, tx := range txs {
		if tx != nil {
			out = append(out, *tx)
		}
	}
	return out
}
