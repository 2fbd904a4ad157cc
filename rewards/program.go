package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// PROGRAM - Ledger-backed collection.EventSink
// =============================================================================

// Program credits and debits points for collection events.
type Program struct {
	Ledger generic.Ledger
	Rules  Rules
	Levels []Level
	Log    logrus.FieldLogger
}

var _ collection.EventSink = (*Program)(nil)

func NewProgram(ledger generic.Ledger, rules Rules, log logrus.FieldLogger) *Program {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Program{Ledger: ledger, Rules: rules, Levels: DefaultLevels(), Log: log}
}

// Publish appends the transactions for each event. Events already applied
// (same idempotency keys) are skipped, so redelivery is safe.
func (p *Program) Publish(ctx context.Context, events []collection.Event) error {
	for _, ev := range events {
		txs := p.Rules.Transactions(ev)
		if len(txs) == 0 {
			continue
		}
		err := p.Ledger.AppendBatch(ctx, txs)
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			p.Log.WithField("event", ev.Key()).Debug("event already applied")
			continue
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", ev.Key(), err)
		}
		for _, tx := range txs {
			p.Log.WithFields(logrus.Fields{
				"entity_id":     tx.EntityID,
				"delta":         tx.Delta.Value.String(),
				"type":          tx.Type,
				"occurrence_id": tx.ReferenceID,
			}).Info("points recorded")
		}
	}
	return nil
}

// Summary returns the balance and level of entity.
func (p *Program) Summary(ctx context.Context, entity generic.EntityID) (Summary, error) {
	txs, err := p.Ledger.Transactions(ctx, entity, ProgramRecycling)
	if err != nil {
		return Summary{}, fmt.Errorf("load points of %s: %w", entity, err)
	}
	balance := generic.NewAmount(0, generic.UnitPoints)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta)
	}

	level, next := LevelFor(p.Levels, balance.Value)
	s := Summary{
		EntityID:     entity,
		Balance:      balance,
		Level:        level,
		NextLevel:    next,
		Transactions: len(txs),
	}
	if next != nil {
		s.ToNextLevel = generic.Amount{Value: next.MinPoints.Sub(balance.Value), Unit: generic.UnitPoints}
	}
	return s, nil
}

// History returns the entity's point transactions, oldest first.
func (p *Program) History(ctx context.Context, entity generic.EntityID) ([]generic.Transaction, error) {
	return p.Ledger.Transactions(ctx, entity, ProgramRecycling)
}
