package rewards_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
	"github.com/warp/collection-engine/generic/store"
	"github.com/warp/collection-engine/rewards"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var pickupDay = time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)

func newProgram(t *testing.T) *rewards.Program {
	t.Helper()
	log, _ := test.NewNullLogger()
	return rewards.NewProgram(generic.NewLedger(store.NewMemory()), rewards.DefaultRules(), log)
}

func requester() collection.Actor {
	return collection.Actor{ID: "req-1", Role: collection.RoleRequester}
}

func collector() collection.Actor {
	return collection.Actor{ID: "col-1", Role: collection.RoleCollector}
}

func completed() collection.Event {
	return collection.Event{
		Type:         collection.EventOccurrenceCompleted,
		AgreementID:  "agr-1",
		OccurrenceID: "occ-1",
		Actor:        collector(),
		Counterpart:  requester(),
		At:           pickupDay,
	}
}

func cancelled(penalty bool) collection.Event {
	return collection.Event{
		Type:         collection.EventOccurrenceCancelled,
		AgreementID:  "agr-1",
		OccurrenceID: "occ-2",
		Actor:        requester(),
		Counterpart:  collector(),
		Penalty:      penalty,
		At:           pickupDay,
	}
}

func rated(by, other collection.Actor) collection.Event {
	return collection.Event{
		Type:         collection.EventRatingSubmitted,
		AgreementID:  "agr-1",
		OccurrenceID: "occ-1",
		Actor:        by,
		Counterpart:  other,
		Stars:        5,
		At:           pickupDay,
	}
}

func balanceOf(t *testing.T, p *rewards.Program, entity generic.EntityID) decimal.Decimal {
	t.Helper()
	s, err := p.Summary(context.Background(), entity)
	require.NoError(t, err)
	return s.Balance.Value
}

// =============================================================================
// EVENT MAPPING
// =============================================================================

func TestRules_Transactions(t *testing.T) {
	rules := rewards.DefaultRules()

	tests := []struct {
		name     string
		event    collection.Event
		entities []generic.EntityID
		deltas   []int64
	}{
		{"completion credits both sides", completed(), []generic.EntityID{"col-1", "req-1"}, []int64{10, 5}},
		{"rating credits the rater", rated(requester(), collector()), []generic.EntityID{"req-1"}, []int64{2}},
		{"late cancellation debits the canceller", cancelled(true), []generic.EntityID{"req-1"}, []int64{-5}},
		{"early cancellation is free", cancelled(false), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := rules.Transactions(tt.event)
			require.Len(t, txs, len(tt.entities))
			for i, tx := range txs {
				assert.Equal(t, tt.entities[i], tx.EntityID)
				assert.True(t, tx.Delta.Value.Equal(decimal.NewFromInt(tt.deltas[i])), tx.Delta.String())
				assert.Equal(t, generic.UnitPoints, tx.Delta.Unit)
				assert.Equal(t, rewards.ProgramRecycling, tx.ProgramID)
				assert.Equal(t, "2025-01-06", tx.EffectiveAt.String())
				assert.Contains(t, tx.IdempotencyKey, string(tx.EntityID))
			}
		})
	}
}

func TestRules_CompletionByRequesterRole(t *testing.T) {
	ev := completed()
	ev.Actor, ev.Counterpart = requester(), collector()

	txs := rewards.DefaultRules().Transactions(ev)
	require.Len(t, txs, 2)
	assert.Equal(t, generic.EntityID("col-1"), txs[0].EntityID)
	assert.True(t, txs[0].Delta.Value.Equal(decimal.NewFromInt(10)))
}

func TestRulesFromPoints(t *testing.T) {
	rules := rewards.RulesFromPoints(10, 5, 2, 5)
	assert.True(t, rules.CollectorCompletion.Equal(rewards.DefaultRules().CollectorCompletion))
	assert.True(t, rules.LateCancellation.Equal(decimal.NewFromInt(5)))
}

func TestRules_ZeroDisablesAward(t *testing.T) {
	rules := rewards.DefaultRules()
	rules.RequesterCompletion = decimal.Zero

	txs := rules.Transactions(completed())
	require.Len(t, txs, 1)
	assert.Equal(t, generic.EntityID("col-1"), txs[0].EntityID)
}

// =============================================================================
// PROGRAM
// =============================================================================

func TestProgram_PublishAccumulatesPoints(t *testing.T) {
	// GIVEN: a completed pickup, a rating and a late cancellation
	p := newProgram(t)
	events := []collection.Event{completed(), rated(requester(), collector()), cancelled(true)}

	// WHEN: the events are published
	require.NoError(t, p.Publish(context.Background(), events))

	// THEN: requester has 5 + 2 - 5, collector has 10
	assert.True(t, balanceOf(t, p, "req-1").Equal(decimal.NewFromInt(2)))
	assert.True(t, balanceOf(t, p, "col-1").Equal(decimal.NewFromInt(10)))

	history, err := p.History(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestProgram_RedeliveryIsIdempotent(t *testing.T) {
	p := newProgram(t)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, []collection.Event{completed()}))
	require.NoError(t, p.Publish(ctx, []collection.Event{completed()}))

	assert.True(t, balanceOf(t, p, "col-1").Equal(decimal.NewFromInt(10)))
}

func TestProgram_RatingsInBothDirectionsCountSeparately(t *testing.T) {
	p := newProgram(t)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, []collection.Event{
		rated(requester(), collector()),
		rated(collector(), requester()),
	}))

	assert.True(t, balanceOf(t, p, "req-1").Equal(decimal.NewFromInt(2)))
	assert.True(t, balanceOf(t, p, "col-1").Equal(decimal.NewFromInt(2)))
}

func TestProgram_SummaryLevels(t *testing.T) {
	p := newProgram(t)
	ctx := context.Background()

	// 6 completions x 10 points = 60 -> sprout
	for i := 0; i < 6; i++ {
		ev := completed()
		ev.OccurrenceID = collection.OccurrenceID("occ-" + string(rune('a'+i)))
		require.NoError(t, p.Publish(ctx, []collection.Event{ev}))
	}

	s, err := p.Summary(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, "sprout", s.Level.Name)
	require.NotNil(t, s.NextLevel)
	assert.Equal(t, "tree", s.NextLevel.Name)
	assert.True(t, s.ToNextLevel.Value.Equal(decimal.NewFromInt(140)))
	assert.Equal(t, 6, s.Transactions)
}

func TestLevelFor(t *testing.T) {
	levels := rewards.DefaultLevels()

	tests := []struct {
		balance int64
		want    string
		next    string
	}{
		{-20, "seed", "sprout"},
		{0, "seed", "sprout"},
		{49, "seed", "sprout"},
		{50, "sprout", "tree"},
		{500, "forest", ""},
		{10000, "forest", ""},
	}

	for _, tt := range tests {
		level, next := rewards.LevelFor(levels, decimal.NewFromInt(tt.balance))
		assert.Equal(t, tt.want, level.Name, "balance %d", tt.balance)
		if tt.next == "" {
			assert.Nil(t, next)
		} else {
			require.NotNil(t, next)
			assert.Equal(t, tt.next, next.Name)
		}
	}

	empty, next := rewards.LevelFor(nil, decimal.NewFromInt(10))
	assert.Empty(t, empty.Name)
	assert.Nil(t, next)
}

// =============================================================================
// END TO END - Service + Program
// =============================================================================

func TestProgram_AsServiceSink(t *testing.T) {
	// GIVEN: a service wired to the rewards program
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	program := newProgram(t)
	svc := collection.NewService(collection.NewMemoryRepository(), log)
	svc.Events = program
	now := time.Date(2025, time.January, 2, 12, 0, 0, 0, time.UTC)
	svc.Clock = func() time.Time { return now }

	_, err := svc.CreateAgreement(ctx, collection.Agreement{
		ID:          "agr-1",
		RequesterID: "req-1",
		CollectorID: "col-1",
		Frequency:   collection.FrequencyWeekly,
		Period:      collection.PeriodMorning,
		StartDate:   generic.MustParseDate("2025-01-06"),
	})
	require.NoError(t, err)
	res, err := svc.Accept(ctx, "agr-1")
	require.NoError(t, err)

	// WHEN: the pickup is registered
	now = pickupDay
	_, err = svc.Register(ctx, "agr-1", collection.RegisterInput{
		OccurrenceID: res.Created[0],
		Materials:    []collection.Material{{Type: "paper", Quantity: generic.NewAmount(3, generic.UnitKilograms)}},
	})
	require.NoError(t, err)

	// THEN: both sides earned points
	assert.True(t, balanceOf(t, program, "col-1").Equal(decimal.NewFromInt(10)))
	assert.True(t, balanceOf(t, program, "req-1").Equal(decimal.NewFromInt(5)))
}
