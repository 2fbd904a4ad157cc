/*
Package collection implements the recurring-collection occurrence engine.

PURPOSE:
  A recurring agreement between a requester and a collector produces a
  timeline of pickup events ("occurrences"). This package owns the state
  machine that advances that timeline: registering a pickup, editing a
  pending one, cancelling one, cancelling the whole agreement and rating the
  counterpart afterwards.

COMPONENTS (leaf-first):
  calendar.go:   Day periods (morning/afternoon/night) and "is now inside"
  recurrence.go: Next occurrence date per frequency
  classify.go:   Next due / future / past buckets relative to today
  penalty.go:    Late-cancellation decision
  rating.go:     Rating gate per direction
  engine.go:     The state machine (pure, copy-on-write)
  service.go:    Load → engine → save → publish orchestration

PURITY:
  Engine operations take an immutable Snapshot plus "now" and return a
  Transition. They never mutate their input and never do I/O, so a failed
  operation leaves the caller's snapshot untouched.
*/
package collection

import (
	"time"

	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// IDENTIFIERS & ENUMS
// =============================================================================

type AgreementID string
type OccurrenceID string

// Frequency is how often a recurring agreement produces an occurrence.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// AgreementStatus is the lifecycle of the agreement itself, independent of
// any single occurrence.
type AgreementStatus string

const (
	AgreementPending   AgreementStatus = "pending"
	AgreementAccepted  AgreementStatus = "accepted"
	AgreementDeclined  AgreementStatus = "declined"
	AgreementCancelled AgreementStatus = "cancelled"
)

// OccurrenceStatus: scheduled is the only non-terminal state.
type OccurrenceStatus string

const (
	OccurrenceScheduled OccurrenceStatus = "scheduled"
	OccurrenceCollected OccurrenceStatus = "collected"
	OccurrenceCancelled OccurrenceStatus = "cancelled"
)

func (s OccurrenceStatus) Terminal() bool {
	return s == OccurrenceCollected || s == OccurrenceCancelled
}

// ActorRole is the side of the agreement performing an action.
type ActorRole string

const (
	RoleRequester ActorRole = "requester"
	RoleCollector ActorRole = "collector"
)

func (r ActorRole) Valid() bool {
	return r == RoleRequester || r == RoleCollector
}

// Counterpart returns the other side of the agreement.
func (r ActorRole) Counterpart() ActorRole {
	if r == RoleRequester {
		return RoleCollector
	}
	return RoleRequester
}

// RatingDirection is one of the two independent rating slots.
type RatingDirection string

const (
	RequesterRatesCollector RatingDirection = "requester_to_collector"
	CollectorRatesRequester RatingDirection = "collector_to_requester"
)

// DirectionOf returns the slot written when role is the rater.
func DirectionOf(role ActorRole) RatingDirection {
	if role == RoleRequester {
		return RequesterRatesCollector
	}
	return CollectorRatesRequester
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   generic.EntityID
	Role ActorRole
}

// =============================================================================
// MATERIALS
// =============================================================================

// Material is one line of collected (or to-be-collected) recyclables.
type Material struct {
	Type     string
	Quantity generic.Amount
	Photos   []string
}

func cloneMaterials(in []Material) []Material {
	if in == nil {
		return nil
	}
	out := make([]Material, len(in))
	for i, m := range in {
		out[i] = Material{Type: m.Type, Quantity: m.Quantity, Photos: cloneStrings(m.Photos)}
	}
	return out
}

// seedMaterials copies a template for a fresh occurrence: no photos.
func seedMaterials(template []Material) []Material {
	out := make([]Material, len(template))
	for i, m := range template {
		out[i] = Material{Type: m.Type, Quantity: m.Quantity, Photos: []string{}}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// =============================================================================
// AGREEMENT
// =============================================================================

// Agreement is a requester + collector pair agreeing to periodic pickups.
type Agreement struct {
	ID          AgreementID
	RequesterID generic.EntityID
	CollectorID generic.EntityID

	Frequency Frequency
	// DaysOfWeek is informational; date arithmetic uses Frequency only.
	DaysOfWeek []time.Weekday
	Period     DayPeriod
	// PreferredTime ("HH:MM") seeds occurrence times; empty means the
	// period's default start.
	PreferredTime string
	StartDate     generic.Date

	Status            AgreementStatus
	MaterialsTemplate []Material
	CancelReason      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActorFor resolves the entity playing role in this agreement.
func (a Agreement) ActorFor(role ActorRole) Actor {
	if role == RoleRequester {
		return Actor{ID: a.RequesterID, Role: role}
	}
	return Actor{ID: a.CollectorID, Role: role}
}

// OccurrenceTime is the time of day used for new occurrences.
func (a Agreement) OccurrenceTime() string {
	if a.PreferredTime != "" {
		return a.PreferredTime
	}
	return a.Period.DefaultStart()
}

func (a Agreement) clone() Agreement {
	c := a
	c.DaysOfWeek = append([]time.Weekday(nil), a.DaysOfWeek...)
	c.MaterialsTemplate = cloneMaterials(a.MaterialsTemplate)
	return c
}

// =============================================================================
// OCCURRENCE
// =============================================================================

// Rating is one side's evaluation of the counterpart after a pickup.
type Rating struct {
	Stars   int
	Comment string
	RatedBy ActorRole
	RatedAt time.Time
}

// CancellationRecord captures why and when an occurrence was cancelled and
// whether it happened inside the already-arrived period.
type CancellationRecord struct {
	Reason      string
	Penalty     bool
	ActorRole   ActorRole
	CancelledAt time.Time
}

// Occurrence is one discrete pickup event of an agreement.
type Occurrence struct {
	ID          OccurrenceID
	AgreementID AgreementID
	Date        generic.Date
	Time        string // HH:MM
	Status      OccurrenceStatus

	Materials []Material
	Photos    []string
	Note      string

	Cancellation *CancellationRecord
	Ratings      map[RatingDirection]Rating

	CollectedAt *time.Time
	CollectedBy generic.EntityID
}

func (o Occurrence) clone() Occurrence {
	c := o
	c.Materials = cloneMaterials(o.Materials)
	c.Photos = cloneStrings(o.Photos)
	if o.Cancellation != nil {
		rec := *o.Cancellation
		c.Cancellation = &rec
	}
	if o.Ratings != nil {
		c.Ratings = make(map[RatingDirection]Rating, len(o.Ratings))
		for k, v := range o.Ratings {
			c.Ratings[k] = v
		}
	}
	if o.CollectedAt != nil {
		at := *o.CollectedAt
		c.CollectedAt = &at
	}
	return c
}

// =============================================================================
// SNAPSHOT & TRANSITION
// =============================================================================

// Snapshot is the full state of one agreement as read from the store.
// Version is the store's row version used for optimistic writes.
type Snapshot struct {
	Agreement   Agreement
	Occurrences []Occurrence
	Version     int64
}

// Find returns the index of the occurrence with id, or -1.
func (s Snapshot) Find(id OccurrenceID) int {
	for i, o := range s.Occurrences {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Timeline classifies the snapshot's occurrences as of today.
func (s Snapshot) Timeline(today generic.Date) Timeline {
	return Classify(s.Occurrences, today)
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{Agreement: s.Agreement.clone(), Version: s.Version}
	out.Occurrences = make([]Occurrence, len(s.Occurrences))
	for i, o := range s.Occurrences {
		out.Occurrences[i] = o.clone()
	}
	return out
}

// Transition is the result of a successful engine operation: the complete
// new occurrence set plus the events the caller must forward.
type Transition struct {
	Agreement   Agreement
	Occurrences []Occurrence
	Events      []Event

	// Created lists occurrences added by this transition (first occurrence
	// or rollover).
	Created []OccurrenceID
}

// Snapshot returns the transition as a snapshot at the given version.
func (t *Transition) Snapshot(version int64) Snapshot {
	return Snapshot{Agreement: t.Agreement, Occurrences: t.Occurrences, Version: version}
}
