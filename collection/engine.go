package collection

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// ENGINE - The occurrence state machine
// =============================================================================

// IDFunc generates the id of an occurrence created for an agreement at now.
type IDFunc func(agreementID AgreementID, now time.Time) OccurrenceID

// UUIDOccurrenceID is the default IDFunc.
func UUIDOccurrenceID(AgreementID, time.Time) OccurrenceID {
	return OccurrenceID(uuid.NewString())
}

// RolloverOccurrenceID builds "<agreementId>-next-<unix millis>" ids. Handy
// when reading raw rows; callers generating several occurrences in the same
// millisecond should stay on UUIDOccurrenceID.
func RolloverOccurrenceID(agreementID AgreementID, now time.Time) OccurrenceID {
	return OccurrenceID(fmt.Sprintf("%s-next-%d", agreementID, now.UnixMilli()))
}

// Engine applies operations to snapshots. It holds no state besides the id
// generator and is safe for concurrent use.
type Engine struct {
	NewID IDFunc
}

func NewEngine() *Engine {
	return &Engine{NewID: UUIDOccurrenceID}
}

func (e *Engine) newID(agreementID AgreementID, now time.Time) OccurrenceID {
	if e.NewID == nil {
		return UUIDOccurrenceID(agreementID, now)
	}
	return e.NewID(agreementID, now)
}

// =============================================================================
// INPUTS
// =============================================================================

type RegisterInput struct {
	OccurrenceID OccurrenceID
	Materials    []Material
	Photos       []string
	Note         string
	Actor        ActorRole // defaults to collector
}

type EditInput struct {
	OccurrenceID OccurrenceID
	Materials    []Material
	Photos       []string
	Note         string
}

type CancelInput struct {
	OccurrenceID OccurrenceID
	Reason       string
	Actor        ActorRole
}

type CancelAgreementInput struct {
	Reason string
	Actor  ActorRole
}

type RatingInput struct {
	OccurrenceID OccurrenceID
	Actor        ActorRole
	Stars        int
	Comment      string
}

// =============================================================================
// AGREEMENT LIFECYCLE
// =============================================================================

// AcceptAgreement moves a pending agreement to accepted and seeds its first
// occurrence from the materials template. The first occurrence is dated at
// StartDate, advanced by the agreement's frequency while it lies before
// today.
func (e *Engine) AcceptAgreement(snap Snapshot, now time.Time) (*Transition, error) {
	if err := requireAgreementStatus(snap.Agreement, AgreementPending, "accept"); err != nil {
		return nil, err
	}
	if snap.Agreement.StartDate.IsZero() {
		return nil, generic.Invalid("start_date", "is required")
	}
	if !snap.Agreement.Frequency.Valid() {
		return nil, generic.Invalid("frequency", "unknown frequency %q", snap.Agreement.Frequency)
	}

	next := snap.clone()
	today := generic.DateOf(now)
	next.Agreement.Status = AgreementAccepted
	next.Agreement.UpdatedAt = now

	t := &Transition{}
	if !hasUpcomingScheduled(next.Occurrences, -1, today) {
		date := next.Agreement.StartDate
		for date.Before(today) {
			date = NextDate(date, next.Agreement.Frequency)
		}
		occ := e.seedOccurrence(next.Agreement, date, next.Agreement.OccurrenceTime(), now)
		next.Occurrences = append(next.Occurrences, occ)
		t.Created = append(t.Created, occ.ID)
	}

	t.Agreement = next.Agreement
	t.Occurrences = next.Occurrences
	return t, nil
}

// DeclineAgreement moves a pending agreement to declined.
func (e *Engine) DeclineAgreement(snap Snapshot, reason string, now time.Time) (*Transition, error) {
	if err := requireAgreementStatus(snap.Agreement, AgreementPending, "decline"); err != nil {
		return nil, err
	}
	next := snap.clone()
	next.Agreement.Status = AgreementDeclined
	next.Agreement.CancelReason = strings.TrimSpace(reason)
	next.Agreement.UpdatedAt = now
	return &Transition{Agreement: next.Agreement, Occurrences: next.Occurrences}, nil
}

// =============================================================================
// OCCURRENCE OPERATIONS
// =============================================================================

// RegisterCollection marks a due occurrence as collected, attaches what was
// collected and rolls the timeline over to the following occurrence.
func (e *Engine) RegisterCollection(snap Snapshot, in RegisterInput, now time.Time) (*Transition, error) {
	role := in.Actor
	if role == "" {
		role = RoleCollector
	}
	if !role.Valid() {
		return nil, generic.Invalid("actor_role", "unknown role %q", role)
	}
	if len(in.Materials) == 0 {
		return nil, generic.Invalid("materials", "at least one material is required")
	}
	if err := validateMaterials(in.Materials); err != nil {
		return nil, err
	}
	if err := requireAgreementStatus(snap.Agreement, AgreementAccepted, "register"); err != nil {
		return nil, err
	}

	idx, err := findOccurrence(snap, in.OccurrenceID)
	if err != nil {
		return nil, err
	}
	target := snap.Occurrences[idx]
	if err := requireScheduled(target, "register"); err != nil {
		return nil, err
	}
	today := generic.DateOf(now)
	if target.Date.After(today) {
		return nil, &generic.InvalidStateError{
			Op:       "register",
			Subject:  "occurrence",
			ID:       string(target.ID),
			Current:  "scheduled for " + target.Date.String(),
			Required: "a date on or before " + today.String(),
		}
	}

	next := snap.clone()
	collectedAt := now
	occ := &next.Occurrences[idx]
	occ.Status = OccurrenceCollected
	occ.Materials = cloneMaterials(in.Materials)
	occ.Photos = cloneStrings(in.Photos)
	occ.Note = strings.TrimSpace(in.Note)
	occ.CollectedAt = &collectedAt
	occ.CollectedBy = next.Agreement.ActorFor(role).ID
	next.Agreement.UpdatedAt = now

	t := &Transition{}
	t.Created = e.rollover(&next, idx, today, now)
	t.Agreement = next.Agreement
	t.Occurrences = next.Occurrences
	t.Events = []Event{{
		Type:         EventOccurrenceCompleted,
		AgreementID:  next.Agreement.ID,
		OccurrenceID: target.ID,
		Actor:        next.Agreement.ActorFor(role),
		Counterpart:  next.Agreement.ActorFor(role.Counterpart()),
		At:           now,
	}}
	return t, nil
}

// EditPendingOccurrence replaces materials, photos and note of a scheduled
// occurrence. No status change, no rollover.
func (e *Engine) EditPendingOccurrence(snap Snapshot, in EditInput, now time.Time) (*Transition, error) {
	if err := validateMaterials(in.Materials); err != nil {
		return nil, err
	}
	idx, err := findOccurrence(snap, in.OccurrenceID)
	if err != nil {
		return nil, err
	}
	if err := requireScheduled(snap.Occurrences[idx], "edit"); err != nil {
		return nil, err
	}

	next := snap.clone()
	occ := &next.Occurrences[idx]
	occ.Materials = cloneMaterials(in.Materials)
	occ.Photos = cloneStrings(in.Photos)
	occ.Note = strings.TrimSpace(in.Note)
	next.Agreement.UpdatedAt = now

	return &Transition{Agreement: next.Agreement, Occurrences: next.Occurrences}, nil
}

// CancelOccurrence cancels one scheduled occurrence, decides whether the
// cancellation is late and rolls the timeline over.
func (e *Engine) CancelOccurrence(snap Snapshot, in CancelInput, now time.Time) (*Transition, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, generic.Invalid("reason", "is required")
	}
	if !in.Actor.Valid() {
		return nil, generic.Invalid("actor_role", "unknown role %q", in.Actor)
	}
	if err := requireAgreementStatus(snap.Agreement, AgreementAccepted, "cancel"); err != nil {
		return nil, err
	}
	idx, err := findOccurrence(snap, in.OccurrenceID)
	if err != nil {
		return nil, err
	}
	if err := requireScheduled(snap.Occurrences[idx], "cancel"); err != nil {
		return nil, err
	}

	next := snap.clone()
	today := generic.DateOf(now)
	ev := cancelAt(&next, idx, reason, in.Actor, now)
	next.Agreement.UpdatedAt = now

	t := &Transition{}
	t.Created = e.rollover(&next, idx, today, now)
	t.Agreement = next.Agreement
	t.Occurrences = next.Occurrences
	t.Events = []Event{ev}
	return t, nil
}

// CancelAgreement terminates an accepted agreement. Every occurrence still
// scheduled (normally only the next due one) is cancelled with the same
// penalty evaluation as CancelOccurrence. No rollover occurrence is created.
func (e *Engine) CancelAgreement(snap Snapshot, in CancelAgreementInput, now time.Time) (*Transition, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, generic.Invalid("reason", "is required")
	}
	if !in.Actor.Valid() {
		return nil, generic.Invalid("actor_role", "unknown role %q", in.Actor)
	}
	if err := requireAgreementStatus(snap.Agreement, AgreementAccepted, "cancel_agreement"); err != nil {
		return nil, err
	}

	next := snap.clone()
	next.Agreement.Status = AgreementCancelled
	next.Agreement.CancelReason = reason
	next.Agreement.UpdatedAt = now

	t := &Transition{}
	for i := range next.Occurrences {
		if next.Occurrences[i].Status != OccurrenceScheduled {
			continue
		}
		t.Events = append(t.Events, cancelAt(&next, i, reason, in.Actor, now))
	}
	t.Agreement = next.Agreement
	t.Occurrences = next.Occurrences
	return t, nil
}

// SubmitRating fills the submitting role's rating slot on a collected
// occurrence. The opposite slot is left untouched.
func (e *Engine) SubmitRating(snap Snapshot, in RatingInput, now time.Time) (*Transition, error) {
	if !in.Actor.Valid() {
		return nil, generic.Invalid("actor_role", "unknown role %q", in.Actor)
	}
	if in.Stars < 1 || in.Stars > 5 {
		return nil, generic.Invalid("stars", "must be between 1 and 5, got %d", in.Stars)
	}
	idx, err := findOccurrence(snap, in.OccurrenceID)
	if err != nil {
		return nil, err
	}
	target := snap.Occurrences[idx]
	if target.Status != OccurrenceCollected {
		return nil, &generic.InvalidStateError{
			Op:       "rate",
			Subject:  "occurrence",
			ID:       string(target.ID),
			Current:  string(target.Status),
			Required: string(OccurrenceCollected),
		}
	}
	if !RatingOwed(target, in.Actor) {
		return nil, &generic.AlreadyRatedError{
			OccurrenceID: string(target.ID),
			Direction:    string(DirectionOf(in.Actor)),
		}
	}

	next := snap.clone()
	occ := &next.Occurrences[idx]
	if occ.Ratings == nil {
		occ.Ratings = make(map[RatingDirection]Rating, 2)
	}
	occ.Ratings[DirectionOf(in.Actor)] = Rating{
		Stars:   in.Stars,
		Comment: strings.TrimSpace(in.Comment),
		RatedBy: in.Actor,
		RatedAt: now,
	}
	next.Agreement.UpdatedAt = now

	return &Transition{
		Agreement:   next.Agreement,
		Occurrences: next.Occurrences,
		Events: []Event{{
			Type:         EventRatingSubmitted,
			AgreementID:  next.Agreement.ID,
			OccurrenceID: target.ID,
			Actor:        next.Agreement.ActorFor(in.Actor),
			Counterpart:  next.Agreement.ActorFor(in.Actor.Counterpart()),
			Stars:        in.Stars,
			At:           now,
		}},
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// rollover appends the occurrence following next.Occurrences[idx] unless
// another scheduled occurrence dated today or later already exists. This
// keeps at most one upcoming scheduled occurrence per agreement.
func (e *Engine) rollover(next *Snapshot, idx int, today generic.Date, now time.Time) []OccurrenceID {
	if hasUpcomingScheduled(next.Occurrences, idx, today) {
		return nil
	}
	prev := next.Occurrences[idx]
	date := NextDate(prev.Date, next.Agreement.Frequency)
	occTime := prev.Time
	if occTime == "" {
		occTime = next.Agreement.OccurrenceTime()
	}
	occ := e.seedOccurrence(next.Agreement, date, occTime, now)
	next.Occurrences = append(next.Occurrences, occ)
	return []OccurrenceID{occ.ID}
}

func (e *Engine) seedOccurrence(a Agreement, date generic.Date, hhmm string, now time.Time) Occurrence {
	return Occurrence{
		ID:          e.newID(a.ID, now),
		AgreementID: a.ID,
		Date:        date,
		Time:        hhmm,
		Status:      OccurrenceScheduled,
		Materials:   seedMaterials(a.MaterialsTemplate),
		Photos:      []string{},
	}
}

func hasUpcomingScheduled(occs []Occurrence, except int, today generic.Date) bool {
	for i, o := range occs {
		if i == except {
			continue
		}
		if o.Status == OccurrenceScheduled && o.Date.AfterOrEqual(today) {
			return true
		}
	}
	return false
}

// cancelAt transitions next.Occurrences[idx] to cancelled and returns the
// event for it.
func cancelAt(next *Snapshot, idx int, reason string, role ActorRole, now time.Time) Event {
	occ := &next.Occurrences[idx]
	decision := EvaluateCancellation(*occ, now)
	occ.Status = OccurrenceCancelled
	occ.Cancellation = &CancellationRecord{
		Reason:      reason,
		Penalty:     decision.Penalty,
		ActorRole:   role,
		CancelledAt: now,
	}
	return Event{
		Type:         EventOccurrenceCancelled,
		AgreementID:  next.Agreement.ID,
		OccurrenceID: occ.ID,
		Actor:        next.Agreement.ActorFor(role),
		Counterpart:  next.Agreement.ActorFor(role.Counterpart()),
		Penalty:      decision.Penalty,
		At:           now,
	}
}

func findOccurrence(snap Snapshot, id OccurrenceID) (int, error) {
	idx := snap.Find(id)
	if idx < 0 {
		return -1, &generic.NotFoundError{Kind: "occurrence", ID: string(id)}
	}
	return idx, nil
}

func requireScheduled(o Occurrence, op string) error {
	if o.Status == OccurrenceScheduled {
		return nil
	}
	return &generic.InvalidStateError{
		Op:       op,
		Subject:  "occurrence",
		ID:       string(o.ID),
		Current:  string(o.Status),
		Required: string(OccurrenceScheduled),
	}
}

func requireAgreementStatus(a Agreement, want AgreementStatus, op string) error {
	if a.Status == want {
		return nil
	}
	return &generic.InvalidStateError{
		Op:       op,
		Subject:  "agreement",
		ID:       string(a.ID),
		Current:  string(a.Status),
		Required: string(want),
	}
}

func validateMaterials(materials []Material) error {
	for i, m := range materials {
		field := fmt.Sprintf("materials[%d]", i)
		if strings.TrimSpace(m.Type) == "" {
			return generic.Invalid(field+".type", "is required")
		}
		if !m.Quantity.IsPositive() {
			return generic.Invalid(field+".quantity", "must be positive, got %s", m.Quantity.Value)
		}
		if m.Quantity.Unit == "" {
			return generic.Invalid(field+".unit", "is required")
		}
	}
	return nil
}

// ValidateAgreement checks a new agreement before it is stored.
func ValidateAgreement(a Agreement) error {
	if a.ID == "" {
		return generic.Invalid("id", "is required")
	}
	if a.RequesterID == "" {
		return generic.Invalid("requester_id", "is required")
	}
	if a.CollectorID == "" {
		return generic.Invalid("collector_id", "is required")
	}
	if !a.Frequency.Valid() {
		return generic.Invalid("frequency", "unknown frequency %q", a.Frequency)
	}
	if !a.Period.Valid() {
		return generic.Invalid("period", "unknown period %q", a.Period)
	}
	if a.PreferredTime != "" && !ValidTimeOfDay(a.PreferredTime) {
		return generic.Invalid("preferred_time", "must be HH:MM, got %q", a.PreferredTime)
	}
	if a.StartDate.IsZero() {
		return generic.Invalid("start_date", "is required")
	}
	return validateMaterials(a.MaterialsTemplate)
}
