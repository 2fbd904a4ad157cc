package collection

import "time"

// =============================================================================
// EVENTS - Emitted to the rewards collaborator
// =============================================================================

type EventType string

const (
	EventOccurrenceCompleted EventType = "occurrence_completed"
	EventOccurrenceCancelled EventType = "occurrence_cancelled"
	EventRatingSubmitted     EventType = "rating_submitted"
)

// Event tells the rewards collaborator something happened to an occurrence.
// Actor performed the operation; Counterpart is the other party of the
// agreement. Penalty is only meaningful for EventOccurrenceCancelled; Stars
// only for EventRatingSubmitted.
type Event struct {
	Type         EventType
	AgreementID  AgreementID
	OccurrenceID OccurrenceID
	Actor        Actor
	Counterpart  Actor
	Penalty      bool
	Stars        int
	At           time.Time
}

// Key identifies the event for idempotent consumers. An occurrence can be
// completed or cancelled once, and rated once per direction.
func (e Event) Key() string {
	return string(e.Type) + ":" + string(e.OccurrenceID) + ":" + string(e.Actor.Role)
}
