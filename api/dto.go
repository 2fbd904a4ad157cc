/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the collection model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Agreements:
    AgreementDTO, DeclineRequest, CancelAgreementRequest
    (new agreements are posted as factory.AgreementJSON)

  Occurrences:
    OccurrenceDTO, TimelineDTO, ResultDTO
    RegisterRequest, EditRequest, CancelOccurrenceRequest, RateRequest

  Rewards:
    RewardsSummaryDTO, TransactionDTO

  Utilities:
    PreviewDTO, PeriodDTO, NoticeDTO, ScenarioDTO

VALIDATION:
  Validation is done by the factory and the engine, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/agreement.go: AgreementJSON and MaterialJSON
*/
package api

import (
	"time"

	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/factory"
	"github.com/warp/collection-engine/generic"
	"github.com/warp/collection-engine/rewards"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RegisterRequest records a pickup. Actor defaults to collector.
type RegisterRequest struct {
	Materials []factory.MaterialJSON `json:"materials"`
	Photos    []string               `json:"photos,omitempty"`
	Note      string                 `json:"note,omitempty"`
	Actor     string                 `json:"actor,omitempty"`
}

// EditRequest replaces the recorded data of an occurrence.
type EditRequest struct {
	Materials []factory.MaterialJSON `json:"materials"`
	Photos    []string               `json:"photos,omitempty"`
	Note      string                 `json:"note,omitempty"`
}

type CancelOccurrenceRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type CancelAgreementRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type DeclineRequest struct {
	Reason string `json:"reason"`
}

// RateRequest is one side's rating. Actor is the role submitting it.
type RateRequest struct {
	Actor   string `json:"actor"`
	Stars   int    `json:"stars"`
	Comment string `json:"comment,omitempty"`
}

// AdjustmentRequest is a manual points correction. IdempotencyKey makes
// retries safe; one is generated when empty.
type AdjustmentRequest struct {
	Points         float64 `json:"points"`
	Reason         string  `json:"reason"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type MaterialDTO struct {
	Type     string   `json:"type"`
	Quantity float64  `json:"quantity"`
	Unit     string   `json:"unit"`
	Photos   []string `json:"photos,omitempty"`
}

// AgreementDTO represents an agreement in API responses.
type AgreementDTO struct {
	ID            string        `json:"id"`
	RequesterID   string        `json:"requester_id"`
	CollectorID   string        `json:"collector_id"`
	Frequency     string        `json:"frequency"`
	DaysOfWeek    []string      `json:"days_of_week,omitempty"`
	Period        string        `json:"period"`
	PreferredTime string        `json:"preferred_time,omitempty"`
	StartDate     string        `json:"start_date"`
	Status        string        `json:"status"`
	Materials     []MaterialDTO `json:"materials"`
	CancelReason  string        `json:"cancel_reason,omitempty"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type CancellationDTO struct {
	Reason      string    `json:"reason"`
	Penalty     bool      `json:"penalty"`
	Actor       string    `json:"actor"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type RatingDTO struct {
	Stars   int       `json:"stars"`
	Comment string    `json:"comment,omitempty"`
	RatedBy string    `json:"rated_by"`
	RatedAt time.Time `json:"rated_at"`
}

// OccurrenceDTO represents one pickup. The rating flags tell each side
// whether it still owes a rating.
type OccurrenceDTO struct {
	ID           string               `json:"id"`
	Date         string               `json:"date"`
	Time         string               `json:"time"`
	Status       string               `json:"status"`
	Overdue      bool                 `json:"overdue,omitempty"`
	Materials    []MaterialDTO        `json:"materials"`
	Photos       []string             `json:"photos,omitempty"`
	Note         string               `json:"note,omitempty"`
	Cancellation *CancellationDTO     `json:"cancellation,omitempty"`
	Ratings      map[string]RatingDTO `json:"ratings,omitempty"`
	CollectedAt  *time.Time           `json:"collected_at,omitempty"`
	CollectedBy  string               `json:"collected_by,omitempty"`

	RequesterOwesRating bool `json:"requester_owes_rating"`
	CollectorOwesRating bool `json:"collector_owes_rating"`
}

// TimelineDTO is the classified view of an agreement as of Today.
type TimelineDTO struct {
	Agreement AgreementDTO    `json:"agreement"`
	Today     string          `json:"today"`
	NextDue   *OccurrenceDTO  `json:"next_due"`
	Future    []OccurrenceDTO `json:"future"`
	Past      []OccurrenceDTO `json:"past"`
}

type EventDTO struct {
	Type         string    `json:"type"`
	OccurrenceID string    `json:"occurrence_id"`
	ActorID      string    `json:"actor_id"`
	ActorRole    string    `json:"actor_role"`
	Penalty      bool      `json:"penalty,omitempty"`
	Stars        int       `json:"stars,omitempty"`
	At           time.Time `json:"at"`
}

// ResultDTO is returned by every state-changing operation.
type ResultDTO struct {
	Agreement   AgreementDTO    `json:"agreement"`
	Occurrences []OccurrenceDTO `json:"occurrences"`
	Created     []string        `json:"created"`
	Events      []EventDTO      `json:"events"`
}

type LevelDTO struct {
	Name      string  `json:"name"`
	MinPoints float64 `json:"min_points"`
}

// RewardsSummaryDTO is an entity's point balance and level.
type RewardsSummaryDTO struct {
	EntityID     string    `json:"entity_id"`
	Balance      float64   `json:"balance"`
	Level        LevelDTO  `json:"level"`
	NextLevel    *LevelDTO `json:"next_level,omitempty"`
	ToNextLevel  float64   `json:"to_next_level"`
	Transactions int       `json:"transactions"`
}

// TransactionDTO represents a ledger transaction in API responses.
type TransactionDTO struct {
	ID          string            `json:"id"`
	EffectiveAt string            `json:"effective_at"`
	Delta       float64           `json:"delta"`
	Unit        string            `json:"unit"`
	Type        string            `json:"type"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type PreviewDTO struct {
	Start     string   `json:"start"`
	Frequency string   `json:"frequency"`
	Dates     []string `json:"dates"`
}

type PeriodDTO struct {
	Time   string `json:"time"`
	Period string `json:"period"`
	// Within is set when a date was supplied: whether now falls inside the
	// period on that date.
	Within *bool `json:"within,omitempty"`
}

type NoticeDTO struct {
	Kind        string `json:"kind"`
	AgreementID string `json:"agreement_id,omitempty"`
	Message     string `json:"message"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ReminderRunDTO summarizes one reminder sweep.
type ReminderRunDTO struct {
	RanAt     time.Time `json:"ran_at"`
	Checked   int       `json:"checked"`
	DueToday  int       `json:"due_today"`
	Overdue   int       `json:"overdue"`
	NextRunAt time.Time `json:"next_run_at,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMaterialDTOs(ms []collection.Material) []MaterialDTO {
	out := make([]MaterialDTO, len(ms))
	for i, m := range ms {
		qty, _ := m.Quantity.Value.Float64()
		out[i] = MaterialDTO{Type: m.Type, Quantity: qty, Unit: string(m.Quantity.Unit), Photos: m.Photos}
	}
	return out
}

func toAgreementDTO(snap collection.Snapshot) AgreementDTO {
	a := snap.Agreement
	days := make([]string, len(a.DaysOfWeek))
	for i, d := range a.DaysOfWeek {
		days[i] = d.String()
	}
	return AgreementDTO{
		ID:            string(a.ID),
		RequesterID:   string(a.RequesterID),
		CollectorID:   string(a.CollectorID),
		Frequency:     string(a.Frequency),
		DaysOfWeek:    days,
		Period:        string(a.Period),
		PreferredTime: a.PreferredTime,
		StartDate:     a.StartDate.String(),
		Status:        string(a.Status),
		Materials:     toMaterialDTOs(a.MaterialsTemplate),
		CancelReason:  a.CancelReason,
		Version:       snap.Version,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toOccurrenceDTO(o collection.Occurrence, today generic.Date) OccurrenceDTO {
	dto := OccurrenceDTO{
		ID:                  string(o.ID),
		Date:                o.Date.String(),
		Time:                o.Time,
		Status:              string(o.Status),
		Overdue:             o.Status == collection.OccurrenceScheduled && o.Date.Before(today),
		Materials:           toMaterialDTOs(o.Materials),
		Photos:              o.Photos,
		Note:                o.Note,
		CollectedAt:         o.CollectedAt,
		CollectedBy:         string(o.CollectedBy),
		RequesterOwesRating: collection.RatingOwed(o, collection.RoleRequester),
		CollectorOwesRating: collection.RatingOwed(o, collection.RoleCollector),
	}
	if c := o.Cancellation; c != nil {
		dto.Cancellation = &CancellationDTO{
			Reason:      c.Reason,
			Penalty:     c.Penalty,
			Actor:       string(c.ActorRole),
			CancelledAt: c.CancelledAt,
		}
	}
	if len(o.Ratings) > 0 {
		dto.Ratings = make(map[string]RatingDTO, len(o.Ratings))
		for dir, r := range o.Ratings {
			dto.Ratings[string(dir)] = RatingDTO{Stars: r.Stars, Comment: r.Comment, RatedBy: string(r.RatedBy), RatedAt: r.RatedAt}
		}
	}
	return dto
}

func toOccurrenceDTOs(occs []collection.Occurrence, today generic.Date) []OccurrenceDTO {
	out := make([]OccurrenceDTO, len(occs))
	for i, o := range occs {
		out[i] = toOccurrenceDTO(o, today)
	}
	return out
}

func toTimelineDTO(snap collection.Snapshot, tl collection.Timeline, today generic.Date) TimelineDTO {
	dto := TimelineDTO{
		Agreement: toAgreementDTO(snap),
		Today:     today.String(),
		Future:    toOccurrenceDTOs(tl.Future, today),
		Past:      toOccurrenceDTOs(tl.Past, today),
	}
	if tl.NextDue != nil {
		next := toOccurrenceDTO(*tl.NextDue, today)
		dto.NextDue = &next
	}
	return dto
}

func toResultDTO(res *collection.Result, today generic.Date) ResultDTO {
	created := make([]string, len(res.Created))
	for i, id := range res.Created {
		created[i] = string(id)
	}
	events := make([]EventDTO, len(res.Events))
	for i, ev := range res.Events {
		events[i] = EventDTO{
			Type:         string(ev.Type),
			OccurrenceID: string(ev.OccurrenceID),
			ActorID:      string(ev.Actor.ID),
			ActorRole:    string(ev.Actor.Role),
			Penalty:      ev.Penalty,
			Stars:        ev.Stars,
			At:           ev.At,
		}
	}
	return ResultDTO{
		Agreement:   toAgreementDTO(res.Snapshot),
		Occurrences: toOccurrenceDTOs(res.Snapshot.Occurrences, today),
		Created:     created,
		Events:      events,
	}
}

func toLevelDTO(l rewards.Level) LevelDTO {
	minPoints, _ := l.MinPoints.Float64()
	return LevelDTO{Name: l.Name, MinPoints: minPoints}
}

func toRewardsSummaryDTO(s rewards.Summary) RewardsSummaryDTO {
	balance, _ := s.Balance.Value.Float64()
	toNext, _ := s.ToNextLevel.Value.Float64()
	dto := RewardsSummaryDTO{
		EntityID:     string(s.EntityID),
		Balance:      balance,
		Level:        toLevelDTO(s.Level),
		ToNextLevel:  toNext,
		Transactions: s.Transactions,
	}
	if s.NextLevel != nil {
		next := toLevelDTO(*s.NextLevel)
		dto.NextLevel = &next
	}
	return dto
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	delta, _ := tx.Delta.Value.Float64()
	return TransactionDTO{
		ID:          string(tx.ID),
		EffectiveAt: tx.EffectiveAt.String(),
		Delta:       delta,
		Unit:        string(tx.Delta.Unit),
		Type:        string(tx.Type),
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
		Metadata:    tx.Metadata,
	}
}
