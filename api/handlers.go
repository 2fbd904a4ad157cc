/*
handlers.go - HTTP API handlers for the recurring collection engine

PURPOSE:
  Exposes the collection service via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the service, the factory
  and the rewards program.

ENDPOINTS:
  Agreements:
    GET    /api/agreements                       List (?status=accepted)
    POST   /api/agreements                       Create from factory.AgreementJSON
    GET    /api/agreements/{id}                  Agreement with occurrences
    GET    /api/agreements/{id}/timeline         Next due / future / past
    POST   /api/agreements/{id}/accept           Accept and seed first pickup
    POST   /api/agreements/{id}/decline          Decline a pending offer
    POST   /api/agreements/{id}/cancel           End the agreement

  Occurrences:
    POST   /api/agreements/{id}/occurrences/{occurrenceID}/register
    PUT    /api/agreements/{id}/occurrences/{occurrenceID}
    POST   /api/agreements/{id}/occurrences/{occurrenceID}/cancel
    POST   /api/agreements/{id}/occurrences/{occurrenceID}/ratings

  Rewards:
    GET    /api/entities/{id}/rewards            Balance and level
    GET    /api/entities/{id}/rewards/transactions
    POST   /api/entities/{id}/rewards/adjustments

  Utilities:
    GET    /api/materials                        Material catalog
    GET    /api/calendar/preview                 ?start=&frequency=&n=
    GET    /api/calendar/period                  ?time=HH:MM[&date=]
    GET    /api/notices                          Recent notices
    POST   /api/admin/reminders                  Run the reminder sweep now

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert input through the factory
  3. Call the service (load, engine, save, publish)
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Agreement or occurrence not found
  - 409: Invalid state, already rated, concurrent modification
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/collection-engine/catalog"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/factory"
	"github.com/warp/collection-engine/generic"
	"github.com/warp/collection-engine/notify"
	"github.com/warp/collection-engine/rewards"
)

// maxPreview caps /api/calendar/preview.
const maxPreview = 52

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *collection.Service
	Factory *factory.Factory
	Catalog *catalog.Catalog
	Log     logrus.FieldLogger

	// Optional collaborators; their endpoints answer 404 when unset.
	Rewards   *rewards.Program
	Notices   *notify.Recorder
	Reminders *ReminderScheduler

	// Track most recently loaded scenario
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around svc. The factory uses cat.
func NewHandler(svc *collection.Service, cat *catalog.Catalog, log logrus.FieldLogger) *Handler {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Service: svc,
		Factory: factory.New(cat),
		Catalog: cat,
		Log:     log,
	}
}

// =============================================================================
// AGREEMENT HANDLERS
// =============================================================================

// ListAgreements returns all agreements, optionally filtered by status.
func (h *Handler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	status := collection.AgreementStatus(r.URL.Query().Get("status"))
	snaps, err := h.Service.List(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list agreements", err)
		return
	}

	dtos := make([]AgreementDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = toAgreementDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAgreement stores a new pending agreement.
func (h *Handler) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req factory.AgreementJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := h.Factory.Agreement(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid agreement", err)
		return
	}

	snap, err := h.Service.CreateAgreement(r.Context(), a)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create agreement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgreementDTO(snap))
}

// GetAgreement returns the agreement with all its occurrences.
func (h *Handler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Get(r.Context(), agreementID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to load agreement", err)
		return
	}

	today := h.Service.Today()
	writeJSON(w, http.StatusOK, ResultDTO{
		Agreement:   toAgreementDTO(snap),
		Occurrences: toOccurrenceDTOs(snap.Occurrences, today),
		Created:     []string{},
		Events:      []EventDTO{},
	})
}

// GetTimeline returns the classified occurrences as of today.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	snap, tl, err := h.Service.Timeline(r.Context(), agreementID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to load timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineDTO(snap, tl, h.Service.Today()))
}

func (h *Handler) AcceptAgreement(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Accept(r.Context(), agreementID(r))
	h.writeResult(w, r, "Failed to accept agreement", res, err)
}

func (h *Handler) DeclineAgreement(w http.ResponseWriter, r *http.Request) {
	var req DeclineRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := h.Service.Decline(r.Context(), agreementID(r), req.Reason)
	h.writeResult(w, r, "Failed to decline agreement", res, err)
}

func (h *Handler) CancelAgreement(w http.ResponseWriter, r *http.Request) {
	var req CancelAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := h.Service.CancelAgreement(r.Context(), agreementID(r), collection.CancelAgreementInput{
		Reason: req.Reason,
		Actor:  collection.ActorRole(strings.ToLower(req.Actor)),
	})
	h.writeResult(w, r, "Failed to cancel agreement", res, err)
}

// =============================================================================
// OCCURRENCE HANDLERS
// =============================================================================

// RegisterCollection marks an occurrence as collected.
func (h *Handler) RegisterCollection(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	materials, err := h.Factory.Materials(req.Materials)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid materials", err)
		return
	}

	res, err := h.Service.Register(r.Context(), agreementID(r), collection.RegisterInput{
		OccurrenceID: occurrenceID(r),
		Materials:    materials,
		Photos:       req.Photos,
		Note:         req.Note,
		Actor:        collection.ActorRole(strings.ToLower(req.Actor)),
	})
	h.writeResult(w, r, "Failed to register collection", res, err)
}

// EditOccurrence replaces materials, photos and note of an occurrence.
func (h *Handler) EditOccurrence(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	materials, err := h.Factory.Materials(req.Materials)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid materials", err)
		return
	}

	res, err := h.Service.Edit(r.Context(), agreementID(r), collection.EditInput{
		OccurrenceID: occurrenceID(r),
		Materials:    materials,
		Photos:       req.Photos,
		Note:         req.Note,
	})
	h.writeResult(w, r, "Failed to edit occurrence", res, err)
}

func (h *Handler) CancelOccurrence(w http.ResponseWriter, r *http.Request) {
	var req CancelOccurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := h.Service.CancelOccurrence(r.Context(), agreementID(r), collection.CancelInput{
		OccurrenceID: occurrenceID(r),
		Reason:       req.Reason,
		Actor:        collection.ActorRole(strings.ToLower(req.Actor)),
	})
	h.writeResult(w, r, "Failed to cancel occurrence", res, err)
}

func (h *Handler) RateOccurrence(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := h.Service.Rate(r.Context(), agreementID(r), collection.RatingInput{
		OccurrenceID: occurrenceID(r),
		Actor:        collection.ActorRole(strings.ToLower(req.Actor)),
		Stars:        req.Stars,
		Comment:      req.Comment,
	})
	h.writeResult(w, r, "Failed to submit rating", res, err)
}

// =============================================================================
// REWARDS HANDLERS
// =============================================================================

func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	if h.Rewards == nil {
		writeError(w, http.StatusNotFound, "Rewards are disabled", nil)
		return
	}
	s, err := h.Rewards.Summary(r.Context(), entityID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to load rewards", err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardsSummaryDTO(s))
}

func (h *Handler) GetRewardTransactions(w http.ResponseWriter, r *http.Request) {
	if h.Rewards == nil {
		writeError(w, http.StatusNotFound, "Rewards are disabled", nil)
		return
	}
	txs, err := h.Rewards.History(r.Context(), entityID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to load transactions", err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdjustment appends a manual points correction to the ledger.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	if h.Rewards == nil {
		writeError(w, http.StatusNotFound, "Rewards are disabled", nil)
		return
	}
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Points == 0 {
		writeError(w, http.StatusBadRequest, "Invalid adjustment", generic.Invalid("points", "must not be zero"))
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "Invalid adjustment", generic.Invalid("reason", "is required"))
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = "adjustment:" + uuid.NewString()
	}
	tx := generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       entityID(r),
		ProgramID:      rewards.ProgramRecycling,
		EffectiveAt:    h.Service.Today(),
		Delta:          generic.Amount{Value: decimal.NewFromFloat(req.Points), Unit: generic.UnitPoints},
		Type:           generic.TxAdjustment,
		Reason:         req.Reason,
		IdempotencyKey: key,
	}
	if err := h.Rewards.Ledger.Append(r.Context(), tx); err != nil {
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			writeError(w, http.StatusConflict, "Adjustment already recorded", err)
			return
		}
		h.writeServiceError(w, r, "Failed to record adjustment", err)
		return
	}
	h.Log.WithFields(logrus.Fields{"entity_id": tx.EntityID, "points": req.Points}).Info("points adjusted")
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// UTILITY HANDLERS
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "today": h.Service.Today().String()})
}

func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.All())
}

// PreviewDates lists the next n occurrence dates for a frequency.
func (h *Handler) PreviewDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	freq := collection.Frequency(strings.ToLower(q.Get("frequency")))
	if !freq.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid frequency", generic.Invalid("frequency", "must be weekly, biweekly or monthly"))
		return
	}

	start := h.Service.Today()
	if s := q.Get("start"); s != "" {
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start date", err)
			return
		}
		start = d
	}

	n := 5
	if s := q.Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > maxPreview {
			writeError(w, http.StatusBadRequest, "Invalid n", generic.Invalid("n", "must be between 1 and %d", maxPreview))
			return
		}
		n = v
	}

	dates := collection.PreviewDates(start, freq, n)
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	writeJSON(w, http.StatusOK, PreviewDTO{Start: start.String(), Frequency: string(freq), Dates: out})
}

// ClassifyTime maps a time of day to its period. With a date it also tells
// whether the current instant is inside that period on that date.
func (h *Handler) ClassifyTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hhmm := q.Get("time")
	if !collection.ValidTimeOfDay(hhmm) {
		writeError(w, http.StatusBadRequest, "Invalid time", generic.Invalid("time", "must be HH:MM"))
		return
	}

	period := collection.PeriodOf(hhmm)
	dto := PeriodDTO{Time: hhmm, Period: string(period)}
	if s := q.Get("date"); s != "" {
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		within := collection.IsNowWithinPeriod(period, d, h.Service.Now())
		dto.Within = &within
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	if h.Notices == nil {
		writeJSON(w, http.StatusOK, []NoticeDTO{})
		return
	}
	recent := h.Notices.Recent()
	dtos := make([]NoticeDTO, len(recent))
	for i, n := range recent {
		dtos[i] = NoticeDTO{Kind: string(n.Kind), AgreementID: string(n.AgreementID), Message: n.Message}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerReminders runs the reminder sweep immediately.
func (h *Handler) TriggerReminders(w http.ResponseWriter, r *http.Request) {
	if h.Reminders == nil {
		writeError(w, http.StatusNotFound, "Reminder scheduler is disabled", nil)
		return
	}
	run, err := h.Reminders.RunNow(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Reminder sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReminderRunDTO(run, h.Reminders.NextRun()))
}

// =============================================================================
// HELPERS
// =============================================================================

func agreementID(r *http.Request) collection.AgreementID {
	return collection.AgreementID(chi.URLParam(r, "id"))
}

func occurrenceID(r *http.Request) collection.OccurrenceID {
	return collection.OccurrenceID(chi.URLParam(r, "occurrenceID"))
}

func entityID(r *http.Request) generic.EntityID {
	return generic.EntityID(chi.URLParam(r, "id"))
}

// decodeOptional decodes a body that may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, message string, res *collection.Result, err error) {
	if err != nil {
		h.writeServiceError(w, r, message, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(res, h.Service.Today()))
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is a stable machine-readable name for the error kind.
func errorCode(err error) string {
	switch {
	case errors.Is(err, generic.ErrValidation):
		return "validation"
	case errors.Is(err, generic.ErrNotFound):
		return "not_found"
	case errors.Is(err, generic.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, generic.ErrAlreadyRated):
		return "already_rated"
	case errors.Is(err, generic.ErrConcurrentModification):
		return "concurrent_modification"
	default:
		return ""
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error(message)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: errorCode(err), Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		resp.Code = errorCode(err)
	}
	writeJSON(w, status, resp)
}

func toReminderRunDTO(run ReminderRun, next time.Time) ReminderRunDTO {
	return ReminderRunDTO{
		RanAt:     run.RanAt,
		Checked:   run.Checked,
		DueToday:  run.DueToday,
		Overdue:   run.Overdue,
		NextRunAt: next,
	}
}
