/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	agreements for demos. Each scenario goes through the same factory and
	service calls as the public API, so events reach the rewards program
	and notices reach the notifier.

AVAILABLE SCENARIOS:

	weekly-paper:      Accepted weekly paper pickup, first one due today
	completed-pickup:  Biweekly pickup collected today and rated both ways
	pending-offer:     Monthly cooking-oil offer waiting for the collector
	cancelled:         Weekly plastic agreement ended by the collector

HOW SCENARIOS WORK:
 1. Build agreement JSON dated relative to today
 2. Parse it through the factory
 3. Create, then accept / register / rate / cancel via the service

Scenarios add agreements; they never delete existing ones. Every agreement
gets a fresh id, so loading twice yields two copies.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "completed-pickup"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add it to the 'loaders' map

SEE ALSO:
  - handlers.go: shared helpers
  - factory/agreement.go: Agreement JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/factory"
)

// Demo participants shared by every scenario.
const (
	demoRequester = "household-demo"
	demoCollector = "coop-demo"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "weekly-paper",
		Name:        "Weekly Paper",
		Description: "Accepted weekly paper pickup with the first collection due today",
	},
	{
		ID:          "completed-pickup",
		Name:        "Completed Pickup",
		Description: "Biweekly pickup collected today, rated by both sides, next one rolled over",
	},
	{
		ID:          "pending-offer",
		Name:        "Pending Offer",
		Description: "Monthly cooking oil pickup waiting for the collector to accept",
	},
	{
		ID:          "cancelled",
		Name:        "Cancelled Agreement",
		Description: "Weekly plastic pickup ended by the collector",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler) ([]collection.AgreementID, error)

var loaders = map[string]scenarioLoader{
	"weekly-paper":     loadWeeklyPaperScenario,
	"completed-pickup": loadCompletedPickupScenario,
	"pending-offer":    loadPendingOfferScenario,
	"cancelled":        loadCancelledScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q does not exist", req.ScenarioID))
		return
	}

	ids, err := load(r.Context(), h)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load scenario", err)
		return
	}

	h.scenarioMu.Lock()
	h.currentScenario = req.ScenarioID
	h.scenarioMu.Unlock()
	h.Log.WithField("scenario", req.ScenarioID).Info("scenario loaded")

	agreements := make([]string, len(ids))
	for i, id := range ids {
		agreements[i] = string(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "loaded",
		"scenario":   req.ScenarioID,
		"agreements": agreements,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadWeeklyPaperScenario(ctx context.Context, h *Handler) ([]collection.AgreementID, error) {
	today := h.Service.Today()
	snap, err := h.createDemo(ctx, factory.AgreementJSON{
		Frequency:     "weekly",
		DaysOfWeek:    []string{today.Weekday().String()},
		PreferredTime: "09:00",
		StartDate:     today.String(),
		Materials: []factory.MaterialJSON{
			{Type: "paper", Quantity: "5"},
		},
	})
	if err != nil {
		return nil, err
	}
	if _, err := h.Service.Accept(ctx, snap.Agreement.ID); err != nil {
		return nil, err
	}
	return []collection.AgreementID{snap.Agreement.ID}, nil
}

func loadCompletedPickupScenario(ctx context.Context, h *Handler) ([]collection.AgreementID, error) {
	today := h.Service.Today()
	snap, err := h.createDemo(ctx, factory.AgreementJSON{
		Frequency: "biweekly",
		Period:    "afternoon",
		StartDate: today.String(),
		Materials: []factory.MaterialJSON{
			{Type: "cardboard", Quantity: "3"},
			{Type: "glass", Quantity: "12"},
		},
	})
	if err != nil {
		return nil, err
	}
	id := snap.Agreement.ID

	res, err := h.Service.Accept(ctx, id)
	if err != nil {
		return nil, err
	}
	first := res.Created[0]

	collected, err := h.Factory.Materials([]factory.MaterialJSON{
		{Type: "cardboard", Quantity: "4.5"},
		{Type: "glass", Quantity: "10"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := h.Service.Register(ctx, id, collection.RegisterInput{
		OccurrenceID: first,
		Materials:    collected,
		Note:         "left at the gate",
	}); err != nil {
		return nil, err
	}

	ratings := []collection.RatingInput{
		{OccurrenceID: first, Actor: collection.RoleRequester, Stars: 5, Comment: "on time"},
		{OccurrenceID: first, Actor: collection.RoleCollector, Stars: 4, Comment: "well sorted"},
	}
	for _, in := range ratings {
		if _, err := h.Service.Rate(ctx, id, in); err != nil {
			return nil, err
		}
	}
	return []collection.AgreementID{id}, nil
}

func loadPendingOfferScenario(ctx context.Context, h *Handler) ([]collection.AgreementID, error) {
	snap, err := h.createDemo(ctx, factory.AgreementJSON{
		Frequency: "monthly",
		Period:    "night",
		StartDate: h.Service.Today().AddDays(7).String(),
		Materials: []factory.MaterialJSON{
			{Type: "cooking_oil", Quantity: "2"},
		},
	})
	if err != nil {
		return nil, err
	}
	return []collection.AgreementID{snap.Agreement.ID}, nil
}

func loadCancelledScenario(ctx context.Context, h *Handler) ([]collection.AgreementID, error) {
	snap, err := h.createDemo(ctx, factory.AgreementJSON{
		Frequency:     "weekly",
		PreferredTime: "19:30",
		StartDate:     h.Service.Today().AddDays(1).String(),
		Materials: []factory.MaterialJSON{
			{Type: "plastic", Quantity: "2"},
		},
	})
	if err != nil {
		return nil, err
	}
	id := snap.Agreement.ID

	if _, err := h.Service.Accept(ctx, id); err != nil {
		return nil, err
	}
	if _, err := h.Service.CancelAgreement(ctx, id, collection.CancelAgreementInput{
		Reason: "route discontinued",
		Actor:  collection.RoleCollector,
	}); err != nil {
		return nil, err
	}
	return []collection.AgreementID{id}, nil
}

// createDemo fills in the demo participants and creates the agreement.
func (h *Handler) createDemo(ctx context.Context, aj factory.AgreementJSON) (collection.Snapshot, error) {
	aj.RequesterID = demoRequester
	aj.CollectorID = demoCollector
	a, err := h.Factory.Agreement(aj)
	if err != nil {
		return collection.Snapshot{}, err
	}
	return h.Service.CreateAgreement(ctx, a)
}
