/*
scenarios_test.go - Tests for demo scenario loading

Each scenario is loaded through the HTTP endpoint and its resulting state
is checked through the public API.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loadResponse struct {
	Status     string   `json:"status"`
	Scenario   string   `json:"scenario"`
	Agreements []string `json:"agreements"`
}

func (ts *testServer) loadScenario(t *testing.T, id string) loadResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[loadResponse](t, rec)
	require.Len(t, resp.Agreements, 1)
	return resp
}

func TestScenario_WeeklyPaper(t *testing.T) {
	ts := newTestServer(t, at("2025-01-06 08:00"))
	resp := ts.loadScenario(t, "weekly-paper")

	rec := ts.do(t, http.MethodGet, "/api/agreements/"+resp.Agreements[0]+"/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tl := decode[TimelineDTO](t, rec)
	assert.Equal(t, "accepted", tl.Agreement.Status)
	require.NotNil(t, tl.NextDue)
	assert.Equal(t, "2025-01-06", tl.NextDue.Date)
	assert.Equal(t, "09:00", tl.NextDue.Time)
}

func TestScenario_CompletedPickup(t *testing.T) {
	// GIVEN: the completed pickup scenario
	ts := newTestServer(t, at("2025-01-06 15:00"))
	resp := ts.loadScenario(t, "completed-pickup")

	// THEN: the first pickup is collected and rated both ways
	rec := ts.do(t, http.MethodGet, "/api/agreements/"+resp.Agreements[0]+"/timeline", nil)
	tl := decode[TimelineDTO](t, rec)
	require.Len(t, tl.Past, 1)
	assert.Equal(t, "collected", tl.Past[0].Status)
	assert.False(t, tl.Past[0].RequesterOwesRating)
	assert.False(t, tl.Past[0].CollectorOwesRating)
	assert.Len(t, tl.Past[0].Ratings, 2)

	// AND: the next pickup is two weeks later at the afternoon default
	require.NotNil(t, tl.NextDue)
	assert.Equal(t, "2025-01-20", tl.NextDue.Date)
	assert.Equal(t, "12:00", tl.NextDue.Time)

	// AND: both sides earned points
	rec = ts.do(t, http.MethodGet, "/api/entities/"+demoCollector+"/rewards", nil)
	assert.Equal(t, 12.0, decode[RewardsSummaryDTO](t, rec).Balance)
	rec = ts.do(t, http.MethodGet, "/api/entities/"+demoRequester+"/rewards", nil)
	assert.Equal(t, 7.0, decode[RewardsSummaryDTO](t, rec).Balance)
}

func TestScenario_PendingOffer(t *testing.T) {
	ts := newTestServer(t, at("2025-01-06 08:00"))
	resp := ts.loadScenario(t, "pending-offer")

	rec := ts.do(t, http.MethodGet, "/api/agreements/"+resp.Agreements[0], nil)
	res := decode[ResultDTO](t, rec)
	assert.Equal(t, "pending", res.Agreement.Status)
	assert.Equal(t, "l", res.Agreement.Materials[0].Unit)
	assert.Empty(t, res.Occurrences)
}

func TestScenario_Cancelled(t *testing.T) {
	ts := newTestServer(t, at("2025-01-06 08:00"))
	resp := ts.loadScenario(t, "cancelled")

	rec := ts.do(t, http.MethodGet, "/api/agreements/"+resp.Agreements[0], nil)
	res := decode[ResultDTO](t, rec)
	assert.Equal(t, "cancelled", res.Agreement.Status)
	assert.Equal(t, "night", res.Agreement.Period)
	require.Len(t, res.Occurrences, 1)
	require.NotNil(t, res.Occurrences[0].Cancellation)
	assert.False(t, res.Occurrences[0].Cancellation.Penalty)
}

func TestScenario_CurrentAndUnknown(t *testing.T) {
	ts := newTestServer(t, at("2025-01-06 08:00"))

	rec := ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())

	ts.loadScenario(t, "pending-offer")
	rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "pending-offer", decode[ScenarioDTO](t, rec).ID)

	rec = ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	ts := newTestServer(t, at("2025-01-06 08:00"))

	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(loaders))

	for _, s := range list {
		ts.loadScenario(t, s.ID)
	}

	rec = ts.do(t, http.MethodGet, "/api/agreements", nil)
	assert.Len(t, decode[[]AgreementDTO](t, rec), len(list))
}
