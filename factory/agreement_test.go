package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/collection-engine/catalog"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/factory"
	"github.com/warp/collection-engine/generic"
)

func TestParseAgreement(t *testing.T) {
	// GIVEN: a weekly paper pickup document
	body := []byte(`{
		"requester_id": "household-7",
		"collector_id": "coop-3",
		"frequency": "Weekly",
		"days_of_week": ["monday", "thu"],
		"preferred_time": "09:00",
		"start_date": "2025-01-06",
		"materials": [
			{"type": "paper", "quantity": 5},
			{"type": "cooking_oil", "quantity": "1.5"},
			{"type": "glass", "quantity": 3, "unit": "bags", "photos": ["g.jpg"]}
		]
	}`)

	a, err := factory.New(nil).ParseAgreement(body)
	require.NoError(t, err)

	// THEN: enums normalized, period derived, units defaulted
	assert.Equal(t, collection.FrequencyWeekly, a.Frequency)
	assert.Equal(t, collection.PeriodMorning, a.Period)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, a.DaysOfWeek)
	assert.Equal(t, "2025-01-06", a.StartDate.String())
	assert.Equal(t, collection.AgreementPending, a.Status)
	require.Len(t, a.MaterialsTemplate, 3)
	assert.True(t, a.MaterialsTemplate[0].Quantity.Equal(generic.NewAmount(5, generic.UnitKilograms)))
	assert.True(t, a.MaterialsTemplate[1].Quantity.Equal(generic.NewAmount(1.5, generic.UnitLiters)))
	assert.Equal(t, generic.UnitBags, a.MaterialsTemplate[2].Quantity.Unit)
	assert.Equal(t, []string{"g.jpg"}, a.MaterialsTemplate[2].Photos)
	assert.NoError(t, collection.ValidateAgreement(withID(a)))
}

func withID(a collection.Agreement) collection.Agreement {
	a.ID = "agr-1"
	return a
}

func TestParseAgreement_Rejections(t *testing.T) {
	base := `"requester_id": "r", "collector_id": "c", "start_date": "2025-01-06"`

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad json", `{`, "body"},
		{"bad frequency", `{` + base + `, "frequency": "daily", "period": "morning"}`, "frequency"},
		{"bad date", `{"requester_id": "r", "collector_id": "c", "start_date": "06/01/2025", "frequency": "weekly", "period": "morning"}`, "start_date"},
		{"bad time", `{` + base + `, "frequency": "weekly", "preferred_time": "9h"}`, "preferred_time"},
		{"missing period", `{` + base + `, "frequency": "weekly"}`, "period"},
		{"bad period", `{` + base + `, "frequency": "weekly", "period": "dawn"}`, "period"},
		{"bad day", `{` + base + `, "frequency": "weekly", "period": "night", "days_of_week": ["funday"]}`, "days_of_week[0]"},
		{"zero quantity", `{` + base + `, "frequency": "weekly", "period": "night", "materials": [{"type": "paper", "quantity": 0}]}`, "materials[0].quantity"},
		{"missing type", `{` + base + `, "frequency": "weekly", "period": "night", "materials": [{"quantity": 2}]}`, "materials[0].type"},
		{"missing requester", `{"collector_id": "c", "start_date": "2025-01-06", "frequency": "weekly", "period": "night"}`, "requester_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.New(nil).ParseAgreement([]byte(tt.body))
			var verr *generic.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMaterials_Strict(t *testing.T) {
	f := factory.New(catalog.Default())
	f.StrictMaterials = true

	_, err := f.Materials([]factory.MaterialJSON{{Type: "uranium", Quantity: "1"}})
	assert.ErrorIs(t, err, generic.ErrValidation)

	ms, err := f.Materials([]factory.MaterialJSON{{Type: "metal", Quantity: "2.25"}})
	require.NoError(t, err)
	assert.Equal(t, "2.25 kg", ms[0].Quantity.String())

	empty, err := f.Materials(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestParseWeekdays(t *testing.T) {
	days, err := factory.ParseWeekdays([]string{"0", "Sat", "WEDNESDAY"})
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday, time.Wednesday}, days)
}
