package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
)

func TestNextDate(t *testing.T) {
	tests := []struct {
		name    string
		current string
		freq    collection.Frequency
		want    string
	}{
		{"weekly", "2025-01-06", collection.FrequencyWeekly, "2025-01-13"},
		{"weekly across year end", "2024-12-30", collection.FrequencyWeekly, "2025-01-06"},
		{"biweekly is two weeks", "2025-01-06", collection.FrequencyBiweekly, "2025-01-20"},
		{"monthly same day", "2025-01-15", collection.FrequencyMonthly, "2025-02-15"},
		{"monthly normalizes month end", "2025-01-31", collection.FrequencyMonthly, "2025-03-03"},
		{"monthly normalizes leap year", "2024-01-31", collection.FrequencyMonthly, "2024-03-02"},
		{"monthly december", "2025-12-10", collection.FrequencyMonthly, "2026-01-10"},
		{"unknown frequency", "2025-01-06", collection.Frequency("daily"), "2025-01-06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collection.NextDate(date(tt.current), tt.freq)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNextDate_Deterministic(t *testing.T) {
	d := date("2025-03-31")
	for _, f := range []collection.Frequency{collection.FrequencyWeekly, collection.FrequencyBiweekly, collection.FrequencyMonthly} {
		assert.True(t, collection.NextDate(d, f).Equal(collection.NextDate(d, f)))
	}
}

func TestPreviewDates_FollowsRollover(t *testing.T) {
	// GIVEN: a biweekly agreement starting on Monday Jan 6
	// WHEN: previewing four occurrences
	// THEN: every gap is 14 days, matching the rollover path
	dates := collection.PreviewDates(date("2025-01-06"), collection.FrequencyBiweekly, 4)

	want := []string{"2025-01-06", "2025-01-20", "2025-02-03", "2025-02-17"}
	got := make([]string, len(dates))
	for i, d := range dates {
		got[i] = d.String()
	}
	assert.Equal(t, want, got)

	for i := 1; i < len(dates); i++ {
		assert.Equal(t, 14, generic.DaysBetween(dates[i-1], dates[i]))
	}
}

func TestPreviewDates_EdgeCases(t *testing.T) {
	assert.Nil(t, collection.PreviewDates(date("2025-01-06"), collection.FrequencyWeekly, 0))
	assert.Nil(t, collection.PreviewDates(date("2025-01-06"), collection.Frequency("hourly"), 3))
	assert.Len(t, collection.PreviewDates(date("2025-01-06"), collection.FrequencyMonthly, 12), 12)
}
