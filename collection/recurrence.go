package collection

import "github.com/warp/collection-engine/generic"

// =============================================================================
// RECURRENCE ADVANCER
// =============================================================================

// NextDate returns the date of the occurrence following current.
//
//	weekly   +7 days
//	biweekly +14 days
//	monthly  +1 calendar month, normalized like time.AddDate
//
// An unknown frequency returns current unchanged; frequencies are validated
// when agreements are created.
func NextDate(current generic.Date, f Frequency) generic.Date {
	switch f {
	case FrequencyWeekly:
		return current.AddDays(7)
	case FrequencyBiweekly:
		return current.AddDays(14)
	case FrequencyMonthly:
		return current.AddMonths(1)
	default:
		return current
	}
}

// PreviewDates lists the first n dates an agreement starting at start would
// produce if every occurrence were completed on time. Display only; it walks
// the same NextDate path as rollover so the preview never disagrees with the
// real timeline.
func PreviewDates(start generic.Date, f Frequency, n int) []generic.Date {
	if n <= 0 || !f.Valid() {
		return nil
	}
	dates := make([]generic.Date, 0, n)
	current := start
	for i := 0; i < n; i++ {
		dates = append(dates, current)
		current = NextDate(current, f)
	}
	return dates
}
