package collection

import (
	"strconv"
	"strings"
	"time"

	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// DAY PERIODS
// =============================================================================

// DayPeriod is the coarse part of the day a pickup is expected in.
type DayPeriod string

const (
	PeriodMorning   DayPeriod = "morning"
	PeriodAfternoon DayPeriod = "afternoon"
	PeriodNight     DayPeriod = "night"
)

func (p DayPeriod) Valid() bool {
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodNight:
		return true
	}
	return false
}

// DefaultStart is the time of day given to occurrences of an agreement that
// has no preferred time.
func (p DayPeriod) DefaultStart() string {
	switch p {
	case PeriodMorning:
		return "08:00"
	case PeriodNight:
		return "18:00"
	default:
		return "12:00"
	}
}

// PeriodOf maps an "HH:MM" time of day to its period using the scheduling
// boundaries: morning [05,12), afternoon [12,18), night [18,24).
//
// Anything else, including 00:00-04:59 and unparseable input, is afternoon.
func PeriodOf(hhmm string) DayPeriod {
	hour, ok := parseHour(hhmm)
	if !ok {
		return PeriodAfternoon
	}
	switch {
	case hour >= 5 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 18:
		return PeriodAfternoon
	case hour >= 18 && hour < 24:
		return PeriodNight
	default:
		return PeriodAfternoon
	}
}

// IsNowWithinPeriod reports whether now falls on date and inside period
// using the penalty window boundaries: morning [8,12), afternoon [12,18),
// night [18,23). These differ from PeriodOf on purpose.
func IsNowWithinPeriod(period DayPeriod, date generic.Date, now time.Time) bool {
	if !generic.DateOf(now).Equal(date) {
		return false
	}
	hour := now.Hour()
	switch period {
	case PeriodMorning:
		return hour >= 8 && hour < 12
	case PeriodAfternoon:
		return hour >= 12 && hour < 18
	case PeriodNight:
		return hour >= 18 && hour < 23
	}
	return false
}

// ValidTimeOfDay reports whether s is a well-formed "HH:MM" in [00:00, 23:59].
func ValidTimeOfDay(s string) bool {
	hour, ok := parseHour(s)
	if !ok || hour > 23 {
		return false
	}
	_, minutes, _ := strings.Cut(s, ":")
	m, err := strconv.Atoi(minutes)
	return err == nil && len(minutes) == 2 && m >= 0 && m < 60
}

func parseHour(hhmm string) (int, bool) {
	hours, _, found := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !found || len(hours) == 0 || len(hours) > 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 {
		return 0, false
	}
	return h, true
}
