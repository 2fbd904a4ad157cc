package collection

import "github.com/warp/collection-engine/generic"

// =============================================================================
// CLASSIFICATION - Next due / future / past relative to today
// =============================================================================

// Timeline is the bucketed view of an agreement's occurrences.
//
// Every input occurrence appears in exactly one bucket. Buckets keep the
// input order.
type Timeline struct {
	NextDue *Occurrence
	Future  []Occurrence
	Past    []Occurrence
}

// Classify buckets occurrences relative to today:
//   - NextDue: the scheduled occurrence with the smallest date >= today
//     (ties go to the earliest in input order)
//   - Future:  every other scheduled occurrence dated after today
//   - Past:    collected and cancelled occurrences, plus scheduled ones dated
//     on or before today that were not picked as NextDue (overdue)
//
// Classify does not modify its input.
func Classify(occurrences []Occurrence, today generic.Date) Timeline {
	next := -1
	for i, o := range occurrences {
		if o.Status != OccurrenceScheduled || o.Date.Before(today) {
			continue
		}
		if next == -1 || o.Date.Before(occurrences[next].Date) {
			next = i
		}
	}

	var tl Timeline
	for i, o := range occurrences {
		c := o.clone()
		switch {
		case i == next:
			tl.NextDue = &c
		case o.Status == OccurrenceScheduled && o.Date.After(today):
			tl.Future = append(tl.Future, c)
		default:
			tl.Past = append(tl.Past, c)
		}
	}
	return tl
}

// Overdue returns the scheduled occurrences that ended up in Past. They are
// still actionable for register and cancel.
func (t Timeline) Overdue() []Occurrence {
	var out []Occurrence
	for _, o := range t.Past {
		if o.Status == OccurrenceScheduled {
			out = append(out, o)
		}
	}
	return out
}

// Len is the number of classified occurrences.
func (t Timeline) Len() int {
	n := len(t.Future) + len(t.Past)
	if t.NextDue != nil {
		n++
	}
	return n
}
