package collection

// =============================================================================
// RATING GATE
// =============================================================================

// RatingOwed reports whether role still owes a rating of its counterpart for
// occ: the pickup was collected and role's rating slot is empty. The two
// directions are gated independently.
func RatingOwed(occ Occurrence, role ActorRole) bool {
	if occ.Status != OccurrenceCollected || !role.Valid() {
		return false
	}
	_, rated := occ.Ratings[DirectionOf(role)]
	return !rated
}
