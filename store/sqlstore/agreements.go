package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// AGREEMENT REPOSITORY (collection.Repository interface)
// =============================================================================

var _ collection.Repository = (*Store)(nil)

// materialRow is the JSON shape of a material in materials_json columns.
type materialRow struct {
	Type     string   `json:"type"`
	Quantity string   `json:"quantity"`
	Unit     string   `json:"unit"`
	Photos   []string `json:"photos"`
}

type cancellationRow struct {
	Reason      string `json:"reason"`
	Penalty     bool   `json:"penalty"`
	ActorRole   string `json:"actor_role"`
	CancelledAt string `json:"cancelled_at"`
}

type ratingRow struct {
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
	RatedBy string `json:"rated_by"`
	RatedAt string `json:"rated_at"`
}

// Create inserts a new agreement at version 1.
func (s *Store) Create(ctx context.Context, a collection.Agreement) (collection.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	materials, err := encodeMaterials(a.MaterialsTemplate)
	if err != nil {
		return collection.Snapshot{}, err
	}
	days, err := json.Marshal(weekdays(a.DaysOfWeek))
	if err != nil {
		return collection.Snapshot{}, err
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO agreements
		(id, requester_id, collector_id, frequency, days_of_week, period, preferred_time,
		 start_date, status, materials_json, cancel_reason, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`),
		string(a.ID), string(a.RequesterID), string(a.CollectorID), string(a.Frequency),
		string(days), string(a.Period), a.PreferredTime, a.StartDate.String(), string(a.Status),
		materials, a.CancelReason, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return collection.Snapshot{}, generic.Invalid("id", "agreement %s already exists", a.ID)
		}
		return collection.Snapshot{}, fmt.Errorf("failed to insert agreement: %w", err)
	}
	return collection.Snapshot{Agreement: a, Version: 1}, nil
}

// Load reads an agreement with all its occurrences in seq order.
func (s *Store) Load(ctx context.Context, id collection.AgreementID) (collection.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load(ctx, s.db, id)
}

func (s *Store) load(ctx context.Context, db queryer, id collection.AgreementID) (collection.Snapshot, error) {
	row := db.QueryRowContext(ctx, s.q(`
		SELECT id, requester_id, collector_id, frequency, days_of_week, period, preferred_time,
		       start_date, status, materials_json, cancel_reason, version, created_at, updated_at
		FROM agreements WHERE id = ?
	`), string(id))

	var (
		snap                 collection.Snapshot
		days, start          string
		materials            string
		createdAt, updatedAt string
	)
	a := &snap.Agreement
	err := row.Scan(&a.ID, &a.RequesterID, &a.CollectorID, &a.Frequency, &days, &a.Period,
		&a.PreferredTime, &start, &a.Status, &materials, &a.CancelReason, &snap.Version,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return collection.Snapshot{}, &generic.NotFoundError{Kind: "agreement", ID: string(id)}
	}
	if err != nil {
		return collection.Snapshot{}, fmt.Errorf("failed to load agreement %s: %w", id, err)
	}

	var dayNums []int
	if err := json.Unmarshal([]byte(days), &dayNums); err != nil {
		return collection.Snapshot{}, fmt.Errorf("agreement %s: decode days_of_week: %w", id, err)
	}
	for _, d := range dayNums {
		a.DaysOfWeek = append(a.DaysOfWeek, time.Weekday(d))
	}
	if a.StartDate, err = generic.ParseDate(start); err != nil {
		return collection.Snapshot{}, fmt.Errorf("agreement %s: %w", id, err)
	}
	if a.MaterialsTemplate, err = decodeMaterials(materials); err != nil {
		return collection.Snapshot{}, fmt.Errorf("agreement %s: %w", id, err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)

	snap.Occurrences, err = s.loadOccurrences(ctx, db, id)
	if err != nil {
		return collection.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) loadOccurrences(ctx context.Context, db queryer, id collection.AgreementID) ([]collection.Occurrence, error) {
	rows, err := db.QueryContext(ctx, s.q(`
		SELECT id, agreement_id, date, time, status, materials_json, photos_json, note,
		       cancellation_json, ratings_json, collected_at, collected_by
		FROM occurrences WHERE agreement_id = ?
		ORDER BY seq ASC
	`), string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query occurrences: %w", err)
	}
	defer rows.Close()

	var out []collection.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOccurrence(rows *sql.Rows) (collection.Occurrence, error) {
	var (
		o                 collection.Occurrence
		date              string
		materials, photos string
		cancellation      sql.NullString
		ratings           sql.NullString
		collectedAt       sql.NullString
		collectedBy       sql.NullString
	)
	err := rows.Scan(&o.ID, &o.AgreementID, &date, &o.Time, &o.Status, &materials, &photos,
		&o.Note, &cancellation, &ratings, &collectedAt, &collectedBy)
	if err != nil {
		return o, fmt.Errorf("failed to scan occurrence: %w", err)
	}

	if o.Date, err = generic.ParseDate(date); err != nil {
		return o, fmt.Errorf("occurrence %s: %w", o.ID, err)
	}
	if o.Materials, err = decodeMaterials(materials); err != nil {
		return o, fmt.Errorf("occurrence %s: %w", o.ID, err)
	}
	if err := json.Unmarshal([]byte(photos), &o.Photos); err != nil {
		return o, fmt.Errorf("occurrence %s: decode photos: %w", o.ID, err)
	}
	if cancellation.Valid && cancellation.String != "" {
		var rec cancellationRow
		if err := json.Unmarshal([]byte(cancellation.String), &rec); err != nil {
			return o, fmt.Errorf("occurrence %s: decode cancellation: %w", o.ID, err)
		}
		o.Cancellation = &collection.CancellationRecord{
			Reason:      rec.Reason,
			Penalty:     rec.Penalty,
			ActorRole:   collection.ActorRole(rec.ActorRole),
			CancelledAt: parseTime(rec.CancelledAt),
		}
	}
	if ratings.Valid && ratings.String != "" {
		var recs map[string]ratingRow
		if err := json.Unmarshal([]byte(ratings.String), &recs); err != nil {
			return o, fmt.Errorf("occurrence %s: decode ratings: %w", o.ID, err)
		}
		o.Ratings = make(map[collection.RatingDirection]collection.Rating, len(recs))
		for dir, r := range recs {
			o.Ratings[collection.RatingDirection(dir)] = collection.Rating{
				Stars:   r.Stars,
				Comment: r.Comment,
				RatedBy: collection.ActorRole(r.RatedBy),
				RatedAt: parseTime(r.RatedAt),
			}
		}
	}
	if collectedAt.Valid {
		at := parseTime(collectedAt.String)
		o.CollectedAt = &at
	}
	o.CollectedBy = generic.EntityID(collectedBy.String)
	return o, nil
}

// Save writes the transition if the stored version is still expectedVersion.
func (s *Store) Save(ctx context.Context, t *collection.Transition, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := t.Agreement
	materials, err := encodeMaterials(a.MaterialsTemplate)
	if err != nil {
		return 0, err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, s.q(`
		UPDATE agreements
		SET status = ?, materials_json = ?, cancel_reason = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`), string(a.Status), materials, a.CancelReason, formatTime(a.UpdatedAt), string(a.ID), expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to update agreement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		var count int
		if err := sqlTx.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM agreements WHERE id = ?"), string(a.ID)).Scan(&count); err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, &generic.NotFoundError{Kind: "agreement", ID: string(a.ID)}
		}
		return 0, generic.ErrConcurrentModification
	}

	for seq, o := range t.Occurrences {
		if err := s.upsertOccurrence(ctx, sqlTx, seq, o); err != nil {
			return 0, err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return expectedVersion + 1, nil
}

func (s *Store) upsertOccurrence(ctx context.Context, db execer, seq int, o collection.Occurrence) error {
	materials, err := encodeMaterials(o.Materials)
	if err != nil {
		return err
	}
	photos, err := json.Marshal(nonNil(o.Photos))
	if err != nil {
		return err
	}

	var cancellation, ratings, collectedAt sql.NullString
	if o.Cancellation != nil {
		b, err := json.Marshal(cancellationRow{
			Reason:      o.Cancellation.Reason,
			Penalty:     o.Cancellation.Penalty,
			ActorRole:   string(o.Cancellation.ActorRole),
			CancelledAt: formatTime(o.Cancellation.CancelledAt),
		})
		if err != nil {
			return err
		}
		cancellation = nullString(string(b))
	}
	if len(o.Ratings) > 0 {
		recs := make(map[string]ratingRow, len(o.Ratings))
		for dir, r := range o.Ratings {
			recs[string(dir)] = ratingRow{Stars: r.Stars, Comment: r.Comment, RatedBy: string(r.RatedBy), RatedAt: formatTime(r.RatedAt)}
		}
		b, err := json.Marshal(recs)
		if err != nil {
			return err
		}
		ratings = nullString(string(b))
	}
	if o.CollectedAt != nil {
		collectedAt = nullString(formatTime(*o.CollectedAt))
	}

	_, err = db.ExecContext(ctx, s.q(`
		INSERT INTO occurrences
		(id, agreement_id, seq, date, time, status, materials_json, photos_json, note,
		 cancellation_json, ratings_json, collected_at, collected_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			materials_json = excluded.materials_json,
			photos_json = excluded.photos_json,
			note = excluded.note,
			cancellation_json = excluded.cancellation_json,
			ratings_json = excluded.ratings_json,
			collected_at = excluded.collected_at,
			collected_by = excluded.collected_by
	`),
		string(o.ID), string(o.AgreementID), seq, o.Date.String(), o.Time, string(o.Status),
		materials, string(photos), o.Note, cancellation, ratings, collectedAt, nullString(string(o.CollectedBy)),
	)
	if err != nil {
		return fmt.Errorf("failed to save occurrence %s: %w", o.ID, err)
	}
	return nil
}

// List returns agreements with the given status (all when empty), oldest
// first.
func (s *Store) List(ctx context.Context, status collection.AgreementStatus) ([]collection.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id FROM agreements ORDER BY created_at ASC, id ASC"
	var args []any
	if status != "" {
		query = "SELECT id FROM agreements WHERE status = ? ORDER BY created_at ASC, id ASC"
		args = append(args, string(status))
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	var ids []collection.AgreementID
	for rows.Next() {
		var id collection.AgreementID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]collection.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.load(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

func encodeMaterials(ms []collection.Material) (string, error) {
	rows := make([]materialRow, len(ms))
	for i, m := range ms {
		rows[i] = materialRow{
			Type:     m.Type,
			Quantity: m.Quantity.Value.String(),
			Unit:     string(m.Quantity.Unit),
			Photos:   nonNil(m.Photos),
		}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode materials: %w", err)
	}
	return string(b), nil
}

func decodeMaterials(s string) ([]collection.Material, error) {
	var rows []materialRow
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, fmt.Errorf("decode materials: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]collection.Material, len(rows))
	for i, r := range rows {
		q, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("decode materials: quantity %q: %w", r.Quantity, err)
		}
		out[i] = collection.Material{
			Type:     r.Type,
			Quantity: generic.Amount{Value: q, Unit: generic.Unit(r.Unit)},
			Photos:   nonNil(r.Photos),
		}
	}
	return out, nil
}

func weekdays(days []time.Weekday) []int {
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
