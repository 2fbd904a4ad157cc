package sqlstore

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, DialectPostgres), mock
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ? LIMIT ?"
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2 LIMIT $3", rebind(DialectPostgres, q))
	assert.Equal(t, q, rebind(DialectSQLite, q))
}

func TestPostgres_Exists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions WHERE idempotency_key = $1")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := store.Ledger().Exists(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Ledger().Append(context.Background(), generic.Transaction{
		ID:             "tx-1",
		EntityID:       "col-1",
		ProgramID:      "recycling",
		EffectiveAt:    generic.MustParseDate("2025-01-06"),
		Delta:          generic.NewAmountFromInt(10, generic.UnitPoints),
		Type:           generic.TxEarn,
		IdempotencyKey: "evt-1",
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveVersionConflict(t *testing.T) {
	// GIVEN: the stored row moved past the expected version
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE agreements")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "agr-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM agreements WHERE id = $1")).
		WithArgs("agr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	// WHEN: saving against version 3
	_, err := store.Save(context.Background(), &collection.Transition{
		Agreement: collection.Agreement{ID: "agr-1", Status: collection.AgreementAccepted},
	}, 3)

	// THEN: the write is rejected as a concurrent modification
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveUpsertsOccurrences(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE agreements")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE SET")).
		WithArgs("occ-1", "agr-1", 0, "2025-01-06", "09:00", "scheduled",
			sqlmock.AnyArg(), "[]", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	version, err := store.Save(context.Background(), &collection.Transition{
		Agreement: collection.Agreement{ID: "agr-1", Status: collection.AgreementAccepted},
		Occurrences: []collection.Occurrence{{
			ID:          "occ-1",
			AgreementID: "agr-1",
			Date:        generic.MustParseDate("2025-01-06"),
			Time:        "09:00",
			Status:      collection.OccurrenceScheduled,
		}},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM agreements WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Load(context.Background(), "missing")
	assert.True(t, generic.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
