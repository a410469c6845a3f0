package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

func testSnapshot(propertyID string) *domain.ScoreSnapshot {
	return &domain.ScoreSnapshot{
		PropertyID:   propertyID,
		OverallScore: 85,
		RiskLevel:    domain.RiskGood,
		Categories: map[domain.Category]domain.CategoryScore{
			domain.CategoryHousing: {Score: 85, Active: 3, Open: 3},
		},
		ComputedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func expectPropertyLookup(mock sqlmock.Sqlmock, recordID, propertyID string) {
	mock.ExpectQuery(`SELECT property_id::text FROM source_records`).
		WithArgs(recordID).
		WillReturnRows(sqlmock.NewRows([]string{"property_id"}).AddRow(propertyID))
}

func expectPropertyLock(mock sqlmock.Sqlmock, propertyID string) {
	mock.ExpectQuery(`SELECT 1 FROM properties`).
		WithArgs(propertyID).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
}

func TestDismiss_AppliesInOneTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresDismissalsRepository(db)

	mock.ExpectBegin()
	expectPropertyLookup(mock, "rec-1", "prop-1")
	expectPropertyLock(mock, "prop-1")
	mock.ExpectExec(`UPDATE source_records`).
		WithArgs("rec-1", "inspector-7", "duplicate of rec-9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	activeRows := sqlmock.NewRows(recordColumns())
	addRecordRow(activeRows, "rec-2", "prop-1", "hpd_violations", "1002", true)
	mock.ExpectQuery(`AND active = TRUE`).
		WithArgs("prop-1").
		WillReturnRows(activeRows)

	mock.ExpectExec(`INSERT INTO score_snapshots`).
		WithArgs("prop-1", 85, "GOOD", sqlmock.AnyArg(), testSnapshot("prop-1").ComputedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dismissal_audit`).
		WithArgs("rec-1", "dismiss", "inspector-7", "duplicate of rec-9", "applied").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var rescoredWith []domain.SourceRecord
	rescore := func(propertyID string, active []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		assert.Equal(t, "prop-1", propertyID)
		rescoredWith = active
		return testSnapshot(propertyID), nil
	}

	snapshot, err := repo.Dismiss(context.Background(), "rec-1", "inspector-7", "duplicate of rec-9", rescore)
	require.NoError(t, err)
	assert.Equal(t, 85, snapshot.OverallScore)

	// The recompute sees the set as it stands after the dismissal.
	require.Len(t, rescoredWith, 1)
	assert.Equal(t, "rec-2", rescoredWith[0].RecordID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDismiss_AlreadyDismissedIsRejectedAndAudited(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresDismissalsRepository(db)

	mock.ExpectBegin()
	expectPropertyLookup(mock, "rec-1", "prop-1")
	expectPropertyLock(mock, "prop-1")
	mock.ExpectExec(`UPDATE source_records`).
		WithArgs("rec-1", "inspector-7", "second opinion").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectExec(`INSERT INTO dismissal_audit`).
		WithArgs("rec-1", "dismiss", "inspector-7", "second opinion", "rejected").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rescoreCalled := false
	rescore := func(string, []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		rescoreCalled = true
		return nil, nil
	}

	_, err := repo.Dismiss(context.Background(), "rec-1", "inspector-7", "second opinion", rescore)
	assert.ErrorIs(t, err, domain.ErrAlreadyDismissed)
	assert.False(t, rescoreCalled, "a rejected guard must not recompute anything")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDismiss_RecordNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresDismissalsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT property_id::text FROM source_records`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Dismiss(context.Background(), "missing", "inspector-7", "whatever", nil)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDismiss_RescoreFailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresDismissalsRepository(db)

	mock.ExpectBegin()
	expectPropertyLookup(mock, "rec-1", "prop-1")
	expectPropertyLock(mock, "prop-1")
	mock.ExpectExec(`UPDATE source_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`AND active = TRUE`).
		WillReturnRows(sqlmock.NewRows(recordColumns()))
	mock.ExpectRollback()

	rescore := func(string, []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		return nil, assert.AnError
	}

	_, err := repo.Dismiss(context.Background(), "rec-1", "inspector-7", "bad data", rescore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to recompute score")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_AppliesAndClearsOverride(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresDismissalsRepository(db)

	mock.ExpectBegin()
	expectPropertyLookup(mock, "rec-1", "prop-1")
	expectPropertyLock(mock, "prop-1")
	mock.ExpectExec(`SET active = TRUE, dismissed_by = NULL`).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	activeRows := sqlmock.NewRows(recordColumns())
	addRecordRow(activeRows, "rec-1", "prop-1", "hpd_violations", "1001", true)
	mock.ExpectQuery(`AND active = TRUE`).
		WithArgs("prop-1").
		WillReturnRows(activeRows)

	mock.ExpectExec(`INSERT INTO score_snapshots`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dismissal_audit`).
		WithArgs("rec-1", "restore", "inspector-7", nil, "applied").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rescore := func(propertyID string, active []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		return testSnapshot(propertyID), nil
	}

	snapshot, err := repo.Restore(context.Background(), "rec-1", "inspector-7", rescore)
	require.NoError(t, err)
	assert.Equal(t, "prop-1", snapshot.PropertyID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_NotDismissedIsRejectedAndAudited(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresDismissalsRepository(db)

	mock.ExpectBegin()
	expectPropertyLookup(mock, "rec-1", "prop-1")
	expectPropertyLock(mock, "prop-1")
	mock.ExpectExec(`SET active = TRUE, dismissed_by = NULL`).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectExec(`INSERT INTO dismissal_audit`).
		WithArgs("rec-1", "restore", "inspector-7", nil, "rejected").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := repo.Restore(context.Background(), "rec-1", "inspector-7", nil)
	assert.ErrorIs(t, err, domain.ErrNotDismissed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
