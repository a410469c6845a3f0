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

func TestRecomputeSnapshot_ReadsAndWritesInOneTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresScoresRepository(db)

	snapshot := testSnapshot("prop-1")

	mock.ExpectBegin()
	expectPropertyLock(mock, "prop-1")
	activeRows := sqlmock.NewRows(recordColumns())
	addRecordRow(activeRows, "rec-1", "prop-1", "hpd_violations", "1001", true)
	addRecordRow(activeRows, "rec-2", "prop-1", "hpd_violations", "1002", true)
	mock.ExpectQuery(`AND active = TRUE`).
		WithArgs("prop-1").
		WillReturnRows(activeRows)
	mock.ExpectExec(`INSERT INTO score_snapshots`).
		WithArgs("prop-1", 85, "GOOD", `{"housing":{"score":85,"active":3,"open":3,"recent_permits":0,"valid_certs":0}}`, snapshot.ComputedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var rescoredWith []domain.SourceRecord
	rescore := func(propertyID string, active []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		assert.Equal(t, "prop-1", propertyID)
		rescoredWith = active
		return snapshot, nil
	}

	got, err := repo.RecomputeSnapshot(context.Background(), "prop-1", rescore)
	require.NoError(t, err)
	assert.Equal(t, 85, got.OverallScore)

	// the rescore saw the active set read under the same lock the write holds
	require.Len(t, rescoredWith, 2)
	assert.Equal(t, "rec-1", rescoredWith[0].RecordID)
	assert.Equal(t, "rec-2", rescoredWith[1].RecordID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeSnapshot_RescoreFailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresScoresRepository(db)

	mock.ExpectBegin()
	expectPropertyLock(mock, "prop-1")
	mock.ExpectQuery(`AND active = TRUE`).
		WithArgs("prop-1").
		WillReturnRows(sqlmock.NewRows(recordColumns()))
	mock.ExpectRollback()

	rescore := func(string, []domain.SourceRecord) (*domain.ScoreSnapshot, error) {
		return nil, assert.AnError
	}

	_, err := repo.RecomputeSnapshot(context.Background(), "prop-1", rescore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to recompute score")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeSnapshot_UnknownPropertyFails(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresScoresRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM properties`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.RecomputeSnapshot(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSnapshot_RoundTripsCategories(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresScoresRepository(db)

	computedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	categories := `{"housing":{"score":85,"active":3,"open":2,"recent_permits":0,"valid_certs":0},"equipment":{"score":100,"active":0,"open":0,"recent_permits":0,"valid_certs":1}}`

	rows := sqlmock.NewRows([]string{"property_id", "overall_score", "risk_level", "categories", "computed_at"}).
		AddRow("prop-1", 92, "EXCELLENT", []byte(categories), computedAt)

	mock.ExpectQuery(`FROM score_snapshots`).
		WithArgs("prop-1").
		WillReturnRows(rows)

	snapshot, err := repo.GetSnapshot(context.Background(), "prop-1")
	require.NoError(t, err)
	assert.Equal(t, 92, snapshot.OverallScore)
	assert.Equal(t, domain.RiskExcellent, snapshot.RiskLevel)
	assert.Equal(t, 3, snapshot.Categories[domain.CategoryHousing].Active)
	assert.Equal(t, 1, snapshot.Categories[domain.CategoryEquipment].ValidCerts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSnapshot_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresScoresRepository(db)

	mock.ExpectQuery(`FROM score_snapshots`).
		WithArgs("prop-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSnapshot(context.Background(), "prop-1")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
