package feedback

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock, db
}

func TestPostgresStore_Save_Upsert(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	created := time.Now().Add(-time.Hour)
	mock.ExpectQuery("INSERT INTO match_feedback").
		WithArgs("patient-001", "NCT00000001", 85.5, "eligible", "eligible", true, "good fit", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	fb := &Feedback{
		PatientRef:       "patient-001",
		TrialID:          "NCT00000001",
		ScorePercent:     85.5,
		SystemVerdict:    VerdictEligible,
		ClinicianVerdict: VerdictEligible,
		Agreed:           true,
		Notes:            "good fit",
	}
	err := store.Save(context.Background(), fb)

	require.NoError(t, err)
	assert.Equal(t, int64(7), fb.ID)
	assert.Equal(t, created, fb.CreatedAt)
	assert.False(t, fb.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_InvalidVerdict(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	fb := &Feedback{
		PatientRef:       "patient-001",
		TrialID:          "NCT00000001",
		ClinicianVerdict: Verdict("maybe"),
	}
	err := store.Save(context.Background(), fb)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NoRows(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM match_feedback").
		WithArgs("patient-001", "NCT00000001").
		WillReturnError(sql.ErrNoRows)

	fb, err := store.Get(context.Background(), "patient-001", "NCT00000001")

	require.NoError(t, err)
	assert.Nil(t, fb)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List_ScansRows(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "patient_ref", "trial_id", "score_percent",
		"system_verdict", "clinician_verdict", "agreed", "notes", "created_at", "updated_at",
	}).
		AddRow(int64(2), "patient-002", "NCT00000002", 40.0, "ineligible", "uncertain", false, "", now, now).
		AddRow(int64(1), "patient-001", "NCT00000001", 90.0, "eligible", "eligible", true, "enrolled", now.Add(-time.Minute), now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM match_feedback").
		WithArgs(10, 0).
		WillReturnRows(rows)

	result, err := store.List(context.Background(), 10, 0)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "NCT00000002", result[0].TrialID)
	assert.Equal(t, VerdictUncertain, result[0].ClinicianVerdict)
	assert.Equal(t, int64(1), result[1].ID)
	assert.True(t, result[1].Agreed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_ByID(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec("DELETE FROM match_feedback WHERE id =").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), 3)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
