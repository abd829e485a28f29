package appointment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/apperr"
	"github.com/clinicflow/triage/internal/state"
)

func TestStore_Create_Succeeds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock, "appointments")
	fields := state.AppointmentFields{PatientName: "Jane Doe", Phone: "555-0100", Reason: "checkup", Date: "2026-08-03", Time: "09:00", Provider: "dr-lee"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM appointments")).
		WithArgs(fields.Provider, fields.Date, fields.Time).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	appt, err := store.Create(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, state.AppointmentScheduled, appt.Status)
	assert.NotEmpty(t, appt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_ConflictReturnsConflictError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock, "appointments")
	fields := state.AppointmentFields{PatientName: "Jane Doe", Date: "2026-08-03", Time: "09:00", Provider: "dr-lee"}

	mock.ExpectBegin()
	rows := pgxmock.NewRows([]string{"id"}).AddRow("existing-id")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM appointments")).
		WithArgs(fields.Provider, fields.Date, fields.Time).
		WillReturnRows(rows)
	mock.ExpectRollback()

	_, err = store.Create(context.Background(), fields)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestStore_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock, "appointments")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_name")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestStore_Cancel_IsIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock, "appointments")
	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "patient_name", "phone", "reason", "date", "time", "provider", "status", "created_at", "updated_at"}).
		AddRow("a1", "Jane Doe", "555-0100", "checkup", "2026-08-03", "09:00", "dr-lee", state.AppointmentCancelled, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_name")).
		WithArgs("a1").
		WillReturnRows(rows)

	err = store.Cancel(context.Background(), "a1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
