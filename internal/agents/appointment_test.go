package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/apperr"
	"github.com/clinicflow/triage/internal/state"
)

type fakeAppointmentStore struct {
	created  []state.AppointmentFields
	conflict bool
}

func (s *fakeAppointmentStore) Create(ctx context.Context, fields state.AppointmentFields) (*state.Appointment, error) {
	if s.conflict {
		return nil, apperr.New(apperr.CodeConflict, "slot taken")
	}
	s.created = append(s.created, fields)
	return &state.Appointment{ID: "appt-1", Date: fields.Date, Time: fields.Time, Status: state.AppointmentScheduled}, nil
}
func (s *fakeAppointmentStore) List(ctx context.Context, filter state.AppointmentFilter) ([]state.Appointment, error) {
	return nil, nil
}
func (s *fakeAppointmentStore) Cancel(ctx context.Context, id string) error {
	if id == "missing" {
		return apperr.New(apperr.CodeNotFound, "not found")
	}
	return nil
}

func TestAppointmentAgent_GatheringAsksForMissingFields(t *testing.T) {
	store := &fakeAppointmentStore{}
	agent := NewAppointmentAgent(store, ClinicConfig{OpenHour: 8, CloseHour: 18}, nil)
	turn := &state.Turn{UserInput: "I want to book an appointment"}

	err := agent.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, turn.FinalResponse, "patient name")
	assert.Empty(t, store.created)
}

func TestAppointmentAgent_CommitsValidBooking(t *testing.T) {
	store := &fakeAppointmentStore{}
	agent := NewAppointmentAgent(store, ClinicConfig{OpenHour: 8, CloseHour: 18}, &fakeProvider{
		response: `{"patient_name": "Jane Doe", "phone": "555-0100", "date": "2026-12-01", "time": "10:00", "reason": "checkup", "provider": "", "cancel": false, "cancel_id": ""}`,
	})
	turn := &state.Turn{UserInput: "Book Jane Doe, 555-0100, 2026-12-01 10:00, checkup"}

	err := agent.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, turn.FinalResponse, "appt-1")
	assert.Len(t, store.created, 1)
}

func TestAppointmentAgent_ConflictAsksForAlternative(t *testing.T) {
	store := &fakeAppointmentStore{conflict: true}
	agent := NewAppointmentAgent(store, ClinicConfig{OpenHour: 8, CloseHour: 18}, &fakeProvider{
		response: `{"patient_name": "Jane Doe", "phone": "555-0100", "date": "2026-12-01", "time": "10:00", "reason": "checkup"}`,
	})
	turn := &state.Turn{UserInput: "book please"}

	err := agent.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, turn.FinalResponse, "another date or time")
}

func TestAppointmentAgent_FailsAfterMaxAttemptsAcrossTurns(t *testing.T) {
	store := &fakeAppointmentStore{}
	provider := &fakeProvider{
		response: `{"patient_name": "Jane Doe", "phone": "555-0100", "date": "2000-01-01", "time": "10:00", "reason": "checkup"}`,
	}
	agent := NewAppointmentAgent(store, ClinicConfig{OpenHour: 8, CloseHour: 18}, provider)

	var last *state.Turn
	for i := 0; i < MaxBookingAttempts; i++ {
		last = &state.Turn{SessionID: "same-session", UserInput: "book please"}
		err := agent.Run(context.Background(), last)
		require.NoError(t, err)
	}

	assert.Contains(t, last.FinalResponse, "after several attempts")
	assert.Empty(t, store.created)
}

func TestAppointmentAgent_CancelNotFound(t *testing.T) {
	store := &fakeAppointmentStore{}
	agent := NewAppointmentAgent(store, ClinicConfig{}, &fakeProvider{
		response: `{"cancel": true, "cancel_id": "missing", "patient_name": ""}`,
	})
	turn := &state.Turn{UserInput: "cancel my appointment missing"}

	err := agent.Run(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, turn.FinalResponse, "couldn't find")
}

func TestValidate_CloseHourOfMidnightAcceptsEveningSlots(t *testing.T) {
	agent := NewAppointmentAgent(&fakeAppointmentStore{}, ClinicConfig{OpenHour: 9, CloseHour: 0}, nil)
	future := state.AppointmentFields{Date: "2026-12-01", Time: "22:00", Phone: "555-0100"}

	reason := agent.validate(future)
	assert.Empty(t, reason)
}

func TestValidate_CloseHourOfMidnightRejectsBeforeOpen(t *testing.T) {
	agent := NewAppointmentAgent(&fakeAppointmentStore{}, ClinicConfig{OpenHour: 9, CloseHour: 0}, nil)
	tooEarly := state.AppointmentFields{Date: "2026-12-01", Time: "03:00", Phone: "555-0100"}

	reason := agent.validate(tooEarly)
	assert.Contains(t, reason, "outside clinic hours")
}
