package agents

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/clinicflow/triage/internal/apperr"
	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/state"
)

// MaxBookingAttempts bounds repeated validation failures before the
// flow gives up (spec.md §4.10, "MAX_ATTEMPTS (e.g. 3) per session").
const MaxBookingAttempts = 3

// AppointmentStore is the capability AppointmentAgent depends on.
type AppointmentStore interface {
	Create(ctx context.Context, fields state.AppointmentFields) (*state.Appointment, error)
	List(ctx context.Context, filter state.AppointmentFilter) ([]state.Appointment, error)
	Cancel(ctx context.Context, id string) error
}

// ClinicConfig backs VALIDATING's clinic-hours check (spec.md
// §4.10: "time must lie within clinic hours (a configuration
// constant)"). Providers is carried here, but VALIDATING does not check
// a requested provider against it.
type ClinicConfig struct {
	OpenHour     int // 0-23
	CloseHour    int // 0-23
	Providers    []string
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\-\s]{6,14}[0-9]$`)
var dateFieldExtractor = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
var timeFieldExtractor = regexp.MustCompile(`\b([01]\d|2[0-3]):([0-5]\d)\b`)

// AppointmentAgent implements spec.md §4.10's GATHERING -> VALIDATING ->
// CONFIRMING -> COMMITTED|FAILED flow, plus cancel-by-id.
type AppointmentAgent struct {
	Store     AppointmentStore
	Clinic    ClinicConfig
	Extractor *llmclient.Extractor // optional, for free-text field parsing
	Attempts  AttemptTracker
}

func NewAppointmentAgent(store AppointmentStore, clinic ClinicConfig, provider llmclient.Provider) *AppointmentAgent {
	a := &AppointmentAgent{Store: store, Clinic: clinic, Attempts: NewInMemoryAttemptTracker()}
	if provider != nil {
		a.Extractor = llmclient.NewExtractor(provider)
	}
	return a
}

type bookingFieldsResult struct {
	PatientName string `json:"patient_name"`
	Phone       string `json:"phone"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Reason      string `json:"reason"`
	Provider    string `json:"provider"`
	Cancel      bool   `json:"cancel"`
	CancelID    string `json:"cancel_id"`
}

func (a *AppointmentAgent) Run(ctx context.Context, t *state.Turn) error {
	fields, cancelID, cancel := a.parseBookingFields(ctx, t)
	if cancel {
		return a.runCancel(ctx, t, cancelID)
	}

	missing := missingFields(fields)
	if len(missing) > 0 {
		t.FinalResponse = gatheringPrompt(missing)
		t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "GATHERING: missing "+fmt.Sprint(missing))
		return nil
	}

	if reason := a.validate(fields); reason != "" {
		if a.Attempts.Increment(t.SessionID) >= MaxBookingAttempts {
			a.Attempts.Reset(t.SessionID)
			t.FinalResponse = "I wasn't able to complete your booking after several attempts. " +
				"Please call the clinic directly to schedule."
			t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "FAILED: "+reason)
			return nil
		}
		t.FinalResponse = "That doesn't look right: " + reason + " Could you confirm the details again?"
		t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "VALIDATING failed: "+reason)
		return nil
	}

	appt, err := a.Store.Create(ctx, fields)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeConflict {
			t.FinalResponse = "That slot is already booked. Could you suggest another date or time?"
			t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "CONFIRMING: conflict, back to GATHERING")
			return nil
		}
		t.FinalResponse = "I couldn't complete the booking right now. Please try again shortly."
		t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "store error: "+err.Error())
		return nil
	}

	a.Attempts.Reset(t.SessionID)
	t.FinalResponse = fmt.Sprintf("You're booked for %s at %s. Your confirmation id is %s.", appt.Date, appt.Time, appt.ID)
	t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "COMMITTED")
	return nil
}

func (a *AppointmentAgent) runCancel(ctx context.Context, t *state.Turn, id string) error {
	if id == "" {
		t.FinalResponse = "What's the confirmation id for the appointment you'd like to cancel?"
		t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "cancel requested without id")
		return nil
	}
	if err := a.Store.Cancel(ctx, id); err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			t.FinalResponse = "I couldn't find an appointment with that id."
		} else {
			t.FinalResponse = "I couldn't cancel that appointment right now. Please try again shortly."
		}
		t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "cancel failed: "+err.Error())
		return nil
	}
	t.FinalResponse = "Your appointment has been cancelled."
	t.AppendMessage("appointment", t.UserInput, t.FinalResponse, "cancelled")
	return nil
}

func (a *AppointmentAgent) parseBookingFields(ctx context.Context, t *state.Turn) (state.AppointmentFields, string, bool) {
	if a.Extractor != nil {
		var result bookingFieldsResult
		err := a.Extractor.Generate(ctx,
			"Extract appointment booking fields from the patient's message, or detect a cancellation "+
				"request with its confirmation id. Leave fields empty if not stated.",
			t.UserInput,
			`{"patient_name": string, "phone": string, "date": "YYYY-MM-DD", "time": "HH:MM", "reason": string, "provider": string, "cancel": bool, "cancel_id": string}`,
			&result,
			func() error { return nil })
		if err == nil && (result.PatientName != "" || result.Cancel) {
			if result.Cancel {
				return state.AppointmentFields{}, result.CancelID, true
			}
			return state.AppointmentFields{
				PatientName: result.PatientName,
				Phone:       result.Phone,
				Date:        result.Date,
				Time:        result.Time,
				Reason:      result.Reason,
				Provider:    result.Provider,
			}, "", false
		}
	}
	return heuristicBookingFields(t.UserInput), "", false
}

// heuristicBookingFields is the deterministic fallback: pulls a date and
// time out of the raw text with regexes and leaves the rest for
// GATHERING to ask about again.
func heuristicBookingFields(text string) state.AppointmentFields {
	var f state.AppointmentFields
	if m := dateFieldExtractor.FindString(text); m != "" {
		f.Date = m
	}
	if m := timeFieldExtractor.FindString(text); m != "" {
		f.Time = m
	}
	return f
}

func missingFields(f state.AppointmentFields) []string {
	var missing []string
	if f.PatientName == "" {
		missing = append(missing, "patient name")
	}
	if f.Phone == "" {
		missing = append(missing, "phone number")
	}
	if f.Date == "" {
		missing = append(missing, "date")
	}
	if f.Time == "" {
		missing = append(missing, "time")
	}
	if f.Reason == "" {
		missing = append(missing, "reason for visit")
	}
	return missing
}

func gatheringPrompt(missing []string) string {
	msg := "To book your appointment, I still need: "
	for i, m := range missing {
		if i > 0 {
			msg += ", "
		}
		msg += m
	}
	return msg + "."
}

// validate implements VALIDATING: date not in the past, time within
// clinic hours, phone in a permissive format.
func (a *AppointmentAgent) validate(f state.AppointmentFields) string {
	date, err := time.Parse("2006-01-02", f.Date)
	if err != nil {
		return "the date doesn't look valid"
	}
	if date.Before(time.Now().Truncate(24 * time.Hour)) {
		return "the date is in the past"
	}

	t, err := time.Parse("15:04", f.Time)
	if err != nil {
		return "the time doesn't look valid"
	}
	if a.Clinic.OpenHour != 0 || a.Clinic.CloseHour != 0 {
		closeHour := a.Clinic.CloseHour
		if closeHour <= a.Clinic.OpenHour {
			closeHour = 24 // a configured close hour of 0 (or equal to open) means "midnight"
		}
		if t.Hour() < a.Clinic.OpenHour || t.Hour() >= closeHour {
			return "that time is outside clinic hours"
		}
	}

	if !phonePattern.MatchString(f.Phone) {
		return "the phone number doesn't look valid"
	}
	return ""
}
