package state

import "time"

// AppointmentStatus is the lifecycle state of a booking.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

// Appointment is a durable booking record. Unique by ID; (Date, Time,
// Provider) must not have two Scheduled entries (spec.md §3).
type Appointment struct {
	ID          string
	PatientName string
	Phone       string
	Reason      string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM, 24h
	Provider    string // optional
	Status      AppointmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fields is the subset of Appointment a caller may supply when creating
// or updating a booking; ID/Status/CreatedAt are server-assigned.
type AppointmentFields struct {
	PatientName string
	Phone       string
	Reason      string
	Date        string
	Time        string
	Provider    string
}

// Filter narrows AppointmentStore.List. Zero-valued fields are ignored.
type AppointmentFilter struct {
	Date     string
	Provider string
	Status   AppointmentStatus
}
