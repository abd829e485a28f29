// Package appointment persists Appointment rows in Postgres via pgx,
// grounded on checkpoint/postgres's pool-wrapping pattern (the same
// pgxpool.Pool-or-pgxmock.Pool seam, the same regexp-matched SQL style).
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicflow/triage/internal/apperr"
	"github.com/clinicflow/triage/internal/state"
)

// Store is the Postgres-backed AppointmentStore. Create runs inside a
// transaction that checks for a conflicting slot before inserting,
// closing the check-then-act race a bare
// SELECT-then-INSERT would leave open (spec.md §6, invariant I8).
type Store struct {
	pool  TxPool
	table string
}

// TxPool is the minimal transactional pool surface used by Store,
// satisfied by both *pgxpool.Pool and pgxmock.Pool.
type TxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewStore builds a Store over pool, storing rows in table (default
// "appointments").
func NewStore(pool TxPool, table string) *Store {
	if table == "" {
		table = "appointments"
	}
	return &Store{pool: pool, table: table}
}

// Create validates no conflicting Scheduled appointment occupies the
// same provider/date/time slot, then inserts. The conflict check and
// insert run in one transaction so two concurrent bookings for the
// same slot cannot both succeed.
func (s *Store) Create(ctx context.Context, fields state.AppointmentFields) (*state.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var conflictID string
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE provider = $1 AND date = $2 AND time = $3 AND status = 'scheduled' FOR UPDATE`, s.table),
		fields.Provider, fields.Date, fields.Time,
	).Scan(&conflictID)
	if err == nil {
		return nil, apperr.New(apperr.CodeConflict, "provider already booked for that date and time")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Wrap(apperr.CodeInternal, "check appointment conflict", err)
	}

	now := time.Now()
	appt := &state.Appointment{
		ID:          uuid.NewString(),
		PatientName: fields.PatientName,
		Phone:       fields.Phone,
		Reason:      fields.Reason,
		Date:        fields.Date,
		Time:        fields.Time,
		Provider:    fields.Provider,
		Status:      state.AppointmentScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, patient_name, phone, reason, date, time, provider, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.table),
		appt.ID, appt.PatientName, appt.Phone, appt.Reason, appt.Date, appt.Time, appt.Provider, appt.Status, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "insert appointment", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "commit appointment", err)
	}
	return appt, nil
}

// Get loads one appointment by ID.
func (s *Store) Get(ctx context.Context, id string) (*state.Appointment, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, patient_name, phone, reason, date, time, provider, status, created_at, updated_at FROM %s WHERE id = $1`, s.table),
		id,
	)
	var a state.Appointment
	err := row.Scan(&a.ID, &a.PatientName, &a.Phone, &a.Reason, &a.Date, &a.Time, &a.Provider, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "scan appointment", err)
	}
	return &a, nil
}

// List returns appointments matching filter, most recent first.
func (s *Store) List(ctx context.Context, filter state.AppointmentFilter) ([]state.Appointment, error) {
	query := fmt.Sprintf(`SELECT id, patient_name, phone, reason, date, time, provider, status, created_at, updated_at FROM %s WHERE 1=1`, s.table)
	var args []any
	n := 1
	if filter.Date != "" {
		query += fmt.Sprintf(" AND date = $%d", n)
		args = append(args, filter.Date)
		n++
	}
	if filter.Provider != "" {
		query += fmt.Sprintf(" AND provider = $%d", n)
		args = append(args, filter.Provider)
		n++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, filter.Status)
		n++
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list appointments", err)
	}
	defer rows.Close()

	var out []state.Appointment
	for rows.Next() {
		var a state.Appointment
		if err := rows.Scan(&a.ID, &a.PatientName, &a.Phone, &a.Reason, &a.Date, &a.Time, &a.Provider, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "scan appointment row", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Cancel marks an appointment Cancelled. Idempotent: cancelling an
// already-cancelled appointment is not an error.
func (s *Store) Cancel(ctx context.Context, id string) error {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status == state.AppointmentCancelled {
		return nil
	}

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3`, s.table),
		state.AppointmentCancelled, time.Now(), id,
	)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "cancel appointment", err)
	}
	return nil
}
