package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Appointment statuses.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

type Appointment struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Duration      int       `json:"duration_minutes"`
	Status        string    `json:"status"`
	Location      string    `json:"location,omitempty"`
	IsVirtual     bool      `json:"is_virtual"`
	MeetingLink   string    `json:"meeting_link,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const appointmentColumns = `
appointment_id,patient_id,doctor_id,title,COALESCE(description,''),scheduled_at,duration_minutes,
status,COALESCE(location,''),is_virtual,COALESCE(meeting_link,''),created_at,updated_at`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(&a.AppointmentID, &a.PatientID, &a.DoctorID, &a.Title, &a.Description,
		&a.ScheduledAt, &a.Duration, &a.Status, &a.Location, &a.IsVirtual, &a.MeetingLink,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	return a, err
}

func (s *Store) CreateAppointment(ctx context.Context, a Appointment) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO appointments(appointment_id,patient_id,doctor_id,title,description,scheduled_at,duration_minutes,location,is_virtual,meeting_link)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, a.AppointmentID, a.PatientID, a.DoctorID, a.Title, nullable(a.Description), a.ScheduledAt,
		a.Duration, nullable(a.Location), a.IsVirtual, nullable(a.MeetingLink))
	return err
}

func (s *Store) GetAppointment(ctx context.Context, appointmentID string) (Appointment, error) {
	return scanAppointment(s.DB.QueryRow(ctx, `
SELECT `+appointmentColumns+`
FROM appointments
WHERE appointment_id=$1
`, appointmentID))
}

func (s *Store) ListAppointmentsByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.listAppointments(ctx, `
SELECT `+appointmentColumns+`
FROM appointments
WHERE patient_id=$1
ORDER BY scheduled_at DESC
`, patientID)
}

func (s *Store) ListAppointmentsByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return s.listAppointments(ctx, `
SELECT `+appointmentColumns+`
FROM appointments
WHERE doctor_id=$1
ORDER BY scheduled_at DESC
`, doctorID)
}

// UpcomingAppointments returns the next scheduled visits for a doctor
// or a patient.
func (s *Store) UpcomingAppointments(ctx context.Context, column, id string, now time.Time, limit int) ([]Appointment, error) {
	sql := `
SELECT ` + appointmentColumns + `
FROM appointments
WHERE patient_id=$1 AND scheduled_at >= $2 AND status='scheduled'
ORDER BY scheduled_at
LIMIT $3`
	if column == "doctor_id" {
		sql = `
SELECT ` + appointmentColumns + `
FROM appointments
WHERE doctor_id=$1 AND scheduled_at >= $2 AND status='scheduled'
ORDER BY scheduled_at
LIMIT $3`
	}
	return s.listAppointments(ctx, sql, id, now, limit)
}

func (s *Store) listAppointments(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasConflictingAppointment reports whether the doctor already has a
// scheduled visit overlapping [at, at+duration).
func (s *Store) HasConflictingAppointment(ctx context.Context, doctorID string, at time.Time, durationMinutes int) (bool, error) {
	var conflict bool
	err := s.DB.QueryRow(ctx, `
SELECT EXISTS(
  SELECT 1 FROM appointments
  WHERE doctor_id=$1 AND status='scheduled'
    AND scheduled_at < $3
    AND scheduled_at + make_interval(mins => duration_minutes) > $2
)`, doctorID, at, at.Add(time.Duration(durationMinutes)*time.Minute)).Scan(&conflict)
	return conflict, err
}

func (s *Store) UpdateAppointment(ctx context.Context, a Appointment) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE appointments
SET title=$2,description=$3,scheduled_at=$4,duration_minutes=$5,location=$6,is_virtual=$7,meeting_link=$8,updated_at=now()
WHERE appointment_id=$1
`, a.AppointmentID, a.Title, nullable(a.Description), a.ScheduledAt, a.Duration,
		nullable(a.Location), a.IsVirtual, nullable(a.MeetingLink))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE appointments SET status=$2, updated_at=now()
WHERE appointment_id=$1
`, appointmentID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DoctorAppointmentsOn lists a doctor's scheduled visits within a day,
// for availability slotting.
func (s *Store) DoctorAppointmentsOn(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) ([]Appointment, error) {
	return s.listAppointments(ctx, `
SELECT `+appointmentColumns+`
FROM appointments
WHERE doctor_id=$1 AND status='scheduled' AND scheduled_at >= $2 AND scheduled_at < $3
ORDER BY scheduled_at
`, doctorID, dayStart, dayEnd)
}
