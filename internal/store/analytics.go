package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// DashboardStats holds the headline counts for a doctor's dashboard.
type DashboardStats struct {
	PatientCount         int `json:"patient_count"`
	RecordCount          int `json:"record_count"`
	UpcomingAppointments int `json:"upcoming_appointments"`
	AnchoredRecords      int `json:"anchored_records"`
}

// DoctorDashboard counts the distinct patients a doctor has treated,
// the records they have authored, their upcoming appointments, and how
// many of their records carry a ledger anchor.
func (s *Store) DoctorDashboard(ctx context.Context, doctorID string, now time.Time) (DashboardStats, error) {
	var st DashboardStats
	err := s.DB.QueryRow(ctx, `
SELECT
    (SELECT count(DISTINCT patient_id) FROM medical_records WHERE doctor_id=$1),
    (SELECT count(*) FROM medical_records WHERE doctor_id=$1),
    (SELECT count(*) FROM appointments WHERE doctor_id=$1 AND status='scheduled' AND scheduled_at >= $2),
    (SELECT count(*) FROM medical_records WHERE doctor_id=$1 AND anchored)
`, doctorID, now).Scan(&st.PatientCount, &st.RecordCount, &st.UpcomingAppointments, &st.AnchoredRecords)
	return st, err
}

// PatientDashboard mirrors DoctorDashboard for the patient side.
func (s *Store) PatientDashboard(ctx context.Context, patientID string, now time.Time) (DashboardStats, error) {
	var st DashboardStats
	err := s.DB.QueryRow(ctx, `
SELECT
    (SELECT count(DISTINCT doctor_id) FROM medical_records WHERE patient_id=$1),
    (SELECT count(*) FROM medical_records WHERE patient_id=$1),
    (SELECT count(*) FROM appointments WHERE patient_id=$1 AND status='scheduled' AND scheduled_at >= $2),
    (SELECT count(*) FROM medical_records WHERE patient_id=$1 AND anchored)
`, patientID, now).Scan(&st.PatientCount, &st.RecordCount, &st.UpcomingAppointments, &st.AnchoredRecords)
	return st, err
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// RecordsByType buckets a patient's or doctor's records by record_type.
func (s *Store) RecordsByType(ctx context.Context, column, id string) ([]CountByKey, error) {
	return s.countByKey(ctx, `
SELECT record_type, count(*)
FROM medical_records
WHERE `+ownerColumn(column)+`=$1
GROUP BY record_type
ORDER BY count(*) DESC, record_type
`, id)
}

// AppointmentsByStatus buckets appointments by lifecycle status.
func (s *Store) AppointmentsByStatus(ctx context.Context, column, id string) ([]CountByKey, error) {
	return s.countByKey(ctx, `
SELECT status, count(*)
FROM appointments
WHERE `+ownerColumn(column)+`=$1
GROUP BY status
ORDER BY status
`, id)
}

// AppointmentsByMonth buckets appointments by calendar month over the
// trailing year, oldest month first.
func (s *Store) AppointmentsByMonth(ctx context.Context, column, id string, now time.Time) ([]CountByKey, error) {
	return s.countByKey(ctx, `
SELECT to_char(date_trunc('month', scheduled_at), 'YYYY-MM') AS month, count(*)
FROM appointments
WHERE `+ownerColumn(column)+`=$1 AND scheduled_at >= $2
GROUP BY month
ORDER BY month
`, id, now.AddDate(-1, 0, 0))
}

// ownerColumn whitelists the two owner columns shared by records and
// appointments so callers never interpolate arbitrary SQL.
func ownerColumn(column string) string {
	if column == "doctor_id" {
		return "doctor_id"
	}
	return "patient_id"
}

func (s *Store) countByKey(ctx context.Context, sql string, args ...any) ([]CountByKey, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCounts(rows)
}

func scanCounts(rows pgx.Rows) ([]CountByKey, error) {
	var out []CountByKey
	for rows.Next() {
		var c CountByKey
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
