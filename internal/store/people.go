package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type Doctor struct {
	DoctorID          string `json:"doctor_id"`
	UserID            string `json:"user_id"`
	Specialization    string `json:"specialization,omitempty"`
	LicenseNumber     string `json:"license_number,omitempty"`
	Hospital          string `json:"hospital,omitempty"`
	Bio               string `json:"bio,omitempty"`
	YearsOfExperience int    `json:"years_of_experience,omitempty"`
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
}

type Patient struct {
	PatientID         string     `json:"patient_id"`
	UserID            string     `json:"user_id"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"`
	BloodType         string     `json:"blood_type,omitempty"`
	Allergies         string     `json:"allergies,omitempty"`
	EmergencyContact  string     `json:"emergency_contact,omitempty"`
	MedicalHistory    string     `json:"medical_history,omitempty"`
	InsuranceProvider string     `json:"insurance_provider,omitempty"`
	InsuranceID       string     `json:"insurance_id,omitempty"`
	FullName          string     `json:"full_name"`
	Email             string     `json:"email"`
}

// Age derives the patient's age from date of birth, nil when unknown.
func (p Patient) Age(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return &age
}

// CreateDoctorAccount inserts the user row and its doctor profile in
// one transaction.
func (s *Store) CreateDoctorAccount(ctx context.Context, u User, d Doctor) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO users(user_id,email,password_hash,full_name,user_type,phone)
VALUES($1,lower($2),$3,$4,'doctor',$5)
`, u.UserID, u.Email, u.PasswordHash, u.FullName, nullable(u.Phone)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO doctors(doctor_id,user_id,specialization,license_number,hospital,bio,years_of_experience)
VALUES($1,$2,$3,$4,$5,$6,$7)
`, d.DoctorID, u.UserID, nullable(d.Specialization), nullable(d.LicenseNumber), nullable(d.Hospital), nullable(d.Bio), d.YearsOfExperience); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreatePatientAccount inserts the user row and its patient profile in
// one transaction.
func (s *Store) CreatePatientAccount(ctx context.Context, u User, p Patient) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO users(user_id,email,password_hash,full_name,user_type,phone)
VALUES($1,lower($2),$3,$4,'patient',$5)
`, u.UserID, u.Email, u.PasswordHash, u.FullName, nullable(u.Phone)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO patients(patient_id,user_id,date_of_birth,blood_type,allergies,emergency_contact,medical_history,insurance_provider,insurance_id)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, p.PatientID, u.UserID, p.DateOfBirth, nullable(p.BloodType), nullable(p.Allergies), nullable(p.EmergencyContact), nullable(p.MedicalHistory), nullable(p.InsuranceProvider), nullable(p.InsuranceID)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const doctorColumns = `
d.doctor_id,d.user_id,COALESCE(d.specialization,''),COALESCE(d.license_number,''),COALESCE(d.hospital,''),
COALESCE(d.bio,''),COALESCE(d.years_of_experience,0),u.full_name,u.email`

func scanDoctor(row pgx.Row) (Doctor, error) {
	var d Doctor
	err := row.Scan(&d.DoctorID, &d.UserID, &d.Specialization, &d.LicenseNumber, &d.Hospital,
		&d.Bio, &d.YearsOfExperience, &d.FullName, &d.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Doctor{}, ErrNotFound
	}
	return d, err
}

func (s *Store) GetDoctor(ctx context.Context, doctorID string) (Doctor, error) {
	return scanDoctor(s.DB.QueryRow(ctx, `
SELECT `+doctorColumns+`
FROM doctors d JOIN users u ON u.user_id=d.user_id
WHERE d.doctor_id=$1
`, doctorID))
}

func (s *Store) GetDoctorByUserID(ctx context.Context, userID string) (Doctor, error) {
	return scanDoctor(s.DB.QueryRow(ctx, `
SELECT `+doctorColumns+`
FROM doctors d JOIN users u ON u.user_id=d.user_id
WHERE d.user_id=$1
`, userID))
}

func (s *Store) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.DB.Query(ctx, `
SELECT `+doctorColumns+`
FROM doctors d JOIN users u ON u.user_id=d.user_id
ORDER BY u.full_name
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const patientColumns = `
p.patient_id,p.user_id,p.date_of_birth,COALESCE(p.blood_type,''),COALESCE(p.allergies,''),
COALESCE(p.emergency_contact,''),COALESCE(p.medical_history,''),COALESCE(p.insurance_provider,''),
COALESCE(p.insurance_id,''),u.full_name,u.email`

func scanPatient(row pgx.Row) (Patient, error) {
	var p Patient
	err := row.Scan(&p.PatientID, &p.UserID, &p.DateOfBirth, &p.BloodType, &p.Allergies,
		&p.EmergencyContact, &p.MedicalHistory, &p.InsuranceProvider, &p.InsuranceID, &p.FullName, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Patient{}, ErrNotFound
	}
	return p, err
}

func (s *Store) GetPatient(ctx context.Context, patientID string) (Patient, error) {
	return scanPatient(s.DB.QueryRow(ctx, `
SELECT `+patientColumns+`
FROM patients p JOIN users u ON u.user_id=p.user_id
WHERE p.patient_id=$1
`, patientID))
}

func (s *Store) GetPatientByUserID(ctx context.Context, userID string) (Patient, error) {
	return scanPatient(s.DB.QueryRow(ctx, `
SELECT `+patientColumns+`
FROM patients p JOIN users u ON u.user_id=p.user_id
WHERE p.user_id=$1
`, userID))
}

func (s *Store) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.DB.Query(ctx, `
SELECT `+patientColumns+`
FROM patients p JOIN users u ON u.user_id=p.user_id
ORDER BY u.full_name
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
