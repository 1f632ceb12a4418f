package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type MedicalRecord struct {
	RecordID    string         `json:"record_id"`
	PatientID   string         `json:"patient_id"`
	DoctorID    string         `json:"doctor_id"`
	Title       string         `json:"title"`
	RecordType  string         `json:"type"`
	Description string         `json:"description"`
	RecordDate  *time.Time     `json:"date,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Anchored    bool           `json:"anchored"`
	AnchorTx    string         `json:"anchor_tx,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

const recordColumns = `
record_id,patient_id,doctor_id,title,record_type,description,record_date,
COALESCE(notes,''),metadata,anchored,COALESCE(anchor_tx,''),created_at,updated_at`

func scanRecord(row pgx.Row) (MedicalRecord, error) {
	var (
		rec  MedicalRecord
		meta []byte
	)
	err := row.Scan(&rec.RecordID, &rec.PatientID, &rec.DoctorID, &rec.Title, &rec.RecordType,
		&rec.Description, &rec.RecordDate, &rec.Notes, &meta, &rec.Anchored, &rec.AnchorTx,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MedicalRecord{}, ErrNotFound
	}
	if err != nil {
		return MedicalRecord{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &rec.Metadata)
	}
	return rec, nil
}

func (s *Store) CreateRecord(ctx context.Context, rec MedicalRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
INSERT INTO medical_records(record_id,patient_id,doctor_id,title,record_type,description,record_date,notes,metadata)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb)
`, rec.RecordID, rec.PatientID, rec.DoctorID, rec.Title, rec.RecordType, rec.Description,
		rec.RecordDate, nullable(rec.Notes), string(meta))
	return err
}

func (s *Store) GetRecord(ctx context.Context, recordID string) (MedicalRecord, error) {
	return scanRecord(s.DB.QueryRow(ctx, `
SELECT `+recordColumns+`
FROM medical_records
WHERE record_id=$1
`, recordID))
}

func (s *Store) ListRecordsByPatient(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	return s.listRecords(ctx, `
SELECT `+recordColumns+`
FROM medical_records
WHERE patient_id=$1
ORDER BY record_date NULLS FIRST, created_at
`, patientID)
}

func (s *Store) ListRecordsByDoctor(ctx context.Context, doctorID string) ([]MedicalRecord, error) {
	return s.listRecords(ctx, `
SELECT `+recordColumns+`
FROM medical_records
WHERE doctor_id=$1
ORDER BY record_date NULLS FIRST, created_at
`, doctorID)
}

func (s *Store) listRecords(ctx context.Context, sql string, args ...any) ([]MedicalRecord, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateRecord rewrites the mutable fields. Anchored records are frozen
// at the handler layer before this is reached.
func (s *Store) UpdateRecord(ctx context.Context, rec MedicalRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
UPDATE medical_records
SET title=$2,record_type=$3,description=$4,record_date=$5,notes=$6,metadata=$7::jsonb,updated_at=now()
WHERE record_id=$1
`, rec.RecordID, rec.Title, rec.RecordType, rec.Description, rec.RecordDate, nullable(rec.Notes), string(meta))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRecordAnchored stamps the ledger transaction onto the record.
func (s *Store) MarkRecordAnchored(ctx context.Context, recordID, txRef string) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE medical_records SET anchored=true, anchor_tx=$2, updated_at=now()
WHERE record_id=$1
`, recordID, txRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
