package store

import "context"

// schema is the full DDL, applied at boot. Every statement is
// idempotent so repeated starts are safe.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id        text PRIMARY KEY,
    email          text NOT NULL UNIQUE,
    password_hash  text NOT NULL,
    full_name      text NOT NULL,
    user_type      text NOT NULL CHECK (user_type IN ('doctor','patient')),
    phone          text,
    created_at     timestamptz NOT NULL DEFAULT now(),
    last_login     timestamptz
);

CREATE TABLE IF NOT EXISTS doctors (
    doctor_id           text PRIMARY KEY,
    user_id             text NOT NULL UNIQUE REFERENCES users(user_id),
    specialization      text,
    license_number      text,
    hospital            text,
    bio                 text,
    years_of_experience int
);

CREATE TABLE IF NOT EXISTS patients (
    patient_id         text PRIMARY KEY,
    user_id            text NOT NULL UNIQUE REFERENCES users(user_id),
    date_of_birth      date,
    blood_type         text,
    allergies          text,
    emergency_contact  text,
    medical_history    text,
    insurance_provider text,
    insurance_id       text
);

CREATE TABLE IF NOT EXISTS medical_records (
    record_id   text PRIMARY KEY,
    patient_id  text NOT NULL REFERENCES patients(patient_id),
    doctor_id   text NOT NULL REFERENCES doctors(doctor_id),
    title       text NOT NULL,
    record_type text NOT NULL,
    description text NOT NULL,
    record_date timestamptz,
    notes       text,
    metadata    jsonb,
    anchored    boolean NOT NULL DEFAULT false,
    anchor_tx   text,
    created_at  timestamptz NOT NULL DEFAULT now(),
    updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS medical_records_patient_idx ON medical_records(patient_id);

CREATE TABLE IF NOT EXISTS appointments (
    appointment_id   text PRIMARY KEY,
    patient_id       text NOT NULL REFERENCES patients(patient_id),
    doctor_id        text NOT NULL REFERENCES doctors(doctor_id),
    title            text NOT NULL,
    description      text,
    scheduled_at     timestamptz NOT NULL,
    duration_minutes int NOT NULL DEFAULT 30,
    status           text NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled','completed','cancelled')),
    location         text,
    is_virtual       boolean NOT NULL DEFAULT false,
    meeting_link     text,
    created_at       timestamptz NOT NULL DEFAULT now(),
    updated_at       timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS appointments_doctor_idx ON appointments(doctor_id, scheduled_at);
CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments(patient_id, scheduled_at);

CREATE TABLE IF NOT EXISTS notifications (
    notification_id text PRIMARY KEY,
    user_id         text NOT NULL REFERENCES users(user_id),
    title           text NOT NULL,
    message         text NOT NULL,
    kind            text NOT NULL,
    is_read         boolean NOT NULL DEFAULT false,
    reference_id    text,
    reference_type  text,
    created_at      timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications(user_id, is_read);

CREATE TABLE IF NOT EXISTS integrity_records (
    id          text PRIMARY KEY,
    record_hash text NOT NULL UNIQUE,
    ledger_kind text NOT NULL,
    tx_ref      text NOT NULL,
    block_ref   text,
    status      text NOT NULL CHECK (status IN ('pending','confirmed','failed')),
    created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS idempotency_records (
    scope_id        text NOT NULL,
    actor_id        text NOT NULL,
    idempotency_key text NOT NULL,
    endpoint        text NOT NULL,
    response_status int NOT NULL,
    response_body   jsonb NOT NULL,
    created_at      timestamptz NOT NULL DEFAULT now(),
    PRIMARY KEY (scope_id, actor_id, idempotency_key, endpoint)
);
`

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return err
}
