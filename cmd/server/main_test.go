package main

import (
	"testing"
	"time"

	"carevault/internal/store"
	"carevault/pkg/recordhash"
)

func TestParseBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"  Bearer abc123  ", "abc123", true},
		{"Bearer ", "", false},
		{"Basic abc123", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := parseBearer(c.header)
		if got != c.want || ok != c.ok {
			t.Fatalf("parseBearer(%q) = %q,%v want %q,%v", c.header, got, ok, c.want, c.ok)
		}
	}
}

func TestFixedWindowLimiter(t *testing.T) {
	l := newFixedWindowLimiter(2, time.Minute)
	now := time.Now().UTC()

	if !l.Allow("k", now) || !l.Allow("k", now) {
		t.Fatalf("first two requests must pass")
	}
	if l.Allow("k", now) {
		t.Fatalf("third request inside the window must be limited")
	}
	if !l.Allow("other", now) {
		t.Fatalf("limits are per key")
	}
	if !l.Allow("k", now.Add(time.Minute)) {
		t.Fatalf("window must reset after it elapses")
	}
}

func TestAvailableSlots(t *testing.T) {
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	free := availableSlots(day, nil)
	if len(free) != 16 {
		t.Fatalf("empty day: got %d slots, want 16", len(free))
	}
	if free[0] != "09:00" || free[len(free)-1] != "16:30" {
		t.Fatalf("slot bounds wrong: %v ... %v", free[0], free[len(free)-1])
	}

	booked := []store.Appointment{
		{ScheduledAt: day.Add(9 * time.Hour), Duration: 60, Status: store.AppointmentScheduled},
		{ScheduledAt: day.Add(14 * time.Hour), Duration: 30, Status: store.AppointmentCancelled},
	}
	free = availableSlots(day, booked)
	for _, s := range free {
		if s == "09:00" || s == "09:30" {
			t.Fatalf("hour-long 09:00 visit must block both half-hour slots, got %v", free)
		}
	}
	found := false
	for _, s := range free {
		if s == "14:00" {
			found = true
		}
	}
	if !found {
		t.Fatalf("cancelled appointments must not block slots")
	}

	// 15-minute visit straddling a slot boundary blocks only the slot
	// it overlaps.
	booked = []store.Appointment{
		{ScheduledAt: day.Add(10*time.Hour + 15*time.Minute), Duration: 15, Status: store.AppointmentScheduled},
	}
	free = availableSlots(day, booked)
	for _, s := range free {
		if s == "10:00" {
			t.Fatalf("overlapped slot 10:00 must be blocked")
		}
	}
}

func TestRecordDigestMatchesCanonicalHash(t *testing.T) {
	at := time.Date(2025, time.January, 2, 15, 4, 5, 0, time.UTC)
	rec := store.MedicalRecord{
		RecordID:    "rec_1",
		PatientID:   "pat_1",
		DoctorID:    "doc_1",
		Title:       "Annual physical",
		RecordType:  "consultation",
		Description: "routine checkup",
		RecordDate:  &at,
	}
	want, err := recordhash.Sum(map[string]any{
		"id":          "rec_1",
		"patient_id":  "pat_1",
		"doctor_id":   "doc_1",
		"title":       "Annual physical",
		"type":        "consultation",
		"description": "routine checkup",
		"date":        "2025-01-02T15:04:05Z",
	})
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if got := recordDigest(rec); got != want {
		t.Fatalf("recordDigest = %s, want %s", got, want)
	}

	rec.RecordDate = nil
	undated := recordDigest(rec)
	if undated == want {
		t.Fatalf("dropping the date must change the digest")
	}
	if !recordhash.IsDigest(undated) {
		t.Fatalf("digest shape wrong: %q", undated)
	}
}

func TestSnapshotFromRecord(t *testing.T) {
	at := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	rec := store.MedicalRecord{
		RecordID:   "rec_1",
		Title:      "BP check",
		RecordType: "blood_pressure",
		RecordDate: &at,
		Metadata:   map[string]any{"systolic": 120.0},
	}
	snap := snapshotFromRecord(rec)
	if snap.ID != "rec_1" || snap.Type != "blood_pressure" {
		t.Fatalf("identity fields lost: %+v", snap)
	}
	if snap.Date != "2025-01-02T00:00:00Z" {
		t.Fatalf("date = %q", snap.Date)
	}

	rec.RecordDate = nil
	if got := snapshotFromRecord(rec).Date; got != "" {
		t.Fatalf("undated record must produce empty date, got %q", got)
	}
}

func TestErrorCodeForStatus(t *testing.T) {
	if got := errorCodeForStatus(409); got != "CONFLICT" {
		t.Fatalf("409 = %q", got)
	}
	if got := errorCodeForStatus(500); got != "DB_ERROR" {
		t.Fatalf("500 = %q", got)
	}
}
