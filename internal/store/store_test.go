package store

import (
	"testing"
	"time"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatalf("password stored in the clear")
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected mismatched password to fail")
	}
}

func TestPatientAge(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	before := time.Date(1980, time.June, 16, 0, 0, 0, 0, time.UTC)
	if got := (Patient{DateOfBirth: &before}).Age(now); got == nil || *got != 44 {
		t.Fatalf("day before birthday: got %v, want 44", got)
	}

	on := time.Date(1980, time.June, 15, 0, 0, 0, 0, time.UTC)
	if got := (Patient{DateOfBirth: &on}).Age(now); got == nil || *got != 45 {
		t.Fatalf("on birthday: got %v, want 45", got)
	}

	if got := (Patient{}).Age(now); got != nil {
		t.Fatalf("missing date of birth: got %v, want nil", got)
	}
}

func TestOwnerColumn(t *testing.T) {
	if got := ownerColumn("doctor_id"); got != "doctor_id" {
		t.Fatalf("got %q", got)
	}
	if got := ownerColumn("patient_id"); got != "patient_id" {
		t.Fatalf("got %q", got)
	}
	if got := ownerColumn("'); DROP TABLE users; --"); got != "patient_id" {
		t.Fatalf("unknown column must fall back to patient_id, got %q", got)
	}
}
