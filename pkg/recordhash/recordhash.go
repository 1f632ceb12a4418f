// Package recordhash produces the deterministic fingerprint of a medical
// record's canonical fields. The digest is the dedup key for ledger
// submissions and the input to later re-verification, so the serialized
// form must be stable across runs and processes: keys sorted
// lexicographically, compact separators, UTF-8, SHA-256 hex.
package recordhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidInput = errors.New("recordhash: invalid input")

// canonicalKeys is the exact key set a hashable mapping must carry.
var canonicalKeys = []string{
	"id",
	"patient_id",
	"doctor_id",
	"title",
	"type",
	"description",
	"date",
}

// Fields is the canonical slice of a medical record that participates in
// the digest. Date is an ISO-8601 string, nil when the record is undated;
// it is never a native time value so the serialized form cannot drift.
type Fields struct {
	ID          string
	PatientID   string
	DoctorID    string
	Title       string
	Type        string
	Description string
	Date        *string
}

func (f Fields) canonical() map[string]any {
	var date any
	if f.Date != nil {
		date = *f.Date
	}
	return map[string]any{
		"id":          f.ID,
		"patient_id":  f.PatientID,
		"doctor_id":   f.DoctorID,
		"title":       f.Title,
		"type":        f.Type,
		"description": f.Description,
		"date":        date,
	}
}

// Sum returns the lowercase 64-hex SHA-256 digest of the canonical fields.
func (f Fields) Sum() string {
	// encoding/json marshals map keys in sorted order, which is the
	// whole determinism argument; a marshal error is impossible for
	// string/nil values.
	b, _ := json.Marshal(f.canonical())
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Sum hashes a caller-supplied mapping. The mapping must contain exactly
// the canonical keys and date must be a string or nil.
func Sum(fields map[string]any) (string, error) {
	if len(fields) != len(canonicalKeys) {
		return "", fmt.Errorf("%w: expected %d canonical keys, got %d", ErrInvalidInput, len(canonicalKeys), len(fields))
	}
	for _, k := range canonicalKeys {
		if _, ok := fields[k]; !ok {
			return "", fmt.Errorf("%w: missing key %q", ErrInvalidInput, k)
		}
	}
	switch fields["date"].(type) {
	case string, nil:
	default:
		return "", fmt.Errorf("%w: date must be an ISO-8601 string or null", ErrInvalidInput)
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// IsDigest reports whether s looks like a digest this package produced.
func IsDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
