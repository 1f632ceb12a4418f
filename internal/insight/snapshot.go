// Package insight holds the read-only scoring passes over a patient's
// medical history: the anomaly scanner and the risk predictor. Both
// operate on normalized snapshots, never touch storage, and produce
// fresh value objects on every call.
package insight

import "encoding/json"

// Snapshot is the normalized, immutable view of one medical record.
// Date is an ISO-8601 string, empty when the record is undated; keeping
// it a string makes the scanner's date ordering trivial and stable.
type Snapshot struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Date        string         `json:"date,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// asNumber coerces the numeric shapes a JSON-decoded metadata value can
// take. Anything else is "not a number" and the caller skips the field.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// numberField reads a numeric metadata field, reporting absence and
// non-numeric values the same way.
func numberField(meta map[string]any, key string) (float64, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

// mapField reads a nested metadata object such as blood_pressure or
// cholesterol.
func mapField(meta map[string]any, key string) (map[string]any, bool) {
	v, ok := meta[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// numberOrZero mirrors the permissive read used for blood pressure
// components: a missing or malformed entry counts as zero.
func numberOrZero(m map[string]any, key string) float64 {
	n, ok := numberField(m, key)
	if !ok {
		return 0
	}
	return n
}
