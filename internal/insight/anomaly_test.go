package insight

import (
	"reflect"
	"testing"
)

func bpSnapshot(id, date string, systolic, diastolic float64) Snapshot {
	return Snapshot{
		ID:   id,
		Type: "Examination",
		Date: date,
		Metadata: map[string]any{
			"blood_pressure": map[string]any{"systolic": systolic, "diastolic": diastolic},
		},
	}
}

func TestScanBloodPressureChange(t *testing.T) {
	snaps := []Snapshot{
		bpSnapshot("rec_1", "2024-01-01", 120, 80),
		bpSnapshot("rec_2", "2024-01-02", 155, 80),
	}
	findings := Scan(snaps)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Kind != FindingBloodPressureChange {
		t.Fatalf("unexpected kind %s", f.Kind)
	}
	if f.Severity != SeverityMedium {
		t.Fatalf("delta of 35 systolic should be medium, got %s", f.Severity)
	}
	if !reflect.DeepEqual(f.RecordIDs, []string{"rec_1", "rec_2"}) {
		t.Fatalf("unexpected record ids %v", f.RecordIDs)
	}
	change := f.Details["change"].(map[string]any)
	if change["systolic"].(float64) != 35 {
		t.Fatalf("unexpected systolic delta %v", change["systolic"])
	}
}

func TestScanBloodPressureHighSeverity(t *testing.T) {
	snaps := []Snapshot{
		bpSnapshot("rec_1", "2024-01-01", 120, 80),
		bpSnapshot("rec_2", "2024-01-02", 120, 115),
	}
	findings := Scan(snaps)
	if len(findings) != 1 || findings[0].Severity != SeverityHigh {
		t.Fatalf("diastolic delta of 35 should be one high finding, got %+v", findings)
	}
}

func TestScanSortsByDateWithMissingDateFirst(t *testing.T) {
	// Caller order is reversed and one record is undated; the undated
	// record sorts first, so the pair is (undated, dated).
	snaps := []Snapshot{
		bpSnapshot("rec_2", "2024-01-02", 190, 80),
		bpSnapshot("rec_1", "", 120, 80),
	}
	findings := Scan(snaps)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	if !reflect.DeepEqual(findings[0].RecordIDs, []string{"rec_1", "rec_2"}) {
		t.Fatalf("expected undated record first, got %v", findings[0].RecordIDs)
	}
	if findings[0].Severity != SeverityHigh {
		t.Fatalf("delta of 70 systolic should be high, got %s", findings[0].Severity)
	}
}

func TestScanHeartRateChange(t *testing.T) {
	snaps := []Snapshot{
		{ID: "rec_1", Date: "2024-01-01", Metadata: map[string]any{"heart_rate": 70.0}},
		{ID: "rec_2", Date: "2024-01-02", Metadata: map[string]any{"heart_rate": 115.0}},
	}
	findings := Scan(snaps)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	if findings[0].Kind != FindingHeartRateChange || findings[0].Severity != SeverityHigh {
		t.Fatalf("delta of 45 should be a high heart rate finding, got %+v", findings[0])
	}
}

func TestScanGlucoseSeverities(t *testing.T) {
	cases := []struct {
		glucose  float64
		expected string
	}{
		{40, SeverityHigh},
		{60, SeverityMedium},
		{200, SeverityMedium},
		{260, SeverityHigh},
	}
	for _, tc := range cases {
		snaps := []Snapshot{{
			ID:       "rec_1",
			Type:     "Lab Results",
			Metadata: map[string]any{"blood_glucose": tc.glucose},
		}}
		findings := Scan(snaps)
		if len(findings) != 1 {
			t.Fatalf("glucose %g: expected one finding, got %d", tc.glucose, len(findings))
		}
		if findings[0].Kind != FindingAbnormalGlucose || findings[0].Severity != tc.expected {
			t.Fatalf("glucose %g: expected %s severity, got %+v", tc.glucose, tc.expected, findings[0])
		}
		if findings[0].Details["normal_range"] != "70-180 mg/dL" {
			t.Fatalf("unexpected normal range annotation %v", findings[0].Details["normal_range"])
		}
	}
}

func TestScanNormalGlucoseSilent(t *testing.T) {
	snaps := []Snapshot{{
		ID:       "rec_1",
		Type:     "Lab Results",
		Metadata: map[string]any{"blood_glucose": 110.0},
	}}
	if findings := Scan(snaps); len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestScanLDLCholesterol(t *testing.T) {
	snaps := []Snapshot{{
		ID:       "rec_1",
		Type:     "Lab Results",
		Metadata: map[string]any{"cholesterol": map[string]any{"ldl": 170.0, "hdl": 50.0}},
	}}
	findings := Scan(snaps)
	if len(findings) != 1 || findings[0].Kind != FindingHighLDL || findings[0].Severity != SeverityHigh {
		t.Fatalf("ldl 170 should be one high finding, got %+v", findings)
	}
}

func TestScanSkipsNonNumericAndNonLabTypes(t *testing.T) {
	snaps := []Snapshot{
		{ID: "rec_1", Type: "Lab Results", Metadata: map[string]any{"blood_glucose": "forty"}},
		{ID: "rec_2", Type: "Examination", Metadata: map[string]any{"blood_glucose": 40.0}},
		{ID: "rec_3", Date: "2024-01-03", Metadata: map[string]any{"heart_rate": "fast"}},
		{ID: "rec_4", Date: "2024-01-04", Metadata: map[string]any{"heart_rate": 120.0}},
	}
	if findings := Scan(snaps); len(findings) != 0 {
		t.Fatalf("malformed fields should be skipped silently, got %+v", findings)
	}
}

func TestScanIdempotent(t *testing.T) {
	snaps := []Snapshot{
		bpSnapshot("rec_1", "2024-01-01", 120, 80),
		bpSnapshot("rec_2", "2024-01-02", 180, 80),
		{ID: "rec_3", Type: "Lab Results", Metadata: map[string]any{"blood_glucose": 40.0}},
	}
	first := Scan(snaps)
	second := Scan(snaps)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated scans over the same input must match")
	}
	// Trend findings come before lab findings.
	if len(first) != 2 || first[0].Kind != FindingBloodPressureChange || first[1].Kind != FindingAbnormalGlucose {
		t.Fatalf("unexpected finding order: %+v", first)
	}
}
