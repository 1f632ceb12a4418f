package insight

import (
	"fmt"
	"math"
	"sort"
)

// Finding severities. Only deviations worth surfacing are emitted, so
// there is no "low".
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Finding kinds.
const (
	FindingBloodPressureChange = "blood_pressure_change"
	FindingHeartRateChange     = "heart_rate_change"
	FindingAbnormalGlucose     = "abnormal_blood_glucose"
	FindingHighLDL             = "high_ldl_cholesterol"
)

// Finding is one detected deviation. RecordIDs holds the pair that
// produced a trend finding, or the single record for a lab finding.
type Finding struct {
	Kind        string         `json:"kind"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	RecordIDs   []string       `json:"record_ids"`
	Details     map[string]any `json:"details"`
}

// Scan runs the two anomaly passes over a patient's snapshots: a
// pairwise vital-trend pass in date order, then a per-record lab pass in
// the caller's order. Missing or non-numeric fields are skipped on
// purpose; sparse metadata is the norm, not an error.
func Scan(snapshots []Snapshot) []Finding {
	var findings []Finding

	ordered := make([]Snapshot, len(snapshots))
	copy(ordered, snapshots)
	// Undated records carry an empty date string and therefore sort first.
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date < ordered[j].Date })

	for i := 1; i < len(ordered); i++ {
		findings = append(findings, scanPair(ordered[i-1], ordered[i])...)
	}

	for _, snap := range snapshots {
		if snap.Type != "Lab Results" {
			continue
		}
		findings = append(findings, scanLabs(snap)...)
	}
	return findings
}

func scanPair(prev, cur Snapshot) []Finding {
	var findings []Finding

	prevBP, prevOK := mapField(prev.Metadata, "blood_pressure")
	curBP, curOK := mapField(cur.Metadata, "blood_pressure")
	if prevOK && curOK {
		systolicChange := math.Abs(numberOrZero(curBP, "systolic") - numberOrZero(prevBP, "systolic"))
		diastolicChange := math.Abs(numberOrZero(curBP, "diastolic") - numberOrZero(prevBP, "diastolic"))
		if systolicChange > 30 || diastolicChange > 20 {
			severity := SeverityMedium
			if systolicChange > 50 || diastolicChange > 30 {
				severity = SeverityHigh
			}
			findings = append(findings, Finding{
				Kind:        FindingBloodPressureChange,
				Severity:    severity,
				Description: "Significant change in blood pressure between records",
				RecordIDs:   []string{prev.ID, cur.ID},
				Details: map[string]any{
					"previous": prevBP,
					"current":  curBP,
					"change": map[string]any{
						"systolic":  systolicChange,
						"diastolic": diastolicChange,
					},
				},
			})
		}
	}

	prevHR, prevOK := numberField(prev.Metadata, "heart_rate")
	curHR, curOK := numberField(cur.Metadata, "heart_rate")
	if prevOK && curOK {
		change := math.Abs(curHR - prevHR)
		if change > 20 {
			severity := SeverityMedium
			if change > 40 {
				severity = SeverityHigh
			}
			findings = append(findings, Finding{
				Kind:        FindingHeartRateChange,
				Severity:    severity,
				Description: "Significant change in heart rate between records",
				RecordIDs:   []string{prev.ID, cur.ID},
				Details: map[string]any{
					"previous": prevHR,
					"current":  curHR,
					"change":   change,
				},
			})
		}
	}
	return findings
}

func scanLabs(snap Snapshot) []Finding {
	var findings []Finding

	if glucose, ok := numberField(snap.Metadata, "blood_glucose"); ok && (glucose < 70 || glucose > 180) {
		severity := SeverityMedium
		if glucose < 50 || glucose > 250 {
			severity = SeverityHigh
		}
		findings = append(findings, Finding{
			Kind:        FindingAbnormalGlucose,
			Severity:    severity,
			Description: fmt.Sprintf("Abnormal blood glucose level: %g mg/dL", glucose),
			RecordIDs:   []string{snap.ID},
			Details: map[string]any{
				"value":        glucose,
				"normal_range": "70-180 mg/dL",
			},
		})
	}

	if chol, ok := mapField(snap.Metadata, "cholesterol"); ok {
		if ldl, ok := numberField(chol, "ldl"); ok && ldl > 130 {
			severity := SeverityMedium
			if ldl > 160 {
				severity = SeverityHigh
			}
			findings = append(findings, Finding{
				Kind:        FindingHighLDL,
				Severity:    severity,
				Description: fmt.Sprintf("High LDL cholesterol level: %g mg/dL", ldl),
				RecordIDs:   []string{snap.ID},
				Details: map[string]any{
					"value":        ldl,
					"normal_range": "<130 mg/dL",
				},
			})
		}
	}
	return findings
}
