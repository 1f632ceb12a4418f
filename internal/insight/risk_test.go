package insight

import (
	"math"
	"reflect"
	"testing"
)

func intPtr(v int) *int { return &v }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPredictHypertensionAndSmoker(t *testing.T) {
	snaps := []Snapshot{{
		ID:          "rec_1",
		Description: "Patient has hypertension and is a smoker",
	}}
	a := Predict(snaps, nil)

	if !almostEqual(a.RiskScores[RiskCardiovascular], 0.4) {
		t.Fatalf("expected cardiovascular 0.4, got %g", a.RiskScores[RiskCardiovascular])
	}
	if !almostEqual(a.RiskScores[RiskRespiratory], 0.3) {
		t.Fatalf("expected respiratory 0.3, got %g", a.RiskScores[RiskRespiratory])
	}
	if a.RiskLevels[RiskCardiovascular] != LevelModerate || a.RiskLevels[RiskRespiratory] != LevelModerate {
		t.Fatalf("unexpected levels %v", a.RiskLevels)
	}
	if !a.RiskFactors["hypertension"] || !a.RiskFactors["smoking_history"] {
		t.Fatalf("unexpected factors %v", a.RiskFactors)
	}

	descriptions := make([]string, 0, len(a.Recommendations))
	for _, r := range a.Recommendations {
		descriptions = append(descriptions, r.Description)
	}
	expected := []string{
		"Regular cardiovascular check-ups recommended",
		"Monitor blood pressure regularly",
		"Pulmonary function testing",
	}
	if !reflect.DeepEqual(descriptions, expected) {
		t.Fatalf("unexpected recommendations %v", descriptions)
	}
	// 0.4 cardiovascular is above the 0.3 gate but below 0.5.
	if a.Recommendations[0].Frequency != "Yearly" {
		t.Fatalf("expected yearly check-ups, got %q", a.Recommendations[0].Frequency)
	}
}

func TestPredictAgeStacking(t *testing.T) {
	a := Predict(nil, intPtr(72))
	if !almostEqual(a.RiskScores[RiskCardiovascular], 0.3) {
		t.Fatalf("age 72 should clear all three thresholds, got %g", a.RiskScores[RiskCardiovascular])
	}
	if a.RiskLevels[RiskCardiovascular] != LevelModerate {
		t.Fatalf("expected moderate, got %s", a.RiskLevels[RiskCardiovascular])
	}
	if len(a.Recommendations) != 1 || a.Recommendations[0].Frequency != "Yearly" {
		t.Fatalf("expected one yearly cardiovascular recommendation, got %+v", a.Recommendations)
	}

	b := Predict(nil, intPtr(55))
	if !almostEqual(b.RiskScores[RiskCardiovascular], 0.1) {
		t.Fatalf("age 55 should clear one threshold, got %g", b.RiskScores[RiskCardiovascular])
	}
	if b.RiskLevels[RiskCardiovascular] != LevelLow {
		t.Fatalf("expected low, got %s", b.RiskLevels[RiskCardiovascular])
	}
}

func TestPredictMetadataTriggers(t *testing.T) {
	snaps := []Snapshot{{
		ID: "rec_1",
		Metadata: map[string]any{
			"cholesterol":   map[string]any{"ldl": 150.0},
			"blood_glucose": 140.0,
		},
	}}
	a := Predict(snaps, nil)
	if !almostEqual(a.RiskScores[RiskCardiovascular], 0.2) || !almostEqual(a.RiskScores[RiskDiabetes], 0.3) {
		t.Fatalf("unexpected scores %v", a.RiskScores)
	}
	if !a.RiskFactors["high_cholesterol"] || !a.RiskFactors["high_glucose"] {
		t.Fatalf("unexpected factors %v", a.RiskFactors)
	}

	var sawCholesterol, sawDiabetes bool
	for _, r := range a.Recommendations {
		switch r.Description {
		case "Cholesterol management and follow-up testing":
			sawCholesterol = true
			if r.Frequency != "Every 3 months" {
				t.Fatalf("unexpected frequency %q", r.Frequency)
			}
		case "Diabetes screening and glucose monitoring":
			sawDiabetes = true
			if r.Frequency != "Every 6 months" {
				t.Fatalf("diabetes 0.3 should be every 6 months, got %q", r.Frequency)
			}
		}
	}
	if !sawCholesterol || !sawDiabetes {
		t.Fatalf("missing recommendations: %+v", a.Recommendations)
	}
}

func TestPredictHighDiabetesFrequency(t *testing.T) {
	snaps := []Snapshot{
		{ID: "rec_1", Metadata: map[string]any{"blood_glucose": 140.0}},
		{ID: "rec_2", Description: "patient is obese", Metadata: map[string]any{"blood_glucose": 150.0}},
	}
	// diabetes = 0.3 + 0.3 + 0.2 = 0.8
	a := Predict(snaps, nil)
	if a.RiskLevels[RiskDiabetes] != LevelHigh {
		t.Fatalf("expected high diabetes risk, got %s", a.RiskLevels[RiskDiabetes])
	}
	for _, r := range a.Recommendations {
		if r.Category == RiskDiabetes && r.Frequency != "Every 3 months" {
			t.Fatalf("diabetes >= 0.5 should be every 3 months, got %q", r.Frequency)
		}
	}
}

func TestPredictFamilyHistoryNeedsHeartContext(t *testing.T) {
	without := Predict([]Snapshot{{Description: "family history of migraines"}}, nil)
	if without.RiskFactors["family_history_heart_disease"] {
		t.Fatal("family history without cardiac context should not count")
	}
	with := Predict([]Snapshot{{Description: "family history of cardiac disease"}}, nil)
	if !with.RiskFactors["family_history_heart_disease"] || !almostEqual(with.RiskScores[RiskCardiovascular], 0.15) {
		t.Fatalf("unexpected assessment %+v", with)
	}
}

func TestPredictAsthmaInTitle(t *testing.T) {
	a := Predict([]Snapshot{{Title: "Asthma follow-up"}}, nil)
	if !a.RiskFactors["asthma"] || !almostEqual(a.RiskScores[RiskRespiratory], 0.3) {
		t.Fatalf("unexpected assessment %+v", a)
	}
	if len(a.Recommendations) != 1 || a.Recommendations[0].Description != "Pulmonary function testing" {
		t.Fatalf("unexpected recommendations %+v", a.Recommendations)
	}
}

func TestPredictIdempotentAndEmpty(t *testing.T) {
	snaps := []Snapshot{{Description: "obesity and smoking history"}}
	first := Predict(snaps, intPtr(65))
	second := Predict(snaps, intPtr(65))
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated predictions over the same input must match")
	}

	empty := Predict(nil, nil)
	for category, level := range empty.RiskLevels {
		if level != LevelLow {
			t.Fatalf("empty input should be low risk for %s, got %s", category, level)
		}
	}
	if len(empty.Recommendations) != 0 {
		t.Fatalf("expected no recommendations, got %+v", empty.Recommendations)
	}
}
