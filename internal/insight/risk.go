package insight

import "strings"

// Risk categories and levels.
const (
	RiskCardiovascular = "cardiovascular"
	RiskDiabetes       = "diabetes"
	RiskRespiratory    = "respiratory"

	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"
)

// Recommendation is one follow-up suggestion derived from the scores.
type Recommendation struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
}

// Assessment is the full output of a prediction run.
type Assessment struct {
	RiskScores      map[string]float64 `json:"risk_scores"`
	RiskLevels      map[string]string  `json:"risk_levels"`
	RiskFactors     map[string]bool    `json:"risk_factors"`
	Recommendations []Recommendation   `json:"recommendations"`
}

// Predict accumulates weighted risk factors from the snapshots into
// per-category scores, then maps scores to levels and derives follow-up
// recommendations. Scores are additive and order-independent; age, when
// known, adds cumulative cardiovascular weight at 50, 60 and 70.
func Predict(snapshots []Snapshot, age *int) Assessment {
	scores := map[string]float64{
		RiskCardiovascular: 0,
		RiskDiabetes:       0,
		RiskRespiratory:    0,
	}

	var (
		hasHypertension       bool
		hasHighCholesterol    bool
		hasHighGlucose        bool
		hasSmokingHistory     bool
		hasFamilyHeartHistory bool
		hasObesity            bool
		hasAsthma             bool
	)

	for _, snap := range snapshots {
		description := strings.ToLower(snap.Description)
		title := strings.ToLower(snap.Title)

		if strings.Contains(description, "hypertension") || strings.Contains(description, "high blood pressure") {
			hasHypertension = true
			scores[RiskCardiovascular] += 0.2
		}
		if chol, ok := mapField(snap.Metadata, "cholesterol"); ok {
			if ldl, ok := numberField(chol, "ldl"); ok && ldl > 130 {
				hasHighCholesterol = true
				scores[RiskCardiovascular] += 0.2
			}
		}
		if glucose, ok := numberField(snap.Metadata, "blood_glucose"); ok && glucose > 126 {
			hasHighGlucose = true
			scores[RiskDiabetes] += 0.3
		}
		if strings.Contains(description, "smoking") || strings.Contains(description, "smoker") {
			hasSmokingHistory = true
			scores[RiskCardiovascular] += 0.2
			scores[RiskRespiratory] += 0.3
		}
		if strings.Contains(description, "family history") &&
			(strings.Contains(description, "heart") || strings.Contains(description, "cardiac")) {
			hasFamilyHeartHistory = true
			scores[RiskCardiovascular] += 0.15
		}
		if strings.Contains(description, "obesity") || strings.Contains(description, "obese") {
			hasObesity = true
			scores[RiskCardiovascular] += 0.15
			scores[RiskDiabetes] += 0.2
		}
		if strings.Contains(description, "asthma") || strings.Contains(title, "asthma") {
			hasAsthma = true
			scores[RiskRespiratory] += 0.3
		}
	}

	if age != nil {
		if *age > 50 {
			scores[RiskCardiovascular] += 0.1
		}
		if *age > 60 {
			scores[RiskCardiovascular] += 0.1
		}
		if *age > 70 {
			scores[RiskCardiovascular] += 0.1
		}
	}

	levels := make(map[string]string, len(scores))
	for category, score := range scores {
		switch {
		case score < 0.2:
			levels[category] = LevelLow
		case score < 0.5:
			levels[category] = LevelModerate
		default:
			levels[category] = LevelHigh
		}
	}

	var recommendations []Recommendation
	if scores[RiskCardiovascular] >= 0.3 {
		frequency := "Yearly"
		if scores[RiskCardiovascular] >= 0.5 {
			frequency = "Every 6 months"
		}
		recommendations = append(recommendations, Recommendation{
			Category:    RiskCardiovascular,
			Description: "Regular cardiovascular check-ups recommended",
			Frequency:   frequency,
		})
	}
	if hasHypertension {
		recommendations = append(recommendations, Recommendation{
			Category:    RiskCardiovascular,
			Description: "Monitor blood pressure regularly",
			Frequency:   "Weekly",
		})
	}
	if hasHighCholesterol {
		recommendations = append(recommendations, Recommendation{
			Category:    RiskCardiovascular,
			Description: "Cholesterol management and follow-up testing",
			Frequency:   "Every 3 months",
		})
	}
	if scores[RiskDiabetes] >= 0.3 {
		frequency := "Every 6 months"
		if scores[RiskDiabetes] >= 0.5 {
			frequency = "Every 3 months"
		}
		recommendations = append(recommendations, Recommendation{
			Category:    RiskDiabetes,
			Description: "Diabetes screening and glucose monitoring",
			Frequency:   frequency,
		})
	}
	if hasAsthma || scores[RiskRespiratory] >= 0.3 {
		recommendations = append(recommendations, Recommendation{
			Category:    RiskRespiratory,
			Description: "Pulmonary function testing",
			Frequency:   "Every 6 months",
		})
	}

	return Assessment{
		RiskScores: scores,
		RiskLevels: levels,
		RiskFactors: map[string]bool{
			"hypertension":                 hasHypertension,
			"high_cholesterol":             hasHighCholesterol,
			"high_glucose":                 hasHighGlucose,
			"smoking_history":              hasSmokingHistory,
			"family_history_heart_disease": hasFamilyHeartHistory,
			"obesity":                      hasObesity,
			"asthma":                       hasAsthma,
		},
		Recommendations: recommendations,
	}
}
