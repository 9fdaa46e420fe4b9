// Package intelligence derives explanations and activity scores from a weather snapshot.
// Every function here is pure: same snapshot, same output.
package intelligence

import (
	"strings"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
)

// Explanation headlines.
const (
	HeadlineStable        = "Stable Atmospheric Conditions"
	HeadlineHighThermal   = "High Thermal Activity Detected"
	HeadlineLowThermal    = "Low Thermal Regime Active"
	HeadlineHighMoisture  = "High Moisture Content Detected"
	HeadlineElevatedWind  = "Elevated Wind Vector Activity"
	HeadlinePrecipitation = "Active Precipitation System"
)

type explanationRule struct {
	matches     func(models.Snapshot) bool
	explanation models.Explanation
}

// explanationRules are evaluated top to bottom and every match replaces the previous
// explanation, so the last matching rule wins. Order is part of the contract.
var explanationRules = []explanationRule{
	{
		matches: func(models.Snapshot) bool { return true },
		explanation: models.Explanation{
			Headline:  HeadlineStable,
			Reasoning: "Pressure is balanced and no single driver dominates the local atmosphere.",
			CauseEffect: models.CauseEffect{
				Cause:  "Weak pressure gradient with ordinary surface heating.",
				Effect: "Comfortable conditions for most outdoor activity.",
			},
		},
	},
	{
		matches: func(s models.Snapshot) bool { return s.TempC > 30 },
		explanation: models.Explanation{
			Headline:  HeadlineHighThermal,
			Reasoning: "Strong surface heating is warming the lower air layer faster than it can mix out.",
			CauseEffect: models.CauseEffect{
				Cause:  "High solar input and limited convective cooling.",
				Effect: "Heat stress builds quickly during exertion.",
			},
		},
	},
	{
		matches: func(s models.Snapshot) bool { return s.TempC < 10 },
		explanation: models.Explanation{
			Headline:  HeadlineLowThermal,
			Reasoning: "A cool air mass sits over the area and surface heating is too weak to lift temperatures.",
			CauseEffect: models.CauseEffect{
				Cause:  "Cold advection or reduced solar input.",
				Effect: "Faster heat loss from exposed skin and surfaces.",
			},
		},
	},
	{
		matches: func(s models.Snapshot) bool { return s.Humidity > 80 },
		explanation: models.Explanation{
			Headline:  HeadlineHighMoisture,
			Reasoning: "The air is close to saturation, so evaporation slows and condensation comes easily.",
			CauseEffect: models.CauseEffect{
				Cause:  "Moist air mass near its dew point.",
				Effect: "Muggy feel, haze and a raised chance of fog.",
			},
		},
	},
	{
		matches: func(s models.Snapshot) bool { return s.WindKph > 30 },
		explanation: models.Explanation{
			Headline:  HeadlineElevatedWind,
			Reasoning: "A steep pressure gradient is driving sustained airflow across the area.",
			CauseEffect: models.CauseEffect{
				Cause:  "Large pressure change over a short distance.",
				Effect: "Gusty crosswinds and stronger wind chill.",
			},
		},
	},
	{
		matches: func(s models.Snapshot) bool { return conditionContains(s, "rain", "storm") },
		explanation: models.Explanation{
			Headline:  HeadlinePrecipitation,
			Reasoning: "Saturated air is condensing and falling out as precipitation over the area.",
			CauseEffect: models.CauseEffect{
				Cause:  "Lifted moist air cooling past its dew point.",
				Effect: "Wet surfaces, lower visibility and reduced traction.",
			},
		},
	},
}

// Explain returns the explanation of the last matching rule.
func Explain(s models.Snapshot) models.Explanation {
	var out models.Explanation
	for _, r := range explanationRules {
		if r.matches(s) {
			out = r.explanation
		}
	}
	return out
}

// conditionContains reports whether the condition text contains any of the words,
// ignoring case.
func conditionContains(s models.Snapshot, words ...string) bool {
	text := strings.ToLower(s.Condition)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
