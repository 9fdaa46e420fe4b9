package intelligence

import "github.com/kjstillabower/weather-intelligence-service/internal/models"

// Insight labels.
const (
	LabelRunning     = "Endurance Score"
	LabelPhotography = "Diffusion Index"
	LabelTravel      = "Mobility Safety"
	LabelAviation    = "Flight Clearances"
)

// adjustment applies delta to the score when matches holds.
type adjustment struct {
	matches func(models.Snapshot) bool
	delta   int
}

// scorer describes one activity: a base score, independent adjustments, status
// thresholds (score strictly above optimal is OPTIMAL, strictly above caution is
// CAUTION) and advice per status.
type scorer struct {
	label       string
	base        int
	adjustments []adjustment
	optimal     int
	caution     int
	advice      map[models.Status]string
}

func (sc scorer) score(s models.Snapshot) models.DecisionInsight {
	score := sc.base
	for _, a := range sc.adjustments {
		if a.matches(s) {
			score += a.delta
		}
	}
	score = clamp(score)
	status := models.StatusDanger
	switch {
	case score > sc.optimal:
		status = models.StatusOptimal
	case score > sc.caution:
		status = models.StatusCaution
	}
	return models.DecisionInsight{
		Label:  sc.label,
		Score:  score,
		Status: status,
		Advice: sc.advice[status],
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

var running = scorer{
	label: LabelRunning,
	base:  100,
	adjustments: []adjustment{
		{func(s models.Snapshot) bool { return s.TempC > 30 || s.TempC < 5 }, -30},
		{func(s models.Snapshot) bool { return s.Humidity > 80 }, -20},
		{func(s models.Snapshot) bool { return s.WindKph > 20 }, -15},
		{func(s models.Snapshot) bool { return conditionContains(s, "rain") }, -40},
	},
	optimal: 70,
	caution: 40,
	advice: map[models.Status]string{
		models.StatusOptimal: "Good conditions for a hard session.",
		models.StatusCaution: "Ease the pace and carry extra water.",
		models.StatusDanger:  "Move the workout indoors or reschedule.",
	},
}

var photography = scorer{
	label: LabelPhotography,
	base:  70,
	adjustments: []adjustment{
		{func(s models.Snapshot) bool { return s.Cloud >= 20 && s.Cloud <= 70 }, 20},
		{func(s models.Snapshot) bool { return s.Cloud > 80 }, -20},
		{func(s models.Snapshot) bool { return s.UV > 7 }, -20},
		{func(s models.Snapshot) bool { return conditionContains(s, "rain") }, -40},
	},
	optimal: 80,
	caution: 50,
	advice: map[models.Status]string{
		models.StatusOptimal: "Soft, diffused light with texture in the sky.",
		models.StatusCaution: "Usable light; watch for flat or harsh contrast.",
		models.StatusDanger:  "Poor light. Protect gear or shoot another day.",
	},
}

var travel = scorer{
	label: LabelTravel,
	base:  100,
	adjustments: []adjustment{
		{func(s models.Snapshot) bool { return s.VisKm < 5 }, -50},
		{func(s models.Snapshot) bool { return s.WindKph > 40 }, -30},
		{func(s models.Snapshot) bool { return conditionContains(s, "storm", "heavy") }, -50},
	},
	optimal: 70,
	caution: 30,
	advice: map[models.Status]string{
		models.StatusOptimal: "Roads and rail should run normally.",
		models.StatusCaution: "Allow extra time; visibility or wind may slow traffic.",
		models.StatusDanger:  "Expect serious delays. Avoid non-essential trips.",
	},
}

var aviation = scorer{
	label: LabelAviation,
	base:  100,
	adjustments: []adjustment{
		{func(s models.Snapshot) bool { return s.WindKph > 30 }, -30},
		{func(s models.Snapshot) bool { return s.Cloud > 80 }, -30},
		{func(s models.Snapshot) bool { return s.VisKm < 5 }, -60},
	},
	optimal: 80,
	caution: 50,
	advice: map[models.Status]string{
		models.StatusOptimal: "VFR conditions likely.",
		models.StatusCaution: "Marginal conditions; check crosswind and ceilings.",
		models.StatusDanger:  "IFR conditions likely with turbulence risk.",
	},
}

func ScoreRunning(s models.Snapshot) models.DecisionInsight     { return running.score(s) }
func ScorePhotography(s models.Snapshot) models.DecisionInsight { return photography.score(s) }
func ScoreTravel(s models.Snapshot) models.DecisionInsight      { return travel.score(s) }
func ScoreAviation(s models.Snapshot) models.DecisionInsight    { return aviation.score(s) }

// Generate computes the explanation and all four insights for a snapshot.
func Generate(s models.Snapshot) models.Intelligence {
	return models.Intelligence{
		Explanation: Explain(s),
		Insights: models.Insights{
			Running:     ScoreRunning(s),
			Photography: ScorePhotography(s),
			Travel:      ScoreTravel(s),
			Aviation:    ScoreAviation(s),
		},
	}
}
