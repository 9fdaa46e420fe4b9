package models

import "time"

// Status classifies an activity score.
type Status string

const (
	StatusOptimal Status = "OPTIMAL"
	StatusCaution Status = "CAUTION"
	StatusDanger  Status = "DANGER"
)

// Snapshot is a single point-in-time observation used as input to the intelligence engine.
type Snapshot struct {
	TempC     float64
	Humidity  float64
	WindKph   float64
	VisKm     float64
	Cloud     float64
	UV        float64
	Condition string
	Timestamp time.Time
}

// SnapshotFrom derives the engine input from current conditions.
func SnapshotFrom(c CurrentConditions) Snapshot {
	s := Snapshot{
		TempC:     c.TempC,
		Humidity:  c.Humidity,
		WindKph:   c.WindKph,
		VisKm:     c.VisKm,
		Cloud:     c.Cloud,
		UV:        c.UV,
		Condition: c.Condition.Text,
	}
	if c.LastUpdatedEpoch > 0 {
		s.Timestamp = time.Unix(c.LastUpdatedEpoch, 0).UTC()
	}
	return s
}

type CauseEffect struct {
	Cause  string `json:"cause"`
	Effect string `json:"effect"`
}

type Explanation struct {
	Headline    string      `json:"headline"`
	Reasoning   string      `json:"reasoning"`
	CauseEffect CauseEffect `json:"cause_effect"`
}

type DecisionInsight struct {
	Label  string `json:"label"`
	Score  int    `json:"score"`
	Status Status `json:"status"`
	Advice string `json:"advice"`
}

type Insights struct {
	Running     DecisionInsight `json:"running"`
	Photography DecisionInsight `json:"photography"`
	Travel      DecisionInsight `json:"travel"`
	Aviation    DecisionInsight `json:"aviation"`
}

type Intelligence struct {
	Explanation Explanation `json:"explanation"`
	Insights    Insights    `json:"insights"`
}
