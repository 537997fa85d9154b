package protocol

import (
	"encoding/json"
	"strconv"
	"strings"
)

// BreakdownItem is the per-question entry of a SessionResult.
type BreakdownItem struct {
	Question string  `json:"question" yaml:"question"`
	Score    float64 `json:"score" yaml:"score"`
	Marks    string  `json:"marks,omitempty" yaml:"marks,omitempty"`
	Feedback string  `json:"feedback" yaml:"feedback"`
}

// SessionResult is the terminal interview summary.
type SessionResult struct {
	OverallScore   float64         `json:"overall_score" yaml:"overall_score"`
	Recommendation string          `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
	Breakdown      []BreakdownItem `json:"breakdown" yaml:"breakdown"`
	Strengths      []string        `json:"strengths" yaml:"strengths"`
	Weaknesses     []string        `json:"weaknesses" yaml:"weaknesses"`
}

// UnmarshalJSON accepts both `breakdown` and the backend's `evaluations` key.
func (r *SessionResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		OverallScore   float64         `json:"overall_score"`
		Recommendation string          `json:"recommendation"`
		Breakdown      []BreakdownItem `json:"breakdown"`
		Evaluations    []BreakdownItem `json:"evaluations"`
		Strengths      []string        `json:"strengths"`
		Weaknesses     []string        `json:"weaknesses"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	breakdown := raw.Breakdown
	if len(breakdown) == 0 {
		breakdown = raw.Evaluations
	}
	for i := range breakdown {
		if breakdown[i].Score == 0 && breakdown[i].Marks != "" {
			if score, ok := ParseMarks(breakdown[i].Marks); ok {
				breakdown[i].Score = score
			}
		}
	}

	*r = SessionResult{
		OverallScore:   raw.OverallScore,
		Recommendation: strings.TrimSpace(raw.Recommendation),
		Breakdown:      breakdown,
		Strengths:      raw.Strengths,
		Weaknesses:     raw.Weaknesses,
	}
	if r.Recommendation == "" {
		r.Recommendation = Recommendation(r.OverallScore)
	}
	return nil
}

// ParseMarks converts "7/10" or "7.5" style marks into a 0..10 score.
func ParseMarks(marks string) (float64, bool) {
	marks = strings.TrimSpace(marks)
	if marks == "" {
		return 0, false
	}

	num, den, hasDen := strings.Cut(marks, "/")
	value, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	if !hasDen {
		return clampScore(value), true
	}

	total, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || total <= 0 {
		return 0, false
	}
	return clampScore(value / total * 10), true
}

// Recommendation maps an overall 0..10 score onto the hiring tiers.
func Recommendation(score float64) string {
	switch {
	case score >= 7.5:
		return "STRONG HIRE"
	case score >= 7.0:
		return "HIRE"
	case score >= 5.0:
		return "CONSIDER"
	case score >= 3.0:
		return "HESITANT"
	default:
		return "NO HIRE"
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
