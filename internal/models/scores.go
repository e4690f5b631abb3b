package models

import "math"

type ExpectationLevel string

const (
	ExpectationBelow       ExpectationLevel = "Below"
	ExpectationApproaching ExpectationLevel = "Approaching"
	ExpectationMeeting     ExpectationLevel = "Meeting"
	ExpectationExceeding   ExpectationLevel = "Exceeding"

	// ExpectationUnclassified marks an answer that has not been graded.
	ExpectationUnclassified ExpectationLevel = "Unclassified"
)

// AnswerExpectationLevel bands a raw 0-4 answer score.
func AnswerExpectationLevel(score int) ExpectationLevel {
	switch {
	case score <= 1:
		return ExpectationBelow
	case score == 2:
		return ExpectationApproaching
	case score == 3:
		return ExpectationMeeting
	default:
		return ExpectationExceeding
	}
}

// AverageExpectationLevel bands a percentage. The thresholds differ from the
// per-answer banding.
func AverageExpectationLevel(percentage float64) ExpectationLevel {
	switch {
	case percentage >= 80:
		return ExpectationExceeding
	case percentage >= 60:
		return ExpectationMeeting
	case percentage >= 40:
		return ExpectationApproaching
	default:
		return ExpectationBelow
	}
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percentage clamps to [0,100] and rounds to two decimals.
func Percentage(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Round2(math.Max(0, math.Min(100, v)))
}

// ScoreEntry is one named percentage in a ranked breakdown.
type ScoreEntry struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

func NewScoreEntry(name string, percentage float64) ScoreEntry {
	return ScoreEntry{Name: name, Percentage: Percentage(percentage)}
}

// StrandScore is a strand breakdown with its nested sub-strand and bloom skill rankings.
type StrandScore struct {
	Name        string       `json:"name"`
	Grade       int          `json:"grade"`
	Percentage  float64      `json:"percentage"`
	SubStrands  []ScoreEntry `json:"sub_strands"`
	BloomSkills []ScoreEntry `json:"bloom_skills"`
}

type ScoreVariance struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ScoreLookup indexes a breakdown by name.
func ScoreLookup(entries []ScoreEntry) map[string]float64 {
	lookup := make(map[string]float64, len(entries))
	for _, e := range entries {
		lookup[e.Name] = e.Percentage
	}
	return lookup
}
