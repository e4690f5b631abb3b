package analysis

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

var ErrNoPerformances = errors.New("no student performances found")

// ClassSummary is the statistical part of a class aggregate. Narrative
// insights are added by the caller.
type ClassSummary struct {
	StudentCount                 int                     `json:"student_count"`
	AvgScore                     float64                 `json:"avg_score"`
	AvgExpectationLevel          models.ExpectationLevel `json:"avg_expectation_level"`
	ExpectationLevelDistribution []models.CountEntry     `json:"expectation_level_distribution"`
	ScoreDistribution            []models.CountEntry     `json:"score_distribution"`
	ScoreVariance                models.ScoreVariance    `json:"score_variance"`
	BloomSkillScores             []models.ScoreEntry     `json:"bloom_skill_scores"`
	GradeScores                  []models.ScoreEntry     `json:"grade_scores"`
}

// SummarizeClass aggregates every student performance of one exam.
func SummarizeClass(perfs []*models.StudentPerformance) (*ClassSummary, error) {
	if len(perfs) == 0 {
		return nil, ErrNoPerformances
	}

	scores := make([]float64, len(perfs))
	levels := newCounter()
	blooms := make([][]models.ScoreEntry, len(perfs))
	grades := make([][]models.ScoreEntry, len(perfs))
	for i, p := range perfs {
		scores[i] = p.AvgScore
		levels.add(string(p.AvgExpectationLevel))
		blooms[i] = p.BloomSkillScores
		grades[i] = p.GradeScores
	}

	avg := models.Percentage(mean(scores))
	return &ClassSummary{
		StudentCount:                 len(perfs),
		AvgScore:                     avg,
		AvgExpectationLevel:          models.AverageExpectationLevel(avg),
		ExpectationLevelDistribution: levels.entries(),
		ScoreDistribution:            ScoreHistogram(scores),
		ScoreVariance:                variance(scores),
		BloomSkillScores:             SortScores(MergeScoreLists(blooms...)),
		GradeScores:                  SortScores(MergeScoreLists(grades...)),
	}, nil
}

// ScoreHistogram buckets percentages into ten-point bins "0-9" to "90-99"
// plus a bin for exactly 100. Empty bins are omitted.
func ScoreHistogram(scores []float64) []models.CountEntry {
	var bins [11]int
	for _, s := range scores {
		idx := int(math.Floor(s)) / 10
		bins[max(0, min(idx, 10))]++
	}

	histogram := make([]models.CountEntry, 0, len(bins))
	for i, count := range bins {
		if count == 0 {
			continue
		}
		name := "100"
		if i < 10 {
			name = fmt.Sprintf("%d-%d", i*10, i*10+9)
		}
		histogram = append(histogram, models.CountEntry{Name: name, Count: count})
	}
	return histogram
}

// ClassAverageDifferences back-fills each student's distance from the class mean.
func ClassAverageDifferences(perfs []*models.StudentPerformance, classAvg float64) {
	for _, p := range perfs {
		p.ClassAvgDifference = models.Round2(p.AvgScore - classAvg)
	}
}

// counter counts names and keeps first-seen order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string) {
	if _, ok := c.counts[name]; !ok {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

func (c *counter) entries() []models.CountEntry {
	out := make([]models.CountEntry, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, models.CountEntry{Name: name, Count: c.counts[name]})
	}
	return out
}

// mostCommon returns up to n names by descending count, ties in first-seen order.
func (c *counter) mostCommon(n int) []string {
	ranked := make([]string, len(c.order))
	copy(ranked, c.order)
	slices.SortStableFunc(ranked, func(a, b string) int { return c.counts[b] - c.counts[a] })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
