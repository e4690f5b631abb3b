package analysis

import (
	"math"
	"sort"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

// percentileCount is ceil(n*p) with a floor of one.
func percentileCount(n int, p float64) int {
	return max(1, int(math.Ceil(float64(n)*p)))
}

type strandAccumulator struct {
	grade    int
	scores   []float64
	students []models.StrandStudent
	subs     *ScoreGroups
	blooms   *ScoreGroups
}

// AnalyzeStrands computes the per-strand class breakdown. Insights and
// suggestions are left empty for the caller to attach.
func AnalyzeStrands(perfs []*models.StudentPerformance, opts Options) []models.StrandAnalysis {
	opts = opts.Normalize()

	var order []string
	strands := make(map[string]*strandAccumulator)
	for _, p := range perfs {
		for _, s := range p.StrandScores {
			acc, ok := strands[s.Name]
			if !ok {
				acc = &strandAccumulator{subs: NewScoreGroups(), blooms: NewScoreGroups()}
				strands[s.Name] = acc
				order = append(order, s.Name)
			}
			acc.grade = s.Grade
			acc.scores = append(acc.scores, s.Percentage)
			acc.students = append(acc.students, models.StrandStudent{
				StudentID:           p.StudentID,
				StudentName:         p.StudentName,
				SessionID:           p.SessionID,
				ExamID:              p.ExamID,
				AvgScore:            s.Percentage,
				AvgExpectationLevel: p.AvgExpectationLevel,
			})
			for _, sub := range s.SubStrands {
				acc.subs.Add(sub.Name, sub.Percentage)
			}
			for _, skill := range s.BloomSkills {
				acc.blooms.Add(skill.Name, skill.Percentage)
			}
		}
	}

	analysis := make([]models.StrandAnalysis, 0, len(order))
	for _, name := range order {
		acc := strands[name]
		avg := models.Percentage(mean(acc.scores))

		ranked := make([]models.StrandStudent, len(acc.students))
		copy(ranked, acc.students)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].AvgScore > ranked[j].AvgScore
		})
		groupSize := min(percentileCount(len(ranked), opts.Percentile), len(ranked))

		subs := make([]models.SubStrandComparison, 0, acc.subs.Len())
		for _, sub := range acc.subs.Names() {
			pct := models.Percentage(mean(acc.subs.Values(sub)))
			diff := models.Round2(pct - avg)
			subs = append(subs, models.SubStrandComparison{
				Name:           sub,
				Percentage:     pct,
				Difference:     diff,
				DifferenceDesc: differenceDescription(diff),
			})
		}
		sort.SliceStable(subs, func(i, j int) bool {
			return subs[i].Percentage > subs[j].Percentage
		})

		blooms := make([]models.ScoreEntry, 0, acc.blooms.Len())
		for _, skill := range acc.blooms.Names() {
			blooms = append(blooms, models.NewScoreEntry(skill, mean(acc.blooms.Values(skill))))
		}

		analysis = append(analysis, models.StrandAnalysis{
			Name:                name,
			Grade:               acc.grade,
			AvgScore:            avg,
			AvgExpectationLevel: models.AverageExpectationLevel(avg),
			BloomSkillScores:    SortScores(blooms),
			ScoreVariance:       variance(acc.scores),
			SubStrandScores:     subs,
			TopStudents:         ranked[:groupSize],
			BottomStudents:      ranked[len(ranked)-groupSize:],
			Insights:            []string{},
			Suggestions:         []string{},
		})
	}
	return analysis
}

func differenceDescription(diff float64) string {
	switch {
	case diff > 0:
		return "Above Strand Average"
	case diff < 0:
		return "Below Strand Average"
	default:
		return "Equal to Strand Average"
	}
}

// BuildStrandStudentMastery tabulates strand scores for the top, middle and
// bottom percentile groups ranked by overall average. The middle group only
// exists once the class holds three full groups.
func BuildStrandStudentMastery(perfs []*models.StudentPerformance, opts Options) models.StrandStudentMastery {
	opts = opts.Normalize()
	mastery := models.StrandStudentMastery{Strands: []string{}, Students: []models.MasteryRow{}}
	if len(perfs) == 0 {
		return mastery
	}

	ranked := make([]*models.StudentPerformance, len(perfs))
	copy(ranked, perfs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AvgScore > ranked[j].AvgScore
	})

	n := len(ranked)
	groupSize := percentileCount(n, opts.Percentile)
	selected := make([]*models.StudentPerformance, 0, 3*groupSize)
	selected = append(selected, ranked[:min(groupSize, n)]...)
	if n >= 3*groupSize {
		start := (n - 2*groupSize) / 2
		selected = append(selected, ranked[start:start+groupSize]...)
	}
	selected = append(selected, ranked[max(0, n-groupSize):]...)

	seen := make(map[string]bool)
	for _, p := range selected {
		for _, s := range p.StrandScores {
			if !seen[s.Name] {
				seen[s.Name] = true
				mastery.Strands = append(mastery.Strands, s.Name)
			}
		}
	}

	for _, p := range selected {
		lookup := make(map[string]float64, len(p.StrandScores))
		for _, s := range p.StrandScores {
			lookup[s.Name] = s.Percentage
		}
		row := models.MasteryRow{Name: p.StudentName, Scores: make([]float64, len(mastery.Strands))}
		for i, strand := range mastery.Strands {
			row.Scores[i] = models.Round2(lookup[strand])
		}
		mastery.Students = append(mastery.Students, row)
	}
	return mastery
}
