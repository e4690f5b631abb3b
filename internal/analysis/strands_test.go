package analysis

import (
	"fmt"
	"testing"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeStrands(t *testing.T) {
	perfs := []*models.StudentPerformance{
		mustPerformance(newSession(1, "Akinyi",
			answerSpec{questionID: 1, strand: "Mixtures", subStrand: "Elements", bloom: "Remember", grade: 7, score: intPtr(4)},
			answerSpec{questionID: 2, strand: "Mixtures", subStrand: "Acids", bloom: "Apply", grade: 7, score: intPtr(4)},
		)),
		mustPerformance(newSession(2, "Mwangi",
			answerSpec{questionID: 1, strand: "Mixtures", subStrand: "Elements", bloom: "Remember", grade: 7, score: intPtr(2)},
			answerSpec{questionID: 2, strand: "Mixtures", subStrand: "Acids", bloom: "Apply", grade: 7, score: intPtr(0)},
		)),
		mustPerformance(newSession(3, "Wanjiru",
			answerSpec{questionID: 1, strand: "Mixtures", subStrand: "Elements", bloom: "Remember", grade: 7, score: intPtr(4)},
			answerSpec{questionID: 2, strand: "Mixtures", subStrand: "Acids", bloom: "Apply", grade: 7, score: intPtr(2)},
		)),
	}

	analysis := AnalyzeStrands(perfs, DefaultOptions())

	require.Len(t, analysis, 1)
	strand := analysis[0]
	assert.Equal(t, "Mixtures (G7)", strand.Name)
	assert.Equal(t, 7, strand.Grade)
	assert.Equal(t, 66.67, strand.AvgScore)
	assert.Equal(t, models.ExpectationMeeting, strand.AvgExpectationLevel)
	assert.Equal(t, models.ScoreVariance{Min: 25, Max: 100, StdDev: 38.19}, strand.ScoreVariance)

	require.Len(t, strand.SubStrandScores, 2)
	assert.Equal(t, models.SubStrandComparison{
		Name: "Elements", Percentage: 83.33, Difference: 16.66, DifferenceDesc: "Above Strand Average",
	}, strand.SubStrandScores[0])
	assert.Equal(t, models.SubStrandComparison{
		Name: "Acids", Percentage: 50, Difference: -16.67, DifferenceDesc: "Below Strand Average",
	}, strand.SubStrandScores[1])

	assert.Equal(t, []models.ScoreEntry{
		{Name: "Remember", Percentage: 83.33},
		{Name: "Apply", Percentage: 50},
	}, strand.BloomSkillScores)

	require.Len(t, strand.TopStudents, 1)
	require.Len(t, strand.BottomStudents, 1)
	assert.Equal(t, "Akinyi", strand.TopStudents[0].StudentName)
	assert.Equal(t, 100.0, strand.TopStudents[0].AvgScore)
	assert.Equal(t, "Mwangi", strand.BottomStudents[0].StudentName)
	assert.Empty(t, strand.Insights)
	assert.Empty(t, strand.Suggestions)
}

func TestAnalyzeStrands_PercentileGroupSize(t *testing.T) {
	var perfs []*models.StudentPerformance
	for i := 0; i < 11; i++ {
		perfs = append(perfs, mustPerformance(uniformSession(uint(i+1), fmt.Sprintf("s%d", i), i%5)))
	}

	analysis := AnalyzeStrands(perfs, DefaultOptions())

	require.Len(t, analysis, 1)
	assert.Len(t, analysis[0].TopStudents, 2)
	assert.Len(t, analysis[0].BottomStudents, 2)
	assert.Equal(t, 100.0, analysis[0].TopStudents[0].AvgScore)
	assert.Equal(t, 0.0, analysis[0].BottomStudents[1].AvgScore)
}

func TestDifferenceDescription(t *testing.T) {
	assert.Equal(t, "Above Strand Average", differenceDescription(0.01))
	assert.Equal(t, "Below Strand Average", differenceDescription(-3))
	assert.Equal(t, "Equal to Strand Average", differenceDescription(0))
}

func TestBuildStrandStudentMastery(t *testing.T) {
	var perfs []*models.StudentPerformance
	for i := 0; i < 10; i++ {
		perf := &models.StudentPerformance{
			SessionID:   uint(i + 1),
			StudentName: fmt.Sprintf("student-%d", i),
			AvgScore:    float64(100 - i*10),
			StrandScores: []models.StrandScore{
				{Name: "Energy (G7)", Percentage: float64(100 - i*10)},
			},
		}
		if i == 9 {
			perf.StrandScores = append(perf.StrandScores, models.StrandScore{Name: "Forces (G7)", Percentage: 12.346})
		}
		perfs = append(perfs, perf)
	}

	mastery := BuildStrandStudentMastery(perfs, DefaultOptions())

	assert.Equal(t, []string{"Energy (G7)", "Forces (G7)"}, mastery.Strands)
	require.Len(t, mastery.Students, 3)
	assert.Equal(t, models.MasteryRow{Name: "student-0", Scores: []float64{100, 0}}, mastery.Students[0])
	assert.Equal(t, models.MasteryRow{Name: "student-4", Scores: []float64{60, 0}}, mastery.Students[1])
	assert.Equal(t, models.MasteryRow{Name: "student-9", Scores: []float64{10, 12.35}}, mastery.Students[2])
}

func TestBuildStrandStudentMastery_SmallClassHasNoMiddleGroup(t *testing.T) {
	perfs := scenarioPerformances()[:2]

	mastery := BuildStrandStudentMastery(perfs, DefaultOptions())

	require.Len(t, mastery.Students, 2)
	assert.Equal(t, "Akinyi", mastery.Students[0].Name)
	assert.Equal(t, "Mwangi", mastery.Students[1].Name)
}

func TestBuildStrandStudentMastery_Empty(t *testing.T) {
	mastery := BuildStrandStudentMastery(nil, DefaultOptions())

	assert.Empty(t, mastery.Strands)
	assert.Empty(t, mastery.Students)
}
