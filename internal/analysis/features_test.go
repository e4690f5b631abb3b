package analysis

import (
	"testing"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFeatures(t *testing.T) {
	perfs := []*models.StudentPerformance{
		{
			SessionID:          1,
			AvgScore:           80,
			CompletionRate:     100,
			ClassAvgDifference: 10,
			BloomSkillScores:   []models.ScoreEntry{{Name: "Remember", Percentage: 90}},
			GradeScores:        []models.ScoreEntry{{Name: "7", Percentage: 80}},
			StrandScores: []models.StrandScore{{
				Name: "Mixtures (G7)", Percentage: 80,
				SubStrands: []models.ScoreEntry{{Name: "Acids", Percentage: 75}},
			}},
			Best5QuestionIDs:  []uint{10},
			Worst5QuestionIDs: []uint{2},
		},
		{
			SessionID:          2,
			AvgScore:           60,
			CompletionRate:     50,
			ClassAvgDifference: -10,
			BloomSkillScores:   []models.ScoreEntry{{Name: "Apply", Percentage: 40}},
			GradeScores:        []models.ScoreEntry{{Name: "7", Percentage: 60}},
			Best5QuestionIDs:   []uint{2},
			Worst5QuestionIDs:  []uint{10},
		},
	}

	features := ExtractFeatures(perfs)

	assert.Equal(t, []string{
		"avg_score", "completion_rate", "class_avg_difference",
		"Skill-Apply", "Skill-Remember",
		"Grade-7",
		"Strand-Mixtures (G7)",
		"SubStrand-Acids",
		"BestQ-10", "BestQ-2",
		"WorstQ-10", "WorstQ-2",
	}, features.Columns)
	assert.Equal(t, []uint{1, 2}, features.SessionIDs)
	require.Len(t, features.Rows, 2)
	assert.Equal(t, []float64{80, 100, 10, 0, 90, 80, 80, 75, 1, 0, 0, 1}, features.Rows[0])
	assert.Equal(t, []float64{60, 50, -10, 40, 0, 60, 0, 0, 0, 1, 1, 0}, features.Rows[1])
}

func TestExtractFeatures_Empty(t *testing.T) {
	features := ExtractFeatures(nil)

	assert.Equal(t, baseFeatures, features.Columns)
	assert.Empty(t, features.Rows)
}
