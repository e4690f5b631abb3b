package analysis

import (
	"testing"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStudentPerformance(t *testing.T) {
	session := newSession(1, "Akinyi",
		answerSpec{questionID: 11, strand: "Mixtures", subStrand: "Elements", bloom: "Remember", grade: 7, score: intPtr(4)},
		answerSpec{questionID: 12, strand: "Mixtures", subStrand: "Acids", bloom: "Apply", grade: 7, score: intPtr(2)},
		answerSpec{questionID: 13, strand: "Forces", subStrand: "Friction", bloom: "Remember", grade: 8, score: intPtr(1)},
		answerSpec{questionID: 14, strand: "Forces", subStrand: "Friction", bloom: "Apply", grade: 8, score: nil, text: "  "},
	)

	perf, skipped, err := BuildStudentPerformance(session, DefaultOptions())

	require.NoError(t, err)
	require.False(t, skipped)
	assert.Equal(t, uint(1), perf.SessionID)
	assert.Equal(t, "Akinyi", perf.StudentName)
	assert.Equal(t, 58.33, perf.AvgScore)
	assert.Equal(t, models.ExpectationApproaching, perf.AvgExpectationLevel)
	assert.Equal(t, 3, perf.QuestionsAnswered)
	assert.Equal(t, 1, perf.QuestionsUnanswered)
	assert.Equal(t, 75.0, perf.CompletionRate)

	assert.Equal(t, []models.ScoreEntry{
		{Name: "Remember", Percentage: 62.5},
		{Name: "Apply", Percentage: 50},
	}, []models.ScoreEntry(perf.BloomSkillScores))
	assert.Equal(t, []models.ScoreEntry{
		{Name: "7", Percentage: 75},
		{Name: "8", Percentage: 25},
	}, []models.ScoreEntry(perf.GradeScores))

	require.Len(t, perf.StrandScores, 2)
	mixtures := perf.StrandScores[0]
	assert.Equal(t, "Mixtures (G7)", mixtures.Name)
	assert.Equal(t, 7, mixtures.Grade)
	assert.Equal(t, 75.0, mixtures.Percentage)
	assert.Equal(t, []models.ScoreEntry{
		{Name: "Elements", Percentage: 100},
		{Name: "Acids", Percentage: 50},
	}, mixtures.SubStrands)
	assert.Equal(t, "Forces (G8)", perf.StrandScores[1].Name)
	assert.Equal(t, 25.0, perf.StrandScores[1].Percentage)

	assert.Equal(t, []uint{11, 12, 13}, []uint(perf.Best5QuestionIDs))
	assert.Equal(t, []uint{13, 12, 11}, []uint(perf.Worst5QuestionIDs))
}

func TestBuildStudentPerformance_SplitsStrandByGrade(t *testing.T) {
	session := newSession(2, "Mwangi",
		answerSpec{questionID: 1, strand: "Energy", subStrand: "Heat", bloom: "Remember", grade: 7, score: intPtr(4)},
		answerSpec{questionID: 2, strand: "Energy", subStrand: "Heat", bloom: "Remember", grade: 8, score: intPtr(0)},
	)

	perf := mustPerformance(session)

	require.Len(t, perf.StrandScores, 2)
	assert.Equal(t, "Energy (G7)", perf.StrandScores[0].Name)
	assert.Equal(t, 100.0, perf.StrandScores[0].Percentage)
	assert.Equal(t, "Energy (G8)", perf.StrandScores[1].Name)
	assert.Equal(t, 0.0, perf.StrandScores[1].Percentage)
}

func TestBuildStudentPerformance_NoAnswersIsSkipped(t *testing.T) {
	perf, skipped, err := BuildStudentPerformance(newSession(3, "Empty"), DefaultOptions())

	assert.NoError(t, err)
	assert.True(t, skipped)
	assert.Nil(t, perf)
}

func TestBuildStudentPerformance_NoScoredAnswersFails(t *testing.T) {
	session := newSession(4, "Ungraded",
		answerSpec{questionID: 1, strand: "Energy", grade: 7},
		answerSpec{questionID: 2, strand: "Energy", grade: 7},
	)

	perf, skipped, err := BuildStudentPerformance(session, DefaultOptions())

	assert.ErrorIs(t, err, ErrNoScoredAnswers)
	assert.EqualError(t, err, "Missing total possible score")
	assert.False(t, skipped)
	assert.Nil(t, perf)
}

func TestBuildStudentPerformance_CompletionInvariant(t *testing.T) {
	cases := []struct {
		name     string
		texts    []string
		expected float64
	}{
		{name: "all answered", texts: []string{"a", "b", "c"}, expected: 100},
		{name: "one blank", texts: []string{"a", " ", "c"}, expected: 66.67},
		{name: "whitespace only", texts: []string{"\t", "\n", "x"}, expected: 33.33},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			specs := make([]answerSpec, len(tc.texts))
			for i, text := range tc.texts {
				specs[i] = answerSpec{questionID: uint(i + 1), strand: "S", grade: 7, score: intPtr(2), text: text}
			}
			perf := mustPerformance(newSession(5, "Case", specs...))

			assert.Equal(t, len(tc.texts), perf.QuestionsAnswered+perf.QuestionsUnanswered)
			assert.Equal(t, tc.expected, perf.CompletionRate)
		})
	}
}

func TestBuildStudentPerformance_BestAndWorstNeverOverlap(t *testing.T) {
	scoreSets := [][]int{
		{2, 2, 2, 2, 2, 2, 2, 2, 2, 2},
		{4, 0, 3, 1, 2, 4, 0, 3, 1, 2, 4},
		{0, 0, 0, 0, 0, 4, 4, 4, 4, 4, 4, 4},
	}

	for _, scores := range scoreSets {
		perf := mustPerformance(uniformSession(6, "Ties", scores...))

		require.Len(t, perf.Best5QuestionIDs, 5)
		require.Len(t, perf.Worst5QuestionIDs, 5)
		for _, id := range perf.Best5QuestionIDs {
			assert.NotContains(t, []uint(perf.Worst5QuestionIDs), id)
		}
	}
}

func TestBuildStudentPerformance_BestTiesKeepAnswerOrder(t *testing.T) {
	perf := mustPerformance(uniformSession(7, "Order", 3, 4, 4, 1, 4, 0))

	assert.Equal(t, []uint{2, 3, 5, 1, 4}, []uint(perf.Best5QuestionIDs))
	assert.Equal(t, []uint{6, 4, 1, 3, 5}, []uint(perf.Worst5QuestionIDs))
}

func TestBuildStudentPerformance_WorstTiesKeepAnswerOrder(t *testing.T) {
	perf := mustPerformance(uniformSession(8, "Level", 2, 2, 2, 2, 2, 2))

	assert.Equal(t, []uint{1, 2, 3, 4, 5}, []uint(perf.Best5QuestionIDs))
	assert.Equal(t, []uint{2, 3, 4, 5, 6}, []uint(perf.Worst5QuestionIDs))
}

func TestStrandName(t *testing.T) {
	assert.Equal(t, "Mixtures (G7)", StrandName("Mixtures", 7))
	assert.Equal(t, "Mixtures", StrandName("Mixtures", 0))
}
