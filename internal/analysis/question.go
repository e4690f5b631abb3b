package analysis

import (
	"strconv"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"gorm.io/datatypes"
)

// BuildQuestionPerformances aggregates answers per question. Questions
// nobody answered are left out. Averages stay on the raw answer scale.
func BuildQuestionPerformances(questions []models.ExamQuestion, answers []models.ScoredAnswer) []*models.QuestionPerformance {
	byQuestion := make(map[uint][]*models.ScoredAnswer)
	for i := range answers {
		a := &answers[i]
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}

	perfs := make([]*models.QuestionPerformance, 0, len(questions))
	for _, q := range questions {
		qAnswers := byQuestion[q.ID]
		if len(qAnswers) == 0 {
			continue
		}

		var scores []float64
		levels := newCounter()
		byLevel := make(map[string][]uint)
		for _, a := range qAnswers {
			if a.Score != nil {
				scores = append(scores, float64(*a.Score))
			}
			level := string(a.ExpectationLevel())
			levels.add(level)
			byLevel[level] = append(byLevel[level], a.ID)
		}

		avg := models.Round2(mean(scores))
		level := models.ExpectationUnclassified
		if len(scores) > 0 {
			level = models.AnswerExpectationLevel(int(avg))
		}

		perfs = append(perfs, &models.QuestionPerformance{
			QuestionID:          q.ID,
			ExamID:              q.ExamID,
			AvgScore:            avg,
			AvgExpectationLevel: level,
			ScoreDistribution:   levels.entries(),
			AnswersByLevel:      datatypes.NewJSONType(byLevel),
		})
	}
	return perfs
}

// BuildQuestionAnalysis counts how a generated question set spreads over
// grades, bloom skills, strands and sub-strands.
func BuildQuestionAnalysis(examID uint, questions []models.ExamQuestion) *models.ExamQuestionAnalysis {
	grades, blooms, strands, subs := newCounter(), newCounter(), newCounter(), newCounter()
	for _, q := range questions {
		grades.add(strconv.Itoa(q.Grade))
		blooms.add(q.BloomSkill)
		strands.add(q.Strand)
		subs.add(q.SubStrand)
	}
	return &models.ExamQuestionAnalysis{
		ExamID:                 examID,
		QuestionCount:          len(questions),
		GradeDistribution:      grades.entries(),
		BloomSkillDistribution: blooms.entries(),
		StrandDistribution:     strands.entries(),
		SubStrandDistribution:  subs.entries(),
	}
}
