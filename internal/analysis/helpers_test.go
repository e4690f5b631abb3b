package analysis

import (
	"fmt"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

func intPtr(v int) *int {
	return &v
}

type answerSpec struct {
	questionID uint
	strand     string
	subStrand  string
	bloom      string
	grade      int
	score      *int
	text       string
}

func newSession(id uint, name string, specs ...answerSpec) *models.ExamSession {
	session := &models.ExamSession{ID: id, ExamID: 1, StudentID: id + 100, StudentName: name}
	for i, s := range specs {
		text := s.text
		if text == "" {
			text = fmt.Sprintf("answer %d", i)
		}
		session.Answers = append(session.Answers, models.ScoredAnswer{
			ID:          id*1000 + uint(i),
			SessionID:   id,
			QuestionID:  s.questionID,
			Description: text,
			Score:       s.score,
			Question: models.ExamQuestion{
				ID:         s.questionID,
				ExamID:     1,
				Grade:      s.grade,
				Strand:     s.strand,
				SubStrand:  s.subStrand,
				BloomSkill: s.bloom,
			},
		})
	}
	return session
}

// uniformSession answers questions 1..len(scores) in a single strand.
func uniformSession(id uint, name string, scores ...int) *models.ExamSession {
	specs := make([]answerSpec, len(scores))
	for i, s := range scores {
		specs[i] = answerSpec{
			questionID: uint(i + 1),
			strand:     "Mixtures",
			subStrand:  "Elements",
			bloom:      "Remember",
			grade:      7,
			score:      intPtr(s),
		}
	}
	return newSession(id, name, specs...)
}

func mustPerformance(session *models.ExamSession) *models.StudentPerformance {
	perf, skipped, err := BuildStudentPerformance(session, DefaultOptions())
	if err != nil || skipped {
		panic(fmt.Sprintf("session %d: skipped=%v err=%v", session.ID, skipped, err))
	}
	return perf
}

// perfWithSubStrands builds a performance holding one strand with the given
// sub-strand percentages.
func perfWithSubStrands(sessionID uint, avg float64, subs map[string]float64) *models.StudentPerformance {
	strand := models.StrandScore{Name: "Chemistry (G7)", Grade: 7, Percentage: avg}
	for name, pct := range subs {
		strand.SubStrands = append(strand.SubStrands, models.ScoreEntry{Name: name, Percentage: pct})
	}
	return &models.StudentPerformance{
		SessionID:           sessionID,
		StudentName:         fmt.Sprintf("student-%d", sessionID),
		AvgScore:            avg,
		AvgExpectationLevel: models.AverageExpectationLevel(avg),
		StrandScores:        []models.StrandScore{strand},
	}
}
