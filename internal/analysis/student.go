package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

// ErrNoScoredAnswers marks a session whose answers carry no score at all.
var ErrNoScoredAnswers = errors.New("Missing total possible score")

type strandKey struct {
	strand string
	grade  int
}

// StrandName labels a strand with the grade its questions target.
func StrandName(strand string, grade int) string {
	if grade == 0 {
		return strand
	}
	return fmt.Sprintf("%s (G%d)", strand, grade)
}

type scoredQuestion struct {
	questionID uint
	score      int
}

// BuildStudentPerformance derives one session's performance record. A
// session without answers is skipped and returns (nil, true, nil). Answers
// must carry their question snapshot.
func BuildStudentPerformance(session *models.ExamSession, opts Options) (*models.StudentPerformance, bool, error) {
	opts = opts.Normalize()
	if len(session.Answers) == 0 {
		return nil, true, nil
	}

	bloom := NewScoreGroups()
	grades := NewScoreGroups()

	var strandOrder []strandKey
	strandTotals := make(map[strandKey]*ScoreGroups)
	strandSubs := make(map[strandKey]*ScoreGroups)
	strandBlooms := make(map[strandKey]*ScoreGroups)

	var (
		totalScore int
		scored     []scoredQuestion
		answered   int
	)

	for i := range session.Answers {
		answer := &session.Answers[i]
		if !answer.IsBlank() {
			answered++
		}
		if answer.Score == nil {
			continue
		}

		score := *answer.Score
		q := answer.Question
		totalScore += score
		scored = append(scored, scoredQuestion{questionID: answer.QuestionID, score: score})

		bloom.Add(q.BloomSkill, float64(score))
		grades.Add(strconv.Itoa(q.Grade), float64(score))

		key := strandKey{strand: q.Strand, grade: q.Grade}
		if _, ok := strandTotals[key]; !ok {
			strandOrder = append(strandOrder, key)
			strandTotals[key] = NewScoreGroups()
			strandSubs[key] = NewScoreGroups()
			strandBlooms[key] = NewScoreGroups()
		}
		strandTotals[key].Add(q.Strand, float64(score))
		strandSubs[key].Add(q.SubStrand, float64(score))
		strandBlooms[key].Add(q.BloomSkill, float64(score))
	}

	if len(scored) == 0 {
		return nil, false, ErrNoScoredAnswers
	}

	total := len(session.Answers)
	strands := make([]models.StrandScore, 0, len(strandOrder))
	for _, key := range strandOrder {
		strands = append(strands, models.StrandScore{
			Name:        StrandName(key.strand, key.grade),
			Grade:       key.grade,
			Percentage:  models.Percentage(scorePercentage(strandTotals[key].Values(key.strand), opts.ScoreScale)),
			SubStrands:  FormatScores(strandSubs[key], opts.ScoreScale),
			BloomSkills: FormatScores(strandBlooms[key], opts.ScoreScale),
		})
	}

	best, worst := rankQuestions(scored, opts.TopQuestions)
	avg := models.Percentage(float64(totalScore) / float64(len(scored)*opts.ScoreScale) * 100)

	return &models.StudentPerformance{
		SessionID:           session.ID,
		ExamID:              session.ExamID,
		StudentID:           session.StudentID,
		StudentName:         session.StudentName,
		AvgScore:            avg,
		AvgExpectationLevel: models.AverageExpectationLevel(avg),
		BloomSkillScores:    FormatScores(bloom, opts.ScoreScale),
		GradeScores:         FormatScores(grades, opts.ScoreScale),
		StrandScores:        strands,
		QuestionsAnswered:   answered,
		QuestionsUnanswered: total - answered,
		CompletionRate:      models.Round2(float64(answered) / float64(total) * 100),
		Best5QuestionIDs:    best,
		Worst5QuestionIDs:   worst,
	}, false, nil
}

// rankQuestions orders scored questions descending with ties in answer
// order. Best reads from the head. Worst takes the tail positions and lists
// them ascending, again with ties in answer order, so the two lists never
// share an answer when there are at least 2n of them.
func rankQuestions(scored []scoredQuestion, n int) (best, worst []uint) {
	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scored[order[i]].score > scored[order[j]].score
	})

	count := min(n, len(order))
	best = make([]uint, 0, count)
	for _, idx := range order[:count] {
		best = append(best, scored[idx].questionID)
	}

	tail := append([]int(nil), order[len(order)-count:]...)
	sort.Slice(tail, func(i, j int) bool {
		a, b := scored[tail[i]], scored[tail[j]]
		if a.score != b.score {
			return a.score < b.score
		}
		return tail[i] < tail[j]
	})
	worst = make([]uint, 0, count)
	for _, idx := range tail {
		worst = append(worst, scored[idx].questionID)
	}
	return best, worst
}
