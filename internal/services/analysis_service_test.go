package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	"github.com/SAP-F-2025/exam-analysis-service/internal/events"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyse(t *testing.T, h *harness, examID uint) *models.Exam {
	t.Helper()
	_, err := h.svc.TriggerAnalysis(t.Context(), examID)
	require.NoError(t, err)
	h.drain(t)
	return h.exam(t, examID)
}

func TestAnalysis_ThreeStudentScenario(t *testing.T) {
	h := newHarness(t)
	exam, sessions := h.seedScenario(t, models.ExamStatusComplete)

	exam = analyse(t, h, exam.ID)
	require.Equal(t, models.ExamStatusComplete, exam.Status, exam.ErrorMessage())
	assert.Empty(t, exam.AnalysisWarnings)

	class, err := h.repo.Performances().GetClassPerformance(t.Context(), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, class.StudentCount)
	assert.Equal(t, 54.17, class.AvgScore)
	assert.Equal(t, exam.ClassroomID, class.ClassroomID)
	assert.ElementsMatch(t, []models.CountEntry{
		{Name: "100", Count: 1},
		{Name: "0-9", Count: 1},
		{Name: "60-69", Count: 1},
	}, []models.CountEntry(class.ScoreDistribution))
	assert.JSONEq(t, `[{"insight":"The class is approaching expectations"}]`, string(class.GeneralInsights))
	require.Len(t, class.StrandAnalysis, 1)
	assert.Equal(t, "Mixtures (G7)", class.StrandAnalysis[0].Name)
	assert.Equal(t, []string{"Mixtures (G7) needs attention"}, class.StrandAnalysis[0].Insights)
	assert.Zero(t, h.generator.callCount(generation.TaskCorrelationInsights), "nothing flagged")

	perfs, err := h.repo.Performances().ListStudentPerformances(t.Context(), exam.ID)
	require.NoError(t, err)
	require.Len(t, perfs, 3)
	diffs := map[uint]float64{}
	for _, p := range perfs {
		diffs[p.SessionID] = p.ClassAvgDifference
	}
	assert.Equal(t, 45.83, diffs[sessions[0].ID])
	assert.Equal(t, -54.17, diffs[sessions[1].ID])
	assert.Equal(t, 8.33, diffs[sessions[2].ID])

	questionPerfs, err := h.repo.Performances().ListQuestionPerformances(t.Context(), exam.ID)
	require.NoError(t, err)
	assert.Len(t, questionPerfs, 4)

	clusters, err := h.repo.Clusters().ListByExam(t.Context(), exam.ID)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)
	members := 0
	for _, cluster := range clusters {
		members += cluster.ClusterSize
		require.NotNil(t, cluster.FollowUpExamID)

		followUp := h.exam(t, *cluster.FollowUpExamID)
		assert.Equal(t, models.ExamTypeFollowUp, followUp.Type)
		assert.Equal(t, models.ExamStatusComplete, followUp.Status)
		assert.Equal(t, exam.ID, *followUp.SourceExamID)
		assert.Equal(t, cluster.ID, *followUp.PerformanceClusterID)
		assert.Equal(t, exam.ClassroomID, followUp.ClassroomID)
		assert.Equal(t, exam.EndDateTime, followUp.EndDateTime)

		questions, err := h.repo.Questions().ListByExam(t.Context(), followUp.ID)
		require.NoError(t, err)
		require.Len(t, questions, 2)
		assert.Equal(t, 1, questions[0].Number)
		assert.Equal(t, "Define a solute.", questions[0].Description)
		assert.Equal(t, 2, questions[1].Number)
	}
	assert.Equal(t, 3, members)
	assert.Equal(t, len(clusters), h.generator.callCount(generation.TaskFollowUpQuiz))

	followUpEvents := 0
	for _, e := range h.publisher.GetPublishedEvents() {
		if e.Type == events.EventFollowUpCreated {
			followUpEvents++
		}
	}
	assert.Equal(t, len(clusters), followUpEvents)
}

func TestAnalysis_RerunReplacesClustersAndFollowUps(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedScenario(t, models.ExamStatusComplete)

	analyse(t, h, exam.ID)
	first, err := h.repo.Clusters().ListByExam(t.Context(), exam.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	exam = analyse(t, h, exam.ID)
	require.Equal(t, models.ExamStatusComplete, exam.Status, exam.ErrorMessage())

	second, err := h.repo.Clusters().ListByExam(t.Context(), exam.ID)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.NotEqual(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].ClusterLabel, second[i].ClusterLabel)
		assert.Equal(t, first[i].StudentSessionIDs, second[i].StudentSessionIDs, "clustering is deterministic")

		_, err := h.repo.Exams().GetByID(t.Context(), *first[i].FollowUpExamID)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		_, err = h.repo.Clusters().GetByID(t.Context(), first[i].ID)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	}

	followUps, err := h.repo.Exams().ListFollowUps(t.Context(), exam.ID)
	require.NoError(t, err)
	assert.Len(t, followUps, len(second))
}

func TestAnalysis_FailurePolicies(t *testing.T) {
	seed := func(h *harness) (*models.Exam, []models.ExamSession) {
		exam, questions := h.seedExam(t, models.ExamStatusComplete)
		sessions := []models.ExamSession{
			h.addScoredSession(exam.ID, questions, 101, 4, 4, 4, 4),
			h.addAnsweredSession(exam.ID, questions, 102, "unmarked", "unmarked"),
			h.addScoredSession(exam.ID, questions, 103, 0, 0, 0, 0),
			h.addAnsweredSession(exam.ID, questions, 104, "unmarked"),
			h.addScoredSession(exam.ID, questions, 105, 2, 3, 4, 1),
			h.addAnsweredSession(exam.ID, questions, 106),
		}
		return exam, sessions
	}
	reason := func(id uint) string {
		return fmt.Sprintf(`{"id":%d,"reason":"Missing total possible score"}`, id)
	}

	t.Run("strict", func(t *testing.T) {
		h := newHarness(t)
		exam, sessions := seed(h)

		exam = analyse(t, h, exam.ID)

		assert.Equal(t, models.ExamStatusFailed, exam.Status)
		assert.Equal(t, models.StageAnalysis, exam.FailedStage)
		assert.Equal(t, "Some updates failed | Sessions: ["+reason(sessions[1].ID)+","+reason(sessions[3].ID)+"]", exam.ErrorMessage())
		perfs, err := h.repo.Performances().ListStudentPerformances(t.Context(), exam.ID)
		require.NoError(t, err)
		assert.Empty(t, perfs)
	})

	t.Run("fail fast", func(t *testing.T) {
		h := newHarness(t, func(c *config.PipelineConfig) { c.FailurePolicy = models.FailurePolicyFailFast })
		exam, sessions := seed(h)

		exam = analyse(t, h, exam.ID)

		assert.Equal(t, models.ExamStatusFailed, exam.Status)
		assert.Equal(t, "Some updates failed | Sessions: ["+reason(sessions[1].ID)+"]", exam.ErrorMessage())
	})

	t.Run("isolate", func(t *testing.T) {
		h := newHarness(t, func(c *config.PipelineConfig) { c.FailurePolicy = models.FailurePolicyIsolate })
		exam, sessions := seed(h)

		exam = analyse(t, h, exam.ID)

		require.Equal(t, models.ExamStatusComplete, exam.Status, exam.ErrorMessage())
		assert.Equal(t, []string{"Skipped 2 sessions: [" + reason(sessions[1].ID) + "," + reason(sessions[3].ID) + "]"}, []string(exam.AnalysisWarnings))

		class, err := h.repo.Performances().GetClassPerformance(t.Context(), exam.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, class.StudentCount, "unscored and empty sessions are excluded")
		assert.Equal(t, 54.17, class.AvgScore)
	})
}

func TestAnalysis_NoSessions(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedExam(t, models.ExamStatusComplete)

	exam = analyse(t, h, exam.ID)

	assert.Equal(t, models.ExamStatusFailed, exam.Status)
	assert.Equal(t, fmt.Sprintf("No student sessions found for exam %d", exam.ID), exam.ErrorMessage())
}

func TestAnalysis_SingleStudentHasNoClusters(t *testing.T) {
	h := newHarness(t)
	exam, questions := h.seedExam(t, models.ExamStatusComplete)
	h.addScoredSession(exam.ID, questions, 101, 3, 2, 4, 1)

	exam = analyse(t, h, exam.ID)

	require.Equal(t, models.ExamStatusComplete, exam.Status, exam.ErrorMessage())
	clusters, err := h.repo.Clusters().ListByExam(t.Context(), exam.ID)
	require.NoError(t, err)
	assert.Empty(t, clusters)
	assert.Zero(t, h.generator.callCount(generation.TaskFollowUpQuiz))
}

func TestAnalysis_FollowUpFailuresAreCollected(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedScenario(t, models.ExamStatusComplete)
	h.generator.set(func(g *scriptedGenerator) {
		g.failOn[generation.TaskFollowUpQuiz] = "Cluster data is incomplete"
	})

	exam = analyse(t, h, exam.ID)

	assert.Equal(t, models.ExamStatusFailed, exam.Status)
	assert.Contains(t, exam.ErrorMessage(), "Some updates failed | Clusters: [")
	assert.Contains(t, exam.ErrorMessage(), `"reason":"Cluster data is incomplete"`)

	clusters, err := h.repo.Clusters().ListByExam(t.Context(), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, len(clusters), h.generator.callCount(generation.TaskFollowUpQuiz), "every cluster is attempted")
}

func TestAnalysis_RecordsSessionTiming(t *testing.T) {
	h := newHarness(t)
	exam, _ := h.seedScenario(t, models.ExamStatusComplete)
	questions, err := h.repo.Questions().ListByExam(t.Context(), exam.ID)
	require.NoError(t, err)

	end := exam.EndDateTime.Add(10 * time.Minute)
	late := models.ExamSession{
		ExamID:        exam.ID,
		StudentID:     104,
		StudentName:   "Student 104",
		StartDateTime: exam.StartDateTime,
		EndDateTime:   &end,
	}
	for i := range questions {
		score := 3
		late.Answers = append(late.Answers, models.ScoredAnswer{QuestionID: questions[i].ID, Description: "answer", Score: &score})
	}
	late = h.store.AddSession(late)

	exam = analyse(t, h, exam.ID)
	require.Equal(t, models.ExamStatusComplete, exam.Status, exam.ErrorMessage())

	perfs, err := h.repo.Performances().ListStudentPerformances(t.Context(), exam.ID)
	require.NoError(t, err)
	require.Len(t, perfs, 4)
	for _, p := range perfs {
		assert.Equal(t, 4, p.TotalQuestions())
		if p.SessionID == late.ID {
			assert.Equal(t, 50, p.DurationMin)
			assert.True(t, p.IsLateSubmission)
			continue
		}
		assert.Zero(t, p.DurationMin, "unfinished sessions")
		assert.False(t, p.IsLateSubmission)
	}
}
