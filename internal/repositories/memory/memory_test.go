package memory

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsCarryQuestionSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewRepository(store)

	exam := &models.Exam{
		Status: models.ExamStatusUpcoming,
		Questions: []models.ExamQuestion{
			{Number: 1, Strand: "Mixtures", SubStrand: "Solutions", BloomSkill: "Remembering", Grade: 7},
			{Number: 2, Strand: "Mixtures", SubStrand: "Separation", BloomSkill: "Applying", Grade: 7},
		},
	}
	require.NoError(t, repo.Exams().Create(ctx, exam))

	questions, err := repo.Questions().ListByExam(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	score := 3
	session := store.AddSession(models.ExamSession{
		ExamID: exam.ID,
		Answers: []models.ScoredAnswer{
			{QuestionID: questions[0].ID, Description: "water", Score: &score},
			{QuestionID: questions[1].ID},
		},
	})

	sessions, err := repo.Sessions().ListByExam(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
	require.Len(t, sessions[0].Answers, 2)
	assert.Equal(t, "Solutions", sessions[0].Answers[0].Question.SubStrand)
	assert.Equal(t, "Separation", sessions[0].Answers[1].Question.SubStrand)
}

func TestUpdateAnswerScoresRejectsUnknownAnswer(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewRepository(store)

	session := store.AddSession(models.ExamSession{ExamID: 1, Answers: []models.ScoredAnswer{{QuestionID: 9}}})
	answerID := session.Answers[0].ID

	err := repo.Sessions().UpdateAnswerScores(ctx, []repositories.AnswerScore{
		{AnswerID: answerID, Score: 4},
		{AnswerID: 999, Score: 1},
	})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	answers, err := repo.Sessions().GetAnswersByIDs(ctx, []uint{answerID})
	require.NoError(t, err)
	assert.Nil(t, answers[0].Score, "no score is written when one answer is unknown")

	require.NoError(t, repo.Sessions().UpdateAnswerScores(ctx, []repositories.AnswerScore{{AnswerID: answerID, Score: 4}}))
	answers, _ = repo.Sessions().GetAnswersByIDs(ctx, []uint{answerID})
	require.NotNil(t, answers[0].Score)
	assert.Equal(t, 4, *answers[0].Score)
	assert.Equal(t, 4, *answers[0].AIScore)
}

func TestReplaceStudentPerformances(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())
	perfs := repo.Performances()

	require.NoError(t, perfs.ReplaceStudentPerformances(ctx, 1, []*models.StudentPerformance{
		{SessionID: 10, AvgScore: 50},
		{SessionID: 11, AvgScore: 60},
	}))
	require.NoError(t, perfs.ReplaceStudentPerformances(ctx, 2, []*models.StudentPerformance{{SessionID: 20}}))
	require.NoError(t, perfs.ReplaceStudentPerformances(ctx, 1, []*models.StudentPerformance{{SessionID: 11, AvgScore: 70}}))

	got, err := perfs.ListStudentPerformances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint(11), got[0].SessionID)
	assert.Equal(t, 70.0, got[0].AvgScore)

	other, _ := perfs.ListStudentPerformances(ctx, 2)
	assert.Len(t, other, 1)
}

func TestExamListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())
	now := time.Now()
	old := now.Add(-time.Hour)

	ended := &models.Exam{Status: models.ExamStatusOngoing, EndDateTime: old}
	running := &models.Exam{Status: models.ExamStatusGrading, EndDateTime: old, StageStartedAt: &old}
	future := &models.Exam{Status: models.ExamStatusUpcoming, EndDateTime: now.Add(time.Hour)}
	for _, e := range []*models.Exam{ended, running, future} {
		require.NoError(t, repo.Exams().Create(ctx, e))
	}

	due, err := repo.Exams().List(ctx, repositories.ExamFilters{
		Statuses:    []models.ExamStatus{models.ExamStatusUpcoming, models.ExamStatusOngoing},
		EndedBefore: &now,
	})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ended.ID, due[0].ID)

	stale, err := repo.Exams().List(ctx, repositories.ExamFilters{StartedBefore: &now})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, running.ID, stale[0].ID)
}

func TestClusterFollowUp(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())

	cluster := &models.PerformanceCluster{ExamID: 1, ClusterLabel: "Cluster A"}
	require.NoError(t, repo.Clusters().Create(ctx, cluster))
	require.NoError(t, repo.Clusters().SetFollowUpExam(ctx, cluster.ID, 42))

	got, err := repo.Clusters().GetByID(ctx, cluster.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FollowUpExamID)
	assert.Equal(t, uint(42), *got.FollowUpExamID)

	assert.ErrorIs(t, repo.Clusters().SetFollowUpExam(ctx, 999, 1), repositories.ErrNotFound)

	require.NoError(t, repo.Clusters().DeleteByExam(ctx, 1))
	clusters, _ := repo.Clusters().ListByExam(ctx, 1)
	assert.Empty(t, clusters)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())

	cluster := &models.PerformanceCluster{ExamID: 1, ClusterLabel: "Cluster A"}
	require.NoError(t, repo.Clusters().Create(ctx, cluster))

	var followUp *models.Exam
	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		followUp = &models.Exam{Type: models.ExamTypeFollowUp, SourceExamID: &cluster.ExamID}
		if err := tx.Exams().Create(ctx, followUp); err != nil {
			return err
		}
		return tx.Clusters().SetFollowUpExam(ctx, 999, followUp.ID)
	})
	require.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.Exams().GetByID(ctx, followUp.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound, "the follow-up exam is rolled back")

	err = repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		followUp = &models.Exam{Type: models.ExamTypeFollowUp}
		if err := tx.Exams().Create(ctx, followUp); err != nil {
			return err
		}
		return tx.Clusters().SetFollowUpExam(ctx, cluster.ID, followUp.ID)
	})
	require.NoError(t, err)

	got, err := repo.Clusters().GetByID(ctx, cluster.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FollowUpExamID)
	assert.Equal(t, followUp.ID, *got.FollowUpExamID)
	_, err = repo.Exams().GetByID(ctx, followUp.ID)
	assert.NoError(t, err)
}
