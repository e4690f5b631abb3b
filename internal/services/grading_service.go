package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
)

const (
	reasonMissingGrade   = "Missing answer_id or score"
	reasonAnswerNotFound = "Answer not found"

	maxAnswerScore = 4
)

// GradingService runs the Grading stage body.
type GradingService struct {
	repo      repositories.Repository
	generator generation.Generator
	logger    *ServiceLogger
}

func NewGradingService(repo repositories.Repository, generator generation.Generator, logger *ServiceLogger) *GradingService {
	return &GradingService{
		repo:      repo,
		generator: generator,
		logger:    logger,
	}
}

type gradingBatch struct {
	request generation.GradeRequest
	pending map[uint]struct{}
}

// Grade scores every answer of the exam, one generation call per question.
// Scores are written only when every answer was graded.
func (s *GradingService) Grade(ctx context.Context, exam *models.Exam) error {
	sessions, err := s.repo.Sessions().ListByExam(ctx, exam.ID)
	if err != nil {
		return err
	}

	var (
		scores     []repositories.AnswerScore
		failures   []apperrors.FailureDetail
		sessionIDs []uint
		batches    []*gradingBatch
	)
	byQuestion := map[uint]*gradingBatch{}

	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
		for _, answer := range session.Answers {
			if answer.IsBlank() {
				scores = append(scores, repositories.AnswerScore{AnswerID: answer.ID, Score: 0})
				continue
			}
			batch, ok := byQuestion[answer.QuestionID]
			if !ok {
				batch = &gradingBatch{
					request: generation.GradeRequest{
						QuestionID:     answer.QuestionID,
						Question:       answer.Question.Description,
						ExpectedAnswer: answer.Question.ExpectedAnswer,
						SubStrand:      answer.Question.SubStrand,
					},
					pending: map[uint]struct{}{},
				}
				byQuestion[answer.QuestionID] = batch
				batches = append(batches, batch)
			}
			batch.request.StudentAnswers = append(batch.request.StudentAnswers, generation.StudentAnswer{
				AnswerID: answer.ID,
				Answer:   answer.Description,
			})
			batch.pending[answer.ID] = struct{}{}
		}
	}

	for _, batch := range batches {
		graded, failed, err := s.gradeQuestion(ctx, batch)
		if err != nil {
			return err
		}
		scores = append(scores, graded...)
		failures = append(failures, failed...)
	}
	s.logger.LogStep(ctx, exam.ID, "grading", slog.Int("questions", len(batches)), slog.Int("scores", len(scores)))

	if len(failures) > 0 {
		return apperrors.NewPartialFailureError("", partialFailureSummary, failures)
	}

	return s.repo.WithTransaction(ctx, func(repo repositories.Repository) error {
		if err := repo.Sessions().UpdateAnswerScores(ctx, scores); err != nil {
			return fmt.Errorf("failed to save scores: %w", err)
		}
		return repo.Sessions().UpdateStatus(ctx, sessionIDs, models.SessionStatusComplete)
	})
}

// gradeQuestion asks for the grades of one question's answers. Answers the
// response does not cover are reported as not found.
func (s *GradingService) gradeQuestion(ctx context.Context, batch *gradingBatch) ([]repositories.AnswerScore, []apperrors.FailureDetail, error) {
	items, err := generation.GenerateItems[generation.GradeItem](ctx, s.generator, generation.TaskAnswerGrades, []generation.GradeRequest{batch.request})
	if err != nil {
		return nil, nil, err
	}

	var (
		scores   []repositories.AnswerScore
		failures []apperrors.FailureDetail
	)
	for _, item := range items {
		if item.AnswerID == nil {
			failures = append(failures, apperrors.FailureDetail{Reason: reasonMissingGrade})
			continue
		}
		id := *item.AnswerID
		if _, ok := batch.pending[id]; !ok {
			failures = append(failures, apperrors.FailureDetail{ID: id, Reason: reasonAnswerNotFound})
			continue
		}
		delete(batch.pending, id)
		if item.Score == nil {
			failures = append(failures, apperrors.FailureDetail{ID: id, Reason: reasonMissingGrade})
			continue
		}
		scores = append(scores, repositories.AnswerScore{AnswerID: id, Score: clampScore(*item.Score)})
	}
	for _, answer := range batch.request.StudentAnswers {
		if _, ok := batch.pending[answer.AnswerID]; ok {
			failures = append(failures, apperrors.FailureDetail{ID: answer.AnswerID, Reason: reasonMissingGrade})
		}
	}
	return scores, failures, nil
}

func clampScore(score float64) int {
	return int(math.Max(0, math.Min(maxAnswerScore, math.Round(score))))
}
