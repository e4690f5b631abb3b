package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"github.com/go-playground/validator/v10"
)

// FollowUp pairs a cluster with the exam composed for it.
type FollowUp struct {
	Cluster *models.PerformanceCluster
	Exam    *models.Exam
}

// clusterPerformance is the cluster summary sent with a follow-up request.
type clusterPerformance struct {
	ClusterLabel        string                  `json:"cluster_label"`
	AvgScore            float64                 `json:"avg_score"`
	ClusterSize         int                     `json:"cluster_size"`
	AvgExpectationLevel models.ExpectationLevel `json:"avg_expectation_level"`
	ScoreVariance       models.ScoreVariance    `json:"score_variance"`
	BloomSkillScores    []models.ScoreEntry     `json:"bloom_skill_scores"`
	StrandScores        []models.StrandScore    `json:"strand_scores"`
	TopBestQuestionIDs  []uint                  `json:"top_best_question_ids"`
	TopWorstQuestionIDs []uint                  `json:"top_worst_question_ids"`
}

// FollowUpService composes a follow-up quiz per performance cluster.
type FollowUpService struct {
	repo      repositories.Repository
	generator generation.Generator
	config    config.PipelineConfig
	validator *validator.Validate
	logger    *ServiceLogger
}

func NewFollowUpService(repo repositories.Repository, generator generation.Generator, cfg config.PipelineConfig, validate *validator.Validate, logger *ServiceLogger) *FollowUpService {
	return &FollowUpService{
		repo:      repo,
		generator: generator,
		config:    cfg,
		validator: validate,
		logger:    logger,
	}
}

// ComposeAll composes every cluster independently and reports the clusters
// that failed together. No clusters is a success with nothing composed.
func (s *FollowUpService) ComposeAll(ctx context.Context, exam *models.Exam, clusters []*models.PerformanceCluster, questions []models.ExamQuestion) ([]FollowUp, error) {
	var (
		composed []FollowUp
		failures []apperrors.FailureDetail
	)
	for _, cluster := range clusters {
		followUp, err := s.Compose(ctx, exam, cluster, questions)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			failures = append(failures, apperrors.FailureDetail{ID: cluster.ID, Reason: err.Error()})
			continue
		}
		composed = append(composed, FollowUp{Cluster: cluster, Exam: followUp})
	}

	if len(failures) > 0 {
		return nil, apperrors.NewPartialFailureError("Clusters", partialFailureSummary, failures)
	}
	return composed, nil
}

// Compose requests a follow-up quiz for one cluster and stores it as a new
// Complete exam linked to the source exam and the cluster.
func (s *FollowUpService) Compose(ctx context.Context, exam *models.Exam, cluster *models.PerformanceCluster, questions []models.ExamQuestion) (*models.Exam, error) {
	request := generation.FollowUpRequest{
		QuestionCount:      s.config.FollowUpQuestionCount,
		ExamQuestions:      sourceQuestions(questions),
		ClusterPerformance: newClusterPerformance(cluster),
	}

	items, err := generation.GenerateItems[generation.FollowUpItem](ctx, s.generator, generation.TaskFollowUpQuiz, request)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.NewGenerationError(string(generation.TaskFollowUpQuiz), "no follow-up questions returned", nil)
	}

	followUpQuestions := make([]models.ExamQuestion, 0, len(items))
	for idx, item := range items {
		if err := s.validator.Struct(item); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				err = apperrors.ToValidationErrors(verrs)
			}
			return nil, apperrors.NewGenerationError(string(generation.TaskFollowUpQuiz),
				fmt.Sprintf("invalid follow-up question %d: %v", idx+1, err), err)
		}
		followUpQuestions = append(followUpQuestions, models.ExamQuestion{
			Number:         idx + 1,
			Grade:          item.Grade,
			Strand:         item.Strand,
			SubStrand:      item.SubStrand,
			BloomSkill:     item.BloomSkill,
			Description:    item.Question,
			ExpectedAnswer: item.ExpectedAnswer,
		})
	}

	sourceID, clusterID := exam.ID, cluster.ID
	followUp := &models.Exam{
		ClassroomID:          exam.ClassroomID,
		TeacherID:            exam.TeacherID,
		Grade:                exam.Grade,
		Code:                 fmt.Sprintf("FU-%d-%d", exam.ID, cluster.ID),
		Type:                 models.ExamTypeFollowUp,
		Status:               models.ExamStatusComplete,
		DurationMin:          exam.DurationMin,
		StartDateTime:        exam.StartDateTime,
		EndDateTime:          exam.EndDateTime,
		SourceExamID:         &sourceID,
		PerformanceClusterID: &clusterID,
		Questions:            followUpQuestions,
	}

	err = s.repo.WithTransaction(ctx, func(repo repositories.Repository) error {
		if err := repo.Exams().Create(ctx, followUp); err != nil {
			return err
		}
		return repo.Clusters().SetFollowUpExam(ctx, cluster.ID, followUp.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save follow-up exam: %w", err)
	}
	cluster.FollowUpExamID = &followUp.ID
	return followUp, nil
}

func newClusterPerformance(c *models.PerformanceCluster) clusterPerformance {
	return clusterPerformance{
		ClusterLabel:        c.ClusterLabel,
		AvgScore:            c.AvgScore,
		ClusterSize:         c.ClusterSize,
		AvgExpectationLevel: c.AvgExpectationLevel,
		ScoreVariance:       c.ScoreVariance.Data(),
		BloomSkillScores:    c.BloomSkillScores,
		StrandScores:        c.StrandScores,
		TopBestQuestionIDs:  c.TopBestQuestionIDs,
		TopWorstQuestionIDs: c.TopWorstQuestionIDs,
	}
}

func sourceQuestions(questions []models.ExamQuestion) []generation.SourceQuestion {
	out := make([]generation.SourceQuestion, len(questions))
	for i, q := range questions {
		out[i] = generation.SourceQuestion{
			Question:       q.Description,
			ExpectedAnswer: q.ExpectedAnswer,
			Strand:         q.Strand,
			SubStrand:      q.SubStrand,
			BloomSkill:     q.BloomSkill,
		}
	}
	return out
}
