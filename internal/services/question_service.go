package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-analysis-service/internal/analysis"
	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"github.com/go-playground/validator/v10"
)

// QuestionService runs the Generating stage body.
type QuestionService struct {
	repo      repositories.Repository
	generator generation.Generator
	config    config.PipelineConfig
	validator *validator.Validate
	logger    *ServiceLogger
}

func NewQuestionService(repo repositories.Repository, generator generation.Generator, cfg config.PipelineConfig, validate *validator.Validate, logger *ServiceLogger) *QuestionService {
	return &QuestionService{
		repo:      repo,
		generator: generator,
		config:    cfg,
		validator: validate,
		logger:    logger,
	}
}

// Generate replaces the exam's questions with a freshly generated set planned
// from its stored configuration, and records the set's composition.
func (s *QuestionService) Generate(ctx context.Context, exam *models.Exam) error {
	genCfg := exam.GenerationConfig.Data()
	if len(genCfg.StrandIDs) == 0 {
		return apperrors.NewConfigurationError("strand_ids", "exam config is incomplete")
	}

	strands, err := s.repo.Strands().GetByIDs(ctx, genCfg.StrandIDs)
	if err != nil {
		return fmt.Errorf("failed to load strands: %w", err)
	}
	if len(strands) == 0 {
		return apperrors.NewConfigurationError("strand_ids", fmt.Sprintf("no strands found for %v", genCfg.StrandIDs))
	}

	count := s.config.DefaultQuestionCount
	if genCfg.QuestionCount != nil {
		count = *genCfg.QuestionCount
	}
	bloomCount := s.config.DefaultBloomSkillCount
	if genCfg.BloomSkillCount != nil {
		bloomCount = *genCfg.BloomSkillCount
	}

	plan := generation.PlanQuestions(strands, count, bloomCount)
	s.logger.LogStep(ctx, exam.ID, "question_plan", slog.Int("sub_strands", len(plan)), slog.Int("questions", count))

	items, err := generation.GenerateItems[generation.QuestionItem](ctx, s.generator, generation.TaskExamQuestions, plan)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("%w for exam %d", ErrNoQuestions, exam.ID)
	}

	questions := make([]models.ExamQuestion, 0, len(items))
	for idx, item := range items {
		if err := s.validator.Struct(item); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				err = apperrors.ToValidationErrors(verrs)
			}
			return apperrors.NewGenerationError(string(generation.TaskExamQuestions),
				fmt.Sprintf("invalid question %d: %v", idx+1, err), err)
		}
		number := item.Number
		if number == 0 {
			number = idx + 1
		}
		questions = append(questions, models.ExamQuestion{
			ExamID:         exam.ID,
			Number:         number,
			Grade:          item.Grade,
			Strand:         item.Strand,
			SubStrand:      item.SubStrand,
			BloomSkill:     item.BloomSkill,
			Description:    item.Description,
			ExpectedAnswer: item.ExpectedAnswer,
		})
	}

	return s.repo.WithTransaction(ctx, func(repo repositories.Repository) error {
		if err := repo.Questions().ReplaceForExam(ctx, exam.ID, questions); err != nil {
			return fmt.Errorf("failed to save questions: %w", err)
		}
		if err := repo.Questions().SaveAnalysis(ctx, analysis.BuildQuestionAnalysis(exam.ID, questions)); err != nil {
			return fmt.Errorf("failed to save question analysis: %w", err)
		}
		return nil
	})
}
