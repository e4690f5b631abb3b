package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/analysis"
	"github.com/SAP-F-2025/exam-analysis-service/internal/cache"
	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/generation"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"gorm.io/datatypes"
)

const partialFailureSummary = "Some updates failed"

// AnalysisResult summarises one successful analysis run.
type AnalysisResult struct {
	Students  int
	AvgScore  float64
	Clusters  []*models.PerformanceCluster
	FollowUps []FollowUp
	Warnings  []string
	Metrics   PerformanceMetrics
}

// AnalysisService runs the Analysing stage body.
type AnalysisService struct {
	repo      repositories.Repository
	generator generation.Generator
	followUps *FollowUpService
	reports   *cache.ReportCache
	config    config.PipelineConfig
	logger    *ServiceLogger
}

func NewAnalysisService(
	repo repositories.Repository,
	generator generation.Generator,
	followUps *FollowUpService,
	reports *cache.ReportCache,
	cfg config.PipelineConfig,
	logger *ServiceLogger,
) *AnalysisService {
	return &AnalysisService{
		repo:      repo,
		generator: generator,
		followUps: followUps,
		reports:   reports,
		config:    cfg,
		logger:    logger,
	}
}

// Analyse derives every performance record of the exam. The first failing
// step halts the rest; records written by earlier steps are replaced on the
// next run.
func (s *AnalysisService) Analyse(ctx context.Context, exam *models.Exam) (*AnalysisResult, error) {
	start := time.Now()
	opts := s.config.AnalysisOptions()
	result := &AnalysisResult{}

	if err := s.reset(ctx, exam.ID); err != nil {
		return nil, err
	}

	sessions, err := s.repo.Sessions().ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w for exam %d", ErrNoSessions, exam.ID)
	}

	perfs, warnings, err := s.buildStudentPerformances(ctx, exam, sessions, opts)
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings
	result.Metrics.Skipped = len(sessions) - len(perfs)
	if len(perfs) == 0 {
		return nil, fmt.Errorf("%w for exam %d", ErrNoPerformances, exam.ID)
	}
	if err := s.repo.Performances().ReplaceStudentPerformances(ctx, exam.ID, perfs); err != nil {
		return nil, fmt.Errorf("failed to save student performances: %w", err)
	}
	s.logger.LogStep(ctx, exam.ID, "student_performances", slog.Int("count", len(perfs)))

	questions, err := s.repo.Questions().ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	if err := s.saveQuestionPerformances(ctx, exam.ID, questions, sessions); err != nil {
		return nil, err
	}

	classPerf, calls, err := s.buildClassPerformance(ctx, exam, perfs, opts)
	result.Metrics.Generations += calls
	if err != nil {
		return nil, err
	}
	if err := s.repo.Performances().SaveClassPerformance(ctx, classPerf); err != nil {
		return nil, fmt.Errorf("failed to save class performance: %w", err)
	}
	s.logger.LogStep(ctx, exam.ID, "class_performance", slog.Float64("avg_score", classPerf.AvgScore))

	analysis.ClassAverageDifferences(perfs, classPerf.AvgScore)
	if err := s.repo.Performances().UpdateClassAvgDifferences(ctx, perfs); err != nil {
		return nil, fmt.Errorf("failed updating student-class diffs: %w", err)
	}

	clusters := analysis.ClusterPerformances(exam.ID, perfs, opts)
	for _, cluster := range clusters {
		if err := s.repo.Clusters().Create(ctx, cluster); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", cluster.ClusterLabel, err)
		}
	}
	s.logger.LogStep(ctx, exam.ID, "clusters", slog.Int("count", len(clusters)))

	followUps, err := s.followUps.ComposeAll(ctx, exam, clusters, questions)
	result.Metrics.Generations += len(clusters)
	if err != nil {
		return nil, err
	}

	result.Students = len(perfs)
	result.AvgScore = classPerf.AvgScore
	result.Clusters = clusters
	result.FollowUps = followUps
	result.Metrics.Students = len(perfs)
	result.Metrics.Clusters = len(clusters)
	result.Metrics.FollowUps = len(followUps)
	result.Metrics.TotalDuration = time.Since(start)
	return result, nil
}

// reset removes the clusters of a previous run with their follow-up exams.
func (s *AnalysisService) reset(ctx context.Context, examID uint) error {
	err := s.repo.WithTransaction(ctx, func(repo repositories.Repository) error {
		followUps, err := repo.Exams().ListFollowUps(ctx, examID)
		if err != nil {
			return err
		}
		for _, fu := range followUps {
			if err := repo.Exams().Delete(ctx, fu.ID); err != nil {
				return err
			}
		}
		return repo.Clusters().DeleteByExam(ctx, examID)
	})
	if err != nil {
		return fmt.Errorf("failed to clear previous clusters: %w", err)
	}
	if s.reports != nil {
		s.reports.Invalidate(ctx, examID)
	}
	return nil
}

// buildStudentPerformances applies the configured failure policy. Sessions
// without answers are skipped silently.
func (s *AnalysisService) buildStudentPerformances(ctx context.Context, exam *models.Exam, sessions []*models.ExamSession, opts analysis.Options) ([]*models.StudentPerformance, []string, error) {
	policy := s.config.FailurePolicy
	var (
		perfs    []*models.StudentPerformance
		failures []apperrors.FailureDetail
	)

	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		perf, skipped, err := analysis.BuildStudentPerformance(session, opts)
		if err != nil {
			failures = append(failures, apperrors.FailureDetail{ID: session.ID, Reason: err.Error()})
			if policy == models.FailurePolicyFailFast {
				break
			}
			continue
		}
		if skipped {
			continue
		}
		perf.DurationMin = session.DurationMin()
		perf.IsLateSubmission = session.IsLateSubmission(exam)
		perfs = append(perfs, perf)
	}

	if len(failures) == 0 {
		return perfs, nil, nil
	}
	if policy != models.FailurePolicyIsolate {
		return nil, nil, apperrors.NewPartialFailureError("Sessions", partialFailureSummary, failures)
	}

	details, _ := json.Marshal(failures)
	warning := fmt.Sprintf("Skipped %d sessions: %s", len(failures), details)
	s.logger.Logger().WarnContext(ctx, "Isolated failing sessions", "count", len(failures))
	return perfs, []string{warning}, nil
}

func (s *AnalysisService) saveQuestionPerformances(ctx context.Context, examID uint, questions []models.ExamQuestion, sessions []*models.ExamSession) error {
	var answers []models.ScoredAnswer
	for _, session := range sessions {
		answers = append(answers, session.Answers...)
	}
	perfs := analysis.BuildQuestionPerformances(questions, answers)
	if err := s.repo.Performances().ReplaceQuestionPerformances(ctx, examID, perfs); err != nil {
		return fmt.Errorf("failed to save question performances: %w", err)
	}
	return nil
}

// buildClassPerformance aggregates the class and attaches the narrative
// insights. It returns the number of generation calls made.
func (s *AnalysisService) buildClassPerformance(ctx context.Context, exam *models.Exam, perfs []*models.StudentPerformance, opts analysis.Options) (*models.ClassPerformance, int, error) {
	calls := 0
	summary, err := analysis.SummarizeClass(perfs)
	if errors.Is(err, analysis.ErrNoPerformances) {
		return nil, calls, fmt.Errorf("%w for exam %d", ErrNoPerformances, exam.ID)
	}
	if err != nil {
		return nil, calls, err
	}

	calls++
	general, err := s.generator.Generate(ctx, generation.TaskClassInsights, summary)
	if err != nil {
		return nil, calls, err
	}
	generalJSON, err := json.Marshal(general)
	if err != nil {
		return nil, calls, err
	}

	strands := analysis.AnalyzeStrands(perfs, opts)
	calls++
	insights, err := generation.GenerateItems[generation.StrandInsight](ctx, s.generator, generation.TaskStrandInsights, strands)
	if err != nil {
		return nil, calls, err
	}
	attachStrandInsights(strands, insights)

	var flagged []models.CorrelationInsight
	if correlations := analysis.FlagSubStrandCorrelations(perfs, opts); len(correlations) > 0 {
		calls++
		flagged, err = generation.GenerateItems[models.CorrelationInsight](ctx, s.generator, generation.TaskCorrelationInsights, correlations)
		if err != nil {
			return nil, calls, err
		}
	}

	return &models.ClassPerformance{
		ExamID:                       exam.ID,
		ClassroomID:                  exam.ClassroomID,
		StudentCount:                 summary.StudentCount,
		AvgScore:                     summary.AvgScore,
		AvgExpectationLevel:          summary.AvgExpectationLevel,
		ExpectationLevelDistribution: summary.ExpectationLevelDistribution,
		ScoreDistribution:            summary.ScoreDistribution,
		ScoreVariance:                datatypes.NewJSONType(summary.ScoreVariance),
		BloomSkillScores:             summary.BloomSkillScores,
		GradeScores:                  summary.GradeScores,
		GeneralInsights:              datatypes.JSON(generalJSON),
		StrandAnalysis:               strands,
		StrandStudentMastery:         datatypes.NewJSONType(analysis.BuildStrandStudentMastery(perfs, opts)),
		FlaggedSubStrands:            flagged,
	}, calls, nil
}

// attachStrandInsights matches insights by strand name. Strands without a
// match get empty lists.
func attachStrandInsights(strands []models.StrandAnalysis, insights []generation.StrandInsight) {
	lookup := make(map[string]generation.StrandInsight, len(insights))
	for _, in := range insights {
		lookup[in.Strand] = in
	}
	for i := range strands {
		in := lookup[strands[i].Name]
		strands[i].Insights = nonNil(in.Insights)
		strands[i].Suggestions = nonNil(in.Suggestions)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
