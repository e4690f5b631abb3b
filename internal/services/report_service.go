package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-analysis-service/internal/cache"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
)

// ReportService serves the derived performance records of analysed exams,
// caching each report until the next analysis run invalidates it.
type ReportService struct {
	repo    repositories.Repository
	reports *cache.ReportCache
}

func NewReportService(repo repositories.Repository, reports *cache.ReportCache) *ReportService {
	return &ReportService{
		repo:    repo,
		reports: reports,
	}
}

func (s *ReportService) GetClassPerformance(ctx context.Context, examID uint) (*models.ClassPerformance, error) {
	var cached models.ClassPerformance
	if s.load(ctx, examID, cache.ReportClassPerformance, &cached) {
		return &cached, nil
	}
	if err := s.ensureExam(ctx, examID); err != nil {
		return nil, err
	}

	perf, err := s.repo.Performances().GetClassPerformance(ctx, examID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: exam %d has not been analysed", ErrNoReport, examID)
	}
	if err != nil {
		return nil, err
	}
	s.store(ctx, examID, cache.ReportClassPerformance, perf)
	return perf, nil
}

func (s *ReportService) ListStudentPerformances(ctx context.Context, examID uint) ([]*models.StudentPerformance, error) {
	return loadReport(ctx, s, examID, cache.ReportStudentPerformances, s.repo.Performances().ListStudentPerformances)
}

func (s *ReportService) ListQuestionPerformances(ctx context.Context, examID uint) ([]*models.QuestionPerformance, error) {
	return loadReport(ctx, s, examID, cache.ReportQuestionPerformances, s.repo.Performances().ListQuestionPerformances)
}

func (s *ReportService) ListClusters(ctx context.Context, examID uint) ([]*models.PerformanceCluster, error) {
	return loadReport(ctx, s, examID, cache.ReportClusters, s.repo.Clusters().ListByExam)
}

// GetClusterFollowUp returns the follow-up exam composed for a cluster, with its questions.
func (s *ReportService) GetClusterFollowUp(ctx context.Context, clusterID uint) (*models.Exam, error) {
	cluster, err := s.repo.Clusters().GetByID(ctx, clusterID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrClusterNotFound
	}
	if err != nil {
		return nil, err
	}
	if cluster.FollowUpExamID == nil {
		return nil, fmt.Errorf("%w: cluster %d has no follow-up exam", ErrNotFound, clusterID)
	}
	exam, err := s.repo.Exams().GetByID(ctx, *cluster.FollowUpExamID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}
	exam.Questions, err = s.repo.Questions().ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	return exam, nil
}

// loadReport serves a list report from the cache or the store. An empty list
// is a valid report once the exam has been analysed.
func loadReport[T any](ctx context.Context, s *ReportService, examID uint, report cache.Report, list func(context.Context, uint) ([]T, error)) ([]T, error) {
	var cached []T
	if s.load(ctx, examID, report, &cached) {
		return cached, nil
	}
	if err := s.ensureAnalysed(ctx, examID); err != nil {
		return nil, err
	}

	values, err := list(ctx, examID)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []T{}
	}
	s.store(ctx, examID, report, values)
	return values, nil
}

func (s *ReportService) ensureExam(ctx context.Context, examID uint) error {
	_, err := s.repo.Exams().GetByID(ctx, examID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrExamNotFound
	}
	return err
}

// ensureAnalysed reports ErrNoReport until the exam has a class performance.
func (s *ReportService) ensureAnalysed(ctx context.Context, examID uint) error {
	if err := s.ensureExam(ctx, examID); err != nil {
		return err
	}
	_, err := s.repo.Performances().GetClassPerformance(ctx, examID)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: exam %d has not been analysed", ErrNoReport, examID)
	}
	return err
}

func (s *ReportService) load(ctx context.Context, examID uint, report cache.Report, dest interface{}) bool {
	if s.reports == nil {
		return false
	}
	return s.reports.Load(ctx, examID, report, dest)
}

func (s *ReportService) store(ctx context.Context, examID uint, report cache.Report, value interface{}) {
	if s.reports != nil {
		s.reports.Store(ctx, examID, report, value)
	}
}
