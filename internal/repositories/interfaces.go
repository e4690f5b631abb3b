package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

// ErrNotFound is returned by every lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Statuses    []models.ExamStatus `json:"statuses"`
	EndedBefore *time.Time          `json:"ended_before"`
	// StartedBefore matches exams whose current stage began before the given time.
	StartedBefore *time.Time `json:"started_before"`
	Limit         int        `json:"limit"`
}

// AnswerScore is one grading result to persist.
type AnswerScore struct {
	AnswerID uint `json:"answer_id"`
	Score    int  `json:"score"`
}

// ===== REPOSITORIES =====

type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	Update(ctx context.Context, exam *models.Exam) error
	List(ctx context.Context, filters ExamFilters) ([]*models.Exam, error)
	ListFollowUps(ctx context.Context, sourceExamID uint) ([]*models.Exam, error)
	// Delete removes the exam with its questions.
	Delete(ctx context.Context, id uint) error
}

type QuestionRepository interface {
	ListByExam(ctx context.Context, examID uint) ([]models.ExamQuestion, error)
	// ReplaceForExam deletes the exam's questions and inserts the given set.
	ReplaceForExam(ctx context.Context, examID uint, questions []models.ExamQuestion) error
	SaveAnalysis(ctx context.Context, analysis *models.ExamQuestionAnalysis) error
	GetAnalysis(ctx context.Context, examID uint) (*models.ExamQuestionAnalysis, error)
}

type StrandRepository interface {
	// GetByIDs loads strands with their sub-strands in id order.
	GetByIDs(ctx context.Context, ids []uint) ([]models.Strand, error)
}

type SessionRepository interface {
	// ListByExam loads sessions with their answers and each answer's question.
	ListByExam(ctx context.Context, examID uint) ([]*models.ExamSession, error)
	GetAnswersByIDs(ctx context.Context, ids []uint) ([]models.ScoredAnswer, error)
	UpdateAnswerScores(ctx context.Context, scores []AnswerScore) error
	UpdateStatus(ctx context.Context, sessionIDs []uint, status models.SessionStatus) error
}

type PerformanceRepository interface {
	// ReplaceStudentPerformances swaps the exam's student performances for perfs.
	ReplaceStudentPerformances(ctx context.Context, examID uint, perfs []*models.StudentPerformance) error
	UpdateClassAvgDifferences(ctx context.Context, perfs []*models.StudentPerformance) error
	ListStudentPerformances(ctx context.Context, examID uint) ([]*models.StudentPerformance, error)

	SaveClassPerformance(ctx context.Context, perf *models.ClassPerformance) error
	GetClassPerformance(ctx context.Context, examID uint) (*models.ClassPerformance, error)

	ReplaceQuestionPerformances(ctx context.Context, examID uint, perfs []*models.QuestionPerformance) error
	ListQuestionPerformances(ctx context.Context, examID uint) ([]*models.QuestionPerformance, error)
}

type ClusterRepository interface {
	Create(ctx context.Context, cluster *models.PerformanceCluster) error
	GetByID(ctx context.Context, id uint) (*models.PerformanceCluster, error)
	ListByExam(ctx context.Context, examID uint) ([]*models.PerformanceCluster, error)
	DeleteByExam(ctx context.Context, examID uint) error
	SetFollowUpExam(ctx context.Context, clusterID, examID uint) error
}

// Repository groups every store the pipeline touches.
type Repository interface {
	Exams() ExamRepository
	Questions() QuestionRepository
	Strands() StrandRepository
	Sessions() SessionRepository
	Performances() PerformanceRepository
	Clusters() ClusterRepository

	// WithTransaction runs fn against a repository bound to one transaction.
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
}
