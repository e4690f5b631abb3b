package postgres

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"gorm.io/gorm"
)

// Repository binds every postgres store to one *gorm.DB, which may be a transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{db: db}
}

func (r *Repository) Exams() repositories.ExamRepository {
	return NewExamPostgreSQL(r.db)
}

func (r *Repository) Questions() repositories.QuestionRepository {
	return NewQuestionPostgreSQL(r.db)
}

func (r *Repository) Strands() repositories.StrandRepository {
	return NewStrandPostgreSQL(r.db)
}

func (r *Repository) Sessions() repositories.SessionRepository {
	return NewSessionPostgreSQL(r.db)
}

func (r *Repository) Performances() repositories.PerformanceRepository {
	return NewPerformancePostgreSQL(r.db)
}

func (r *Repository) Clusters() repositories.ClusterRepository {
	return NewClusterPostgreSQL(r.db)
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// AutoMigrate creates or updates every table the pipeline uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Strand{},
		&models.SubStrand{},
		&models.Exam{},
		&models.ExamQuestion{},
		&models.ExamQuestionAnalysis{},
		&models.ExamSession{},
		&models.ScoredAnswer{},
		&models.StudentPerformance{},
		&models.ClassPerformance{},
		&models.QuestionPerformance{},
		&models.PerformanceCluster{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}
