package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"gorm.io/gorm"
)

type ExamPostgreSQL struct {
	db *gorm.DB
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{db: db}
}

// Create inserts the exam together with any questions attached to it
func (e *ExamPostgreSQL) Create(ctx context.Context, exam *models.Exam) error {
	return e.db.WithContext(ctx).Create(exam).Error
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &exam, nil
}

// Update saves every column of the exam but leaves its questions alone
func (e *ExamPostgreSQL) Update(ctx context.Context, exam *models.Exam) error {
	result := e.db.WithContext(ctx).Omit("Questions").Save(exam)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, error) {
	query := e.db.WithContext(ctx).Model(&models.Exam{})
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if filters.EndedBefore != nil {
		query = query.Where("end_date_time < ?", *filters.EndedBefore)
	}
	if filters.StartedBefore != nil {
		query = query.Where("stage_started_at IS NOT NULL AND stage_started_at < ?", *filters.StartedBefore)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var exams []*models.Exam
	if err := query.Order("id").Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

func (e *ExamPostgreSQL) ListFollowUps(ctx context.Context, sourceExamID uint) ([]*models.Exam, error) {
	var exams []*models.Exam
	err := e.db.WithContext(ctx).
		Where("source_exam_id = ? AND type = ?", sourceExamID, models.ExamTypeFollowUp).
		Order("id").
		Find(&exams).Error
	return exams, err
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, id uint) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exam_id = ?", id).Delete(&models.ExamQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Exam{}, id).Error
	})
}
