package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PerformancePostgreSQL struct {
	db *gorm.DB
}

func NewPerformancePostgreSQL(db *gorm.DB) repositories.PerformanceRepository {
	return &PerformancePostgreSQL{db: db}
}

func (p *PerformancePostgreSQL) ReplaceStudentPerformances(ctx context.Context, examID uint, perfs []*models.StudentPerformance) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exam_id = ?", examID).Delete(&models.StudentPerformance{}).Error; err != nil {
			return err
		}
		if len(perfs) == 0 {
			return nil
		}
		for _, perf := range perfs {
			perf.ID = 0
			perf.ExamID = examID
		}
		return tx.Create(&perfs).Error
	})
}

func (p *PerformancePostgreSQL) UpdateClassAvgDifferences(ctx context.Context, perfs []*models.StudentPerformance) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, perf := range perfs {
			if err := tx.Model(&models.StudentPerformance{}).
				Where("session_id = ?", perf.SessionID).
				Update("class_avg_difference", perf.ClassAvgDifference).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PerformancePostgreSQL) ListStudentPerformances(ctx context.Context, examID uint) ([]*models.StudentPerformance, error) {
	var perfs []*models.StudentPerformance
	err := p.db.WithContext(ctx).Where("exam_id = ?", examID).Order("session_id").Find(&perfs).Error
	return perfs, err
}

// SaveClassPerformance upserts on exam_id
func (p *PerformancePostgreSQL) SaveClassPerformance(ctx context.Context, perf *models.ClassPerformance) error {
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}},
			UpdateAll: true,
		}).
		Create(perf).Error
}

func (p *PerformancePostgreSQL) GetClassPerformance(ctx context.Context, examID uint) (*models.ClassPerformance, error) {
	var perf models.ClassPerformance
	if err := p.db.WithContext(ctx).Where("exam_id = ?", examID).First(&perf).Error; err != nil {
		return nil, notFound(err)
	}
	return &perf, nil
}

func (p *PerformancePostgreSQL) ReplaceQuestionPerformances(ctx context.Context, examID uint, perfs []*models.QuestionPerformance) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exam_id = ?", examID).Delete(&models.QuestionPerformance{}).Error; err != nil {
			return err
		}
		if len(perfs) == 0 {
			return nil
		}
		return tx.Create(&perfs).Error
	})
}

func (p *PerformancePostgreSQL) ListQuestionPerformances(ctx context.Context, examID uint) ([]*models.QuestionPerformance, error) {
	var perfs []*models.QuestionPerformance
	err := p.db.WithContext(ctx).Where("exam_id = ?", examID).Order("question_id").Find(&perfs).Error
	return perfs, err
}
