package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/SAP-F-2025/exam-analysis-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]models.ExamQuestion, error) {
	var questions []models.ExamQuestion
	err := q.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("number, id").
		Find(&questions).Error
	return questions, err
}

func (q *QuestionPostgreSQL) ReplaceForExam(ctx context.Context, examID uint, questions []models.ExamQuestion) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exam_id = ?", examID).Delete(&models.ExamQuestion{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].ID = 0
			questions[i].ExamID = examID
		}
		return tx.Create(&questions).Error
	})
}

// SaveAnalysis upserts on exam_id
func (q *QuestionPostgreSQL) SaveAnalysis(ctx context.Context, analysis *models.ExamQuestionAnalysis) error {
	return q.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}},
			UpdateAll: true,
		}).
		Create(analysis).Error
}

func (q *QuestionPostgreSQL) GetAnalysis(ctx context.Context, examID uint) (*models.ExamQuestionAnalysis, error) {
	var analysis models.ExamQuestionAnalysis
	if err := q.db.WithContext(ctx).Where("exam_id = ?", examID).First(&analysis).Error; err != nil {
		return nil, notFound(err)
	}
	return &analysis, nil
}

type StrandPostgreSQL struct {
	db *gorm.DB
}

func NewStrandPostgreSQL(db *gorm.DB) repositories.StrandRepository {
	return &StrandPostgreSQL{db: db}
}

func (s *StrandPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]models.Strand, error) {
	var strands []models.Strand
	err := s.db.WithContext(ctx).
		Preload("SubStrands", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Where("id IN ?", ids).
		Order("id").
		Find(&strands).Error
	return strands, err
}
